package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/models"
	"review-tracker-api/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ensureAdmin checks if the current request is performed by an admin user
func ensureAdmin(c *gin.Context) bool {
	role, exists := c.Get("role")
	if !exists || role.(string) != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return false
	}
	return true
}

// ===================== PROJECTS =====================

// GetProjects lists the bucket registry. Open item counts ride along
// so the coordinator can see which buckets still have work.
func GetProjects(c *gin.Context) {
	query := config.DB.Model(&models.Project{}).Where("delete_at IS NULL")

	if active := c.Query("active"); active == "true" {
		query = query.Where("is_active = ?", true)
	}

	var projects []models.Project
	if err := query.Order("code ASC").Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch projects"})
		return
	}

	var countRows []struct {
		Bucket string
		Open   int64
		Total  int64
	}
	config.DB.Table("items").
		Select("bucket, SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END) AS open, COUNT(*) AS total", models.StatusClosed).
		Where("delete_at IS NULL").
		Group("bucket").
		Scan(&countRows)

	openCounts := make(map[string]int64)
	totalCounts := make(map[string]int64)
	for _, row := range countRows {
		openCounts[row.Bucket] = row.Open
		totalCounts[row.Bucket] = row.Total
	}

	responses := make([]gin.H, 0, len(projects))
	for _, project := range projects {
		responses = append(responses, gin.H{
			"project_id":  project.ProjectID,
			"code":        project.Code,
			"name":        project.Name,
			"is_active":   project.IsActive,
			"open_items":  openCounts[project.Code],
			"total_items": totalCounts[project.Code],
			"create_at":   project.CreateAt,
			"update_at":   project.UpdateAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"projects": responses,
		"total":    len(responses),
	})
}

// CreateProject registers a new bucket
func CreateProject(c *gin.Context) {
	if !ensureAdmin(c) {
		return
	}

	type request struct {
		Code string `json:"code" binding:"required"`
		Name string `json:"name" binding:"required"`
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code := strings.ToUpper(utils.SanitizeInput(req.Code))
	name := utils.SanitizeInput(req.Name)
	if code == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and name are required"})
		return
	}

	var existing int64
	config.DB.Model(&models.Project{}).
		Where("code = ? AND delete_at IS NULL", code).
		Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A project with this code already exists"})
		return
	}

	project := models.Project{
		Code:     code,
		Name:     name,
		IsActive: true,
		CreateAt: time.Now(),
	}

	if err := config.DB.Create(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Project created successfully",
		"project": project,
	})
}

// UpdateProject updates a bucket's label or active flag. The code is
// immutable: items reference buckets by code, so renaming one would
// orphan its history.
func UpdateProject(c *gin.Context) {
	if !ensureAdmin(c) {
		return
	}

	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	var project models.Project
	if err := config.DB.Where("delete_at IS NULL").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return
	}

	type request struct {
		Name     *string `json:"name"`
		IsActive *bool   `json:"is_active"`
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}

	if req.Name != nil {
		name := utils.SanitizeInput(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No updates provided"})
		return
	}

	updates["update_at"] = time.Now()

	if err := config.DB.Model(&project).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Project updated successfully",
	})
}

// DeleteProject soft-deletes a bucket. Buckets with open items cannot
// be removed; close or move the items first.
func DeleteProject(c *gin.Context) {
	if !ensureAdmin(c) {
		return
	}

	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	var project models.Project
	if err := config.DB.Where("delete_at IS NULL").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return
	}

	var openItems int64
	config.DB.Model(&models.Item{}).
		Where("bucket = ? AND status <> ? AND delete_at IS NULL", project.Code, models.StatusClosed).
		Count(&openItems)
	if openItems > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Project still has open items"})
		return
	}

	now := time.Now()
	if err := config.DB.Model(&project).Updates(map[string]interface{}{
		"is_active": false,
		"delete_at": now,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Project deleted successfully",
	})
}

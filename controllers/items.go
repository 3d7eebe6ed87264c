package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/models"
	"review-tracker-api/services"
	"review-tracker-api/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondWorkflowError maps service errors onto transport codes. State
// conflicts are 409 so callers can tell a refused transition from bad
// input.
func respondWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	case errors.Is(err, services.ErrDuplicateIdentifier),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrAlreadyResponded),
		errors.Is(err, services.ErrStaleVersion):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func itemIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return 0, false
	}
	return id, true
}

func actorEmail(c *gin.Context) string {
	if email, ok := c.Get("email"); ok {
		if s, ok := email.(string); ok {
			return s
		}
	}
	return ""
}

// ===================== ITEMS =====================

// GetItems lists tracked items with optional filters
func GetItems(c *gin.Context) {
	query := config.DB.Model(&models.Item{}).Where("delete_at IS NULL")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if bucket := c.Query("bucket"); bucket != "" {
		query = query.Where("bucket = ?", bucket)
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if q := c.Query("q"); q != "" {
		like := "%" + q + "%"
		query = query.Where("identifier LIKE ? OR title LIKE ?", like, like)
	}

	var items []models.Item
	if err := query.Preload("Assignments").
		Order("contractor_due ASC, item_id ASC").
		Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"items":   items,
		"total":   len(items),
	})
}

// GetItem returns one item with its reviewer assignments
func GetItem(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	var item models.Item
	if err := config.DB.Preload("Assignments").
		Where("item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"item":    item,
	})
}

// CreateItem registers a new RFI or submittal for tracking
func CreateItem(c *gin.Context) {
	type request struct {
		Bucket        string                   `json:"bucket" binding:"required"`
		Identifier    string                   `json:"identifier" binding:"required"`
		Category      string                   `json:"category" binding:"required"`
		Title         string                   `json:"title" binding:"required"`
		Description   *string                  `json:"description"`
		Priority      string                   `json:"priority"`
		DateReceived  string                   `json:"date_received" binding:"required"`
		ContractorDue string                   `json:"contractor_due" binding:"required"`
		MultiReviewer bool                     `json:"multi_reviewer"`
		ReviewerName  string                   `json:"reviewer_name"`
		ReviewerEmail string                   `json:"reviewer_email"`
		Reviewers     []services.ReviewerInput `json:"reviewers"`
		QcrName       string                   `json:"qcr_name"`
		QcrEmail      string                   `json:"qcr_email"`
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dateReceived, ok := utils.ParseDate(req.DateReceived)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date_received format. Use YYYY-MM-DD"})
		return
	}
	contractorDue, ok := utils.ParseDate(req.ContractorDue)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contractor_due format. Use YYYY-MM-DD"})
		return
	}

	wf := services.NewWorkflowService(nil)
	item, err := wf.CreateItem(c.Request.Context(), services.CreateItemInput{
		Bucket:        utils.SanitizeInput(req.Bucket),
		Identifier:    utils.SanitizeInput(req.Identifier),
		Category:      req.Category,
		Title:         utils.SanitizeInput(req.Title),
		Description:   req.Description,
		Priority:      req.Priority,
		DateReceived:  dateReceived,
		ContractorDue: contractorDue,
		MultiReviewer: req.MultiReviewer,
		ReviewerName:  req.ReviewerName,
		ReviewerEmail: req.ReviewerEmail,
		Reviewers:     req.Reviewers,
		QcrName:       req.QcrName,
		QcrEmail:      req.QcrEmail,
		Actor:         actorEmail(c),
	})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Item created successfully",
		"item":    item,
	})
}

// UpdateItem applies coordinator edits to an item
func UpdateItem(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	type request struct {
		Title         *string `json:"title"`
		Description   *string `json:"description"`
		Priority      *string `json:"priority"`
		DateReceived  *string `json:"date_received"`
		ContractorDue *string `json:"contractor_due"`
		ReviewerDue   *string `json:"reviewer_due"`
		QcrDue        *string `json:"qcr_due"`
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := services.UpdateItemInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Actor:       actorEmail(c),
	}
	for _, d := range []struct {
		raw  *string
		dst  **time.Time
		name string
	}{
		{req.DateReceived, &in.DateReceived, "date_received"},
		{req.ContractorDue, &in.ContractorDue, "contractor_due"},
		{req.ReviewerDue, &in.ReviewerDue, "reviewer_due"},
		{req.QcrDue, &in.QcrDue, "qcr_due"},
	} {
		if d.raw == nil {
			continue
		}
		parsed, ok := utils.ParseDate(*d.raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + d.name + " format. Use YYYY-MM-DD"})
			return
		}
		*d.dst = &parsed
	}

	wf := services.NewWorkflowService(nil)
	item, err := wf.UpdateItem(c.Request.Context(), itemID, in)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Item updated successfully",
		"item":    item,
	})
}

// AssignReviewers sets or replaces the reviewer and QCR contacts
func AssignReviewers(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	type request struct {
		ReviewerName  string                   `json:"reviewer_name"`
		ReviewerEmail string                   `json:"reviewer_email"`
		Reviewers     []services.ReviewerInput `json:"reviewers"`
		QcrName       string                   `json:"qcr_name"`
		QcrEmail      string                   `json:"qcr_email"`
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf := services.NewWorkflowService(nil)
	item, err := wf.AssignReviewers(c.Request.Context(), itemID, services.AssignInput{
		ReviewerName:  req.ReviewerName,
		ReviewerEmail: req.ReviewerEmail,
		Reviewers:     req.Reviewers,
		QcrName:       req.QcrName,
		QcrEmail:      req.QcrEmail,
		Actor:         actorEmail(c),
	})
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Reviewers assigned successfully",
		"item":    item,
	})
}

// ExcuseReviewer drops the response requirement for one assignment
func ExcuseReviewer(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}
	assignmentID, err := strconv.Atoi(c.Param("assignment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignment ID"})
		return
	}

	wf := services.NewWorkflowService(nil)
	status, err := wf.ExcuseReviewer(c.Request.Context(), itemID, assignmentID, actorEmail(c))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Reviewer excused",
		"status":  status,
	})
}

// CloseItem records the contractor-facing response and closes the item
func CloseItem(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	type request struct {
		ResponseCategory string `json:"response_category"`
		ResponseText     string `json:"response_text"`
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf := services.NewWorkflowService(nil)
	item, err := wf.CloseItem(c.Request.Context(), itemID, req.ResponseCategory, req.ResponseText, actorEmail(c))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Item closed",
		"item":    item,
	})
}

// ReopenItem re-activates a closed item against a new contractor due date
func ReopenItem(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	type request struct {
		ContractorDue string `json:"contractor_due" binding:"required"`
		Note          string `json:"note"`
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contractorDue, ok := utils.ParseDate(req.ContractorDue)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contractor_due format. Use YYYY-MM-DD"})
		return
	}

	wf := services.NewWorkflowService(nil)
	item, err := wf.ReopenItem(c.Request.Context(), itemID, contractorDue, req.Note, actorEmail(c))
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Item reopened",
		"item":    item,
	})
}

// GetItemHistory returns the status trail and archived reviewer responses
func GetItemHistory(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	var item models.Item
	if err := config.DB.Select("item_id").
		Where("item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load item"})
		return
	}

	var statusHistory []models.ItemStatusHistory
	if err := config.DB.Where("item_id = ?", itemID).
		Order("history_id ASC").
		Find(&statusHistory).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch status history"})
		return
	}

	var responseHistory []models.ReviewerResponseHistory
	if err := config.DB.Where("item_id = ?", itemID).
		Order("history_id ASC").
		Find(&responseHistory).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch response history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"status_history":   statusHistory,
		"response_history": responseHistory,
	})
}

// ===================== NOTIFY =====================

// NotifyReviewer emails the reviewer-stage contacts their response links
// and records each successful send.
func NotifyReviewer(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	type request struct {
		AssignmentID *int `json:"assignment_id"`
	}
	var req request
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var item models.Item
	if err := config.DB.Preload("Assignments").
		Where("item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load item"})
		return
	}
	if item.IsClosed() {
		c.JSON(http.StatusConflict, gin.H{"error": "Item is closed"})
		return
	}
	if !item.ReviewerAssigned() {
		c.JSON(http.StatusConflict, gin.H{"error": "No reviewer assigned"})
		return
	}

	notifier := services.NewMailNotifier(nil)
	wf := services.NewWorkflowService(nil)
	ctx := c.Request.Context()

	sent := []string{}
	failed := []string{}
	record := func(recipient string, sendErr error) {
		if sendErr != nil {
			failed = append(failed, recipient)
			return
		}
		if _, err := wf.RecordNotificationSent(ctx, item.ItemID, models.ReminderRoleReviewer, recipient, time.Now()); err != nil {
			failed = append(failed, recipient)
			return
		}
		sent = append(sent, recipient)
	}

	if item.MultiReviewer {
		for i := range item.Assignments {
			a := item.Assignments[i]
			if req.AssignmentID != nil && a.AssignmentID != *req.AssignmentID {
				continue
			}
			// Without an explicit target, only reviewers not yet notified
			// get mail; resends go through the reminder engine.
			if req.AssignmentID == nil && a.EmailSentAt != nil {
				continue
			}
			record(a.ReviewerEmail, notifier.SendReviewerAssignment(ctx, &item, &a))
		}
	} else {
		record(*item.ReviewerEmail, notifier.SendReviewerAssignment(ctx, &item, nil))
	}

	if len(sent) == 0 && len(failed) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "All reviewers already notified"})
		return
	}
	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"success": len(failed) == 0,
		"sent":    sent,
		"failed":  failed,
	})
}

// NotifyQcr emails the QC reviewer their response link and records the send
func NotifyQcr(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	var item models.Item
	if err := config.DB.Preload("Assignments").
		Where("item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load item"})
		return
	}
	if item.IsClosed() {
		c.JSON(http.StatusConflict, gin.H{"error": "Item is closed"})
		return
	}
	if item.QcrEmail == nil || *item.QcrEmail == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "No QCR assigned"})
		return
	}

	ctx := c.Request.Context()
	notifier := services.NewMailNotifier(nil)
	if err := notifier.SendQcrAssignment(ctx, &item); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send QCR notification"})
		return
	}

	wf := services.NewWorkflowService(nil)
	status, err := wf.RecordNotificationSent(ctx, item.ItemID, models.ReminderRoleQcr, *item.QcrEmail, time.Now())
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "QCR notified",
		"status":  status,
	})
}

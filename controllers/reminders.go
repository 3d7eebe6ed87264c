package controllers

import (
	"errors"
	"net/http"
	"review-tracker-api/services"
	"review-tracker-api/utils"
	"time"

	"github.com/gin-gonic/gin"
)

// ===================== Reminders =====================

// reminderDate resolves the reference date for a reminder pass. The
// optional today parameter lets the coordinator preview a past or
// future day without touching the clock.
func reminderDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("today")
	if raw == "" {
		return time.Now(), true
	}
	day, ok := utils.ParseDate(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid today date, expected YYYY-MM-DD",
		})
		return time.Time{}, false
	}
	return day, true
}

// PreviewReminders returns the classified reminder batch for a day
// without sending anything or writing to the reminder log.
func PreviewReminders(c *gin.Context) {
	today, ok := reminderDate(c)
	if !ok {
		return
	}

	reminders := services.NewReminderService(nil, nil)
	batch, err := reminders.ItemsNeedingReminders(c.Request.Context(), today)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to build reminder preview",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"date":               today.Format("2006-01-02"),
		"single_reviewer":    batch.SingleReviewer,
		"multi_reviewer":     batch.MultiReviewer,
		"multi_reviewer_qcr": batch.MultiReviewerQcr,
		"skipped":            batch.Skipped,
		"total": len(batch.SingleReviewer) +
			len(batch.MultiReviewer) +
			len(batch.MultiReviewerQcr),
	})
}

// RunReminders triggers a reminder pass immediately. The daily loop
// uses the same path, so a manual run is safe to repeat: the reminder
// log suppresses anything already sent for the day.
func RunReminders(c *gin.Context) {
	today, ok := reminderDate(c)
	if !ok {
		return
	}

	reminders := services.NewReminderService(nil, nil)
	summary, err := reminders.ProcessAll(c.Request.Context(), today)
	if err != nil {
		if errors.Is(err, services.ErrReminderRunBusy) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "A reminder run is already in progress",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Reminder run failed",
		})
		return
	}

	status := http.StatusOK
	if len(summary.Errors) > 0 {
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"success": len(summary.Errors) == 0,
		"date":    today.Format("2006-01-02"),
		"summary": summary,
	})
}

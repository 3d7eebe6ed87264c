package controllers

import (
	"net/http"
	"review-tracker-api/config"
	"review-tracker-api/models"
	"time"

	"github.com/gin-gonic/gin"
)

// GetDashboardStats returns the coordinator dashboard: status and
// bucket breakdowns, stage queues, overdue work, and recent closures.
func GetDashboardStats(c *gin.Context) {
	today := time.Now().Format("2006-01-02")

	stats := make(map[string]interface{})
	stats["overview"] = buildReviewOverview(today)
	stats["by_status"] = buildStatusBreakdown()
	stats["by_bucket"] = buildBucketBreakdown(today)
	stats["stage_queues"] = buildStageQueues(today)
	stats["overdue_items"] = buildOverdueList(today)
	stats["recently_closed"] = buildRecentlyClosed()
	stats["current_date"] = today

	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
	})
}

// buildReviewOverview returns the headline counters.
func buildReviewOverview(today string) map[string]interface{} {
	overview := make(map[string]interface{})

	var total int64
	config.DB.Table("items").
		Where("delete_at IS NULL").
		Count(&total)
	overview["total_items"] = total

	var open int64
	config.DB.Table("items").
		Where("status <> ? AND delete_at IS NULL", models.StatusClosed).
		Count(&open)
	overview["open_items"] = open

	var closed int64
	config.DB.Table("items").
		Where("status = ? AND delete_at IS NULL", models.StatusClosed).
		Count(&closed)
	overview["closed_items"] = closed

	var overdue int64
	config.DB.Table("items").
		Where("status <> ? AND contractor_due < ? AND delete_at IS NULL", models.StatusClosed, today).
		Count(&overdue)
	overview["overdue_items"] = overdue

	var dueToday int64
	config.DB.Table("items").
		Where("status <> ? AND contractor_due = ? AND delete_at IS NULL", models.StatusClosed, today).
		Count(&dueToday)
	overview["due_today"] = dueToday

	var reopened int64
	config.DB.Table("items").
		Where("reopen_count > 0 AND delete_at IS NULL").
		Count(&reopened)
	overview["reopened_items"] = reopened

	// Breakdown by item category
	var categoryRows []struct {
		Category string
		Total    int64
	}
	config.DB.Table("items").
		Select("category, COUNT(*) AS total").
		Where("delete_at IS NULL").
		Group("category").
		Scan(&categoryRows)

	categoryCounts := make(map[string]int64)
	for _, row := range categoryRows {
		categoryCounts[row.Category] = row.Total
	}
	overview["rfis"] = categoryCounts[models.CategoryRFI]
	overview["submittals"] = categoryCounts[models.CategorySubmittal]

	return overview
}

// buildStatusBreakdown counts items per workflow status.
func buildStatusBreakdown() []map[string]interface{} {
	var rows []struct {
		Status string
		Total  int64
	}

	config.DB.Table("items").
		Select("status, COUNT(*) AS total").
		Where("delete_at IS NULL").
		Group("status").
		Scan(&rows)

	counts := make(map[string]int64)
	for _, row := range rows {
		counts[row.Status] = row.Total
	}

	// Fixed order so the dashboard renders the pipeline left to right.
	ordered := []string{
		models.StatusUnassigned,
		models.StatusAssigned,
		models.StatusInReview,
		models.StatusInQC,
		models.StatusReadyForResponse,
		models.StatusClosed,
	}

	breakdown := make([]map[string]interface{}, 0, len(ordered))
	for _, status := range ordered {
		breakdown = append(breakdown, map[string]interface{}{
			"status": status,
			"count":  counts[status],
		})
	}

	return breakdown
}

// buildBucketBreakdown summarizes each bucket with open, closed and
// overdue counts.
func buildBucketBreakdown(today string) []map[string]interface{} {
	var rows []struct {
		Bucket  string
		Total   int64
		Open    int64
		Closed  int64
		Overdue int64
	}

	config.DB.Table("items").
		Select(`bucket,
			COUNT(*) AS total,
			SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END) AS open,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS closed,
			SUM(CASE WHEN status <> ? AND contractor_due < ? THEN 1 ELSE 0 END) AS overdue`,
			models.StatusClosed, models.StatusClosed, models.StatusClosed, today).
		Where("delete_at IS NULL").
		Group("bucket").
		Order("bucket ASC").
		Scan(&rows)

	buckets := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, map[string]interface{}{
			"bucket":  row.Bucket,
			"total":   row.Total,
			"open":    row.Open,
			"closed":  row.Closed,
			"overdue": row.Overdue,
		})
	}

	return buckets
}

// buildStageQueues reports where the ball sits: with reviewers, with
// QC, or back with the coordinator. Late counts use the due date of
// the stage the item is actually in, not the contractor date.
func buildStageQueues(today string) map[string]interface{} {
	queues := make(map[string]interface{})

	var reviewerQueue struct {
		Total int64
		Late  int64
	}
	config.DB.Table("items").
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN reviewer_due < ? THEN 1 ELSE 0 END), 0) AS late", today).
		Where("status IN ? AND delete_at IS NULL", []string{models.StatusAssigned, models.StatusInReview}).
		Scan(&reviewerQueue)
	queues["with_reviewers"] = map[string]interface{}{
		"total": reviewerQueue.Total,
		"late":  reviewerQueue.Late,
	}

	var qcQueue struct {
		Total int64
		Late  int64
	}
	config.DB.Table("items").
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN qcr_due < ? THEN 1 ELSE 0 END), 0) AS late", today).
		Where("status = ? AND delete_at IS NULL", models.StatusInQC).
		Scan(&qcQueue)
	queues["with_qc"] = map[string]interface{}{
		"total": qcQueue.Total,
		"late":  qcQueue.Late,
	}

	var coordinatorQueue struct {
		Total int64
		Late  int64
	}
	config.DB.Table("items").
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN contractor_due < ? THEN 1 ELSE 0 END), 0) AS late", today).
		Where("status IN ? AND delete_at IS NULL", []string{models.StatusUnassigned, models.StatusReadyForResponse}).
		Scan(&coordinatorQueue)
	queues["with_coordinator"] = map[string]interface{}{
		"total": coordinatorQueue.Total,
		"late":  coordinatorQueue.Late,
	}

	return queues
}

// buildOverdueList returns the most pressing open items, oldest
// contractor date first.
func buildOverdueList(today string) []map[string]interface{} {
	var overdueItems []map[string]interface{}

	config.DB.Table("items").
		Select(`item_id, bucket, identifier, category, title, priority, status,
			contractor_due, reviewer_due, qcr_due, reviewer_name, qcr_name`).
		Where("status <> ? AND contractor_due < ? AND delete_at IS NULL", models.StatusClosed, today).
		Order("contractor_due ASC, item_id ASC").
		Limit(10).
		Scan(&overdueItems)

	return overdueItems
}

// buildRecentlyClosed returns the last few closed items.
func buildRecentlyClosed() []map[string]interface{} {
	var recent []map[string]interface{}

	config.DB.Table("items").
		Select(`item_id, bucket, identifier, category, title,
			response_category, closed_at`).
		Where("status = ? AND delete_at IS NULL", models.StatusClosed).
		Order("closed_at DESC").
		Limit(5).
		Scan(&recent)

	return recent
}

// GetReviewerWorkload returns per-reviewer open and overdue counts
// across both single-reviewer items and multi-reviewer assignments.
func GetReviewerWorkload(c *gin.Context) {
	today := time.Now().Format("2006-01-02")

	type workload struct {
		Name    string
		Email   string
		Open    int64
		Overdue int64
	}

	var singleRows []workload
	config.DB.Table("items").
		Select(`reviewer_name AS name,
			reviewer_email AS email,
			COUNT(*) AS open,
			SUM(CASE WHEN reviewer_due < ? THEN 1 ELSE 0 END) AS overdue`, today).
		Where("multi_reviewer = ? AND reviewer_email IS NOT NULL AND reviewer_response_at IS NULL", false).
		Where("status IN ? AND delete_at IS NULL", []string{models.StatusAssigned, models.StatusInReview}).
		Group("reviewer_name, reviewer_email").
		Scan(&singleRows)

	var multiRows []workload
	config.DB.Table("reviewer_assignments ra").
		Select(`ra.reviewer_name AS name,
			ra.reviewer_email AS email,
			COUNT(*) AS open,
			SUM(CASE WHEN i.reviewer_due < ? THEN 1 ELSE 0 END) AS overdue`, today).
		Joins("JOIN items i ON ra.item_id = i.item_id").
		Where("ra.needs_response = ? AND ra.response_at IS NULL", true).
		Where("i.status IN ? AND i.delete_at IS NULL", []string{models.StatusAssigned, models.StatusInReview}).
		Group("ra.reviewer_name, ra.reviewer_email").
		Scan(&multiRows)

	// Merge on email so a reviewer active in both modes shows up once.
	merged := make(map[string]*workload)
	order := make([]string, 0, len(singleRows)+len(multiRows))
	for _, rows := range [][]workload{singleRows, multiRows} {
		for _, row := range rows {
			entry, ok := merged[row.Email]
			if !ok {
				copied := row
				merged[row.Email] = &copied
				order = append(order, row.Email)
				continue
			}
			entry.Open += row.Open
			entry.Overdue += row.Overdue
		}
	}

	result := make([]map[string]interface{}, 0, len(order))
	for _, email := range order {
		entry := merged[email]
		result = append(result, map[string]interface{}{
			"reviewer_name":  entry.Name,
			"reviewer_email": entry.Email,
			"open":           entry.Open,
			"overdue":        entry.Overdue,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"workloads": result,
		"total":     len(result),
	})
}

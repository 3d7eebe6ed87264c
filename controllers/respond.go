package controllers

import (
	"errors"
	"log"
	"net/http"

	"review-tracker-api/models"
	"review-tracker-api/services"

	"github.com/gin-gonic/gin"
)

// respondTokenError maps ingestion errors for the public form endpoints.
// Unknown tokens are 404 so a dead link reads as "gone", not "broken".
func respondTokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnknownToken):
		c.JSON(http.StatusNotFound, gin.H{"error": "This response link is no longer valid. Please contact the coordinator."})
	case errors.Is(err, services.ErrAlreadyResponded):
		c.JSON(http.StatusConflict, gin.H{"error": "A response has already been recorded for this item."})
	case errors.Is(err, services.ErrStaleVersion):
		c.JSON(http.StatusConflict, gin.H{"error": "The response has changed since this form was issued. Please reload and resubmit."})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func requestToken(c *gin.Context, bodyToken string) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	return bodyToken
}

// GetReviewerForm returns the context for a reviewer response form
func GetReviewerForm(c *gin.Context) {
	svc := services.NewResponseService(nil)
	item, assignment, err := svc.ResolveReviewerToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		respondTokenError(c, err)
		return
	}

	reviewerName := item.ReviewerName
	responseAt := item.ReviewerResponseAt
	responseCategory := item.ReviewerResponseCategory
	responseNotes := item.ReviewerResponseNotes
	var responseFiles []string
	if assignment != nil {
		reviewerName = &assignment.ReviewerName
		responseAt = assignment.ResponseAt
		responseCategory = assignment.ResponseCategory
		responseNotes = assignment.ResponseNotes
	} else {
		responseFiles = models.DecodeFileList(item.ReviewerResponseFiles)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"item": gin.H{
			"identifier":   item.Identifier,
			"bucket":       item.Bucket,
			"category":     item.Category,
			"title":        item.Title,
			"description":  item.Description,
			"priority":     item.Priority,
			"reviewer_due": item.ReviewerDue,
			"version":      item.ReviewerResponseVersion,
		},
		"reviewer_name":      reviewerName,
		"already_responded":  responseAt != nil,
		"revision_requested": item.ReviewerResponseStatus == models.ResponseRevisionRequested,
		"qcr_notes":          item.QcrNotes,
		"draft": gin.H{
			"response_category": responseCategory,
			"response_text":     responseNotes,
			"selected_files":    responseFiles,
		},
		"categories": models.ResponseCategories,
	})
}

// SubmitReviewerResponse applies a reviewer response from the web form
func SubmitReviewerResponse(c *gin.Context) {
	type request struct {
		Token string `json:"token"`
		services.ReviewerResponsePayload
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	svc := services.NewResponseService(nil)
	result, err := svc.ApplyReviewerResponse(ctx, requestToken(c, req.Token), req.ReviewerResponsePayload)
	if err != nil {
		respondTokenError(c, err)
		return
	}

	// Hand the item to the QCR once the stage is done. The response is
	// already committed; a mail failure only delays the hand-off.
	if result.Status == models.StatusInQC {
		if err := services.NotifyQcrOnReviewComplete(ctx, nil, services.NewMailNotifier(nil), result.ItemID); err != nil {
			log.Printf("respond: qcr hand-off mail for item %d: %v", result.ItemID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Your response has been submitted",
		"version": result.Version,
		"status":  result.Status,
	})
}

// GetQcrForm returns the context for a QCR decision form
func GetQcrForm(c *gin.Context) {
	svc := services.NewResponseService(nil)
	item, err := svc.ResolveQcrToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		respondTokenError(c, err)
		return
	}

	reviewerText := ""
	var reviewerFiles []string
	if item.MultiReviewer {
		reviewerText = services.AggregateReviewerResponses(item.Assignments)
	} else {
		if item.ReviewerResponseNotes != nil {
			reviewerText = *item.ReviewerResponseNotes
		}
		reviewerFiles = models.DecodeFileList(item.ReviewerResponseFiles)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"item": gin.H{
			"identifier":  item.Identifier,
			"bucket":      item.Bucket,
			"category":    item.Category,
			"title":       item.Title,
			"description": item.Description,
			"priority":    item.Priority,
			"qcr_due":     item.QcrDue,
			"version":     item.ReviewerResponseVersion,
		},
		"qcr_name":          item.QcrName,
		"already_responded": item.QcrResponseAt != nil,
		"review_complete":   services.ReviewerStageComplete(item, item.Assignments),
		"reviewer_response": gin.H{
			"category": item.ReviewerResponseCategory,
			"text":     reviewerText,
			"files":    reviewerFiles,
		},
		"categories": models.ResponseCategories,
		"actions":    []string{models.QcrActionApprove, models.QcrActionModify, models.QcrActionSendBack},
		"modes":      []string{models.QcrModeKeep, models.QcrModeTweak, models.QcrModeRevise},
	})
}

// SubmitQcrResponse applies a QCR decision from the web form
func SubmitQcrResponse(c *gin.Context) {
	type request struct {
		Token string `json:"token"`
		services.QcrResponsePayload
	}

	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	svc := services.NewResponseService(nil)
	result, err := svc.ApplyQcrResponse(ctx, requestToken(c, req.Token), req.QcrResponsePayload)
	if err != nil {
		respondTokenError(c, err)
		return
	}

	if err := services.NotifyReviewerOfQcrDecision(ctx, nil, services.NewMailNotifier(nil), result.ItemID); err != nil {
		log.Printf("respond: qcr decision mail for item %d: %v", result.ItemID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Your decision has been recorded",
		"status":  result.Status,
	})
}

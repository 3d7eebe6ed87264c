package controllers

import (
	"net/http"
	"review-tracker-api/models"

	"github.com/gin-gonic/gin"
)

// GetLookups returns the enumerations the coordinator UI renders as
// dropdowns. One round trip instead of four.
func GetLookups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"statuses": []string{
			models.StatusUnassigned,
			models.StatusAssigned,
			models.StatusInReview,
			models.StatusInQC,
			models.StatusReadyForResponse,
			models.StatusClosed,
		},
		"categories": []string{
			models.CategoryRFI,
			models.CategorySubmittal,
		},
		"priorities": []string{
			models.PriorityHigh,
			models.PriorityMedium,
			models.PriorityLow,
		},
		"response_categories": models.ResponseCategories,
		"qc_actions": []string{
			models.QcrActionApprove,
			models.QcrActionModify,
			models.QcrActionSendBack,
		},
		"qc_modes": []string{
			models.QcrModeKeep,
			models.QcrModeTweak,
			models.QcrModeRevise,
		},
	})
}

package services

import (
	"fmt"
	"strings"

	"review-tracker-api/models"
)

// DeriveStatus computes an item's status from its response state. It is
// the single source of truth: every mutation path re-derives through it
// before writing, and consistency-repair tooling can call it against a
// raw snapshot. Assignments are passed explicitly so callers control
// what was loaded.
//
// Precedence runs backwards through the pipeline: a closed item is
// Closed no matter what else is set, a merged QCR disposition means
// Ready for Response, a complete reviewer stage means In QC, a notified
// reviewer stage means In Review, an assigned one means Assigned.
func DeriveStatus(item *models.Item, assignments []models.ReviewerAssignment) string {
	if item.IsClosed() {
		return models.StatusClosed
	}
	if qcrDispositionMerged(item) {
		return models.StatusReadyForResponse
	}
	if ReviewerStageComplete(item, assignments) {
		return models.StatusInQC
	}
	if reviewerStageNotified(item, assignments) {
		return models.StatusInReview
	}
	if reviewerAssigned(item, assignments) {
		return models.StatusAssigned
	}
	return models.StatusUnassigned
}

// qcrDispositionMerged reports whether the QCR stage concluded with an
// Approve or Modify. A send-back also records a QCR response timestamp,
// so the action has to be checked, not just the timestamp.
func qcrDispositionMerged(item *models.Item) bool {
	if item.QcrResponseAt == nil || item.QcrAction == nil {
		return false
	}
	return *item.QcrAction == models.QcrActionApprove || *item.QcrAction == models.QcrActionModify
}

// ReviewerStageComplete reports whether every required reviewer response
// is in. Single-reviewer items answer from the item row; multi-reviewer
// items require a response on every needs_response assignment, and at
// least one such assignment must exist.
func ReviewerStageComplete(item *models.Item, assignments []models.ReviewerAssignment) bool {
	if item.MultiReviewer {
		required := 0
		for i := range assignments {
			if !assignments[i].NeedsResponse {
				continue
			}
			required++
			if !assignments[i].Responded() {
				return false
			}
		}
		return required > 0
	}
	return item.ReviewerResponseAt != nil
}

func reviewerStageNotified(item *models.Item, assignments []models.ReviewerAssignment) bool {
	if item.MultiReviewer {
		for i := range assignments {
			if assignments[i].EmailSentAt != nil {
				return true
			}
		}
		return false
	}
	return item.ReviewerEmailSentAt != nil
}

func reviewerAssigned(item *models.Item, assignments []models.ReviewerAssignment) bool {
	if item.MultiReviewer {
		return len(assignments) > 0
	}
	return item.ReviewerEmail != nil && *item.ReviewerEmail != ""
}

// AggregateReviewerResponses flattens the per-reviewer responses of a
// multi-reviewer item into one text block for the QCR stage. Order
// follows the assignment rows.
func AggregateReviewerResponses(assignments []models.ReviewerAssignment) string {
	var b strings.Builder
	for i := range assignments {
		a := &assignments[i]
		if !a.NeedsResponse || !a.Responded() {
			continue
		}
		category := ""
		if a.ResponseCategory != nil {
			category = *a.ResponseCategory
		}
		fmt.Fprintf(&b, "%s (%s):\n", a.ReviewerName, category)
		if a.ResponseNotes != nil && *a.ResponseNotes != "" {
			b.WriteString(*a.ResponseNotes)
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// DispositionInput is the QCR side of the final merge.
type DispositionInput struct {
	Mode             string // Keep | Tweak | Revise
	OverrideCategory string
	OverrideText     string
	SelectedFiles    []string
}

// FinalDisposition merges the QCR decision with the reviewer response
// into the item's final fields. Keep adopts the reviewer's text; Tweak
// and Revise take the QCR override, falling back to the reviewer's text
// when the override is empty. The category prefers the QCR's pick, the
// artifact list prefers the QCR's selection.
func FinalDisposition(item *models.Item, assignments []models.ReviewerAssignment, in DispositionInput) (category, text, files *string) {
	reviewerText := ""
	if item.MultiReviewer {
		reviewerText = AggregateReviewerResponses(assignments)
	} else if item.ReviewerResponseNotes != nil {
		reviewerText = *item.ReviewerResponseNotes
	}

	finalText := reviewerText
	if in.Mode != models.QcrModeKeep && in.OverrideText != "" {
		finalText = in.OverrideText
	}

	finalCategory := in.OverrideCategory
	if finalCategory == "" && item.ReviewerResponseCategory != nil {
		finalCategory = *item.ReviewerResponseCategory
	}

	if len(in.SelectedFiles) > 0 {
		files = models.EncodeFileList(in.SelectedFiles)
	} else {
		files = item.ReviewerResponseFiles
	}

	if finalCategory != "" {
		category = &finalCategory
	}
	if finalText != "" {
		text = &finalText
	}
	return category, text, files
}

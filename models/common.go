package models

import "encoding/json"

// Item lifecycle statuses. Status is always derived from the response
// state (services.DeriveStatus); these strings are what the store and
// the UI share.
const (
	StatusUnassigned       = "Unassigned"
	StatusAssigned         = "Assigned"
	StatusInReview         = "In Review"
	StatusInQC             = "In QC"
	StatusReadyForResponse = "Ready for Response"
	StatusClosed           = "Closed"
)

// Item categories.
const (
	CategoryRFI       = "RFI"
	CategorySubmittal = "Submittal"
)

// Priorities. Stored and displayed only; due-date arithmetic never
// branches on priority.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Reviewer-stage response statuses.
const (
	ResponseNotSent           = "Not Sent"
	ResponseEmailSent         = "Email Sent"
	ResponseResponded         = "Responded"
	ResponseRevisionRequested = "Revision Requested"
)

// QCR-stage response statuses. The first three are shared with the
// reviewer stage.
const (
	QcrWaitingForRevision = "Waiting for Revision"
)

// QCR actions.
const (
	QcrActionApprove  = "Approve"
	QcrActionModify   = "Modify"
	QcrActionSendBack = "Send Back"
)

// QCR response modes.
const (
	QcrModeKeep   = "Keep"
	QcrModeTweak  = "Tweak"
	QcrModeRevise = "Revise"
)

// Response categories used by reviewers, QCR overrides and the final
// contractor-facing disposition.
var ResponseCategories = []string{
	"Approved",
	"Approved as Noted",
	"For Record Only",
	"Rejected",
	"Revise and Resubmit",
}

// ValidResponseCategory reports whether c is one of the known categories.
func ValidResponseCategory(c string) bool {
	for _, v := range ResponseCategories {
		if v == c {
			return true
		}
	}
	return false
}

// EncodeFileList serializes supporting-artifact names for a TEXT column.
// Only names travel through the tracker, never file content.
func EncodeFileList(files []string) *string {
	if len(files) == 0 {
		return nil
	}
	b, err := json.Marshal(files)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

// DecodeFileList is the inverse of EncodeFileList. Unparseable or empty
// values decode to nil.
func DecodeFileList(raw *string) []string {
	if raw == nil || *raw == "" {
		return nil
	}
	var files []string
	if err := json.Unmarshal([]byte(*raw), &files); err != nil {
		return nil
	}
	return files
}

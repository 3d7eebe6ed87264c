package models

import "time"

// ReviewerResponseHistory archives a reviewer response the moment it is
// superseded, either by a post-send-back resubmission or by a reopen.
// The live row on the item only ever holds the current response.
type ReviewerResponseHistory struct {
	HistoryID        int        `gorm:"primaryKey;column:history_id" json:"history_id"`
	ItemID           int        `gorm:"column:item_id;index" json:"item_id"`
	AssignmentID     *int       `gorm:"column:assignment_id" json:"assignment_id,omitempty"`
	Version          int        `gorm:"column:version" json:"version"`
	ResponseCategory *string    `gorm:"column:response_category;size:32" json:"response_category,omitempty"`
	ResponseNotes    *string    `gorm:"column:response_notes;type:text" json:"response_notes,omitempty"`
	ResponseFiles    *string    `gorm:"column:response_files;type:text" json:"response_files,omitempty"`
	RespondedAt      *time.Time `gorm:"column:responded_at" json:"responded_at,omitempty"`
	Reason           string     `gorm:"column:reason;size:32" json:"reason"` // resubmitted | reopened
	CreatedAt        time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (ReviewerResponseHistory) TableName() string {
	return "reviewer_response_history"
}

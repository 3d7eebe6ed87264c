package models

import "time"

// ReviewerAssignment is one named reviewer on a multi-reviewer item.
// Rows are created at assignment time and mutated only by response
// ingestion; they are never deleted, the review trail has to survive.
type ReviewerAssignment struct {
	AssignmentID  int     `gorm:"primaryKey;column:assignment_id" json:"assignment_id"`
	ItemID        int     `gorm:"column:item_id;index" json:"item_id"`
	ReviewerName  string  `gorm:"column:reviewer_name;size:255" json:"reviewer_name"`
	ReviewerEmail string  `gorm:"column:reviewer_email;size:191" json:"reviewer_email"`
	EmailToken    *string `gorm:"column:email_token;size:64;uniqueIndex" json:"-"`
	// Reviewers can be copied for awareness; only needs_response rows
	// gate the stage.
	NeedsResponse bool `gorm:"column:needs_response;default:true" json:"needs_response"`

	EmailSentAt      *time.Time `gorm:"column:email_sent_at" json:"email_sent_at,omitempty"`
	ResponseAt       *time.Time `gorm:"column:response_at" json:"response_at,omitempty"`
	ResponseCategory *string    `gorm:"column:response_category;size:32" json:"response_category,omitempty"`
	ResponseNotes    *string    `gorm:"column:response_notes;type:text" json:"response_notes,omitempty"`

	CreateAt time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`
}

func (ReviewerAssignment) TableName() string {
	return "reviewer_assignments"
}

func (a *ReviewerAssignment) Responded() bool {
	return a.ResponseAt != nil
}

package models

import "time"

// Item is one tracked review request (an RFI or a submittal package),
// from receipt through reviewer and QCR stages to the final response.
// identifier is only unique within its bucket; the same RFI number can
// exist for different contractors.
type Item struct {
	ItemID     int    `gorm:"primaryKey;column:item_id" json:"item_id"`
	Bucket     string `gorm:"column:bucket;size:64;uniqueIndex:idx_items_identifier_bucket" json:"bucket"`
	Identifier string `gorm:"column:identifier;size:128;uniqueIndex:idx_items_identifier_bucket" json:"identifier"`
	Category   string `gorm:"column:category;size:32" json:"category"` // RFI | Submittal
	Title      string `gorm:"column:title;size:255" json:"title"`

	Description *string `gorm:"column:description;type:text" json:"description,omitempty"`
	Priority    string  `gorm:"column:priority;size:16" json:"priority"`
	Status      string  `gorm:"column:status;size:32;default:Unassigned" json:"status"`

	DateReceived  time.Time  `gorm:"column:date_received;type:date" json:"date_received"`
	ContractorDue time.Time  `gorm:"column:contractor_due;type:date" json:"contractor_due"`
	ReviewerDue   *time.Time `gorm:"column:reviewer_due;type:date" json:"reviewer_due,omitempty"`
	QcrDue        *time.Time `gorm:"column:qcr_due;type:date" json:"qcr_due,omitempty"`
	// Set when a coordinator keyed the stage due dates by hand; updates
	// to date_received/contractor_due then leave them alone.
	DueDatesManual bool `gorm:"column:due_dates_manual" json:"due_dates_manual"`

	MultiReviewer bool    `gorm:"column:multi_reviewer" json:"multi_reviewer"`
	ReviewerName  *string `gorm:"column:reviewer_name;size:255" json:"reviewer_name,omitempty"`
	ReviewerEmail *string `gorm:"column:reviewer_email;size:191" json:"reviewer_email,omitempty"`
	QcrName       *string `gorm:"column:qcr_name;size:255" json:"qcr_name,omitempty"`
	QcrEmail      *string `gorm:"column:qcr_email;size:191" json:"qcr_email,omitempty"`

	// Opaque response credentials, one per stage, rotated on reopen.
	// Multi-reviewer items carry per-assignment tokens instead of the
	// reviewer-stage token.
	EmailTokenReviewer *string `gorm:"column:email_token_reviewer;size:64;uniqueIndex" json:"-"`
	EmailTokenQcr      *string `gorm:"column:email_token_qcr;size:64;uniqueIndex" json:"-"`

	ReviewerEmailSentAt *time.Time `gorm:"column:reviewer_email_sent_at" json:"reviewer_email_sent_at,omitempty"`
	QcrEmailSentAt      *time.Time `gorm:"column:qcr_email_sent_at" json:"qcr_email_sent_at,omitempty"`

	ReviewerResponseStatus string `gorm:"column:reviewer_response_status;size:32;default:Not Sent" json:"reviewer_response_status"`
	QcrResponseStatus      string `gorm:"column:qcr_response_status;size:32;default:Not Sent" json:"qcr_response_status"`

	ReviewerResponseAt       *time.Time `gorm:"column:reviewer_response_at" json:"reviewer_response_at,omitempty"`
	ReviewerResponseCategory *string    `gorm:"column:reviewer_response_category;size:32" json:"reviewer_response_category,omitempty"`
	ReviewerResponseNotes    *string    `gorm:"column:reviewer_response_notes;type:text" json:"reviewer_response_notes,omitempty"`
	ReviewerResponseFiles    *string    `gorm:"column:reviewer_response_files;type:text" json:"reviewer_response_files,omitempty"`
	// Monotonic fence: bumped on every applied reviewer response, never
	// reset, not even on reopen.
	ReviewerResponseVersion int `gorm:"column:reviewer_response_version" json:"reviewer_response_version"`

	QcrResponseAt    *time.Time `gorm:"column:qcr_response_at" json:"qcr_response_at,omitempty"`
	QcrAction        *string    `gorm:"column:qcr_action;size:16" json:"qcr_action,omitempty"`
	QcrResponseMode  *string    `gorm:"column:qcr_response_mode;size:16" json:"qcr_response_mode,omitempty"`
	QcrNotes         *string    `gorm:"column:qcr_notes;type:text" json:"qcr_notes,omitempty"`
	QcrInternalNotes *string    `gorm:"column:qcr_internal_notes;type:text" json:"qcr_internal_notes,omitempty"`

	// Merged disposition produced by an Approve/Modify QCR action.
	// Survives a reopen so the prior answer stays visible.
	FinalCategory *string `gorm:"column:final_category;size:32" json:"final_category,omitempty"`
	FinalText     *string `gorm:"column:final_text;type:text" json:"final_text,omitempty"`
	FinalFiles    *string `gorm:"column:final_files;type:text" json:"final_files,omitempty"`

	// Contractor-facing response recorded at close time.
	ResponseCategory *string `gorm:"column:response_category;size:32" json:"response_category,omitempty"`
	ResponseText     *string `gorm:"column:response_text;type:text" json:"response_text,omitempty"`

	ReopenCount     int        `gorm:"column:reopen_count" json:"reopen_count"`
	PreviousDueDate *time.Time `gorm:"column:previous_due_date;type:date" json:"previous_due_date,omitempty"`
	ClosedAt        *time.Time `gorm:"column:closed_at" json:"closed_at,omitempty"`

	CreateAt time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`
	DeleteAt *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Assignments []ReviewerAssignment `gorm:"foreignKey:ItemID" json:"assignments,omitempty"`
}

func (Item) TableName() string {
	return "items"
}

func (i *Item) IsClosed() bool {
	return i.ClosedAt != nil
}

// ReviewerAssigned reports whether the reviewer stage has anyone to ask.
// Multi-reviewer items answer through their assignment rows.
func (i *Item) ReviewerAssigned() bool {
	if i.MultiReviewer {
		return len(i.Assignments) > 0
	}
	return i.ReviewerEmail != nil && *i.ReviewerEmail != ""
}

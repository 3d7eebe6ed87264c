package models

import "time"

// Notification delivery states.
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// Notification is the delivery log: one row per attempted email, success
// or not. Reminder dedup lives in reminder_log; this table is the audit
// trail a coordinator reads when someone claims they never got the mail.
type Notification struct {
	NotificationID int        `gorm:"primaryKey;column:notification_id" json:"notification_id"`
	ItemID         *int       `gorm:"column:item_id;index" json:"item_id,omitempty"`
	Kind           string     `gorm:"column:kind;size:48" json:"kind"` // reviewer_assignment|qcr_assignment|reviewer_reminder|qcr_reminder|...
	Recipient      string     `gorm:"column:recipient;size:191" json:"recipient"`
	Subject        string     `gorm:"column:subject;size:255" json:"subject"`
	Status         string     `gorm:"column:status;size:16" json:"status"` // sent|failed
	Error          *string    `gorm:"column:error;type:text" json:"error,omitempty"`
	SentAt         *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
	CreateAt       time.Time  `gorm:"column:create_at" json:"create_at"`
}

func (Notification) TableName() string { return "notifications" }

package models

import "time"

// Reminder roles and day classifications recorded in the reminder log.
const (
	ReminderRoleReviewer = "reviewer"
	ReminderRoleQcr      = "qcr"

	ReminderStageDueToday = "due_today"
	ReminderStageOverdue  = "overdue"
)

// ReminderLog is the append-only record of sent reminders. The unique
// index is the dedup key: one reminder per item, review role, day
// classification, due-date value and recipient. A reopen recomputes the
// due date, which makes the item eligible again under a fresh key.
type ReminderLog struct {
	ReminderID     int       `gorm:"primaryKey;column:reminder_id" json:"reminder_id"`
	ItemID         int       `gorm:"column:item_id;uniqueIndex:idx_reminder_dedup" json:"item_id"`
	Role           string    `gorm:"column:role;size:16;uniqueIndex:idx_reminder_dedup" json:"role"`
	Stage          string    `gorm:"column:stage;size:16;uniqueIndex:idx_reminder_dedup" json:"stage"`
	DueDate        time.Time `gorm:"column:due_date;type:date;uniqueIndex:idx_reminder_dedup" json:"due_date"`
	RecipientEmail string    `gorm:"column:recipient_email;size:191;uniqueIndex:idx_reminder_dedup" json:"recipient_email"`
	SentAt         time.Time `gorm:"column:sent_at" json:"sent_at"`
}

func (ReminderLog) TableName() string {
	return "reminder_log"
}

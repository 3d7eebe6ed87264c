package models

import "time"

// ItemStatusHistory tracks every item status transition. Rows are written
// in the same transaction as the transition itself.
type ItemStatusHistory struct {
	HistoryID  int       `gorm:"primaryKey;column:history_id" json:"history_id"`
	ItemID     int       `gorm:"column:item_id;index" json:"item_id"`
	FromStatus *string   `gorm:"column:from_status;size:32" json:"from_status"`
	ToStatus   string    `gorm:"column:to_status;size:32" json:"to_status"`
	Actor      *string   `gorm:"column:actor;size:191" json:"actor,omitempty"`
	Note       *string   `gorm:"column:note;type:text" json:"note,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName specifies the table for ItemStatusHistory.
func (ItemStatusHistory) TableName() string {
	return "item_status_history"
}

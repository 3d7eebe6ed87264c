package models

import "time"

// Project is a bucket registry entry. Items carry the bucket code
// directly; this table exists so the coordinator UI can enumerate and
// label buckets without hardcoding them.
type Project struct {
	ProjectID int        `gorm:"primaryKey;column:project_id" json:"project_id"`
	Code      string     `gorm:"column:code;size:64;unique" json:"code"` // e.g. ACC_TURNER
	Name      string     `gorm:"column:name;size:255" json:"name"`
	IsActive  bool       `gorm:"column:is_active;default:true" json:"is_active"`
	CreateAt  time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt  *time.Time `gorm:"column:update_at" json:"update_at,omitempty"`
	DeleteAt  *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// TableName overrides the table name for Project
func (Project) TableName() string {
	return "projects"
}

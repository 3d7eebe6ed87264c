package models

import "time"

// User roles.
const (
	RoleCoordinator = "coordinator"
	RoleAdmin       = "admin"
)

// User is a coordinator account on the administrative surface. Reviewers
// and QC reviewers are not users; they authenticate per item through
// response tokens.
type User struct {
	UserID    int        `gorm:"primaryKey;column:user_id" json:"user_id"`
	FirstName string     `gorm:"column:first_name;size:100" json:"first_name"`
	LastName  string     `gorm:"column:last_name;size:100" json:"last_name"`
	Email     string     `gorm:"column:email;size:191;unique" json:"email"`
	Password  string     `gorm:"column:password;size:255" json:"-"`
	Role      string     `gorm:"column:role;size:32" json:"role"` // coordinator | admin
	CreateAt  *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt  *time.Time `gorm:"column:update_at" json:"update_at"`
	DeleteAt  *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

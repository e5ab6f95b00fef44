package models

import "time"

// UserModel represents a registered owner of projects.
type UserModel struct {
	Base
	Username      string     `json:"username"  gorm:"uniqueIndex;not null"`
	Email         *string    `json:"email"     gorm:"uniqueIndex"` // optional; NULL stays out of the unique index
	Password      string     `json:"-"         gorm:"not null"`
	IsAdmin       bool       `json:"is_admin"  gorm:"default:false"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

func (UserModel) TableName() string { return "users" }

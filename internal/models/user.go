package models

import "time"

// User represents a chat account. RefreshToken is the single mutable session
// field: at most one valid refresh token exists per user at any time, and
// rotation overwrites it with compare-and-swap semantics.
//
// Soft deletion is an explicit column rather than gorm.DeletedAt so that
// every read decides for itself whether deleted rows are visible.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string     `gorm:"size:255;not null" json:"-"`
	RefreshToken string     `gorm:"size:512" json:"-"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	DeletedAt    *time.Time `gorm:"index" json:"-"`
	DeletedBy    *uint      `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

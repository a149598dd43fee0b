package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a dashboard user. Password is empty for OAuth-only accounts.
type User struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	Email             string         `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Password          string         `json:"-" gorm:"type:varchar(255)"`
	Name              string         `json:"name" gorm:"type:varchar(255)"`
	AvatarURL         string         `json:"avatar_url,omitempty" gorm:"type:varchar(512)"`
	DefaultBusinessID *uint          `json:"default_business_id,omitempty" gorm:"index"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

// HasPassword reports whether the user can log in with a password
func (u *User) HasPassword() bool {
	return u.Password != ""
}

package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification is an in-app message for a dashboard user
type Notification struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UserID     uint           `json:"user_id" gorm:"index;not null"`
	BusinessID *uint          `json:"business_id,omitempty" gorm:"index"`
	Type       string         `json:"type" gorm:"type:varchar(50);not null"`
	Title      string         `json:"title" gorm:"type:varchar(255);not null"`
	Message    string         `json:"message" gorm:"type:text"`
	Link       string         `json:"link,omitempty" gorm:"type:varchar(512)"`
	Read       bool           `json:"read" gorm:"default:false;index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

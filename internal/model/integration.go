package model

import (
	"time"

	"gorm.io/gorm"
)

// Integration is a stored connection to a third-party service
type Integration struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	BusinessID  uint           `json:"business_id" gorm:"not null;uniqueIndex:idx_integration_provider,priority:1"`
	Provider    string         `json:"provider" gorm:"type:varchar(50);not null;uniqueIndex:idx_integration_provider,priority:2"`
	Category    string         `json:"category" gorm:"type:varchar(50)"`
	Status      string         `json:"status" gorm:"type:varchar(20);not null;default:'connected'"`
	Config      string         `json:"config" gorm:"type:text"`
	ConnectedAt *time.Time     `json:"connected_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

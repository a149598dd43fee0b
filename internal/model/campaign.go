package model

import (
	"time"

	"gorm.io/gorm"
)

// Campaign statuses
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSent      = "sent"
	CampaignArchived  = "archived"
)

// Campaign is a piece of marketing content
type Campaign struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	BusinessID  uint           `json:"business_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"type:varchar(255);not null"`
	Type        string         `json:"type" gorm:"type:varchar(20);not null;default:'email'"`
	Status      string         `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	Subject     string         `json:"subject" gorm:"type:varchar(255)"`
	Content     string         `json:"content" gorm:"type:text"`
	Audience    string         `json:"audience" gorm:"type:varchar(255)"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	AIGenerated bool           `json:"ai_generated" gorm:"default:false"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// ValidCampaignType reports whether t is a supported campaign type
func ValidCampaignType(t string) bool {
	switch t {
	case "email", "social", "blog", "ad":
		return true
	}
	return false
}

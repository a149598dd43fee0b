package model

import (
	"time"

	"gorm.io/gorm"
)

// OAuthAccount links a user to an external identity provider
type OAuthAccount struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	UserID            uint           `json:"user_id" gorm:"index;not null"`
	Provider          string         `json:"provider" gorm:"type:varchar(50);not null;uniqueIndex:idx_oauth_provider_account,priority:1"`
	ProviderAccountID string         `json:"provider_account_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_oauth_provider_account,priority:2"`
	AccessToken       string         `json:"-" gorm:"type:text"`
	RefreshToken      string         `json:"-" gorm:"type:text"`
	ExpiresAt         *time.Time     `json:"expires_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

package model

import (
	"time"

	"gorm.io/gorm"
)

// Business is the tenant of the platform. Every other tenant row references it.
type Business struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	OwnerID              uint           `json:"owner_id" gorm:"index;not null"`
	Name                 string         `json:"name" gorm:"type:varchar(255);not null"`
	Slug                 string         `json:"slug" gorm:"type:varchar(120);uniqueIndex;not null"`
	Description          string         `json:"description" gorm:"type:text"`
	Category             string         `json:"category" gorm:"type:varchar(100)"`
	Location             string         `json:"location" gorm:"type:varchar(255)"`
	Phone                string         `json:"phone" gorm:"type:varchar(50)"`
	Email                string         `json:"email" gorm:"type:varchar(255)"`
	Website              string         `json:"website" gorm:"type:varchar(512)"`
	LogoURL              string         `json:"logo_url" gorm:"type:varchar(512)"`
	PrimaryColor         string         `json:"primary_color" gorm:"type:varchar(20);default:'#0ea5e9'"`
	Timezone             string         `json:"timezone" gorm:"type:varchar(64);default:'UTC'"`
	Currency             string         `json:"currency" gorm:"type:varchar(3);default:'usd'"`
	ChatbotEnabled       bool           `json:"chatbot_enabled" gorm:"default:true"`
	ChatbotGreeting      string         `json:"chatbot_greeting" gorm:"type:text"`
	ChatbotTone          string         `json:"chatbot_tone" gorm:"type:varchar(100)"`
	StripeAccountID      string         `json:"stripe_account_id,omitempty" gorm:"type:varchar(255)"`
	StripeChargesEnabled bool           `json:"stripe_charges_enabled" gorm:"default:false"`
	CustomDomain         string         `json:"custom_domain,omitempty" gorm:"type:varchar(255)"`
	Active               bool           `json:"active" gorm:"default:true"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

// AcceptsOnlinePayments reports whether checkout can be routed to the Connect account
func (b *Business) AcceptsOnlinePayments() bool {
	return b.StripeAccountID != "" && b.StripeChargesEnabled
}

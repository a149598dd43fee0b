package model

import (
	"time"

	"gorm.io/gorm"
)

// Plans
const (
	PlanFree         = "free"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Subscription statuses mirror Stripe's
const (
	SubscriptionActive     = "active"
	SubscriptionTrialing   = "trialing"
	SubscriptionPastDue    = "past_due"
	SubscriptionCanceled   = "canceled"
	SubscriptionIncomplete = "incomplete"
)

// Subscription is the platform plan of a business. One row per business.
type Subscription struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	BusinessID           uint           `json:"business_id" gorm:"uniqueIndex;not null"`
	Plan                 string         `json:"plan" gorm:"type:varchar(20);not null;default:'free'"`
	Status               string         `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	StripeCustomerID     string         `json:"stripe_customer_id,omitempty" gorm:"type:varchar(255);index"`
	StripeSubscriptionID string         `json:"stripe_subscription_id,omitempty" gorm:"type:varchar(255);index"`
	CurrentPeriodEnd     *time.Time     `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool           `json:"cancel_at_period_end" gorm:"default:false"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

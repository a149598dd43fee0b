package model

import (
	"time"

	"gorm.io/gorm"
)

// Offering types
const (
	OfferingTour          = "tour"
	OfferingRental        = "rental"
	OfferingActivity      = "activity"
	OfferingAccommodation = "accommodation"
	OfferingOther         = "other"
)

// Offering is a bookable product owned by a business
type Offering struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	BusinessID      uint           `json:"business_id" gorm:"index;not null"`
	Name            string         `json:"name" gorm:"type:varchar(255);not null"`
	Description     string         `json:"description" gorm:"type:text"`
	Type            string         `json:"type" gorm:"type:varchar(50);default:'tour'"`
	PriceCents      int64          `json:"price_cents" gorm:"not null;default:0"`
	Currency        string         `json:"currency" gorm:"type:varchar(3);default:'usd'"`
	DurationMinutes int            `json:"duration_minutes"`
	Capacity        int            `json:"capacity"`
	Location        string         `json:"location" gorm:"type:varchar(255)"`
	ImageURL        string         `json:"image_url" gorm:"type:varchar(512)"`
	Active          bool           `json:"active" gorm:"default:true"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// ValidOfferingType reports whether t is a known offering type
func ValidOfferingType(t string) bool {
	switch t {
	case OfferingTour, OfferingRental, OfferingActivity, OfferingAccommodation, OfferingOther:
		return true
	}
	return false
}

package model

import (
	"time"

	"gorm.io/gorm"
)

// Booking statuses
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// Payment statuses
const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// Booking is a reservation of an offering
type Booking struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	BusinessID       uint           `json:"business_id" gorm:"index;not null"`
	OfferingID       uint           `json:"offering_id" gorm:"index;not null"`
	CustomerName     string         `json:"customer_name" gorm:"type:varchar(255);not null"`
	CustomerEmail    string         `json:"customer_email" gorm:"type:varchar(255);not null"`
	CustomerPhone    string         `json:"customer_phone" gorm:"type:varchar(50)"`
	BookingDate      time.Time      `json:"booking_date" gorm:"index;not null"`
	PartySize        int            `json:"party_size" gorm:"not null;default:1"`
	TotalCents       int64          `json:"total_cents" gorm:"not null;default:0"`
	Status           string         `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentStatus    string         `json:"payment_status" gorm:"type:varchar(20);not null;default:'unpaid'"`
	StripeSessionID  string         `json:"stripe_session_id,omitempty" gorm:"type:varchar(255);index"`
	ConfirmationCode string         `json:"confirmation_code" gorm:"type:varchar(20);uniqueIndex"`
	Notes            string         `json:"notes" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`

	Offering *Offering `json:"offering,omitempty" gorm:"foreignKey:OfferingID"`
}

var bookingTransitions = map[string][]string{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// CanTransitionTo reports whether the booking may move to the next status
func (b *Booking) CanTransitionTo(next string) bool {
	for _, allowed := range bookingTransitions[b.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidBookingStatus reports whether s is a known booking status
func ValidBookingStatus(s string) bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

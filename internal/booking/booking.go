// Package booking holds the rules for creating bookings and moving them through their lifecycle.
package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxPartySize bounds a single booking when the offering sets no capacity
const MaxPartySize = 1000

var (
	ErrOfferingNotFound  = errors.New("offering not found")
	ErrOfferingInactive  = errors.New("offering is not available for booking")
	ErrCapacityExceeded  = errors.New("party size exceeds offering capacity")
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidTransition = errors.New("booking status change not allowed")
)

// ValidationError reports bad input from the caller
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Request is a booking as submitted by the dashboard or the public site
type Request struct {
	OfferingID    uint   `json:"offering_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	BookingDate   string `json:"booking_date"`
	PartySize     int    `json:"party_size"`
	Notes         string `json:"notes"`
	Status        string `json:"status,omitempty"`
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, invalid("booking_date must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

// ConfirmationCode returns a short human friendly reference
func ConfirmationCode() string {
	return "TX-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (r *Request) normalize() (time.Time, error) {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.ToLower(strings.TrimSpace(r.CustomerEmail))
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)

	if r.OfferingID == 0 {
		return time.Time{}, invalid("offering_id is required")
	}
	if r.CustomerName == "" || r.CustomerEmail == "" {
		return time.Time{}, invalid("customer_name and customer_email are required")
	}
	if _, err := mail.ParseAddress(r.CustomerEmail); err != nil {
		return time.Time{}, invalid("customer_email is not a valid address")
	}
	if r.PartySize == 0 {
		r.PartySize = 1
	}
	if r.PartySize < 0 {
		return time.Time{}, invalid("party_size must be positive")
	}
	if r.PartySize > MaxPartySize {
		return time.Time{}, invalid("party_size must be at most %d", MaxPartySize)
	}
	if r.Status == "" {
		r.Status = model.BookingPending
	}
	if !model.ValidBookingStatus(r.Status) {
		return time.Time{}, invalid("unknown status %q", r.Status)
	}
	return ParseDate(r.BookingDate)
}

// Create validates the request against the offering and stores the booking
func Create(ctx context.Context, db *gorm.DB, businessID uint, req Request) (*model.Booking, *model.Offering, error) {
	date, err := req.normalize()
	if err != nil {
		return nil, nil, err
	}

	var offering model.Offering
	err = db.WithContext(ctx).Where("id = ? AND business_id = ?", req.OfferingID, businessID).First(&offering).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrOfferingNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load offering: %w", err)
	}
	if !offering.Active {
		return nil, nil, ErrOfferingInactive
	}
	if offering.Capacity > 0 && req.PartySize > offering.Capacity {
		return nil, nil, ErrCapacityExceeded
	}
	total, ok := bookingTotal(offering.PriceCents, req.PartySize)
	if !ok {
		return nil, nil, invalid("booking total is out of range")
	}

	b := &model.Booking{
		BusinessID:       businessID,
		OfferingID:       offering.ID,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		BookingDate:      date,
		PartySize:        req.PartySize,
		TotalCents:       total,
		Status:           req.Status,
		PaymentStatus:    model.PaymentUnpaid,
		ConfirmationCode: ConfirmationCode(),
		Notes:            strings.TrimSpace(req.Notes),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create booking: %w", err)
	}
	return b, &offering, nil
}

// bookingTotal multiplies without overflowing; prices are never negative
func bookingTotal(priceCents int64, partySize int) (int64, bool) {
	if priceCents < 0 || partySize <= 0 {
		return 0, false
	}
	if priceCents > math.MaxInt64/int64(partySize) {
		return 0, false
	}
	return priceCents * int64(partySize), true
}

// UpdateStatus applies an allowed lifecycle transition and returns the previous status
func UpdateStatus(ctx context.Context, db *gorm.DB, businessID, id uint, next string) (*model.Booking, string, error) {
	if !model.ValidBookingStatus(next) {
		return nil, "", invalid("unknown status %q", next)
	}

	var b model.Booking
	err := db.WithContext(ctx).Where("id = ? AND business_id = ?", id, businessID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load booking: %w", err)
	}
	if !b.CanTransitionTo(next) {
		return nil, "", ErrInvalidTransition
	}

	prev := b.Status
	// guard against a concurrent change between read and write
	res := db.WithContext(ctx).Model(&model.Booking{}).
		Where("id = ? AND status = ?", b.ID, prev).
		Update("status", next)
	if res.Error != nil {
		return nil, "", fmt.Errorf("failed to update booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, "", ErrInvalidTransition
	}
	b.Status = next
	return &b, prev, nil
}

// Package analytics computes the dashboard summary of a business.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"gorm.io/gorm"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 366
	topOfferingsLimit = 5
	dateLayout        = "2006-01-02"
)

var ErrInvalidRange = errors.New("invalid date range")

// Range is an inclusive window of whole UTC days
type Range struct {
	From time.Time
	To   time.Time
}

// DefaultRange is the last 30 days ending today
func DefaultRange(now time.Time) Range {
	to := startOfDay(now)
	return Range{From: to.AddDate(0, 0, -(DefaultWindowDays - 1)), To: to}
}

// ParseRange reads YYYY-MM-DD bounds, either of which may be empty
func ParseRange(from, to string, now time.Time) (Range, error) {
	r := DefaultRange(now)
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return Range{}, fmt.Errorf("invalid to date: %w", err)
		}
		r.To = t
		if from == "" {
			r.From = t.AddDate(0, 0, -(DefaultWindowDays - 1))
		}
	}
	if from != "" {
		f, err := time.Parse(dateLayout, from)
		if err != nil {
			return Range{}, fmt.Errorf("invalid from date: %w", err)
		}
		r.From = f
	}
	if r.From.After(r.To) {
		return Range{}, fmt.Errorf("%w: from must not be after to", ErrInvalidRange)
	}
	if r.To.Sub(r.From) >= MaxWindowDays*24*time.Hour {
		return Range{}, fmt.Errorf("%w: window is longer than %d days", ErrInvalidRange, MaxWindowDays)
	}
	return r, nil
}

func (r Range) end() time.Time {
	return r.To.AddDate(0, 0, 1)
}

// DayStat is one point of the bookings series
type DayStat struct {
	Date         string `json:"date"`
	Bookings     int    `json:"bookings"`
	RevenueCents int64  `json:"revenue_cents"`
}

// OfferingStat ranks an offering in the window
type OfferingStat struct {
	OfferingID   uint   `json:"offering_id"`
	Name         string `json:"name"`
	Bookings     int    `json:"bookings"`
	RevenueCents int64  `json:"revenue_cents"`
}

// Summary is the analytics payload
type Summary struct {
	From             string         `json:"from"`
	To               string         `json:"to"`
	TotalBookings    int            `json:"total_bookings"`
	BookingsByStatus map[string]int `json:"bookings_by_status"`
	RevenueCents     int64          `json:"revenue_cents"`
	AveragePartySize float64        `json:"average_party_size"`
	BookingsPerDay   []DayStat      `json:"bookings_per_day"`
	TopOfferings     []OfferingStat `json:"top_offerings"`
	Conversations    int            `json:"conversations"`
	Messages         int            `json:"messages"`
	ConversionRate   float64        `json:"conversion_rate"`
}

// Summarize loads the rows of the window and aggregates them
func Summarize(ctx context.Context, db *gorm.DB, businessID uint, r Range) (*Summary, error) {
	defer prometheus.TrackDBOperation("analytics")(time.Now())

	var bookings []model.Booking
	if err := db.WithContext(ctx).
		Select("id", "offering_id", "party_size", "total_cents", "status", "payment_status", "created_at").
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, r.From, r.end()).
		Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}

	var offerings []model.Offering
	if err := db.WithContext(ctx).Unscoped().
		Select("id", "name").
		Where("business_id = ?", businessID).
		Find(&offerings).Error; err != nil {
		return nil, fmt.Errorf("failed to load offerings: %w", err)
	}
	names := make(map[uint]string, len(offerings))
	for _, o := range offerings {
		names[o.ID] = o.Name
	}

	var conversations []model.Conversation
	if err := db.WithContext(ctx).
		Select("id", "message_count").
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, r.From, r.end()).
		Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	return Aggregate(r, bookings, names, conversations), nil
}

// Aggregate computes the summary from already loaded rows
func Aggregate(r Range, bookings []model.Booking, offeringNames map[uint]string, conversations []model.Conversation) *Summary {
	s := &Summary{
		From:             r.From.Format(dateLayout),
		To:               r.To.Format(dateLayout),
		BookingsByStatus: map[string]int{},
		TopOfferings:     []OfferingStat{},
	}
	for _, st := range []string{model.BookingPending, model.BookingConfirmed, model.BookingCancelled, model.BookingCompleted} {
		s.BookingsByStatus[st] = 0
	}

	days := map[string]int{}
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		days[key] = len(s.BookingsPerDay)
		s.BookingsPerDay = append(s.BookingsPerDay, DayStat{Date: key})
	}

	perOffering := map[uint]*OfferingStat{}
	partyTotal := 0
	for _, b := range bookings {
		s.TotalBookings++
		s.BookingsByStatus[b.Status]++
		partyTotal += b.PartySize

		var revenue int64
		if b.PaymentStatus == model.PaymentPaid {
			revenue = b.TotalCents
			s.RevenueCents += revenue
		}

		if i, ok := days[b.CreatedAt.UTC().Format(dateLayout)]; ok {
			s.BookingsPerDay[i].Bookings++
			s.BookingsPerDay[i].RevenueCents += revenue
		}

		stat, ok := perOffering[b.OfferingID]
		if !ok {
			stat = &OfferingStat{OfferingID: b.OfferingID, Name: offeringNames[b.OfferingID]}
			perOffering[b.OfferingID] = stat
		}
		stat.Bookings++
		stat.RevenueCents += revenue
	}

	if s.TotalBookings > 0 {
		s.AveragePartySize = float64(partyTotal) / float64(s.TotalBookings)
	}

	for _, stat := range perOffering {
		s.TopOfferings = append(s.TopOfferings, *stat)
	}
	sort.Slice(s.TopOfferings, func(i, j int) bool {
		a, b := s.TopOfferings[i], s.TopOfferings[j]
		if a.Bookings != b.Bookings {
			return a.Bookings > b.Bookings
		}
		if a.RevenueCents != b.RevenueCents {
			return a.RevenueCents > b.RevenueCents
		}
		return a.OfferingID < b.OfferingID
	})
	if len(s.TopOfferings) > topOfferingsLimit {
		s.TopOfferings = s.TopOfferings[:topOfferingsLimit]
	}

	s.Conversations = len(conversations)
	for _, c := range conversations {
		s.Messages += c.MessageCount
	}
	if s.Conversations > 0 {
		s.ConversionRate = float64(s.TotalBookings) / float64(s.Conversations)
	}
	return s
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func TestParseRange(t *testing.T) {
	now := time.Date(2025, 3, 15, 17, 30, 0, 0, time.UTC)

	r, err := ParseRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, day("2025-03-15"), r.To)
	assert.Equal(t, day("2025-02-14"), r.From)

	r, err = ParseRange("2025-01-01", "2025-01-07", now)
	require.NoError(t, err)
	assert.Equal(t, day("2025-01-01"), r.From)

	_, err = ParseRange("2025-02-01", "2025-01-01", now)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseRange("yesterday", "", now)
	assert.Error(t, err)

	r, err = ParseRange("2024-01-01", "2024-12-31", now)
	require.NoError(t, err, "a leap year fits the window")
	assert.Equal(t, day("2024-12-31"), r.To)

	_, err = ParseRange("2024-01-01", "2025-01-01", now)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseRange("0001-01-01", "9999-12-31", now)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseRange("2020-01-01", "", now)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestAggregate(t *testing.T) {
	r := Range{From: day("2025-01-01"), To: day("2025-01-03")}
	bookings := []model.Booking{
		{OfferingID: 1, PartySize: 2, TotalCents: 2000, Status: model.BookingConfirmed, PaymentStatus: model.PaymentPaid, CreatedAt: day("2025-01-01").Add(3 * time.Hour)},
		{OfferingID: 1, PartySize: 4, TotalCents: 4000, Status: model.BookingPending, PaymentStatus: model.PaymentUnpaid, CreatedAt: day("2025-01-03")},
		{OfferingID: 2, PartySize: 3, TotalCents: 9000, Status: model.BookingCompleted, PaymentStatus: model.PaymentPaid, CreatedAt: day("2025-01-03")},
	}
	names := map[uint]string{1: "Snorkel", 2: "Dive"}
	convs := []model.Conversation{{MessageCount: 4}, {MessageCount: 6}, {MessageCount: 2}, {MessageCount: 0}}

	s := Aggregate(r, bookings, names, convs)

	assert.Equal(t, 3, s.TotalBookings)
	assert.Equal(t, 1, s.BookingsByStatus[model.BookingPending])
	assert.Equal(t, 0, s.BookingsByStatus[model.BookingCancelled])
	assert.Equal(t, int64(11000), s.RevenueCents)
	assert.InDelta(t, 3.0, s.AveragePartySize, 1e-9)

	require.Len(t, s.BookingsPerDay, 3)
	assert.Equal(t, DayStat{Date: "2025-01-01", Bookings: 1, RevenueCents: 2000}, s.BookingsPerDay[0])
	assert.Equal(t, DayStat{Date: "2025-01-02"}, s.BookingsPerDay[1])
	assert.Equal(t, 2, s.BookingsPerDay[2].Bookings)

	require.Len(t, s.TopOfferings, 2)
	assert.Equal(t, "Snorkel", s.TopOfferings[0].Name)
	assert.Equal(t, 2, s.TopOfferings[0].Bookings)

	assert.Equal(t, 4, s.Conversations)
	assert.Equal(t, 12, s.Messages)
	assert.InDelta(t, 0.75, s.ConversionRate, 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(Range{From: day("2025-01-01"), To: day("2025-01-01")}, nil, nil, nil)
	assert.Zero(t, s.ConversionRate)
	assert.Zero(t, s.AveragePartySize)
	assert.Len(t, s.BookingsPerDay, 1)
	assert.NotNil(t, s.TopOfferings)
}

func TestTopOfferingsLimit(t *testing.T) {
	r := Range{From: day("2025-01-01"), To: day("2025-01-01")}
	var bookings []model.Booking
	for id := uint(1); id <= 7; id++ {
		for i := uint(0); i < id; i++ {
			bookings = append(bookings, model.Booking{OfferingID: id, CreatedAt: day("2025-01-01")})
		}
	}
	s := Aggregate(r, bookings, nil, nil)
	require.Len(t, s.TopOfferings, 5)
	assert.Equal(t, uint(7), s.TopOfferings[0].OfferingID)
	assert.Equal(t, uint(3), s.TopOfferings[4].OfferingID)
}

func TestSummarizeIsTenantScoped(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, a := testutil.SeedBusiness(t, db, "a")
	_, b := testutil.SeedBusiness(t, db, "b")

	off := model.Offering{BusinessID: a.ID, Name: "Kayak", PriceCents: 1000, Active: true}
	require.NoError(t, db.Create(&off).Error)
	now := time.Now().UTC()
	for i, biz := range []uint{a.ID, a.ID, b.ID} {
		require.NoError(t, db.Create(&model.Booking{
			BusinessID:       biz,
			OfferingID:       off.ID,
			CustomerName:     "C",
			CustomerEmail:    "c@example.com",
			BookingDate:      now,
			PartySize:        1,
			TotalCents:       1000,
			Status:           model.BookingPending,
			PaymentStatus:    model.PaymentUnpaid,
			ConfirmationCode: []string{"A1", "A2", "B1"}[i],
		}).Error)
	}

	s, err := Summarize(context.Background(), db, a.ID, DefaultRange(now))
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalBookings)
	require.Len(t, s.TopOfferings, 1)
	assert.Equal(t, "Kayak", s.TopOfferings[0].Name)
}

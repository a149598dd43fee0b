package booking

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedOffering(t *testing.T, db *gorm.DB, businessID uint, capacity int) model.Offering {
	t.Helper()
	o := model.Offering{BusinessID: businessID, Name: "Kayak", PriceCents: 2500, Capacity: capacity, Active: true}
	require.NoError(t, db.Create(&o).Error)
	return o
}

func TestCreateDefaults(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	off := seedOffering(t, db, biz.ID, 0)

	b, o, err := Create(context.Background(), db, biz.ID, Request{
		OfferingID:    off.ID,
		CustomerName:  " Ann ",
		CustomerEmail: "ANN@example.com",
		BookingDate:   "2025-06-01",
	})
	require.NoError(t, err)
	assert.Equal(t, off.ID, o.ID)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, model.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, 1, b.PartySize)
	assert.Equal(t, int64(2500), b.TotalCents)
	assert.Equal(t, "ann@example.com", b.CustomerEmail)
	assert.Regexp(t, `^TX-[0-9A-F]{8}$`, b.ConfirmationCode)

	var stored model.Booking
	require.NoError(t, db.First(&stored, b.ID).Error)
	assert.Equal(t, model.BookingPending, stored.Status)
}

func TestCreateRules(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	_, other := testutil.SeedBusiness(t, db, "other")
	off := seedOffering(t, db, biz.ID, 4)
	foreign := seedOffering(t, db, other.ID, 0)
	inactive := seedOffering(t, db, biz.ID, 0)
	require.NoError(t, db.Model(&inactive).Update("active", false).Error)
	ctx := context.Background()

	base := Request{OfferingID: off.ID, CustomerName: "Ann", CustomerEmail: "ann@example.com", BookingDate: "2025-06-01T10:00:00Z"}

	r := base
	r.PartySize = 3
	b, _, err := Create(ctx, db, biz.ID, r)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), b.TotalCents)

	r.PartySize = 5
	_, _, err = Create(ctx, db, biz.ID, r)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	r = base
	r.OfferingID = foreign.ID
	_, _, err = Create(ctx, db, biz.ID, r)
	assert.ErrorIs(t, err, ErrOfferingNotFound)

	r.OfferingID = inactive.ID
	_, _, err = Create(ctx, db, biz.ID, r)
	assert.ErrorIs(t, err, ErrOfferingInactive)

	var verr *ValidationError
	r = base
	r.CustomerEmail = "nope"
	_, _, err = Create(ctx, db, biz.ID, r)
	assert.True(t, errors.As(err, &verr))

	r = base
	r.BookingDate = "next tuesday"
	_, _, err = Create(ctx, db, biz.ID, r)
	assert.True(t, errors.As(err, &verr))
}

func TestUpdateStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	off := seedOffering(t, db, biz.ID, 0)
	ctx := context.Background()

	b, _, err := Create(ctx, db, biz.ID, Request{OfferingID: off.ID, CustomerName: "A", CustomerEmail: "a@example.com", BookingDate: "2025-06-01"})
	require.NoError(t, err)

	updated, prev, err := UpdateStatus(ctx, db, biz.ID, b.ID, model.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, prev)
	assert.Equal(t, model.BookingConfirmed, updated.Status)

	_, _, err = UpdateStatus(ctx, db, biz.ID, b.ID, model.BookingPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = UpdateStatus(ctx, db, biz.ID+100, b.ID, model.BookingCompleted)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = UpdateStatus(ctx, db, biz.ID, b.ID, model.BookingCompleted)
	require.NoError(t, err)
}

func TestPartySizeAndTotalBounds(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	unlimited := seedOffering(t, db, biz.ID, 0)
	pricey := model.Offering{BusinessID: biz.ID, Name: "Charter", PriceCents: math.MaxInt64 / 10, Active: true}
	require.NoError(t, db.Create(&pricey).Error)
	ctx := context.Background()

	base := Request{OfferingID: unlimited.ID, CustomerName: "Ann", CustomerEmail: "ann@example.com", BookingDate: "2025-06-01"}
	var verr *ValidationError

	r := base
	r.PartySize = 1 << 60
	_, _, err := Create(ctx, db, biz.ID, r)
	assert.True(t, errors.As(err, &verr), "got %v", err)

	r.PartySize = MaxPartySize + 1
	_, _, err = Create(ctx, db, biz.ID, r)
	assert.True(t, errors.As(err, &verr))

	r.PartySize = MaxPartySize
	b, _, err := Create(ctx, db, biz.ID, r)
	require.NoError(t, err)
	assert.Equal(t, int64(2500*MaxPartySize), b.TotalCents)

	r = base
	r.OfferingID = pricey.ID
	r.PartySize = 11
	_, _, err = Create(ctx, db, biz.ID, r)
	assert.True(t, errors.As(err, &verr), "got %v", err)

	var count int64
	require.NoError(t, db.Model(&model.Booking{}).Where("business_id = ?", biz.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestBookingTotal(t *testing.T) {
	tests := []struct {
		price int64
		party int
		want  int64
		ok    bool
	}{
		{2500, 3, 7500, true},
		{0, 10, 0, true},
		{math.MaxInt64, 1, math.MaxInt64, true},
		{math.MaxInt64/2 + 1, 2, 0, false},
		{-1, 1, 0, false},
		{100, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := bookingTotal(tt.price, tt.party)
		assert.Equal(t, tt.ok, ok, "price=%d party=%d", tt.price, tt.party)
		assert.Equal(t, tt.want, got)
	}
}

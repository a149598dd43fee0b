package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

type fakeGateway struct {
	bookingCheckouts []BookingCheckout
	subCheckouts     []SubscriptionCheckout
	customers        int
	accounts         int
	chargesEnabled   bool
	err              error
}

func (f *fakeGateway) CreateBookingCheckout(_ context.Context, in BookingCheckout) (*Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bookingCheckouts = append(f.bookingCheckouts, in)
	return &Session{ID: "cs_booking", URL: "https://checkout.stripe.test/booking"}, nil
}

func (f *fakeGateway) CreateSubscriptionCheckout(_ context.Context, in SubscriptionCheckout) (*Session, error) {
	f.subCheckouts = append(f.subCheckouts, in)
	return &Session{ID: "cs_sub", URL: "https://checkout.stripe.test/sub"}, nil
}

func (f *fakeGateway) CreateCustomer(context.Context, string, string, uint) (string, error) {
	f.customers++
	return "cus_1", nil
}

func (f *fakeGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://billing.stripe.test/" + customerID, nil
}

func (f *fakeGateway) CreateConnectAccount(context.Context, string, uint) (string, error) {
	f.accounts++
	return "acct_1", nil
}

func (f *fakeGateway) CreateAccountLink(_ context.Context, accountID, _, _ string) (string, error) {
	return "https://connect.stripe.test/" + accountID, nil
}

func (f *fakeGateway) ChargesEnabled(context.Context, string) (bool, error) {
	return f.chargesEnabled, nil
}

func (f *fakeGateway) ConstructEvent([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used")
}

func stripeConfig() config.StripeConfig {
	return config.StripeConfig{
		ApplicationFeePercent: 5,
		PlanPrices:            map[string]string{"starter": "price_starter", "professional": "price_pro", "enterprise": ""},
	}
}

func event(t *testing.T, typ string, payload interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return stripe.Event{ID: "evt_1", Type: stripe.EventType(typ), Data: &stripe.EventData{Raw: raw}}
}

func seedBooking(t *testing.T, db *gorm.DB, businessID uint) (model.Offering, model.Booking) {
	t.Helper()
	off := model.Offering{BusinessID: businessID, Name: "Snorkel", PriceCents: 5000, Currency: "usd", Active: true}
	require.NoError(t, db.Create(&off).Error)
	b := model.Booking{
		BusinessID:       businessID,
		OfferingID:       off.ID,
		CustomerName:     "Ann",
		CustomerEmail:    "ann@example.com",
		PartySize:        2,
		TotalCents:       10000,
		Status:           model.BookingPending,
		PaymentStatus:    model.PaymentUnpaid,
		ConfirmationCode: "TX-0001",
	}
	require.NoError(t, db.Create(&b).Error)
	return off, b
}

func TestApplicationFee(t *testing.T) {
	s := NewService(nil, nil, stripeConfig(), "", nil)
	assert.Equal(t, int64(500), s.ApplicationFee(10000))
	assert.Equal(t, int64(0), s.ApplicationFee(10))
	s.cfg.ApplicationFeePercent = 0
	assert.Equal(t, int64(0), s.ApplicationFee(10000))
}

func TestBookingCheckout(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	off, booking := seedBooking(t, db, biz.ID)
	gw := &fakeGateway{}
	s := NewService(db, gw, stripeConfig(), "https://app.example.com/", nil)
	ctx := context.Background()

	url, err := s.BookingCheckout(ctx, &biz, &booking, &off)
	require.NoError(t, err)
	assert.Empty(t, url, "no connect account yet")

	biz.StripeAccountID = "acct_1"
	biz.StripeChargesEnabled = true
	url, err = s.BookingCheckout(ctx, &biz, &booking, &off)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/booking", url)

	require.Len(t, gw.bookingCheckouts, 1)
	in := gw.bookingCheckouts[0]
	assert.Equal(t, "acct_1", in.AccountID)
	assert.Equal(t, int64(5000), in.UnitAmount)
	assert.Equal(t, int64(2), in.Quantity)
	assert.Equal(t, int64(500), in.ApplicationFee)
	assert.Equal(t, "https://app.example.com/sites/reef/booking/success?code=TX-0001", in.SuccessURL)

	var stored model.Booking
	require.NoError(t, db.First(&stored, booking.ID).Error)
	assert.Equal(t, "cs_booking", stored.StripeSessionID)
}

func TestSubscribeCreatesCustomerOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	gw := &fakeGateway{}
	s := NewService(db, gw, stripeConfig(), "https://app", nil)
	ctx := context.Background()

	_, err := s.Subscribe(ctx, &biz, "o@example.com", "enterprise")
	assert.ErrorIs(t, err, ErrUnknownPlan)

	url, err := s.Subscribe(ctx, &biz, "o@example.com", "starter")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/sub", url)
	_, err = s.Subscribe(ctx, &biz, "o@example.com", "professional")
	require.NoError(t, err)

	assert.Equal(t, 1, gw.customers)
	require.Len(t, gw.subCheckouts, 2)
	assert.Equal(t, "price_pro", gw.subCheckouts[1].PriceID)
	assert.Equal(t, "cus_1", gw.subCheckouts[1].CustomerID)

	portal, err := s.Portal(ctx, biz.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/cus_1", portal)
}

func TestNotConfigured(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	s := NewService(db, nil, stripeConfig(), "https://app", nil)

	_, err := s.Subscribe(context.Background(), &biz, "o@example.com", "starter")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.Portal(context.Background(), biz.ID)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, s.Enabled())
}

func TestPortalWithoutCustomer(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	s := NewService(db, &fakeGateway{}, stripeConfig(), "https://app", nil)

	_, err := s.Portal(context.Background(), biz.ID)
	assert.ErrorIs(t, err, ErrNoCustomer)
}

func TestConnectOnboardingAndStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	gw := &fakeGateway{chargesEnabled: true}
	s := NewService(db, gw, stripeConfig(), "https://app", nil)
	ctx := context.Background()

	link, err := s.OnboardConnect(ctx, &biz, "o@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://connect.stripe.test/acct_1", link)
	_, err = s.OnboardConnect(ctx, &biz, "o@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.accounts)

	enabled, err := s.RefreshConnectStatus(ctx, &biz)
	require.NoError(t, err)
	assert.True(t, enabled)

	var stored model.Business
	require.NoError(t, db.First(&stored, biz.ID).Error)
	assert.Equal(t, "acct_1", stored.StripeAccountID)
	assert.True(t, stored.StripeChargesEnabled)
}

func TestCheckoutCompletedMarksBookingPaid(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	_, booking := seedBooking(t, db, biz.ID)
	require.NoError(t, db.Model(&booking).Update("stripe_session_id", "cs_booking").Error)
	s := NewService(db, &fakeGateway{}, stripeConfig(), "https://app", nil)

	err := s.HandleEvent(context.Background(), event(t, "checkout.session.completed", map[string]interface{}{
		"id":             "cs_booking",
		"object":         "checkout.session",
		"mode":           "payment",
		"payment_status": "paid",
	}))
	require.NoError(t, err)

	var stored model.Booking
	require.NoError(t, db.First(&stored, booking.ID).Error)
	assert.Equal(t, model.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, model.BookingConfirmed, stored.Status)

	var notes int64
	db.Model(&model.Notification{}).Count(&notes)
	assert.Equal(t, int64(1), notes)
}

func TestCheckoutCompletedActivatesSubscription(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	s := NewService(db, &fakeGateway{}, stripeConfig(), "https://app", nil)

	err := s.HandleEvent(context.Background(), event(t, "checkout.session.completed", map[string]interface{}{
		"id":           "cs_sub",
		"object":       "checkout.session",
		"mode":         "subscription",
		"customer":     "cus_9",
		"subscription": "sub_9",
		"metadata":     map[string]string{"business_id": idString(biz.ID), "plan": "starter"},
	}))
	require.NoError(t, err)

	var sub model.Subscription
	require.NoError(t, db.Where("business_id = ?", biz.ID).First(&sub).Error)
	assert.Equal(t, "starter", sub.Plan)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Equal(t, "cus_9", sub.StripeCustomerID)
	assert.Equal(t, "sub_9", sub.StripeSubscriptionID)
}

func TestSubscriptionUpdatedAndDeleted(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	require.NoError(t, db.Model(&model.Subscription{}).Where("business_id = ?", biz.ID).
		Updates(map[string]interface{}{"stripe_subscription_id": "sub_9", "plan": "starter"}).Error)
	s := NewService(db, &fakeGateway{}, stripeConfig(), "https://app", nil)
	ctx := context.Background()

	err := s.HandleEvent(ctx, event(t, "customer.subscription.updated", map[string]interface{}{
		"id":                   "sub_9",
		"object":               "subscription",
		"status":               "past_due",
		"cancel_at_period_end": true,
		"current_period_end":   1767225600,
		"items": map[string]interface{}{
			"object": "list",
			"data":   []interface{}{map[string]interface{}{"id": "si_1", "price": map[string]interface{}{"id": "price_pro"}}},
		},
	}))
	require.NoError(t, err)

	var sub model.Subscription
	require.NoError(t, db.Where("business_id = ?", biz.ID).First(&sub).Error)
	assert.Equal(t, "professional", sub.Plan)
	assert.Equal(t, model.SubscriptionPastDue, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, int64(1767225600), sub.CurrentPeriodEnd.Unix())

	err = s.HandleEvent(ctx, event(t, "customer.subscription.deleted", map[string]interface{}{
		"id":     "sub_9",
		"object": "subscription",
		"status": "canceled",
	}))
	require.NoError(t, err)
	require.NoError(t, db.Where("business_id = ?", biz.ID).First(&sub).Error)
	assert.Equal(t, model.PlanFree, sub.Plan)
	assert.Equal(t, model.SubscriptionCanceled, sub.Status)
}

func TestAccountUpdated(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	require.NoError(t, db.Model(&biz).Update("stripe_account_id", "acct_7").Error)
	s := NewService(db, &fakeGateway{}, stripeConfig(), "https://app", nil)

	err := s.HandleEvent(context.Background(), event(t, "account.updated", map[string]interface{}{
		"id":              "acct_7",
		"object":          "account",
		"charges_enabled": true,
	}))
	require.NoError(t, err)

	var stored model.Business
	require.NoError(t, db.First(&stored, biz.ID).Error)
	assert.True(t, stored.StripeChargesEnabled)
}

func TestUnknownEventIgnored(t *testing.T) {
	s := NewService(nil, &fakeGateway{}, stripeConfig(), "https://app", nil)
	assert.NoError(t, s.HandleEvent(context.Background(), stripe.Event{Type: "invoice.created"}))
}

func TestSubscriptionStatusMapping(t *testing.T) {
	tests := map[stripe.SubscriptionStatus]string{
		stripe.SubscriptionStatusActive:            model.SubscriptionActive,
		stripe.SubscriptionStatusTrialing:          model.SubscriptionTrialing,
		stripe.SubscriptionStatusPastDue:           model.SubscriptionPastDue,
		stripe.SubscriptionStatusUnpaid:            model.SubscriptionPastDue,
		stripe.SubscriptionStatusPaused:            model.SubscriptionPastDue,
		stripe.SubscriptionStatusCanceled:          model.SubscriptionCanceled,
		stripe.SubscriptionStatusIncompleteExpired: model.SubscriptionCanceled,
		stripe.SubscriptionStatusIncomplete:        model.SubscriptionIncomplete,
		"something_new":                            model.SubscriptionIncomplete,
	}
	for in, want := range tests {
		assert.Equal(t, want, subscriptionStatus(in), string(in))
	}
}

func TestSubscriptionUpdatedStoresKnownStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	require.NoError(t, db.Model(&model.Subscription{}).Where("business_id = ?", biz.ID).
		Update("stripe_subscription_id", "sub_3").Error)
	s := NewService(db, &fakeGateway{}, stripeConfig(), "https://app", nil)

	err := s.HandleEvent(context.Background(), event(t, "customer.subscription.updated", map[string]interface{}{
		"id":     "sub_3",
		"object": "subscription",
		"status": "incomplete_expired",
	}))
	require.NoError(t, err)

	var sub model.Subscription
	require.NoError(t, db.Where("business_id = ?", biz.ID).First(&sub).Error)
	assert.Equal(t, model.SubscriptionCanceled, sub.Status)
}

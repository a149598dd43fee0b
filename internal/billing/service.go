package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/events"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/notify"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotConfigured  = errors.New("billing is not configured")
	ErrUnknownPlan    = errors.New("unknown or unpriced plan")
	ErrNoCustomer     = errors.New("no billing account yet, subscribe to a plan first")
	ErrNoSubscription = errors.New("subscription not found")
)

// Service applies billing operations to tenant rows
type Service struct {
	db          *gorm.DB
	gateway     Gateway
	cfg         config.StripeConfig
	frontendURL string
	publisher   events.Publisher
}

// NewService creates the billing service. gateway is nil when Stripe is not configured.
func NewService(db *gorm.DB, gateway Gateway, cfg config.StripeConfig, frontendURL string, publisher events.Publisher) *Service {
	return &Service{
		db:          db,
		gateway:     gateway,
		cfg:         cfg,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		publisher:   publisher,
	}
}

// Enabled reports whether a Stripe gateway is wired
func (s *Service) Enabled() bool {
	return s.gateway != nil
}

// ApplicationFee is the platform's cut of a Connect payment
func (s *Service) ApplicationFee(total int64) int64 {
	if s.cfg.ApplicationFeePercent <= 0 {
		return 0
	}
	return total * s.cfg.ApplicationFeePercent / 100
}

// BookingCheckout creates a Checkout session for a booking and stores its id.
// It returns an empty URL when the business cannot take online payments.
func (s *Service) BookingCheckout(ctx context.Context, business *model.Business, booking *model.Booking, offering *model.Offering) (string, error) {
	if s.gateway == nil || !business.AcceptsOnlinePayments() || booking.TotalCents <= 0 {
		return "", nil
	}

	currency := offering.Currency
	if currency == "" {
		currency = business.Currency
	}
	quantity := int64(booking.PartySize)
	if quantity < 1 {
		quantity = 1
	}
	siteURL := s.frontendURL + "/sites/" + business.Slug

	session, err := s.gateway.CreateBookingCheckout(ctx, BookingCheckout{
		BookingID:      booking.ID,
		BusinessID:     business.ID,
		AccountID:      business.StripeAccountID,
		CustomerEmail:  booking.CustomerEmail,
		ProductName:    offering.Name,
		Currency:       strings.ToLower(currency),
		UnitAmount:     booking.TotalCents / quantity,
		Quantity:       quantity,
		ApplicationFee: s.ApplicationFee(booking.TotalCents),
		SuccessURL:     siteURL + "/booking/success?code=" + booking.ConfirmationCode,
		CancelURL:      siteURL + "/booking/cancelled?code=" + booking.ConfirmationCode,
	})
	if err != nil {
		return "", err
	}

	booking.StripeSessionID = session.ID
	if err := s.db.WithContext(ctx).Model(booking).Update("stripe_session_id", session.ID).Error; err != nil {
		return "", fmt.Errorf("failed to store checkout session: %w", err)
	}
	return session.URL, nil
}

// Subscribe starts a plan checkout, creating the Stripe customer on first use
func (s *Service) Subscribe(ctx context.Context, business *model.Business, email, plan string) (string, error) {
	if s.gateway == nil {
		return "", ErrNotConfigured
	}
	priceID := s.cfg.PlanPrices[plan]
	if priceID == "" {
		return "", ErrUnknownPlan
	}

	sub, err := s.subscription(ctx, business.ID)
	if err != nil {
		return "", err
	}

	if sub.StripeCustomerID == "" {
		customerID, err := s.gateway.CreateCustomer(ctx, email, business.Name, business.ID)
		if err != nil {
			return "", err
		}
		sub.StripeCustomerID = customerID
		if err := s.db.WithContext(ctx).Model(sub).Update("stripe_customer_id", customerID).Error; err != nil {
			return "", fmt.Errorf("failed to store customer: %w", err)
		}
	}

	session, err := s.gateway.CreateSubscriptionCheckout(ctx, SubscriptionCheckout{
		BusinessID: business.ID,
		CustomerID: sub.StripeCustomerID,
		PriceID:    priceID,
		Plan:       plan,
		SuccessURL: s.frontendURL + "/settings/billing?checkout=success",
		CancelURL:  s.frontendURL + "/settings/billing?checkout=cancelled",
	})
	if err != nil {
		return "", err
	}
	return session.URL, nil
}

// Portal returns a billing portal URL for the business's customer
func (s *Service) Portal(ctx context.Context, businessID uint) (string, error) {
	if s.gateway == nil {
		return "", ErrNotConfigured
	}
	sub, err := s.subscription(ctx, businessID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	return s.gateway.CreatePortalSession(ctx, sub.StripeCustomerID, s.frontendURL+"/settings/billing")
}

// OnboardConnect creates the Express account when missing and returns an onboarding link
func (s *Service) OnboardConnect(ctx context.Context, business *model.Business, email string) (string, error) {
	if s.gateway == nil {
		return "", ErrNotConfigured
	}
	if business.StripeAccountID == "" {
		accountID, err := s.gateway.CreateConnectAccount(ctx, email, business.ID)
		if err != nil {
			return "", err
		}
		business.StripeAccountID = accountID
		if err := s.db.WithContext(ctx).Model(business).Update("stripe_account_id", accountID).Error; err != nil {
			return "", fmt.Errorf("failed to store connect account: %w", err)
		}
	}
	return s.gateway.CreateAccountLink(ctx, business.StripeAccountID,
		s.frontendURL+"/settings/payments?refresh=1",
		s.frontendURL+"/settings/payments?onboarded=1")
}

// RefreshConnectStatus syncs the charges-enabled flag from Stripe
func (s *Service) RefreshConnectStatus(ctx context.Context, business *model.Business) (bool, error) {
	if s.gateway == nil {
		return false, ErrNotConfigured
	}
	if business.StripeAccountID == "" {
		return false, nil
	}
	enabled, err := s.gateway.ChargesEnabled(ctx, business.StripeAccountID)
	if err != nil {
		return false, err
	}
	if enabled != business.StripeChargesEnabled {
		business.StripeChargesEnabled = enabled
		if err := s.db.WithContext(ctx).Model(business).Update("stripe_charges_enabled", enabled).Error; err != nil {
			return false, fmt.Errorf("failed to store charges flag: %w", err)
		}
	}
	return enabled, nil
}

// ConstructEvent verifies a webhook payload
func (s *Service) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.gateway == nil {
		return stripe.Event{}, ErrNotConfigured
	}
	return s.gateway.ConstructEvent(payload, signature)
}

// HandleEvent applies a verified webhook event. Unknown types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	eventType := string(event.Type)
	log := logger.Ctx(ctx).With(zap.String("event_type", eventType), zap.String("event_id", event.ID))

	var err error
	switch eventType {
	case "checkout.session.completed":
		err = s.onCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		err = s.onSubscriptionChanged(ctx, event, eventType == "customer.subscription.deleted")
	case "account.updated":
		err = s.onAccountUpdated(ctx, event)
	default:
		prometheus.RecordStripeWebhook(eventType, "ignored")
		log.Debug("Ignoring Stripe event")
		return nil
	}

	if err != nil {
		prometheus.RecordStripeWebhook(eventType, "error")
		log.Error("Failed to handle Stripe event", zap.Error(err))
		return err
	}
	prometheus.RecordStripeWebhook(eventType, "ok")
	return nil
}

func decodeEvent(event stripe.Event, v interface{}) error {
	if event.Data == nil {
		return errors.New("event has no data")
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event.Type, err)
	}
	return nil
}

func (s *Service) onCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := decodeEvent(event, &session); err != nil {
		return err
	}

	switch session.Mode {
	case stripe.CheckoutSessionModePayment:
		return s.markBookingPaid(ctx, &session)
	case stripe.CheckoutSessionModeSubscription:
		return s.activateSubscription(ctx, &session)
	}
	return nil
}

func (s *Service) markBookingPaid(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil
	}

	db := s.db.WithContext(ctx)
	var booking model.Booking
	err := db.Where("stripe_session_id = ?", session.ID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if id, perr := strconv.ParseUint(session.Metadata["booking_id"], 10, 64); perr == nil {
			err = db.First(&booking, uint(id)).Error
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Ctx(ctx).Warn("Checkout completed for unknown booking", zap.String("session_id", session.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if booking.PaymentStatus == model.PaymentPaid {
		return nil
	}

	updates := map[string]interface{}{
		"payment_status":    model.PaymentPaid,
		"stripe_session_id": session.ID,
	}
	status := booking.Status
	if booking.CanTransitionTo(model.BookingConfirmed) {
		status = model.BookingConfirmed
		updates["status"] = status
	}
	if err := db.Model(&booking).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}

	prometheus.RecordBooking(status, "stripe")
	notify.Owner(ctx, s.db, booking.BusinessID, notify.TypeBooking, "Booking paid",
		fmt.Sprintf("%s paid for booking %s", booking.CustomerName, booking.ConfirmationCode),
		fmt.Sprintf("/bookings/%d", booking.ID))
	events.Emit(ctx, s.publisher, events.BookingPaid, booking.BusinessID, map[string]interface{}{
		"booking_id":        booking.ID,
		"confirmation_code": booking.ConfirmationCode,
		"total_cents":       booking.TotalCents,
	})
	return nil
}

func (s *Service) activateSubscription(ctx context.Context, session *stripe.CheckoutSession) error {
	businessID, err := strconv.ParseUint(session.Metadata["business_id"], 10, 64)
	if err != nil {
		businessID, err = strconv.ParseUint(session.ClientReferenceID, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("checkout session %s has no business reference", session.ID)
	}

	updates := map[string]interface{}{
		"status": model.SubscriptionActive,
	}
	plan := session.Metadata["plan"]
	if plan != "" {
		updates["plan"] = plan
	}
	if session.Customer != nil && session.Customer.ID != "" {
		updates["stripe_customer_id"] = session.Customer.ID
	}
	if session.Subscription != nil && session.Subscription.ID != "" {
		updates["stripe_subscription_id"] = session.Subscription.ID
	}

	sub, err := s.subscription(ctx, uint(businessID))
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(sub).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}

	msg := "Your subscription is now active"
	if plan != "" {
		msg = fmt.Sprintf("Your %s plan is now active", plan)
	}
	notify.Owner(ctx, s.db, sub.BusinessID, notify.TypeBilling, "Subscription active", msg, "/settings/billing")
	events.Emit(ctx, s.publisher, events.SubscriptionUpdated, sub.BusinessID, updates)
	return nil
}

func (s *Service) onSubscriptionChanged(ctx context.Context, event stripe.Event, deleted bool) error {
	var stripeSub stripe.Subscription
	if err := decodeEvent(event, &stripeSub); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var sub model.Subscription
	err := db.Where("stripe_subscription_id = ?", stripeSub.ID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		id, perr := strconv.ParseUint(stripeSub.Metadata["business_id"], 10, 64)
		if perr != nil {
			logger.Ctx(ctx).Warn("Subscription event for unknown business", zap.String("subscription_id", stripeSub.ID))
			return nil
		}
		err = db.Where("business_id = ?", uint(id)).First(&sub).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoSubscription
	}
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	updates := map[string]interface{}{
		"stripe_subscription_id": stripeSub.ID,
		"status":                 subscriptionStatus(stripeSub.Status),
		"cancel_at_period_end":   stripeSub.CancelAtPeriodEnd,
	}
	if stripeSub.CurrentPeriodEnd > 0 {
		updates["current_period_end"] = time.Unix(stripeSub.CurrentPeriodEnd, 0).UTC()
	}
	if plan := s.planForSubscription(&stripeSub); plan != "" {
		updates["plan"] = plan
	}
	if deleted {
		updates["status"] = model.SubscriptionCanceled
		updates["plan"] = model.PlanFree
		updates["cancel_at_period_end"] = false
	}

	if err := db.Model(&sub).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	events.Emit(ctx, s.publisher, events.SubscriptionUpdated, sub.BusinessID, updates)
	return nil
}

// subscriptionStatus folds Stripe's statuses onto the ones the platform stores
func subscriptionStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return model.SubscriptionActive
	case stripe.SubscriptionStatusTrialing:
		return model.SubscriptionTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return model.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionCanceled
	default:
		return model.SubscriptionIncomplete
	}
}

func (s *Service) planForSubscription(sub *stripe.Subscription) string {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			for plan, price := range s.cfg.PlanPrices {
				if price != "" && price == item.Price.ID {
					return plan
				}
			}
		}
	}
	return sub.Metadata["plan"]
}

func (s *Service) onAccountUpdated(ctx context.Context, event stripe.Event) error {
	var account stripe.Account
	if err := decodeEvent(event, &account); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&model.Business{}).
		Where("stripe_account_id = ?", account.ID).
		Update("stripe_charges_enabled", account.ChargesEnabled)
	if res.Error != nil {
		return fmt.Errorf("failed to update business account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		logger.Ctx(ctx).Warn("Account update for unknown business", zap.String("account_id", account.ID))
	}
	return nil
}

// subscription returns the business row, creating the free plan row if it was never written
func (s *Service) subscription(ctx context.Context, businessID uint) (*model.Subscription, error) {
	sub := model.Subscription{BusinessID: businessID}
	err := s.db.WithContext(ctx).
		Where(model.Subscription{BusinessID: businessID}).
		Attrs(model.Subscription{Plan: model.PlanFree, Status: model.SubscriptionActive}).
		FirstOrCreate(&sub).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

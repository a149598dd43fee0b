// Package billing integrates Stripe subscriptions, Connect payouts and booking checkout.
package billing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// BookingCheckout describes a one-off payment routed to a Connect account
type BookingCheckout struct {
	BookingID      uint
	BusinessID     uint
	AccountID      string
	CustomerEmail  string
	ProductName    string
	Currency       string
	UnitAmount     int64
	Quantity       int64
	ApplicationFee int64
	SuccessURL     string
	CancelURL      string
}

// SubscriptionCheckout describes a plan purchase by a business
type SubscriptionCheckout struct {
	BusinessID uint
	CustomerID string
	PriceID    string
	Plan       string
	SuccessURL string
	CancelURL  string
}

// Session is the part of a Checkout session callers need
type Session struct {
	ID  string
	URL string
}

// Gateway is the Stripe surface used by the service
type Gateway interface {
	CreateBookingCheckout(ctx context.Context, in BookingCheckout) (*Session, error)
	CreateSubscriptionCheckout(ctx context.Context, in SubscriptionCheckout) (*Session, error)
	CreateCustomer(ctx context.Context, email, name string, businessID uint) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CreateConnectAccount(ctx context.Context, email string, businessID uint) (string, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	ChargesEnabled(ctx context.Context, accountID string) (bool, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// StripeGateway implements Gateway with the official client
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a client bound to the secret key
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (g *StripeGateway) CreateBookingCheckout(ctx context.Context, in BookingCheckout) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		CustomerEmail:     stripe.String(in.CustomerEmail),
		ClientReferenceID: stripe.String(idString(in.BookingID)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(in.Currency),
				UnitAmount: stripe.Int64(in.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(in.ProductName),
				},
			},
			Quantity: stripe.Int64(in.Quantity),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(in.ApplicationFee),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(in.AccountID),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", idString(in.BookingID))
	params.AddMetadata("business_id", idString(in.BusinessID))

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking checkout: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CreateSubscriptionCheckout(ctx context.Context, in SubscriptionCheckout) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(in.CustomerID),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(idString(in.BusinessID)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(in.PriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"business_id": idString(in.BusinessID),
				"plan":        in.Plan,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("business_id", idString(in.BusinessID))
	params.AddMetadata("plan", in.Plan)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription checkout: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string, businessID uint) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("business_id", idString(businessID))

	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return s.URL, nil
}

func (g *StripeGateway) CreateConnectAccount(ctx context.Context, email string, businessID uint) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	params.AddMetadata("business_id", idString(businessID))

	a, err := g.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create connect account: %w", err)
	}
	return a.ID, nil
}

func (g *StripeGateway) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create account link: %w", err)
	}
	return link.URL, nil
}

func (g *StripeGateway) ChargesEnabled(ctx context.Context, accountID string) (bool, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	a, err := g.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return false, fmt.Errorf("failed to fetch account %s: %w", accountID, err)
	}
	return a.ChargesEnabled, nil
}

// ConstructEvent verifies the webhook signature
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

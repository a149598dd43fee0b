package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/billing"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/middleware"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Stripe payloads are far below this
const maxWebhookBody = 1 << 20

func billingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	case errors.Is(err, billing.ErrUnknownPlan):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, billing.ErrNoCustomer):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	logger.FromContext(c).Error("Billing request failed", zap.Error(err))
	return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider request failed"})
}

func billingService(c echo.Context) (*billing.Service, error) {
	if deps.Billing == nil || !deps.Billing.Enabled() {
		return nil, billingError(c, billing.ErrNotConfigured)
	}
	return deps.Billing, nil
}

func currentBusiness(c echo.Context) (*model.Business, error) {
	businessID, _ := tenant(c)
	var business model.Business
	if err := database.GetDB().First(&business, businessID).Error; err != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}
	return &business, nil
}

// GetSubscription returns the plan of the current business
func GetSubscription(c echo.Context) error {
	businessID, _ := tenant(c)

	var sub model.Subscription
	err := database.GetDB().
		Where(model.Subscription{BusinessID: businessID}).
		Attrs(model.Subscription{Plan: model.PlanFree, Status: model.SubscriptionActive}).
		FirstOrCreate(&sub).Error
	if err != nil {
		logger.FromContext(c).Error("Failed to load subscription", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, sub)
}

// CreateSubscriptionCheckout starts a Stripe Checkout for a paid plan
func CreateSubscriptionCheckout(c echo.Context) error {
	log := logger.FromContext(c)
	svc, err := billingService(c)
	if svc == nil {
		return err
	}
	business, err := currentBusiness(c)
	if business == nil {
		return err
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := c.Bind(&req); err != nil || req.Plan == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plan is required"})
	}

	url, err := svc.Subscribe(c.Request().Context(), business, middleware.GetEmail(c), req.Plan)
	if err != nil {
		return billingError(c, err)
	}
	log.Info("Subscription checkout created", zap.Uint("business_id", business.ID), zap.String("plan", req.Plan))
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

func CreatePortalSession(c echo.Context) error {
	svc, err := billingService(c)
	if svc == nil {
		return err
	}
	businessID, _ := tenant(c)

	url, err := svc.Portal(c.Request().Context(), businessID)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// OnboardConnect returns a Stripe onboarding link for the tenant's payout account
func OnboardConnect(c echo.Context) error {
	log := logger.FromContext(c)
	svc, err := billingService(c)
	if svc == nil {
		return err
	}
	business, err := currentBusiness(c)
	if business == nil {
		return err
	}

	email := business.Email
	if email == "" {
		email = middleware.GetEmail(c)
	}
	url, err := svc.OnboardConnect(c.Request().Context(), business, email)
	if err != nil {
		return billingError(c, err)
	}
	log.Info("Connect onboarding link created", zap.Uint("business_id", business.ID))
	return c.JSON(http.StatusOK, echo.Map{"url": url, "account_id": business.StripeAccountID})
}

func GetConnectStatus(c echo.Context) error {
	svc, err := billingService(c)
	if svc == nil {
		return err
	}
	business, err := currentBusiness(c)
	if business == nil {
		return err
	}

	enabled, err := svc.RefreshConnectStatus(c.Request().Context(), business)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"account_id":      business.StripeAccountID,
		"charges_enabled": enabled,
	})
}

// StripeWebhook verifies and applies a Stripe event. Handler errors return 500 so Stripe retries.
func StripeWebhook(c echo.Context) error {
	log := logger.FromContext(c)
	if deps.Billing == nil || !deps.Billing.Enabled() {
		return billingError(c, billing.ErrNotConfigured)
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "could not read body"})
	}

	event, err := deps.Billing.ConstructEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn("Rejected Stripe webhook", zap.Error(err))
		prometheus.RecordStripeWebhook("unknown", "invalid_signature")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	if err := deps.Billing.HandleEvent(c.Request().Context(), event); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

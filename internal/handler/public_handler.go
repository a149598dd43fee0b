package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/booking"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func activeBusinessBySlug(c echo.Context) (*model.Business, error) {
	var business model.Business
	err := database.GetDB().Where("slug = ? AND active = ?", c.Param("slug"), true).First(&business).Error
	if err != nil {
		return nil, err
	}
	return &business, nil
}

// publicBusiness is the profile a deployed site may show
func publicBusiness(b *model.Business) echo.Map {
	return echo.Map{
		"id":               b.ID,
		"name":             b.Name,
		"slug":             b.Slug,
		"description":      b.Description,
		"category":         b.Category,
		"location":         b.Location,
		"phone":            b.Phone,
		"email":            b.Email,
		"website":          b.Website,
		"logo_url":         b.LogoURL,
		"primary_color":    b.PrimaryColor,
		"timezone":         b.Timezone,
		"currency":         b.Currency,
		"chatbot_enabled":  b.ChatbotEnabled,
		"chatbot_greeting": b.ChatbotGreeting,
		"accepts_payments": b.AcceptsOnlinePayments(),
	}
}

// GetPublicSite returns the profile and active offerings of a business
func GetPublicSite(c echo.Context) error {
	log := logger.FromContext(c)

	business, err := activeBusinessBySlug(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var offerings []model.Offering
	if err := database.GetDB().
		Where("business_id = ? AND active = ?", business.ID, true).
		Order("id").
		Find(&offerings).Error; err != nil {
		log.Error("Failed to load offerings", zap.Error(err))
		return internalError(c)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"business":  publicBusiness(business),
		"offerings": offerings,
	})
}

// CreatePublicBooking takes a booking from a deployed site and starts checkout when possible
func CreatePublicBooking(c echo.Context) error {
	log := logger.FromContext(c)

	business, err := activeBusinessBySlug(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}

	var req booking.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	// visitors cannot pick a status
	req.Status = model.BookingPending

	ctx := c.Request().Context()
	b, offering, err := booking.Create(ctx, database.GetDB(), business.ID, req)
	if err != nil {
		return bookingError(c, err)
	}
	bookingCreated(ctx, business, b, offering, channelPublic)

	resp := echo.Map{
		"booking_id":        b.ID,
		"confirmation_code": b.ConfirmationCode,
		"status":            b.Status,
		"payment_status":    b.PaymentStatus,
		"total_cents":       b.TotalCents,
		"currency":          offering.Currency,
	}

	if deps.Billing != nil {
		url, err := deps.Billing.BookingCheckout(ctx, business, b, offering)
		if err != nil {
			// the booking stands, the business can collect payment offline
			log.Error("Failed to create booking checkout", zap.Uint("booking_id", b.ID), zap.Error(err))
			resp["payment_error"] = "online payment is unavailable, the business will contact you"
		} else if url != "" {
			resp["checkout_url"] = url
		}
	}

	return c.JSON(http.StatusCreated, resp)
}

// GetChatWidget returns what the site widget needs before the first message
func GetChatWidget(c echo.Context) error {
	business, err := activeBusinessBySlug(c)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}
	greeting := business.ChatbotGreeting
	if greeting == "" {
		greeting = "Hi! Ask me anything about " + business.Name + "."
	}
	return c.JSON(http.StatusOK, echo.Map{
		"enabled":       business.ChatbotEnabled,
		"name":          business.Name,
		"greeting":      greeting,
		"primary_color": business.PrimaryColor,
	})
}

func chatError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, chatbot.ErrBusinessNotFound), errors.Is(err, chatbot.ErrChatbotDisabled),
		errors.Is(err, chatbot.ErrConversationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, chatbot.ErrEmptyMessage), errors.Is(err, chatbot.ErrMessageTooLong):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, chatbot.ErrReplyFailed):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "the assistant is unavailable, please try again"})
	case errors.Is(err, chatbot.ErrConcurrentUpdate):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	logger.FromContext(c).Error("Chat request failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "chat error"})
}

// SendChatMessage answers a visitor message
func SendChatMessage(c echo.Context) error {
	var req struct {
		SessionID    string `json:"session_id"`
		Message      string `json:"message"`
		VisitorName  string `json:"visitor_name"`
		VisitorEmail string `json:"visitor_email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	resp, err := deps.Chatbot.HandleMessage(c.Request().Context(), chatbot.MessageRequest{
		Slug:         c.Param("slug"),
		SessionID:    req.SessionID,
		Message:      req.Message,
		VisitorName:  req.VisitorName,
		VisitorEmail: req.VisitorEmail,
	})
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetChatTranscript lets a visitor restore their session
func GetChatTranscript(c echo.Context) error {
	conv, msgs, err := deps.Chatbot.Transcript(c.Request().Context(), c.Param("slug"), c.Param("session_id"))
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"session_id":      conv.SessionID,
		"conversation_id": conv.ID,
		"status":          conv.Status,
		"messages":        msgs,
	})
}

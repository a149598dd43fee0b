package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/booking"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/events"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/mailer"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/notify"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Booking channels
const (
	channelDashboard = "dashboard"
	channelPublic    = "public"
)

// bookingError maps booking rule violations to responses
func bookingError(c echo.Context, err error) error {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Msg})
	case errors.Is(err, booking.ErrOfferingNotFound), errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrOfferingInactive), errors.Is(err, booking.ErrCapacityExceeded):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	logger.FromContext(c).Error("Booking operation failed", zap.Error(err))
	return internalError(c)
}

// bookingCreated runs the side effects of a new booking. None of them fail the request.
func bookingCreated(ctx context.Context, business *model.Business, b *model.Booking, o *model.Offering, channel string) {
	prometheus.RecordBooking(b.Status, channel)

	date := b.BookingDate.Format("Mon 2 Jan 2006")
	notify.Owner(ctx, database.GetDB(), business.ID, notify.TypeBooking,
		"New booking",
		fmt.Sprintf("%s booked %s for %d on %s", b.CustomerName, o.Name, b.PartySize, date),
		fmt.Sprintf("/dashboard/bookings/%d", b.ID))
	events.Emit(ctx, deps.Publisher, events.BookingCreated, business.ID, b)
	mailer.SendAsync(ctx, deps.Mailer,
		mailer.BookingConfirmation(b.CustomerEmail, b.CustomerName, business.Name, o.Name, date, b.ConfirmationCode))

	logger.Ctx(ctx).Info("Booking created",
		zap.Uint("business_id", business.ID),
		zap.Uint("booking_id", b.ID),
		zap.String("channel", channel))
}

func ListBookings(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	q := database.GetDB().Preload("Offering").Where("business_id = ?", businessID)
	if status := c.QueryParam("status"); status != "" {
		if !model.ValidBookingStatus(status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		q = q.Where("status = ?", status)
	}
	if offeringID := c.QueryParam("offering_id"); offeringID != "" {
		id, err := strconv.ParseUint(offeringID, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid offering_id"})
		}
		q = q.Where("offering_id = ?", id)
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := booking.ParseDate(from)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date"})
		}
		q = q.Where("booking_date >= ?", t)
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := booking.ParseDate(to)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date"})
		}
		// a bare date includes the whole day
		if len(to) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1)
		}
		q = q.Where("booking_date < ?", t)
	}

	var bookings []model.Booking
	if err := q.Order("booking_date DESC, id DESC").Find(&bookings).Error; err != nil {
		log.Error("Failed to list bookings", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

func GetBooking(c echo.Context) error {
	businessID, _ := tenant(c)
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var b model.Booking
	if err := database.GetDB().Preload("Offering").
		Where("id = ? AND business_id = ?", id, businessID).
		First(&b).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	return c.JSON(http.StatusOK, b)
}

func CreateBooking(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("booking", "create")

	var req booking.Request
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse booking request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	db := database.GetDB()
	var business model.Business
	if err := db.First(&business, businessID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}

	ctx := c.Request().Context()
	defer prometheus.TrackDBOperation("insert")(time.Now())
	b, offering, err := booking.Create(ctx, db, businessID, req)
	if err != nil {
		return bookingError(c, err)
	}

	bookingCreated(ctx, &business, b, offering, channelDashboard)
	b.Offering = offering
	return c.JSON(http.StatusCreated, b)
}

// UpdateBookingStatus moves a booking along its lifecycle
func UpdateBookingStatus(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("booking", "update_status")
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}

	ctx := c.Request().Context()
	defer prometheus.TrackDBOperation("update")(time.Now())
	b, prev, err := booking.UpdateStatus(ctx, database.GetDB(), businessID, id, req.Status)
	if err != nil {
		return bookingError(c, err)
	}

	prometheus.RecordBooking(b.Status, channelDashboard)
	events.Emit(ctx, deps.Publisher, events.BookingStatusChanged, businessID, echo.Map{
		"booking_id": b.ID,
		"from":       prev,
		"to":         b.Status,
	})
	log.Info("Booking status changed",
		zap.Uint("booking_id", b.ID),
		zap.String("from", prev),
		zap.String("to", b.Status))

	return c.JSON(http.StatusOK, b)
}

func DeleteBooking(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("booking", "delete")
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).Delete(&model.Booking{})
	if res.Error != nil {
		log.Error("Failed to delete booking", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}

	log.Info("Booking deleted", zap.Uint("business_id", businessID), zap.Uint("booking_id", id))
	return c.NoContent(http.StatusNoContent)
}

package handler

import (
	"net/http"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/analytics"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GetAnalytics summarizes bookings and chatbot activity over a date window
func GetAnalytics(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)

	r, err := analytics.ParseRange(c.QueryParam("from"), c.QueryParam("to"), time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	summary, err := analytics.Summarize(c.Request().Context(), database.GetDB(), businessID, r)
	if err != nil {
		log.Error("Failed to compute analytics", zap.Uint("business_id", businessID), zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, summary)
}

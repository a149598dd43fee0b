package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type offeringRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Type            *string `json:"type"`
	PriceCents      *int64  `json:"price_cents"`
	Currency        *string `json:"currency"`
	DurationMinutes *int    `json:"duration_minutes"`
	Capacity        *int    `json:"capacity"`
	Location        *string `json:"location"`
	ImageURL        *string `json:"image_url"`
	Active          *bool   `json:"active"`
}

// columns validates the request and returns the fields it sets
func (r *offeringRequest) columns() (map[string]interface{}, string) {
	cols := map[string]interface{}{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, "name is required"
		}
		cols["name"] = name
	}
	if r.Description != nil {
		cols["description"] = *r.Description
	}
	if r.Type != nil {
		if !model.ValidOfferingType(*r.Type) {
			return nil, "unknown offering type"
		}
		cols["type"] = *r.Type
	}
	if r.PriceCents != nil {
		if *r.PriceCents < 0 {
			return nil, "price_cents must not be negative"
		}
		cols["price_cents"] = *r.PriceCents
	}
	if r.Currency != nil {
		cols["currency"] = strings.ToLower(strings.TrimSpace(*r.Currency))
	}
	if r.DurationMinutes != nil {
		if *r.DurationMinutes < 0 {
			return nil, "duration_minutes must not be negative"
		}
		cols["duration_minutes"] = *r.DurationMinutes
	}
	if r.Capacity != nil {
		if *r.Capacity < 0 {
			return nil, "capacity must not be negative"
		}
		cols["capacity"] = *r.Capacity
	}
	if r.Location != nil {
		cols["location"] = *r.Location
	}
	if r.ImageURL != nil {
		cols["image_url"] = *r.ImageURL
	}
	if r.Active != nil {
		cols["active"] = *r.Active
	}
	return cols, ""
}

func ListOfferings(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	q := database.GetDB().Where("business_id = ?", businessID)
	if active := c.QueryParam("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "active must be true or false"})
		}
		q = q.Where("active = ?", v)
	}
	if t := c.QueryParam("type"); t != "" {
		q = q.Where("type = ?", t)
	}

	var offerings []model.Offering
	if err := q.Order("id").Find(&offerings).Error; err != nil {
		log.Error("Failed to list offerings", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"offerings": offerings})
}

func GetOffering(c echo.Context) error {
	businessID, _ := tenant(c)
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var offering model.Offering
	if err := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).First(&offering).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "offering not found"})
	}
	return c.JSON(http.StatusOK, offering)
}

func CreateOffering(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("offering", "create")

	var req offeringRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	cols, msg := req.columns()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	db := database.GetDB()
	var business model.Business
	if err := db.Select("id", "currency").First(&business, businessID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}

	offering := model.Offering{BusinessID: businessID, Type: model.OfferingTour, Currency: business.Currency, Active: true}
	applyOffering(&offering, cols)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&offering).Error; err != nil {
		log.Error("Failed to create offering", zap.Error(err))
		return internalError(c)
	}
	// active has a database default, so false must be written explicitly
	if req.Active != nil && !*req.Active {
		if err := db.Model(&offering).Update("active", false).Error; err != nil {
			log.Error("Failed to deactivate offering", zap.Error(err))
			return internalError(c)
		}
		offering.Active = false
	}

	chatbot.Invalidate(c.Request().Context(), deps.Cache, businessID)
	log.Info("Offering created", zap.Uint("business_id", businessID), zap.Uint("offering_id", offering.ID))
	return c.JSON(http.StatusCreated, offering)
}

func applyOffering(o *model.Offering, cols map[string]interface{}) {
	for k, v := range cols {
		switch k {
		case "name":
			o.Name = v.(string)
		case "description":
			o.Description = v.(string)
		case "type":
			o.Type = v.(string)
		case "price_cents":
			o.PriceCents = v.(int64)
		case "currency":
			o.Currency = v.(string)
		case "duration_minutes":
			o.DurationMinutes = v.(int)
		case "capacity":
			o.Capacity = v.(int)
		case "location":
			o.Location = v.(string)
		case "image_url":
			o.ImageURL = v.(string)
		case "active":
			o.Active = v.(bool)
		}
	}
}

func UpdateOffering(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("offering", "update")
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var req offeringRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	cols, msg := req.columns()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	db := database.GetDB()
	var offering model.Offering
	if err := db.Where("id = ? AND business_id = ?", id, businessID).First(&offering).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "offering not found"})
	}

	if len(cols) > 0 {
		defer prometheus.TrackDBOperation("update")(time.Now())
		if err := db.Model(&offering).Updates(cols).Error; err != nil {
			log.Error("Failed to update offering", zap.Error(err))
			return internalError(c)
		}
		applyOffering(&offering, cols)
		chatbot.Invalidate(c.Request().Context(), deps.Cache, businessID)
	}
	return c.JSON(http.StatusOK, offering)
}

func DeleteOffering(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("offering", "delete")
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).Delete(&model.Offering{})
	if res.Error != nil {
		log.Error("Failed to delete offering", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "offering not found"})
	}

	chatbot.Invalidate(c.Request().Context(), deps.Cache, businessID)
	log.Info("Offering deleted", zap.Uint("business_id", businessID), zap.Uint("offering_id", id))
	return c.NoContent(http.StatusNoContent)
}

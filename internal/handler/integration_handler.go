package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Integration statuses
const (
	integrationConnected    = "connected"
	integrationDisconnected = "disconnected"
)

func ListIntegrations(c echo.Context) error {
	businessID, _ := tenant(c)

	var integrations []model.Integration
	if err := database.GetDB().Where("business_id = ?", businessID).Order("provider").Find(&integrations).Error; err != nil {
		logger.FromContext(c).Error("Failed to list integrations", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"integrations": integrations})
}

// ConnectIntegration stores the configuration of a provider, one row per provider
func ConnectIntegration(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("integration", "connect")

	var req struct {
		Provider string          `json:"provider"`
		Category string          `json:"category"`
		Config   json.RawMessage `json:"config"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if req.Provider == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider is required"})
	}
	cfg := "{}"
	if len(req.Config) > 0 && string(req.Config) != "null" {
		var obj map[string]interface{}
		if err := json.Unmarshal(req.Config, &obj); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "config must be a JSON object"})
		}
		cfg = string(req.Config)
	}

	db := database.GetDB()
	now := time.Now()
	var integration model.Integration
	err := db.Unscoped().Where("business_id = ? AND provider = ?", businessID, req.Provider).First(&integration).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		integration = model.Integration{
			BusinessID:  businessID,
			Provider:    req.Provider,
			Category:    req.Category,
			Status:      integrationConnected,
			Config:      cfg,
			ConnectedAt: &now,
		}
		err = db.Create(&integration).Error
	case err == nil:
		err = db.Unscoped().Model(&integration).Updates(map[string]interface{}{
			"category":     req.Category,
			"status":       integrationConnected,
			"config":       cfg,
			"connected_at": now,
			"deleted_at":   nil,
		}).Error
		integration.Category = req.Category
		integration.Status = integrationConnected
		integration.Config = cfg
		integration.ConnectedAt = &now
	}
	if err != nil {
		log.Error("Failed to save integration", zap.Error(err))
		return internalError(c)
	}

	log.Info("Integration connected", zap.Uint("business_id", businessID), zap.String("provider", req.Provider))
	return c.JSON(http.StatusOK, integration)
}

func DisconnectIntegration(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("integration", "disconnect")

	res := database.GetDB().Model(&model.Integration{}).
		Where("business_id = ? AND provider = ?", businessID, strings.ToLower(c.Param("provider"))).
		Updates(map[string]interface{}{"status": integrationDisconnected, "config": "{}"})
	if res.Error != nil {
		log.Error("Failed to disconnect integration", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "integration not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

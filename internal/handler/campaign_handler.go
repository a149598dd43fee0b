package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/llm"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/marketing"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func findCampaign(c echo.Context) (*model.Campaign, error) {
	businessID, _ := tenant(c)
	id, ok := paramID(c, "id")
	if !ok {
		return nil, invalidID(c)
	}
	var campaign model.Campaign
	if err := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).First(&campaign).Error; err != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "campaign not found"})
	}
	return &campaign, nil
}

func ListCampaigns(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	q := database.GetDB().Where("business_id = ?", businessID)
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if t := c.QueryParam("type"); t != "" {
		q = q.Where("type = ?", t)
	}

	var campaigns []model.Campaign
	if err := q.Order("id DESC").Find(&campaigns).Error; err != nil {
		log.Error("Failed to list campaigns", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"campaigns": campaigns})
}

func GetCampaign(c echo.Context) error {
	campaign, err := findCampaign(c)
	if campaign == nil {
		return err
	}
	return c.JSON(http.StatusOK, campaign)
}

func CreateCampaign(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("campaign", "create")

	var req struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Subject  string `json:"subject"`
		Content  string `json:"content"`
		Audience string `json:"audience"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if req.Type == "" {
		req.Type = "email"
	}
	if !model.ValidCampaignType(req.Type) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown campaign type"})
	}

	campaign := model.Campaign{
		BusinessID: businessID,
		Name:       req.Name,
		Type:       req.Type,
		Status:     model.CampaignDraft,
		Subject:    req.Subject,
		Content:    req.Content,
		Audience:   req.Audience,
	}
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&campaign).Error; err != nil {
		log.Error("Failed to create campaign", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusCreated, campaign)
}

func UpdateCampaign(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("campaign", "update")
	campaign, err := findCampaign(c)
	if campaign == nil {
		return err
	}

	var req struct {
		Name     *string `json:"name"`
		Type     *string `json:"type"`
		Subject  *string `json:"subject"`
		Content  *string `json:"content"`
		Audience *string `json:"audience"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if campaign.Status == model.CampaignSent || campaign.Status == model.CampaignArchived {
		return c.JSON(http.StatusConflict, echo.Map{"error": "campaign can no longer be edited"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		if !model.ValidCampaignType(*req.Type) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown campaign type"})
		}
		updates["type"] = *req.Type
	}
	if req.Subject != nil {
		updates["subject"] = *req.Subject
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Audience != nil {
		updates["audience"] = *req.Audience
	}

	if len(updates) > 0 {
		db := database.GetDB()
		if err := db.Model(campaign).Updates(updates).Error; err != nil {
			log.Error("Failed to update campaign", zap.Error(err))
			return internalError(c)
		}
		db.First(campaign, campaign.ID)
	}
	return c.JSON(http.StatusOK, campaign)
}

func DeleteCampaign(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("campaign", "delete")
	campaign, err := findCampaign(c)
	if campaign == nil {
		return err
	}
	if err := database.GetDB().Delete(campaign).Error; err != nil {
		log.Error("Failed to delete campaign", zap.Error(err))
		return internalError(c)
	}
	return c.NoContent(http.StatusNoContent)
}

// ScheduleCampaign sets a future send time on a draft
func ScheduleCampaign(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("campaign", "schedule")
	campaign, err := findCampaign(c)
	if campaign == nil {
		return err
	}

	var req struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := c.Bind(&req); err != nil || req.ScheduledAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_at is required (RFC 3339)"})
	}
	if !req.ScheduledAt.After(time.Now()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_at must be in the future"})
	}
	if campaign.Status != model.CampaignDraft && campaign.Status != model.CampaignScheduled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "only draft campaigns can be scheduled"})
	}

	at := req.ScheduledAt.UTC()
	if err := database.GetDB().Model(campaign).Updates(map[string]interface{}{
		"status":       model.CampaignScheduled,
		"scheduled_at": at,
	}).Error; err != nil {
		log.Error("Failed to schedule campaign", zap.Error(err))
		return internalError(c)
	}
	campaign.Status = model.CampaignScheduled
	campaign.ScheduledAt = &at
	return c.JSON(http.StatusOK, campaign)
}

func ArchiveCampaign(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("campaign", "archive")
	campaign, err := findCampaign(c)
	if campaign == nil {
		return err
	}
	if err := database.GetDB().Model(campaign).Update("status", model.CampaignArchived).Error; err != nil {
		log.Error("Failed to archive campaign", zap.Error(err))
		return internalError(c)
	}
	campaign.Status = model.CampaignArchived
	return c.JSON(http.StatusOK, campaign)
}

// GenerateCampaign writes marketing copy grounded in the business and optionally saves it as a draft
func GenerateCampaign(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("campaign", "generate")

	var req marketing.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Type == "" {
		req.Type = "email"
	}
	if !model.ValidCampaignType(req.Type) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown campaign type"})
	}

	db := database.GetDB()
	var business model.Business
	if err := db.First(&business, businessID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}
	var offerings []model.Offering
	if err := db.Where("business_id = ? AND active = ?", businessID, true).Order("id").Find(&offerings).Error; err != nil {
		log.Error("Failed to load offerings", zap.Error(err))
		return internalError(c)
	}

	if deps.LLM == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "content generation is not configured"})
	}
	ctx := c.Request().Context()
	generated, err := marketing.Generate(ctx, deps.LLM, business, offerings, req)
	if errors.Is(err, llm.ErrNotConfigured) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "content generation is not configured"})
	}
	if err != nil {
		log.Error("Content generation failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "content generation failed"})
	}

	if !req.Save {
		return c.JSON(http.StatusOK, generated)
	}

	name := strings.TrimSpace(req.Topic)
	if name == "" {
		name = generated.Subject
	}
	if name == "" {
		name = "Generated " + req.Type
	}
	if len(name) > 255 {
		name = name[:255]
	}
	campaign := model.Campaign{
		BusinessID:  businessID,
		Name:        name,
		Type:        req.Type,
		Status:      model.CampaignDraft,
		Subject:     generated.Subject,
		Content:     generated.Content,
		Audience:    req.Audience,
		AIGenerated: true,
	}
	if err := db.Create(&campaign).Error; err != nil {
		log.Error("Failed to save generated campaign", zap.Error(err))
		return internalError(c)
	}

	log.Info("Campaign generated", zap.Uint("business_id", businessID), zap.Uint("campaign_id", campaign.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"subject":  generated.Subject,
		"content":  generated.Content,
		"campaign": campaign,
	})
}

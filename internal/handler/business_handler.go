package handler

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/middleware"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a business name into a URL slug
func Slugify(name string) string {
	slug := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(slug) > 100 {
		slug = strings.TrimRight(slug[:100], "-")
	}
	if slug == "" {
		slug = "business"
	}
	return slug
}

// uniqueSlug appends -2, -3 ... until the slug is unused, deleted businesses included
func uniqueSlug(tx *gorm.DB, base string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Unscoped().Model(&model.Business{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// CreateBusiness creates a tenant with the caller as owner on the free plan
func CreateBusiness(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("business", "create")
	userID, _ := middleware.GetUserID(c)

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Location    string `json:"location"`
		Phone       string `json:"phone"`
		Email       string `json:"email"`
		Website     string `json:"website"`
		Currency    string `json:"currency"`
		Timezone    string `json:"timezone"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse business creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		log.Warn("Invalid business data", zap.String("name", req.Name))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	db := database.GetDB()
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	tx := db.Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return internalError(c)
	}

	slug, err := uniqueSlug(tx, Slugify(req.Name))
	if err != nil {
		tx.Rollback()
		log.Error("Failed to derive slug", zap.Error(err))
		return internalError(c)
	}

	business := model.Business{
		OwnerID:     user.ID,
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Phone:       req.Phone,
		Email:       req.Email,
		Website:     req.Website,
		Currency:    strings.ToLower(req.Currency),
		Timezone:    req.Timezone,
	}
	if business.Currency == "" {
		business.Currency = "usd"
	}
	if business.Timezone == "" {
		business.Timezone = "UTC"
	}
	if err := tx.Create(&business).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to create business", zap.Error(err))
		return internalError(c)
	}

	now := time.Now()
	member := model.TeamMember{
		BusinessID:  business.ID,
		UserID:      &user.ID,
		Email:       user.Email,
		Role:        model.RoleOwner,
		Status:      model.MemberActive,
		InviteToken: uuid.NewString(),
		JoinedAt:    &now,
	}
	if err := tx.Create(&member).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to create owner membership", zap.Error(err))
		return internalError(c)
	}

	sub := model.Subscription{BusinessID: business.ID, Plan: model.PlanFree, Status: model.SubscriptionActive}
	if err := tx.Create(&sub).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to create subscription", zap.Error(err))
		return internalError(c)
	}

	if user.DefaultBusinessID == nil {
		if err := tx.Model(&user).Update("default_business_id", business.ID).Error; err != nil {
			tx.Rollback()
			log.Error("Failed to set default business", zap.Error(err))
			return internalError(c)
		}
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit transaction", zap.Error(err))
		return internalError(c)
	}

	member.Business = &business
	token, _, err := issueToken(&user, &member)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("Business created",
		zap.Uint("business_id", business.ID),
		zap.String("slug", business.Slug),
		zap.Uint("owner_id", user.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"business": business,
		"token":    token,
	})
}

// ListBusinesses returns the businesses the user is an active member of
func ListBusinesses(c echo.Context) error {
	log := logger.FromContext(c)
	userID, _ := middleware.GetUserID(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var members []model.TeamMember
	if err := database.GetDB().Preload("Business").
		Where("user_id = ? AND status = ?", userID, model.MemberActive).
		Order("id").
		Find(&members).Error; err != nil {
		log.Error("Failed to list businesses", zap.Error(err))
		return internalError(c)
	}

	result := make([]echo.Map, 0, len(members))
	for _, m := range members {
		if m.Business == nil {
			continue
		}
		result = append(result, echo.Map{
			"id":   m.Business.ID,
			"name": m.Business.Name,
			"slug": m.Business.Slug,
			"role": m.Role,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"businesses": result})
}

func GetBusiness(c echo.Context) error {
	businessID, _ := tenant(c)

	var business model.Business
	if err := database.GetDB().First(&business, businessID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}
	return c.JSON(http.StatusOK, business)
}

// UpdateBusiness patches the profile, branding and chatbot settings
func UpdateBusiness(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("business", "update")

	var req struct {
		Name            *string `json:"name"`
		Description     *string `json:"description"`
		Category        *string `json:"category"`
		Location        *string `json:"location"`
		Phone           *string `json:"phone"`
		Email           *string `json:"email"`
		Website         *string `json:"website"`
		LogoURL         *string `json:"logo_url"`
		PrimaryColor    *string `json:"primary_color"`
		Timezone        *string `json:"timezone"`
		Currency        *string `json:"currency"`
		ChatbotEnabled  *bool   `json:"chatbot_enabled"`
		ChatbotGreeting *string `json:"chatbot_greeting"`
		ChatbotTone     *string `json:"chatbot_tone"`
		Active          *bool   `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	setString := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
	}
	setString("name", req.Name)
	setString("description", req.Description)
	setString("category", req.Category)
	setString("location", req.Location)
	setString("phone", req.Phone)
	setString("email", req.Email)
	setString("website", req.Website)
	setString("logo_url", req.LogoURL)
	setString("primary_color", req.PrimaryColor)
	setString("timezone", req.Timezone)
	setString("chatbot_greeting", req.ChatbotGreeting)
	setString("chatbot_tone", req.ChatbotTone)
	if req.Currency != nil {
		cur := strings.ToLower(strings.TrimSpace(*req.Currency))
		if len(cur) != 3 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency must be an ISO 4217 code"})
		}
		updates["currency"] = cur
	}
	if req.ChatbotEnabled != nil {
		updates["chatbot_enabled"] = *req.ChatbotEnabled
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	db := database.GetDB()
	var business model.Business
	if err := db.First(&business, businessID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}

	if len(updates) > 0 {
		defer prometheus.TrackDBOperation("update")(time.Now())
		if err := db.Model(&business).Updates(updates).Error; err != nil {
			log.Error("Failed to update business", zap.Error(err))
			return internalError(c)
		}
		db.First(&business, businessID)
		chatbot.Invalidate(c.Request().Context(), deps.Cache, businessID)
	}

	log.Info("Business updated", zap.Uint("business_id", businessID), zap.Int("fields", len(updates)))
	return c.JSON(http.StatusOK, business)
}

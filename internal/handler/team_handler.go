package handler

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/events"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/mailer"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/middleware"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/notify"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func ListTeam(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)

	var members []model.TeamMember
	if err := database.GetDB().
		Where("business_id = ? AND status <> ?", businessID, model.MemberRemoved).
		Order("id").
		Find(&members).Error; err != nil {
		log.Error("Failed to list team", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"members": members})
}

// InviteMember emails an invitation to join the current business
func InviteMember(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("team", "invite")

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.Email = normalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = model.RoleStaff
	}
	if _, err := mail.ParseAddress(req.Email); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a valid email is required"})
	}
	if !model.ValidRole(req.Role) || req.Role == model.RoleOwner {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin, staff or viewer"})
	}

	db := database.GetDB()
	var business model.Business
	if err := db.First(&business, businessID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "business not found"})
	}

	var member model.TeamMember
	err := db.Where("business_id = ? AND email = ?", businessID, req.Email).First(&member).Error
	switch {
	case err == nil && member.Status != model.MemberRemoved:
		return c.JSON(http.StatusConflict, echo.Map{"error": "this email is already a member or invited"})
	case err == nil:
		// a removed member is invited again on the same row
		if err := db.Model(&member).Updates(map[string]interface{}{
			"role":         req.Role,
			"status":       model.MemberInvited,
			"invite_token": uuid.NewString(),
			"user_id":      nil,
			"joined_at":    nil,
		}).Error; err != nil {
			log.Error("Failed to re-invite member", zap.Error(err))
			return internalError(c)
		}
		db.First(&member, member.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		member = model.TeamMember{
			BusinessID:  businessID,
			Email:       req.Email,
			Role:        req.Role,
			Status:      model.MemberInvited,
			InviteToken: uuid.NewString(),
		}
		if err := db.Create(&member).Error; err != nil {
			log.Error("Failed to create invitation", zap.Error(err))
			return internalError(c)
		}
	default:
		log.Error("Failed to look up member", zap.Error(err))
		return internalError(c)
	}

	ctx := c.Request().Context()
	mailer.SendAsync(ctx, deps.Mailer,
		mailer.TeamInvite(member.Email, business.Name, member.Role, frontendURL("/team/accept?token="+member.InviteToken)))
	events.Emit(ctx, deps.Publisher, events.TeamMemberInvited, businessID, echo.Map{
		"member_id": member.ID,
		"email":     member.Email,
		"role":      member.Role,
	})

	log.Info("Team member invited",
		zap.Uint("business_id", businessID),
		zap.String("email", member.Email),
		zap.String("role", member.Role))
	return c.JSON(http.StatusCreated, member)
}

// AcceptInvite joins the caller to the inviting business and returns a token scoped to it
func AcceptInvite(c echo.Context) error {
	log := logger.FromContext(c)
	userID, _ := middleware.GetUserID(c)

	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}

	db := database.GetDB()
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	var member model.TeamMember
	if err := db.Preload("Business").
		Where("invite_token = ? AND status = ?", req.Token, model.MemberInvited).
		First(&member).Error; err != nil || member.Business == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invitation not found or already used"})
	}
	if !strings.EqualFold(member.Email, user.Email) {
		log.Warn("Invitation email mismatch", zap.Uint("user_id", user.ID), zap.Uint("member_id", member.ID))
		prometheus.RecordAuthError("invite_email_mismatch")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "this invitation was sent to a different email"})
	}

	now := time.Now()
	res := db.Model(&model.TeamMember{}).
		Where("id = ? AND status = ?", member.ID, model.MemberInvited).
		Updates(map[string]interface{}{
			"user_id":      user.ID,
			"status":       model.MemberActive,
			"joined_at":    now,
			"invite_token": uuid.NewString(),
		})
	if res.Error != nil {
		log.Error("Failed to accept invitation", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invitation not found or already used"})
	}
	member.UserID = &user.ID
	member.Status = model.MemberActive
	member.JoinedAt = &now

	if user.DefaultBusinessID == nil {
		db.Model(&user).Update("default_business_id", member.BusinessID)
	}

	token, business, err := issueToken(&user, &member)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	notify.Owner(c.Request().Context(), db, member.BusinessID, notify.TypeTeam,
		"Invitation accepted", user.Email+" joined as "+member.Role, "/dashboard/team")
	log.Info("Invitation accepted", zap.Uint("user_id", user.ID), zap.Uint("business_id", member.BusinessID))
	return c.JSON(http.StatusOK, echo.Map{"token": token, "business": business})
}

func loadMember(c echo.Context) (*model.TeamMember, error) {
	businessID, _ := tenant(c)
	id, ok := paramID(c, "id")
	if !ok {
		return nil, invalidID(c)
	}
	var member model.TeamMember
	if err := database.GetDB().
		Where("id = ? AND business_id = ? AND status <> ?", id, businessID, model.MemberRemoved).
		First(&member).Error; err != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
	}
	return &member, nil
}

func UpdateMemberRole(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("team", "update_role")
	member, err := loadMember(c)
	if member == nil {
		return err
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if !model.ValidRole(req.Role) || req.Role == model.RoleOwner {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin, staff or viewer"})
	}
	if member.Role == model.RoleOwner {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "the owner's role cannot be changed"})
	}

	if err := database.GetDB().Model(member).Update("role", req.Role).Error; err != nil {
		log.Error("Failed to update role", zap.Error(err))
		return internalError(c)
	}
	member.Role = req.Role
	log.Info("Member role changed", zap.Uint("member_id", member.ID), zap.String("role", req.Role))
	return c.JSON(http.StatusOK, member)
}

func RemoveMember(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("team", "remove")
	member, err := loadMember(c)
	if member == nil {
		return err
	}
	if member.Role == model.RoleOwner {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "the owner cannot be removed"})
	}

	if err := database.GetDB().Model(member).Updates(map[string]interface{}{
		"status":       model.MemberRemoved,
		"invite_token": uuid.NewString(),
	}).Error; err != nil {
		log.Error("Failed to remove member", zap.Error(err))
		return internalError(c)
	}
	log.Info("Member removed", zap.Uint("member_id", member.ID))
	return c.NoContent(http.StatusNoContent)
}

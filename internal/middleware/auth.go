package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/jwtutil"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthMiddleware validates the JWT token from the Authorization header
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Warn("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)

		if claims.BusinessID != nil {
			c.Set("business_id", *claims.BusinessID)
			c.Set("business_name", claims.BusinessName)
			c.Set("user_role", claims.Role)
			log.Debug("Request authenticated with business context",
				zap.Uint("business_id", *claims.BusinessID),
				zap.String("role", claims.Role))
		}

		return next(c)
	}
}

// RequireBusinessContext rejects tokens that were not scoped to a business.
// The member row is authoritative: removed members are rejected and the
// current role replaces the one signed into the token.
func RequireBusinessContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)
		businessID, ok := GetBusinessID(c)
		if !ok {
			log.Warn("JWT token does not contain business_id")
			prometheus.RecordAuthError("missing_business_context")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "select a business first"})
		}
		userID, _ := GetUserID(c)

		var member model.TeamMember
		err := database.GetDB().WithContext(c.Request().Context()).
			Select("id", "role").
			Where("user_id = ? AND business_id = ? AND status = ?", userID, businessID, model.MemberActive).
			First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("Token business membership is no longer active",
				zap.Uint("user_id", userID),
				zap.Uint("business_id", businessID))
			prometheus.RecordAuthError("membership_revoked")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "you are not a member of this business"})
		}
		if err != nil {
			log.Error("Failed to load membership", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}

		c.Set("user_role", member.Role)
		return next(c)
	}
}

// RequireRole allows the request when the member role is at least min
func RequireRole(min string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := GetRole(c)
			if !model.RoleAtLeast(role, min) {
				logger.FromContext(c).Warn("Insufficient role",
					zap.String("role", role),
					zap.String("required", min))
				prometheus.RecordAuthError("insufficient_role")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient permissions"})
			}
			return next(c)
		}
	}
}

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c echo.Context) (uint, bool) {
	userID, ok := c.Get("user_id").(uint)
	return userID, ok
}

// GetBusinessID retrieves the business ID from the context
// Returns 0, false if business ID is not found
func GetBusinessID(c echo.Context) (uint, bool) {
	businessID, ok := c.Get("business_id").(uint)
	return businessID, ok
}

// GetRole retrieves the member role in the current business
func GetRole(c echo.Context) string {
	role, _ := c.Get("user_role").(string)
	return role
}

// GetEmail retrieves the authenticated email from the context
func GetEmail(c echo.Context) string {
	email, _ := c.Get("email").(string)
	return email
}

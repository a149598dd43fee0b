package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/oauthlogin"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/cache"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const oauthStateTTL = 10 * time.Minute

func stateKey(state string) string {
	return "oauth:state:" + state
}

// OAuthLogin redirects to the provider consent page
func OAuthLogin(c echo.Context) error {
	log := logger.FromContext(c)

	provider, err := deps.OAuth.Get(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}

	state := uuid.NewString()
	if err := deps.Cache.Set(c.Request().Context(), stateKey(state), provider.Name, oauthStateTTL); err != nil {
		log.Error("Failed to store OAuth state", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start login"})
	}

	return c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// OAuthCallback completes the provider login and hands the token to the dashboard
func OAuthCallback(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	provider, err := deps.OAuth.Get(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}

	if errParam := c.QueryParam("error"); errParam != "" {
		log.Warn("OAuth provider returned an error", zap.String("provider", provider.Name), zap.String("error", errParam))
		prometheus.RecordAuthError("oauth_denied")
		return c.Redirect(http.StatusFound, frontendURL("/login?error="+url.QueryEscape(errParam)))
	}

	state, code := c.QueryParam("state"), c.QueryParam("code")
	if state == "" || code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "state and code are required"})
	}

	// the state is consumed even when it belongs to another provider
	stored, err := deps.Cache.Take(ctx, stateKey(state))
	if errors.Is(err, cache.ErrMiss) || (err == nil && stored != provider.Name) {
		log.Warn("Invalid OAuth state", zap.String("provider", provider.Name))
		prometheus.RecordAuthError("oauth_invalid_state")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired login state"})
	}
	if err != nil {
		log.Error("Failed to read OAuth state", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	token, profile, err := provider.Exchange(ctx, code)
	if errors.Is(err, oauthlogin.ErrNoEmail) {
		prometheus.RecordAuthError("oauth_no_email")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err != nil {
		log.Error("OAuth exchange failed", zap.String("provider", provider.Name), zap.Error(err))
		prometheus.RecordAuthError("oauth_exchange_failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "login provider request failed"})
	}

	db := database.GetDB()
	user, err := oauthlogin.LinkAccount(ctx, db, profile, token)
	if err != nil {
		log.Error("Failed to link OAuth account", zap.Error(err))
		return internalError(c)
	}

	jwt, _, err := issueToken(user, defaultMembership(db, user))
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	prometheus.LoginCounter.Inc()
	log.Info("User logged in with OAuth", zap.String("provider", provider.Name), zap.Uint("user_id", user.ID))
	return c.Redirect(http.StatusFound, frontendURL("/auth/callback?token="+url.QueryEscape(jwt)))
}

package handler

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/mailer"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/middleware"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/cache"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/jwtutil"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 8
	resetTokenTTL     = time.Hour
)

var errNotMember = errors.New("not a member of this business")

func resetKey(token string) string {
	return "pwreset:" + token
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userJSON(u *model.User) echo.Map {
	return echo.Map{
		"id":                  u.ID,
		"email":               u.Email,
		"name":                u.Name,
		"avatar_url":          u.AvatarURL,
		"default_business_id": u.DefaultBusinessID,
	}
}

// membership loads the active membership of a user in a business with the business row
func membership(db *gorm.DB, userID, businessID uint) (*model.TeamMember, error) {
	var m model.TeamMember
	err := db.Preload("Business").
		Where("user_id = ? AND business_id = ? AND status = ?", userID, businessID, model.MemberActive).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && m.Business == nil) {
		return nil, errNotMember
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// issueToken signs a token, scoped to the membership's business when one is given
func issueToken(u *model.User, m *model.TeamMember) (string, echo.Map, error) {
	if m == nil {
		token, err := jwtutil.GenerateToken(u.Email, u.ID)
		return token, nil, err
	}
	token, err := jwtutil.GenerateTokenWithBusiness(u.Email, u.ID, m.BusinessID, m.Business.Name, m.Role)
	if err != nil {
		return "", nil, err
	}
	return token, echo.Map{
		"id":   m.BusinessID,
		"name": m.Business.Name,
		"slug": m.Business.Slug,
		"role": m.Role,
	}, nil
}

// defaultMembership resolves the business a login should be scoped to
func defaultMembership(db *gorm.DB, u *model.User) *model.TeamMember {
	if u.DefaultBusinessID != nil {
		if m, err := membership(db, u.ID, *u.DefaultBusinessID); err == nil {
			return m
		}
	}
	// fall back to the oldest active membership
	var m model.TeamMember
	if err := db.Preload("Business").
		Where("user_id = ? AND status = ?", u.ID, model.MemberActive).
		Order("id").First(&m).Error; err != nil || m.Business == nil {
		return nil
	}
	return &m
}

func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		log.Warn("Invalid registration data",
			zap.String("email", req.Email),
			zap.Bool("password_provided", req.Password != ""))
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email address"})
	}
	if len(req.Password) < minPasswordLength {
		prometheus.RecordAuthError("weak_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var existingUser model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&existingUser)
	if result.Error == nil {
		log.Warn("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	user := model.User{
		Email:    req.Email,
		Password: string(hashedPassword),
		Name:     strings.TrimSpace(req.Name),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered", zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user":    userJSON(&user),
	})
}

func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		BusinessID *uint  `json:"business_id,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.Email = normalizeEmail(req.Email)

	defer prometheus.TrackDBOperation("query")(time.Now())
	db := database.GetDB()
	var user model.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// OAuth-only accounts have no hash and cannot log in with a password
	if !user.HasPassword() || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	var m *model.TeamMember
	if req.BusinessID != nil {
		var err error
		m, err = membership(db, user.ID, *req.BusinessID)
		if err != nil {
			log.Warn("User does not have access to the specified business",
				zap.String("email", req.Email),
				zap.Uint("business_id", *req.BusinessID))
			prometheus.RecordAuthError("business_access_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied to the specified business"})
		}
	} else {
		m = defaultMembership(db, &user)
	}

	token, business, err := issueToken(&user, m)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	response := echo.Map{
		"token": token,
		"user":  userJSON(&user),
	}
	if business != nil {
		response["business"] = business
		log.Info("User logged in with business context",
			zap.String("email", user.Email),
			zap.Uint("business_id", m.BusinessID),
			zap.String("role", m.Role))
	} else {
		log.Info("User logged in", zap.String("email", user.Email))
	}

	return c.JSON(http.StatusOK, response)
}

// ForgotPassword emails a single-use reset link. The response never reveals whether the account exists.
func ForgotPassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.Email = normalizeEmail(req.Email)

	ok := c.JSON(http.StatusOK, echo.Map{"message": "if the account exists a reset link has been sent"})
	if req.Email == "" {
		return ok
	}

	var user model.User
	if err := database.GetDB().Where("email = ?", req.Email).First(&user).Error; err != nil {
		log.Info("Password reset requested for unknown email")
		return ok
	}

	token := uuid.NewString()
	ctx := c.Request().Context()
	if err := deps.Cache.Set(ctx, resetKey(token), user.Email, resetTokenTTL); err != nil {
		log.Error("Failed to store reset token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start password reset"})
	}

	mailer.SendAsync(ctx, deps.Mailer, mailer.PasswordReset(user.Email, frontendURL("/reset-password?token="+token)))
	log.Info("Password reset link issued", zap.Uint("user_id", user.ID))
	return ok
}

func ResetPassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}
	if len(req.Password) < minPasswordLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	email, err := deps.Cache.Take(c.Request().Context(), resetKey(req.Token))
	if errors.Is(err, cache.ErrMiss) {
		prometheus.RecordAuthError("invalid_reset_token")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}
	if err != nil {
		log.Error("Failed to read reset token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password reset failed"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	res := database.GetDB().Model(&model.User{}).Where("email = ?", email).Update("password", string(hashed))
	if res.Error != nil {
		log.Error("Failed to update password", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}

	log.Info("Password reset", zap.String("email", email))
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// GetProfile returns the current user
func GetProfile(c echo.Context) error {
	userID, _ := middleware.GetUserID(c)

	var user model.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	resp := userJSON(&user)
	resp["has_password"] = user.HasPassword()
	if businessID, ok := middleware.GetBusinessID(c); ok {
		resp["business_id"] = businessID
		resp["role"] = middleware.GetRole(c)
	}
	return c.JSON(http.StatusOK, resp)
}

func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)
	userID, _ := middleware.GetUserID(c)

	var req struct {
		Name      *string `json:"name"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}

	db := database.GetDB()
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			log.Error("Failed to update profile", zap.Error(err))
			return internalError(c)
		}
		db.First(&user, userID)
	}
	return c.JSON(http.StatusOK, userJSON(&user))
}

func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)
	userID, _ := middleware.GetUserID(c)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if len(req.NewPassword) < minPasswordLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	db := database.GetDB()
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	// OAuth-only users may set a first password without a current one
	if user.HasPassword() && bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}
	if err := db.Model(&user).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to update password", zap.Error(err))
		return internalError(c)
	}

	log.Info("Password changed", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// SelectBusiness issues a token scoped to another business of the user
func SelectBusiness(c echo.Context) error {
	log := logger.FromContext(c)
	userID, _ := middleware.GetUserID(c)

	var req struct {
		BusinessID  uint `json:"business_id"`
		MakeDefault bool `json:"make_default"`
	}
	if err := c.Bind(&req); err != nil || req.BusinessID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "business_id is required"})
	}

	db := database.GetDB()
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	m, err := membership(db, user.ID, req.BusinessID)
	if errors.Is(err, errNotMember) {
		prometheus.RecordAuthError("business_access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied to the specified business"})
	}
	if err != nil {
		log.Error("Failed to load membership", zap.Error(err))
		return internalError(c)
	}

	if req.MakeDefault {
		if err := db.Model(&user).Update("default_business_id", req.BusinessID).Error; err != nil {
			log.Error("Failed to update default business", zap.Error(err))
			return internalError(c)
		}
	}

	token, business, err := issueToken(&user, m)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("Business selected", zap.Uint("user_id", user.ID), zap.Uint("business_id", req.BusinessID))
	return c.JSON(http.StatusOK, echo.Map{"token": token, "business": business})
}

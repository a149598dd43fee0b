package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

var jwtConfig *config.JWTConfig

// UserClaims carries the user and, once selected, the business context
type UserClaims struct {
	Email        string `json:"email"`
	UserID       uint   `json:"user_id"`
	BusinessID   *uint  `json:"business_id,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Role         string `json:"role,omitempty"` // User's role in the current business
	jwt.RegisteredClaims
}

// Initialize sets up the JWT utility with configuration
func Initialize(config *config.JWTConfig) {
	jwtConfig = config
}

// GenerateToken creates a new JWT token for a user without business context
func GenerateToken(email string, userID uint) (string, error) {
	return generateTokenWithClaims(email, userID, nil, "", "")
}

// GenerateTokenWithBusiness creates a new JWT token scoped to a business
func GenerateTokenWithBusiness(email string, userID uint, businessID uint, businessName, role string) (string, error) {
	return generateTokenWithClaims(email, userID, &businessID, businessName, role)
}

func generateTokenWithClaims(email string, userID uint, businessID *uint, businessName, role string) (string, error) {
	if jwtConfig == nil {
		return "", errors.New("JWT configuration not initialized")
	}

	claims := &UserClaims{
		Email:        email,
		UserID:       userID,
		BusinessID:   businessID,
		BusinessName: businessName,
		Role:         role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(jwtConfig.ExpirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtConfig.SigningKey))
}

// ValidateToken validates the token and returns the claims
func ValidateToken(tokenString string) (*UserClaims, error) {
	if jwtConfig == nil {
		return nil, errors.New("JWT configuration not initialized")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtConfig.SigningKey), nil
		},
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

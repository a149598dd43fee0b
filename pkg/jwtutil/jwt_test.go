package jwtutil

import (
	"testing"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})

	token, err := GenerateTokenWithBusiness("a@example.com", 7, 3, "Surf Co", "owner")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, uint(7), claims.UserID)
	require.NotNil(t, claims.BusinessID)
	assert.Equal(t, uint(3), *claims.BusinessID)
	assert.Equal(t, "Surf Co", claims.BusinessName)
	assert.Equal(t, "owner", claims.Role)
}

func TestTokenWithoutBusiness(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})

	token, err := GenerateToken("b@example.com", 1)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.BusinessID)
}

func TestValidateRejectsForeignKey(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "key-one", ExpirationHours: 1})
	token, err := GenerateToken("c@example.com", 1)
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "key-two", ExpirationHours: 1})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: -1})
	token, err := GenerateToken("d@example.com", 1)
	require.NoError(t, err)

	_, err = ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/config"
)

func getTestConfig() *config.Config {
	return &config.Config{
		JWTSecret: []byte("test-secret-key-for-testing"),
	}
}

func TestGenerateAndValidateJWT(t *testing.T) {
	cfg := getTestConfig()

	token, exp, err := GenerateJWT("student-42", []Role{RoleUser, RoleViewer}, 10*time.Minute, cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.InDelta(t, time.Now().Add(10*time.Minute).Unix(), exp, 5)

	claims, err := ValidateJWT(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, "student-42", claims.UserID())
	assert.Equal(t, []string{"user", "viewer"}, claims.Roles)
	assert.True(t, claims.HasPermission(RoleViewer))
	assert.False(t, claims.HasPermission(RoleAdmin))
}

func TestGenerateJWT_Errors(t *testing.T) {
	cfg := getTestConfig()

	_, _, err := GenerateJWT("", []Role{RoleUser}, time.Minute, cfg)
	assert.ErrorIs(t, err, ErrMissingSubject)

	_, _, err = GenerateJWT("u", []Role{"superuser"}, time.Minute, cfg)
	assert.Error(t, err)
}

func TestValidateJWT_Rejects(t *testing.T) {
	cfg := getTestConfig()

	expired := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	expiredToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString(cfg.JWTSecret)
	require.NoError(t, err)

	otherSecret, _, err := GenerateJWT("u", nil, time.Minute, &config.Config{JWTSecret: []byte("other")})
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{}).SignedString(cfg.JWTSecret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expiredToken,
		"wrong secret": otherSecret,
		"no subject":   noSubject,
		"alg none":     unsigned,
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateJWT(token, cfg)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestRoleHasPermission(t *testing.T) {
	assert.True(t, RoleAdmin.HasPermission(RoleViewer))
	assert.True(t, RoleAdmin.HasPermission(RoleUser))
	assert.True(t, RoleViewer.HasPermission(RoleViewer))
	assert.False(t, RoleViewer.HasPermission(RoleAdmin))
	assert.False(t, RoleUser.HasPermission(RoleViewer))

	roles, ok := ParseRoles([]string{"admin", "user"})
	assert.True(t, ok)
	assert.Equal(t, []Role{RoleAdmin, RoleUser}, roles)

	_, ok = ParseRoles([]string{"root"})
	assert.False(t, ok)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{JWTSecret: []byte("middleware-test-secret")}
}

func token(t *testing.T, cfg *config.Config, subject string, roles ...auth.Role) string {
	t.Helper()
	tok, _, err := auth.GenerateJWT(subject, roles, time.Minute, cfg)
	require.NoError(t, err)
	return tok
}

func TestJWTMiddleware(t *testing.T) {
	cfg := testConfig()

	var gotUser string
	var gotRoles []string
	handler := JWTMiddleware(cfg, auth.RoleViewer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = GetUserID(r.Context())
		gotRoles, _ = GetRoles(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + token(t, cfg, "u1", auth.RoleUser), http.StatusForbidden},
		{"viewer", "Bearer " + token(t, cfg, "u2", auth.RoleViewer), http.StatusNoContent},
		{"admin without prefix", token(t, cfg, "u3", auth.RoleAdmin), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/costs/daily", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}

	assert.Equal(t, "u3", gotUser)
	assert.Equal(t, []string{"admin"}, gotRoles)
}

func TestJWTMiddleware_AnyValidToken(t *testing.T) {
	cfg := testConfig()
	handler := JWTMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, HasRole(r.Context(), auth.RoleUser))
		assert.False(t, HasRole(r.Context(), auth.RoleAdmin))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/orchestrate", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, cfg, "u1", auth.RoleUser))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

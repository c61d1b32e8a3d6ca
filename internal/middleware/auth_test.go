package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-at-least-32-characters"

func newRouter(roles ...model.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}

	r := gin.New()
	r.GET("/protected", AuthMiddleware(cfg), RoleMiddleware(roles...), func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		util.Success(c, gin.H{"userId": claims.UserID})
	})
	return r
}

func tokenFor(t *testing.T, role model.UserRole, secret string) string {
	t.Helper()
	user := &model.User{Email: "someone@example.com", Role: role}
	user.ID = 7
	token, err := util.GenerateJWT(user, 0, secret, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"malformed token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + tokenFor(t, model.RoleSupervisor, "another-secret-another-secret-xx"), http.StatusUnauthorized},
		{"valid supervisor", "Bearer " + tokenFor(t, model.RoleSupervisor, testSecret), http.StatusOK},
	}

	r := newRouter(model.RoleSupervisor)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter(model.RoleSupervisor)

	tests := []struct {
		role model.UserRole
		want int
	}{
		{model.RoleSupervisor, http.StatusOK},
		{model.RoleAdmin, http.StatusOK},
		{model.RoleCandidate, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, tt.role, testSecret))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

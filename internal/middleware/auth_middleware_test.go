package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/jwt"
)

const testIssuer = "ferry-api-test"

func setupTestJWTService() *jwt.Service {
	return jwt.NewService("test-access-secret-key-123456789", testIssuer, time.Hour)
}

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Tracking())
	return router
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router := setupTestRouter()

	token, err := jwtService.GenerateAccessToken(jwt.Identity{
		UserID:    "user-1",
		Type:      "AGENT",
		AgencyID:  "agency-1",
		Currency:  "PHP",
		Name:      "Juan Dela Cruz",
		SessionID: "session-1",
	})
	require.NoError(t, err)

	var got models.Principal
	router.GET("/protected", AuthMiddleware(jwtService, setupTestLogger()), func(c *gin.Context) {
		principal, exists := GetPrincipal(c)
		require.True(t, exists)
		got = principal
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "AGENT", got.Type)
	assert.Equal(t, "agency-1", got.AgencyID)
	assert.Equal(t, "session-1", got.SessionKey())
	assert.Equal(t, "Juan Dela Cruz", got.Name)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	jwtService := setupTestJWTService()

	expiredService := jwt.NewService("test-access-secret-key-123456789", testIssuer, -time.Minute)
	expired, err := expiredService.GenerateAccessToken(jwt.Identity{UserID: "user-1"})
	require.NoError(t, err)

	foreign, err := jwt.NewService("another-secret-key-000000000000", testIssuer, time.Hour).
		GenerateAccessToken(jwt.Identity{UserID: "user-1"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		header    string
		wantError string
		wantCode  string
	}{
		{"Missing Header", "", "unauthorized", "MISSING_AUTH_HEADER"},
		{"Wrong Scheme", "Basic abc123", "unauthorized", "INVALID_AUTH_FORMAT"},
		{"No Token", "Bearer", "unauthorized", "INVALID_AUTH_FORMAT"},
		{"Blank Token", "Bearer    ", "unauthorized", "INVALID_AUTH_FORMAT"},
		{"Garbage Token", "Bearer not.a.jwt", "invalid_token", "INVALID_TOKEN"},
		{"Foreign Signature", "Bearer " + foreign, "invalid_token", "INVALID_TOKEN"},
		{"Expired Token", "Bearer " + expired, "token_expired", "TOKEN_EXPIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			reached := false
			router.GET("/protected", AuthMiddleware(jwtService, setupTestLogger()), func(c *gin.Context) {
				reached = true
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.False(t, reached)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantError, body["error"])
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotContains(t, w.Body.String(), "test-access-secret")
		})
	}
}

func TestRequireUserType(t *testing.T) {
	jwtService := setupTestJWTService()
	logger := setupTestLogger()

	tests := []struct {
		name     string
		userType string
		want     int
	}{
		{"Admin Allowed", "ADMIN", http.StatusOK},
		{"Lowercase Admin Allowed", "admin", http.StatusOK},
		{"Agent Forbidden", "AGENT", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/admin", AuthMiddleware(jwtService, logger), RequireUserType("ADMIN", "SUPERADMIN"), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			token, err := jwtService.GenerateAccessToken(jwt.Identity{UserID: "u1", Type: tt.userType})
			require.NoError(t, err)

			req := httptest.NewRequest("GET", "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("Without Auth Middleware", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/admin", RequireUserType("ADMIN"), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "MISSING_USER_CONTEXT", decodeBody(t, w)["code"])
	})
}

func TestGetPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Present", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(PrincipalContextKey, models.Principal{UserID: "u1"})

		principal, exists := GetPrincipal(c)
		assert.True(t, exists)
		assert.Equal(t, "u1", principal.UserID)
	})

	t.Run("Missing", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		_, exists := GetPrincipal(c)
		assert.False(t, exists)
	})

	t.Run("Wrong Type", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(PrincipalContextKey, "u1")
		_, exists := GetPrincipal(c)
		assert.False(t, exists)
	})
}

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshlanuevo/ferry-api/internal/models"
)

func TestTracking(t *testing.T) {
	t.Run("Reuses Caller Id", func(t *testing.T) {
		router := setupTestRouter()
		var fromCtx, fromGin string
		router.GET("/ping", func(c *gin.Context) {
			fromCtx = models.TrackingID(c.Request.Context())
			fromGin = GetTrackingID(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set(TrackingHeader, "corr-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "corr-123", w.Header().Get(TrackingHeader))
		assert.Equal(t, "corr-123", fromCtx)
		assert.Equal(t, "corr-123", fromGin)
	})

	t.Run("Generates Id", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

		_, err := uuid.Parse(w.Header().Get(TrackingHeader))
		assert.NoError(t, err)
	})

	t.Run("Replaces Oversized Id", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set(TrackingHeader, strings.Repeat("x", 500))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get(TrackingHeader), 36)
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	router := setupTestRouter()
	router.Use(RequestLogger(logger))
	router.GET("/api/v1/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest("GET", "/api/v1/items/42?verbose=1", nil)
	req.Header.Set(TrackingHeader, "corr-log")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusTeapot, w.Code)
	line := buf.String()
	assert.Contains(t, line, `"status":418`)
	assert.Contains(t, line, `"tracking_id":"corr-log"`)
	assert.Contains(t, line, `"has_auth":true`)
	assert.Contains(t, line, `"query":"verbose=1"`)
	assert.Contains(t, line, "Chrome")
	assert.Contains(t, line, `"level":"warning"`)
	assert.NotContains(t, line, "secret-token")
}

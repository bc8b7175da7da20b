package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Joshlanuevo/ferry-api/internal/models"
)

const (
	// TrackingHeader carries the request tracking id in and out
	TrackingHeader = "X-Correlation-ID"

	trackingContextKey = "tracking_id"
	maxTrackingIDLen   = 128
)

// Tracking assigns every request a tracking id, reusing the caller's
// X-Correlation-ID when present, and echoes it in the response header.
func Tracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID := c.GetHeader(TrackingHeader)
		if trackingID == "" || len(trackingID) > maxTrackingIDLen {
			trackingID = uuid.NewString()
		}

		c.Set(trackingContextKey, trackingID)
		c.Request = c.Request.WithContext(models.WithTrackingID(c.Request.Context(), trackingID))
		c.Header(TrackingHeader, trackingID)

		c.Next()
	}
}

// GetTrackingID returns the tracking id of the request, or "" before Tracking ran
func GetTrackingID(c *gin.Context) string {
	return c.GetString(trackingContextKey)
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/metrics"
	"github.com/Joshlanuevo/ferry-api/internal/utils"
)

// RequestLogger logs every request once it completes and records its latency
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, latency)

		client := utils.ParseUserAgent(utils.GetUserAgent(c))
		fields := logrus.Fields{
			"status":      status,
			"method":      c.Request.Method,
			"path":        path,
			"query":       c.Request.URL.RawQuery,
			"ip":          utils.GetRealIP(c),
			"latency_ms":  latency.Milliseconds(),
			"browser":     client.Browser,
			"os":          client.OS,
			"device_type": client.DeviceType,
			"has_auth":    c.GetHeader("Authorization") != "",
			"tracking_id": GetTrackingID(c),
		}
		if principal, ok := GetPrincipal(c); ok {
			fields["user_id"] = principal.UserID
		}
		if client.IsBot {
			fields["is_bot"] = true
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("Request completed")
		case status >= 400:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

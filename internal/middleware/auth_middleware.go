package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/jwt"
)

// PrincipalContextKey is the key used to store the caller in Gin context
const PrincipalContextKey = "principal"

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields := logrus.Fields{
			"path":        c.Request.URL.Path,
			"ip":          c.ClientIP(),
			"tracking_id": GetTrackingID(c),
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.WithFields(fields).Warn("AUTH FAILED: Missing authorization header")
			abortUnauthorized(c, "unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.WithFields(fields).Warn("AUTH FAILED: Invalid auth format")
			abortUnauthorized(c, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			logger.WithFields(fields).Warn("AUTH FAILED: Empty token")
			abortUnauthorized(c, "unauthorized", "Token cannot be empty", "INVALID_AUTH_FORMAT")
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			fields["error"] = err.Error()
			if errors.Is(err, gojwt.ErrTokenExpired) {
				logger.WithFields(fields).Warn("AUTH FAILED: Token expired")
				abortUnauthorized(c, "token_expired", "Access token has expired. Please log in again.", "TOKEN_EXPIRED")
			} else {
				logger.WithFields(fields).Warn("AUTH FAILED: Invalid token")
				abortUnauthorized(c, "invalid_token", "Invalid access token", "INVALID_TOKEN")
			}
			return
		}

		c.Set(PrincipalContextKey, models.Principal{
			UserID:      claims.UserID,
			Type:        claims.Type,
			AgencyID:    claims.AgencyID,
			AccessLevel: claims.AccessLevel,
			Currency:    claims.Currency,
			Name:        claims.Name,
			SessionID:   claims.SessionID,
		})

		c.Next()
	}
}

// RequireUserType creates a middleware that admits only the given account types.
// Matching is case-insensitive.
func RequireUserType(types ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, exists := GetPrincipal(c)
		if !exists {
			abortUnauthorized(c, "unauthorized", "User context not found. Auth middleware may not be applied.", "MISSING_USER_CONTEXT")
			return
		}

		for _, t := range types {
			if strings.EqualFold(principal.Type, t) {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You don't have permission to access this resource",
			"code":    "INSUFFICIENT_PERMISSIONS",
		})
		c.Abort()
	}
}

// GetPrincipal retrieves the authenticated caller from Gin context
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(PrincipalContextKey)
	if !exists {
		return models.Principal{}, false
	}

	principal, ok := value.(models.Principal)
	if !ok {
		return models.Principal{}, false
	}

	return principal, true
}

func abortUnauthorized(c *gin.Context, errorKind, message, code string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   errorKind,
		"message": message,
		"code":    code,
	})
	c.Abort()
}

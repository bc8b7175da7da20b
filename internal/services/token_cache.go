package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Joshlanuevo/ferry-api/internal/database"
	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
)

// defaultTokenLifetime applies when the gateway omits expires_in
const defaultTokenLifetime = 3600 * time.Second

// TokenCacheConfig holds token cache settings
type TokenCacheConfig struct {
	Buffer time.Duration    // subtracted from the gateway lifetime
	Now    func() time.Time // clock, time.Now when nil
}

// TokenCache shares one gateway bearer token across requests and instances.
// The in-memory copy is authoritative for this process; the store copy lets
// other instances and restarts reuse a live token.
type TokenCache struct {
	gateway ferry.Gateway
	store   *database.TokenRepository
	buffer  time.Duration
	now     func() time.Time
	logger  *logrus.Logger

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	rejected  string

	group singleflight.Group
}

// NewTokenCache creates a new TokenCache
func NewTokenCache(gateway ferry.Gateway, store *database.TokenRepository, cfg TokenCacheConfig, logger *logrus.Logger) *TokenCache {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenCache{
		gateway: gateway,
		store:   store,
		buffer:  cfg.Buffer,
		now:     now,
		logger:  logger,
	}
}

// GetToken returns a live token, authenticating only when none is cached
func (c *TokenCache) GetToken(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		if token, ok := c.loadStored(ctx); ok {
			return token, nil
		}
		return c.authenticate(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Refresh authenticates unconditionally and replaces the cached token
func (c *TokenCache) Refresh(ctx context.Context) (string, error) {
	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		return c.authenticate(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RefreshIfExpiring refreshes the token when it expires within window.
// It reports whether a refresh happened.
func (c *TokenCache) RefreshIfExpiring(ctx context.Context, window time.Duration) (bool, error) {
	c.mu.RLock()
	expiresAt := c.expiresAt
	c.mu.RUnlock()

	if expiresAt.IsZero() {
		if stored, err := c.store.Load(ctx); err == nil && stored != nil {
			expiresAt = stored.ExpiresAt
		}
	}
	if !expiresAt.IsZero() && c.now().Add(window).Before(expiresAt) {
		return false, nil
	}

	if _, err := c.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate drops the token after the gateway rejected it. The stored
// copy of the same token is ignored from then on.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	if c.token != "" {
		c.rejected = c.token
	}
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *TokenCache) loadStored(ctx context.Context) (string, bool) {
	stored, err := c.store.Load(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to load stored ferry token")
		return "", false
	}
	if stored == nil || stored.Token == "" || !c.now().Before(stored.ExpiresAt) {
		return "", false
	}
	c.mu.RLock()
	rejected := stored.Token == c.rejected
	c.mu.RUnlock()
	if rejected {
		return "", false
	}
	c.set(stored.Token, stored.ExpiresAt)
	return stored.Token, true
}

func (c *TokenCache) authenticate(ctx context.Context) (string, error) {
	trackingID := models.TrackingID(ctx)

	resp, err := c.gateway.Authenticate(ctx, trackingID)
	if err != nil {
		c.logger.WithError(err).WithField("tracking_id", trackingID).Error("Ferry authentication failed")
		return "", &models.AuthUnavailableError{Err: err}
	}
	if resp.AccessToken == "" {
		return "", &models.AuthUnavailableError{Err: fmt.Errorf("empty access token")}
	}

	lifetime := time.Duration(resp.ExpiresIn) * time.Second
	if resp.ExpiresIn <= 0 {
		lifetime = defaultTokenLifetime
	}
	now := c.now()
	expiresAt := now.Add(lifetime - c.buffer)

	if err := c.store.Save(ctx, resp.AccessToken, expiresAt, now); err != nil {
		c.logger.WithError(err).Warn("Failed to persist ferry token")
	}
	c.set(resp.AccessToken, expiresAt)

	c.logger.WithFields(logrus.Fields{
		"tracking_id": trackingID,
		"expires_at":  expiresAt.Format(time.RFC3339),
	}).Info("Ferry token refreshed")

	return resp.AccessToken, nil
}

func (c *TokenCache) set(token string, expiresAt time.Time) {
	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()
}

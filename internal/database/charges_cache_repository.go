package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
)

// ChargesCacheRepository keeps the latest computed charges of each session
type ChargesCacheRepository struct {
	store DocumentStore
	ttl   time.Duration
	now   func() time.Time
}

// NewChargesCacheRepository creates a cache whose entries live for ttl
func NewChargesCacheRepository(store DocumentStore, ttl time.Duration) *ChargesCacheRepository {
	return &ChargesCacheRepository{store: store, ttl: ttl, now: time.Now}
}

// Put replaces the cached charges of a session
func (r *ChargesCacheRepository) Put(ctx context.Context, sessionKey, userID string, charges ferry.ComputedCharges, request *ferry.ComputeChargesRequest) error {
	now := r.now().UTC()
	entry := models.ChargesCacheEntry{
		SessionKey: sessionKey,
		UserID:     userID,
		Charges:    charges,
		Request:    request,
		ExpiresAt:  now.Add(r.ttl),
		CreatedAt:  now,
	}
	if err := r.store.Set(ctx, models.CollectionSessionCharges, sessionKey, entry); err != nil {
		return fmt.Errorf("failed to cache charges: %w", err)
	}
	return nil
}

// Get returns the cached charges of a session, or nil if absent or expired
func (r *ChargesCacheRepository) Get(ctx context.Context, sessionKey string) (*models.ChargesCacheEntry, error) {
	var entry models.ChargesCacheEntry
	err := r.store.Get(ctx, models.CollectionSessionCharges, sessionKey, &entry)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached charges: %w", err)
	}
	if !r.now().Before(entry.ExpiresAt) {
		return nil, nil
	}
	return &entry, nil
}

// Delete drops the cached charges of a session
func (r *ChargesCacheRepository) Delete(ctx context.Context, sessionKey string) error {
	if err := r.store.Delete(ctx, models.CollectionSessionCharges, sessionKey); err != nil {
		return fmt.Errorf("failed to delete cached charges: %w", err)
	}
	return nil
}

// DeleteExpired removes every entry that expired before now and returns the count
func (r *ChargesCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	docs, err := r.store.Query(ctx, models.CollectionSessionCharges, QueryOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to list cached charges: %w", err)
	}

	removed := 0
	for _, doc := range docs {
		var entry models.ChargesCacheEntry
		if err := doc.Decode(&entry); err != nil {
			return removed, err
		}
		if now.Before(entry.ExpiresAt) {
			continue
		}
		if err := r.store.Delete(ctx, models.CollectionSessionCharges, doc.ID); err != nil {
			return removed, fmt.Errorf("failed to delete cached charges %s: %w", doc.ID, err)
		}
		removed++
	}
	return removed, nil
}

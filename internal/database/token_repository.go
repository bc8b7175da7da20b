package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/sealbox"
)

// TokenRepository persists the shared gateway bearer token, sealed at rest
type TokenRepository struct {
	store DocumentStore
	box   *sealbox.Box
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(store DocumentStore, box *sealbox.Box) *TokenRepository {
	return &TokenRepository{store: store, box: box}
}

// Load returns the stored token with Token opened, or nil if none is stored
func (r *TokenRepository) Load(ctx context.Context) (*models.FerryAuthToken, error) {
	var stored models.FerryAuthToken
	err := r.store.Get(ctx, models.CollectionFerryAuthTokens, models.FerryAuthTokenDocID, &stored)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ferry token: %w", err)
	}

	plain, err := r.box.Open(stored.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to open ferry token: %w", err)
	}
	stored.Token = plain
	return &stored, nil
}

// Save seals and stores the token
func (r *TokenRepository) Save(ctx context.Context, token string, expiresAt, createdAt time.Time) error {
	sealed, err := r.box.Seal(token)
	if err != nil {
		return fmt.Errorf("failed to seal ferry token: %w", err)
	}

	doc := models.FerryAuthToken{
		Token:     sealed,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: createdAt.UTC(),
	}
	if err := r.store.Set(ctx, models.CollectionFerryAuthTokens, models.FerryAuthTokenDocID, doc); err != nil {
		return fmt.Errorf("failed to save ferry token: %w", err)
	}
	return nil
}

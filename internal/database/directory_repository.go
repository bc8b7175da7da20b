package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Joshlanuevo/ferry-api/internal/models"
)

// DirectoryRepository reads users, agencies and access levels
type DirectoryRepository struct {
	store DocumentStore
}

// NewDirectoryRepository creates a new DirectoryRepository
func NewDirectoryRepository(store DocumentStore) *DirectoryRepository {
	return &DirectoryRepository{store: store}
}

// GetUser retrieves a user by id, or nil if not found
func (r *DirectoryRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	found, err := r.get(ctx, models.CollectionUsers, userID, &user)
	if err != nil || !found {
		return nil, err
	}
	if user.ID == "" {
		user.ID = userID
	}
	return &user, nil
}

// GetAgency retrieves an agency by id, or nil if not found
func (r *DirectoryRepository) GetAgency(ctx context.Context, agencyID string) (*models.Agency, error) {
	var agency models.Agency
	found, err := r.get(ctx, models.CollectionAgencies, agencyID, &agency)
	if err != nil || !found {
		return nil, err
	}
	if agency.ID == "" {
		agency.ID = agencyID
	}
	return &agency, nil
}

// GetAccessLevel retrieves an access level by id, or nil if not found
func (r *DirectoryRepository) GetAccessLevel(ctx context.Context, accessLevelID string) (*models.AccessLevel, error) {
	var level models.AccessLevel
	found, err := r.get(ctx, models.CollectionAccessLevels, accessLevelID, &level)
	if err != nil || !found {
		return nil, err
	}
	if level.ID == "" {
		level.ID = accessLevelID
	}
	return &level, nil
}

func (r *DirectoryRepository) get(ctx context.Context, collection, id string, dst interface{}) (bool, error) {
	if id == "" {
		return false, nil
	}
	if err := r.store.Get(ctx, collection, id, dst); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return true, nil
}

package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/database"
	"github.com/Joshlanuevo/ferry-api/internal/models"
)

// AdminUserTypes are the account types that bypass wallet checks
var AdminUserTypes = []string{models.UserTypeAdmin, models.UserTypeSuperAdmin}

// IsAdmin reports whether a user type bypasses wallet checks
func IsAdmin(userType string) bool {
	switch strings.ToUpper(strings.TrimSpace(userType)) {
	case models.UserTypeAdmin, models.UserTypeSuperAdmin:
		return true
	}
	return false
}

// AccessPolicy resolves users and the wallet that pays for their bookings
type AccessPolicy struct {
	directory *database.DirectoryRepository
	logger    *logrus.Logger
}

// NewAccessPolicy creates a new AccessPolicy
func NewAccessPolicy(directory *database.DirectoryRepository, logger *logrus.Logger) *AccessPolicy {
	return &AccessPolicy{directory: directory, logger: logger}
}

// LoadUser returns the stored user of the principal. Principals without a
// user document fall back to their token claims.
func (p *AccessPolicy) LoadUser(ctx context.Context, principal models.Principal) (*models.User, error) {
	user, err := p.directory.GetUser(ctx, principal.UserID)
	if err != nil {
		return nil, &models.StoreError{Op: "load user", Err: err}
	}
	if user == nil {
		p.logger.WithField("user_id", principal.UserID).Warn("User document not found, using token claims")
		return principal.AsUser(), nil
	}
	return user, nil
}

// ResolveWalletOwner returns the id of the wallet a user's purchases debit.
// Sub-agents on a shared-wallet access level spend from their parent's wallet.
func (p *AccessPolicy) ResolveWalletOwner(ctx context.Context, user *models.User) (string, error) {
	if !strings.EqualFold(user.Type, models.UserTypeSubAgent) {
		return user.ID, nil
	}

	level, err := p.directory.GetAccessLevel(ctx, user.AccessLevel)
	if err != nil {
		return "", &models.StoreError{Op: "load access level", Err: err}
	}
	if level == nil || !level.IsSharedWallet {
		return user.ID, nil
	}

	if strings.Contains(strings.ToLower(user.ID), "admin") || strings.Contains(strings.ToLower(user.AgencyID), "admin") {
		return user.ID, nil
	}

	parentID := user.UserID
	if user.ID == user.AgencyID {
		agency, err := p.directory.GetAgency(ctx, user.AgencyID)
		if err != nil {
			return "", &models.StoreError{Op: "load agency", Err: err}
		}
		if agency == nil || agency.MasterAgentID == "" {
			return "", &models.ConfigurationError{Message: "Invalid parent partner"}
		}
		parentID = agency.MasterAgentID
	}

	parent, err := p.directory.GetUser(ctx, parentID)
	if err != nil {
		return "", &models.StoreError{Op: "load parent user", Err: err}
	}
	if parent == nil {
		return "", &models.ConfigurationError{Message: "Invalid parent company"}
	}

	p.logger.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"wallet_id": parent.ID,
	}).Debug("Resolved shared wallet owner")

	return parent.ID, nil
}

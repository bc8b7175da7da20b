package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Joshlanuevo/ferry-api/internal/models"
)

// WalletRepository reads wallet balances and funds on hold.
// Balances are written only through LedgerRepository.
type WalletRepository struct {
	store DocumentStore
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(store DocumentStore) *WalletRepository {
	return &WalletRepository{store: store}
}

// GetBalance returns the balance projection of a wallet, or nil if none exists
func (r *WalletRepository) GetBalance(ctx context.Context, walletID string) (*models.WalletBalance, error) {
	var balance models.WalletBalance
	if err := r.store.Get(ctx, models.CollectionBalances, walletID, &balance); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get balance of %s: %w", walletID, err)
	}
	return &balance, nil
}

// ListActiveFundsOnHold returns the active holds of a user in currency
func (r *WalletRepository) ListActiveFundsOnHold(ctx context.Context, userID, currency string) ([]models.FundsOnHold, error) {
	docs, err := r.store.Query(ctx, models.CollectionFundsOnHold, QueryOptions{
		Filters: []Filter{
			Where("userId", userID),
			Where("status", models.FundsOnHoldStatusActive),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list funds on hold of %s: %w", userID, err)
	}

	holds := make([]models.FundsOnHold, 0, len(docs))
	for _, doc := range docs {
		var hold models.FundsOnHold
		if err := doc.Decode(&hold); err != nil {
			return nil, err
		}
		if hold.Currency != currency {
			continue
		}
		hold.ID = doc.ID
		holds = append(holds, hold)
	}
	return holds, nil
}

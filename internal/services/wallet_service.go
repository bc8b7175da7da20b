package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/database"
	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/money"
)

// WalletService reads balances and funds on hold and gates purchases on them
type WalletService struct {
	wallets *database.WalletRepository
	logger  *logrus.Logger
}

// NewWalletService creates a new WalletService
func NewWalletService(wallets *database.WalletRepository, logger *logrus.Logger) *WalletService {
	return &WalletService{wallets: wallets, logger: logger}
}

// GetBalance returns the balance of a wallet, zero if it has none yet
func (s *WalletService) GetBalance(ctx context.Context, walletID, currency string) (*models.WalletBalance, error) {
	balance, err := s.wallets.GetBalance(ctx, walletID)
	if err != nil {
		return nil, &models.StoreError{Op: "get balance", Err: err}
	}
	if balance == nil {
		return &models.WalletBalance{
			UserID:   walletID,
			Total:    decimal.Zero,
			Currency: money.CurrencyOrDefault(currency),
			Last5:    []string{},
		}, nil
	}
	return balance, nil
}

// GetFundsOnHold sums the active holds of a user in currency
func (s *WalletService) GetFundsOnHold(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	holds, err := s.wallets.ListActiveFundsOnHold(ctx, userID, currency)
	if err != nil {
		return decimal.Zero, &models.StoreError{Op: "get funds on hold", Err: err}
	}

	amounts := make([]decimal.Decimal, 0, len(holds))
	for _, h := range holds {
		amounts = append(amounts, h.Amount)
	}
	return money.Sum(amounts, money.CurrencyScale, money.RoundHalfUp), nil
}

// HasSufficientFunds is the purchase gate: balance - pendingDebit - onHold >= 0
func HasSufficientFunds(balance, pendingDebit, onHold decimal.Decimal) bool {
	return !balance.Sub(pendingDebit).Sub(onHold).IsNegative()
}

// CheckFunds verifies that walletID can pay required. Holds placed on the
// wallet and, for a sub-agent spending a shared wallet, holds of the
// requesting user both count against it.
func (s *WalletService) CheckFunds(ctx context.Context, walletID, userID, currency string, required decimal.Decimal) error {
	balance, err := s.GetBalance(ctx, walletID, currency)
	if err != nil {
		return err
	}

	if balance.Total.LessThan(required) {
		return &models.InsufficientFundsError{
			Reason:   models.InsufficientReasonLowBalance,
			Balance:  balance.Total,
			Required: required,
			Currency: currency,
		}
	}

	onHold, err := s.GetFundsOnHold(ctx, walletID, currency)
	if err != nil {
		return err
	}
	if userID != "" && userID != walletID {
		own, err := s.GetFundsOnHold(ctx, userID, currency)
		if err != nil {
			return err
		}
		onHold = onHold.Add(own)
	}

	s.logger.WithFields(logrus.Fields{
		"wallet_id": walletID,
		"user_id":   userID,
		"balance":   balance.Total.String(),
		"required":  required.String(),
		"on_hold":   onHold.String(),
	}).Info("Checking balance with on-hold funds")

	if !HasSufficientFunds(balance.Total, required, onHold) {
		return &models.InsufficientFundsError{
			Reason:   models.InsufficientReasonFundsOnHold,
			Balance:  balance.Total,
			Required: required,
			OnHold:   onHold,
			Currency: currency,
		}
	}
	return nil
}

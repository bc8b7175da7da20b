package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/money"
)

// LedgerRepository handles user balance transactions and the balance projection
type LedgerRepository struct {
	store DocumentStore
	now   func() time.Time
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(store DocumentStore) *LedgerRepository {
	return &LedgerRepository{store: store, now: time.Now}
}

// Commit writes a new ledger entry, moves the wallet balance and, when booking
// is non-nil, writes the booking record. All three happen in one store
// transaction or not at all.
func (r *LedgerRepository) Commit(ctx context.Context, input models.LedgerEntryInput, booking *models.ActiveBooking) (*models.LedgerEntry, error) {
	entry, err := r.newEntry(input)
	if err != nil {
		return nil, &models.StoreError{Op: "commit ledger entry", Err: err}
	}
	walletID := entry.BalanceOwner()

	err = r.store.RunInTransaction(ctx, func(ctx context.Context, tx DocumentTx) error {
		balance, err := loadBalance(tx, walletID, entry.Currency)
		if err != nil {
			return err
		}

		if err := tx.Create(models.CollectionLedger, entry.TransactionID, entry); err != nil {
			return fmt.Errorf("failed to create transaction %s: %w", entry.TransactionID, err)
		}

		balance.Apply(entry.TransactionID, entry.Amount, entry.Timestamp)
		if err := tx.Set(models.CollectionBalances, walletID, balance); err != nil {
			return err
		}

		if booking != nil {
			booking.TransactionID = entry.TransactionID
			booking.UserID = entry.UserID
			booking.WalletID = walletID
			booking.Currency = entry.Currency
			booking.CreatedAt = entry.Timestamp
			if err := tx.Set(models.CollectionBookings, entry.TransactionID, booking); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &models.StoreError{Op: "commit ledger entry", Err: err}
	}

	return entry, nil
}

func (r *LedgerRepository) newEntry(input models.LedgerEntryInput) (*models.LedgerEntry, error) {
	amount := money.Debit(input.Amount)
	if input.Type.IsCredit() {
		amount = money.Credit(input.Amount)
	}

	var meta json.RawMessage
	if input.Meta != nil {
		encoded, err := json.Marshal(input.Meta)
		if err != nil {
			return nil, fmt.Errorf("failed to encode meta: %w", err)
		}
		meta = encoded
	}

	entry := &models.LedgerEntry{
		TransactionID: uuid.New().String(),
		UserID:        input.UserID,
		WalletID:      input.WalletID,
		CreatedBy:     input.CreatedBy,
		UserName:      input.UserName,
		Amount:        amount,
		BaseAmount:    amount,
		Currency:      money.CurrencyOrDefault(input.Currency),
		Type:          input.Type,
		ReferenceNo:   newReferenceNo(),
		Timestamp:     r.now().UTC(),
		CreditType:    models.CreditTypeWallet,
		Meta:          meta,
	}
	if entry.CreatedBy == "" {
		entry.CreatedBy = input.UserID
	}
	if input.AgentID != "" {
		agentID := input.AgentID
		entry.AgentID = &agentID
	}
	return entry, nil
}

// Get retrieves a ledger entry by transaction id
func (r *LedgerRepository) Get(ctx context.Context, transactionID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.store.Get(ctx, models.CollectionLedger, transactionID, &entry); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, &models.NotFoundError{Resource: "transaction", ID: transactionID}
		}
		return nil, &models.StoreError{Op: "get ledger entry", Err: err}
	}
	if entry.TransactionID == "" {
		entry.TransactionID = transactionID
	}
	return &entry, nil
}

// Refund writes the credit entry {id}_refund for original. Writing it again
// overwrites the same document; the balance is credited only the first time.
// Only debits can be refunded.
func (r *LedgerRepository) Refund(ctx context.Context, original *models.LedgerEntry, createdBy, agentID string) (*models.LedgerEntry, error) {
	if err := refundable(original); err != nil {
		return nil, err
	}

	amount := money.Credit(original.Amount)
	refund := &models.LedgerEntry{
		TransactionID:         original.RefundID(),
		UserID:                original.UserID,
		WalletID:              original.WalletID,
		CreatedBy:             createdBy,
		UserName:              original.UserName,
		Amount:                amount,
		BaseAmount:            amount,
		Currency:              money.CurrencyOrDefault(original.Currency),
		Type:                  models.TransactionTypeRefund,
		ReferenceNo:           newReferenceNo(),
		Timestamp:             r.now().UTC(),
		CreditType:            models.CreditTypeWallet,
		Meta:                  original.Meta,
		AgentID:               original.AgentID,
		OriginalTransactionID: original.TransactionID,
	}
	if refund.CreatedBy == "" {
		refund.CreatedBy = original.UserID
	}
	if agentID != "" {
		refund.AgentID = &agentID
	}
	walletID := refund.BalanceOwner()

	err := r.store.RunInTransaction(ctx, func(ctx context.Context, tx DocumentTx) error {
		// Lock the original first so concurrent refunds of it queue here
		var stored models.LedgerEntry
		if err := tx.Get(models.CollectionLedger, original.TransactionID, &stored); err != nil {
			if errors.Is(err, ErrDocumentNotFound) {
				return &models.NotFoundError{Resource: "transaction", ID: original.TransactionID}
			}
			return err
		}
		stored.TransactionID = original.TransactionID
		if err := refundable(&stored); err != nil {
			return err
		}

		var existing models.LedgerEntry
		err := tx.Get(models.CollectionLedger, refund.TransactionID, &existing)
		firstTime := errors.Is(err, ErrDocumentNotFound)
		if err != nil && !firstTime {
			return err
		}

		var balance *models.WalletBalance
		if firstTime {
			if balance, err = loadBalance(tx, walletID, refund.Currency); err != nil {
				return err
			}
		}

		if err := tx.Set(models.CollectionLedger, refund.TransactionID, refund); err != nil {
			return err
		}

		if firstTime {
			balance.Apply(refund.TransactionID, refund.Amount, refund.Timestamp)
			if err := tx.Set(models.CollectionBalances, walletID, balance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var notFound *models.NotFoundError
		var invalid *models.ValidationError
		if errors.As(err, &notFound) || errors.As(err, &invalid) {
			return nil, err
		}
		return nil, &models.StoreError{Op: "refund ledger entry", Err: err}
	}

	return refund, nil
}

// refundable rejects entries that did not take money out of a wallet
func refundable(entry *models.LedgerEntry) error {
	if entry.Type.IsCredit() || !entry.Amount.IsNegative() || strings.HasSuffix(entry.TransactionID, models.RefundSuffix) {
		return models.NewValidationError("transactionId", "Transaction %s is not a refundable debit", entry.TransactionID)
	}
	return nil
}

// GetBooking retrieves the active booking record of a transaction
func (r *LedgerRepository) GetBooking(ctx context.Context, transactionID string) (*models.ActiveBooking, error) {
	var booking models.ActiveBooking
	if err := r.store.Get(ctx, models.CollectionBookings, transactionID, &booking); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, &models.NotFoundError{Resource: "booking", ID: transactionID}
		}
		return nil, &models.StoreError{Op: "get booking", Err: err}
	}
	return &booking, nil
}

// Remove deletes the active booking record of a transaction
func (r *LedgerRepository) Remove(ctx context.Context, transactionID string) error {
	if err := r.store.Delete(ctx, models.CollectionBookings, transactionID); err != nil {
		return &models.StoreError{Op: "remove booking", Err: err}
	}
	return nil
}

func loadBalance(tx DocumentTx, walletID, currency string) (*models.WalletBalance, error) {
	var balance models.WalletBalance
	err := tx.Get(models.CollectionBalances, walletID, &balance)
	if errors.Is(err, ErrDocumentNotFound) {
		return &models.WalletBalance{UserID: walletID, Currency: currency}, nil
	}
	if err != nil {
		return nil, err
	}
	if balance.UserID == "" {
		balance.UserID = walletID
	}
	if balance.Currency == "" {
		balance.Currency = currency
	}
	return &balance, nil
}

// newReferenceNo returns the short human-facing reference of an entry
func newReferenceNo() string {
	return uuid.New().String()[:8]
}

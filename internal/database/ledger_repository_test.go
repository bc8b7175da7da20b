package database

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshlanuevo/ferry-api/internal/models"
)

// failingTxStore fails every transaction
type failingTxStore struct {
	*MemoryDocumentStore
}

func (s failingTxStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DocumentTx) error) error {
	return errors.New("store unavailable")
}

func seedBalance(t *testing.T, store DocumentStore, walletID string, total string) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), models.CollectionBalances, walletID, models.WalletBalance{
		UserID:   walletID,
		Total:    decimal.RequireFromString(total),
		Currency: "PHP",
	}))
}

func getBalance(t *testing.T, store DocumentStore, walletID string) models.WalletBalance {
	t.Helper()
	var balance models.WalletBalance
	require.NoError(t, store.Get(context.Background(), models.CollectionBalances, walletID, &balance))
	return balance
}

func TestLedgerRepository_Commit(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("Debit Is Stored Negative", func(t *testing.T) {
		store := NewMemoryDocumentStore()
		repo := NewLedgerRepository(store)
		repo.now = func() time.Time { return fixed }
		seedBalance(t, store, "wallet-1", "100")

		booking := &models.ActiveBooking{BookingReferenceNo: "BRN-1", PrintURL: "https://print/1", Total: decimal.NewFromInt(50)}
		entry, err := repo.Commit(ctx, models.LedgerEntryInput{
			UserID:   "sub-1",
			WalletID: "wallet-1",
			UserName: "Juan Cruz",
			Amount:   decimal.NewFromInt(50),
			Currency: "PHP",
			Type:     models.TransactionTypeFerry,
			Meta:     map[string]string{"booking_reference_no": "BRN-1"},
		}, booking)
		require.NoError(t, err)

		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-50)))
		assert.True(t, entry.BaseAmount.Equal(decimal.NewFromInt(-50)))
		assert.Equal(t, "sub-1", entry.CreatedBy)
		assert.Equal(t, models.CreditTypeWallet, entry.CreditType)
		assert.Len(t, entry.ReferenceNo, 8)
		assert.Equal(t, fixed, entry.Timestamp)

		var stored models.LedgerEntry
		require.NoError(t, store.Get(ctx, models.CollectionLedger, entry.TransactionID, &stored))
		assert.True(t, stored.Amount.IsNegative())
		assert.JSONEq(t, `{"booking_reference_no":"BRN-1"}`, string(stored.Meta))

		balance := getBalance(t, store, "wallet-1")
		assert.True(t, balance.Total.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, 1, balance.Count)
		assert.Equal(t, []string{entry.TransactionID}, balance.Last5)

		var record models.ActiveBooking
		require.NoError(t, store.Get(ctx, models.CollectionBookings, entry.TransactionID, &record))
		assert.Equal(t, "BRN-1", record.BookingReferenceNo)
		assert.Equal(t, "wallet-1", record.WalletID)
	})

	t.Run("Negative Input Stays Negative", func(t *testing.T) {
		store := NewMemoryDocumentStore()
		repo := NewLedgerRepository(store)

		entry, err := repo.Commit(ctx, models.LedgerEntryInput{
			UserID: "u1",
			Amount: decimal.NewFromInt(-75),
			Type:   models.TransactionTypeFerry,
		}, nil)
		require.NoError(t, err)
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-75)))
		assert.Equal(t, "PHP", entry.Currency)

		// Missing balance document starts from zero
		balance := getBalance(t, store, "u1")
		assert.True(t, balance.Total.Equal(decimal.NewFromInt(-75)))
		assert.Equal(t, 0, store.Count(models.CollectionBookings))
	})

	t.Run("Credit Types Stay Positive", func(t *testing.T) {
		store := NewMemoryDocumentStore()
		repo := NewLedgerRepository(store)

		entry, err := repo.Commit(ctx, models.LedgerEntryInput{
			UserID: "u1",
			Amount: decimal.NewFromInt(-20),
			Type:   models.TransactionTypeTopup,
		}, nil)
		require.NoError(t, err)
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(20)))
	})

	t.Run("Last5 Keeps Most Recent", func(t *testing.T) {
		store := NewMemoryDocumentStore()
		repo := NewLedgerRepository(store)

		var ids []string
		for i := 0; i < 7; i++ {
			entry, err := repo.Commit(ctx, models.LedgerEntryInput{
				UserID: "u1",
				Amount: decimal.NewFromInt(1),
				Type:   models.TransactionTypeFerry,
			}, nil)
			require.NoError(t, err)
			ids = append(ids, entry.TransactionID)
		}

		balance := getBalance(t, store, "u1")
		assert.Equal(t, 7, balance.Count)
		assert.Equal(t, []string{ids[6], ids[5], ids[4], ids[3], ids[2]}, balance.Last5)
	})

	t.Run("Store Failure Writes Nothing", func(t *testing.T) {
		mem := NewMemoryDocumentStore()
		repo := NewLedgerRepository(failingTxStore{mem})

		_, err := repo.Commit(ctx, models.LedgerEntryInput{
			UserID: "u1",
			Amount: decimal.NewFromInt(10),
			Type:   models.TransactionTypeFerry,
		}, &models.ActiveBooking{})

		var storeErr *models.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, 0, mem.Count(models.CollectionLedger))
		assert.Equal(t, 0, mem.Count(models.CollectionBookings))
	})
}

func TestLedgerRepository_Get(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	repo := NewLedgerRepository(store)

	_, err := repo.Get(ctx, "missing")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ID)

	entry, err := repo.Commit(ctx, models.LedgerEntryInput{
		UserID: "u1",
		Amount: decimal.NewFromInt(10),
		Type:   models.TransactionTypeFerry,
	}, nil)
	require.NoError(t, err)

	loaded, err := repo.Get(ctx, entry.TransactionID)
	require.NoError(t, err)
	assert.True(t, loaded.Amount.Equal(entry.Amount))
}

func TestLedgerRepository_Refund(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	repo := NewLedgerRepository(store)
	seedBalance(t, store, "wallet-1", "100")

	entry, err := repo.Commit(ctx, models.LedgerEntryInput{
		UserID:   "sub-1",
		WalletID: "wallet-1",
		UserName: "Juan Cruz",
		Amount:   decimal.RequireFromString("42.50"),
		Currency: "",
		Type:     models.TransactionTypeFerry,
		AgentID:  "agent-7",
		Meta:     map[string]string{"printUrl": "https://print/1"},
	}, &models.ActiveBooking{})
	require.NoError(t, err)
	assert.True(t, getBalance(t, store, "wallet-1").Total.Equal(decimal.RequireFromString("57.50")))

	// Refund twice: one document, balance credited once
	for i := 0; i < 2; i++ {
		refund, err := repo.Refund(ctx, entry, "sub-1", "")
		require.NoError(t, err)
		assert.Equal(t, entry.TransactionID+"_refund", refund.TransactionID)
		assert.True(t, refund.Amount.Equal(decimal.RequireFromString("42.50")))
		assert.Equal(t, models.TransactionTypeRefund, refund.Type)
		assert.Equal(t, "PHP", refund.Currency)
		require.NotNil(t, refund.AgentID)
		assert.Equal(t, "agent-7", *refund.AgentID)
		assert.Equal(t, entry.TransactionID, refund.OriginalTransactionID)
		assert.JSONEq(t, string(entry.Meta), string(refund.Meta))
	}

	assert.Equal(t, 2, store.Count(models.CollectionLedger))
	balance := getBalance(t, store, "wallet-1")
	assert.True(t, balance.Total.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 2, balance.Count)
	assert.Equal(t, entry.RefundID(), balance.Last5[0])
}

func TestLedgerRepository_RefundRejectsNonDebits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	repo := NewLedgerRepository(store)
	seedBalance(t, store, "u1", "100")

	purchase, err := repo.Commit(ctx, models.LedgerEntryInput{
		UserID: "u1",
		Amount: decimal.NewFromInt(50),
		Type:   models.TransactionTypeFerry,
	}, nil)
	require.NoError(t, err)
	refund, err := repo.Refund(ctx, purchase, "u1", "")
	require.NoError(t, err)

	topup, err := repo.Commit(ctx, models.LedgerEntryInput{
		UserID: "u1",
		Amount: decimal.NewFromInt(25),
		Type:   models.TransactionTypeTopup,
	}, nil)
	require.NoError(t, err)

	t.Run("Refund Entry", func(t *testing.T) {
		_, err := repo.Refund(ctx, refund, "u1", "")
		var invalid *models.ValidationError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("Credit Entry", func(t *testing.T) {
		_, err := repo.Refund(ctx, topup, "u1", "")
		var invalid *models.ValidationError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("Tampered Copy Of A Credit", func(t *testing.T) {
		forged := *topup
		forged.Type = models.TransactionTypeFerry
		forged.Amount = decimal.NewFromInt(-25)

		_, err := repo.Refund(ctx, &forged, "u1", "")
		var invalid *models.ValidationError
		assert.ErrorAs(t, err, &invalid, "stored entry is checked, not the caller's copy")
	})

	t.Run("Unknown Original", func(t *testing.T) {
		ghost := &models.LedgerEntry{TransactionID: "ghost", UserID: "u1", Amount: decimal.NewFromInt(-5), Type: models.TransactionTypeFerry}
		_, err := repo.Refund(ctx, ghost, "u1", "")
		var notFound *models.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	assert.Equal(t, 3, store.Count(models.CollectionLedger))
	assert.True(t, getBalance(t, store, "u1").Total.Equal(decimal.NewFromInt(125)))
}

func TestLedgerRepository_ConcurrentRefunds(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	repo := NewLedgerRepository(store)
	seedBalance(t, store, "u1", "100")

	entry, err := repo.Commit(ctx, models.LedgerEntryInput{
		UserID: "u1",
		Amount: decimal.NewFromInt(40),
		Type:   models.TransactionTypeFerry,
	}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Refund(ctx, entry, "u1", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, store.Count(models.CollectionLedger))
	balance := getBalance(t, store, "u1")
	assert.True(t, balance.Total.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 2, balance.Count)
}

// On Postgres the refund locks the original row before it looks for an
// existing refund, so two voids of one purchase queue on that row
func TestLedgerRepository_RefundLocksOriginal(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewLedgerRepository(store)
	lockedGet := regexp.QuoteMeta(`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`)
	upsert := `INSERT INTO documents .* ON CONFLICT \(collection, id\) DO UPDATE`

	original := &models.LedgerEntry{
		TransactionID: "tx-1",
		UserID:        "u1",
		Amount:        decimal.NewFromInt(-40),
		Currency:      "PHP",
		Type:          models.TransactionTypeFerry,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(lockedGet).
		WithArgs(models.CollectionLedger, "tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"userId":"u1","amount":"-40","type":"ferry"}`)))
	mock.ExpectQuery(lockedGet).
		WithArgs(models.CollectionLedger, "tx-1_refund").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectQuery(lockedGet).
		WithArgs(models.CollectionBalances, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"userId":"u1","total":"60","currency":"PHP"}`)))
	mock.ExpectExec(upsert).
		WithArgs(models.CollectionLedger, "tx-1_refund", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsert).
		WithArgs(models.CollectionBalances, "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	refund, err := repo.Refund(context.Background(), original, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "tx-1_refund", refund.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	repo := NewLedgerRepository(store)

	entry, err := repo.Commit(ctx, models.LedgerEntryInput{
		UserID: "u1",
		Amount: decimal.NewFromInt(10),
		Type:   models.TransactionTypeFerry,
	}, &models.ActiveBooking{BookingReferenceNo: "BRN-9"})
	require.NoError(t, err)

	booking, err := repo.GetBooking(ctx, entry.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "BRN-9", booking.BookingReferenceNo)

	require.NoError(t, repo.Remove(ctx, entry.TransactionID))

	_, err = repo.GetBooking(ctx, entry.TransactionID)
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	// The ledger entry itself is never removed
	_, err = repo.Get(ctx, entry.TransactionID)
	assert.NoError(t, err)
}

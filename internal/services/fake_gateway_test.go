package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Joshlanuevo/ferry-api/internal/database"
	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
	"github.com/Joshlanuevo/ferry-api/pkg/sealbox"
)

// fakeGateway is an in-memory ferry.Gateway
type fakeGateway struct {
	mu sync.Mutex

	authCalls int
	authErr   error
	expiresIn int

	voyages  []ferry.VoyageInfo
	charges  ferry.ComputedCharges
	printURL string

	createCalls  int
	createErrs   []error // returned in order before any confirmation
	confirmation ferry.TicketConfirmation
	onCreate     func()

	latestCalls int
	latest      []ferry.Ticket
	latestErr   error

	searchFrom, searchTo time.Time
	searched            []ferry.Ticket

	voidErrs map[string]error
	voided   []string
	onVoid   func()

	tokensSeen []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		expiresIn: 3600,
		charges:   ferry.ComputedCharges{Total: decimal.RequireFromString("50.00")},
		confirmation: ferry.TicketConfirmation{
			PrintURL:               "https://print.example/REF1",
			BookingReferenceNumber: "REF1",
		},
		latest:   []ferry.Ticket{testTicket("t1", "b1", "REF1")},
		printURL: "https://print.example/voucher",
		voidErrs: make(map[string]error),
	}
}

func (g *fakeGateway) Authenticate(ctx context.Context, trackingID string) (*ferry.AuthResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authCalls++
	if g.authErr != nil {
		return nil, g.authErr
	}
	return &ferry.AuthResponse{
		AccessToken: fmt.Sprintf("token-%d", g.authCalls),
		ExpiresIn:   g.expiresIn,
		TokenType:   "Bearer",
	}, nil
}

func (g *fakeGateway) SearchVoyages(ctx context.Context, token, trackingID string, req ferry.VoyageSearchRequest) ([]ferry.VoyageInfo, error) {
	g.seen(token)
	return g.voyages, nil
}

func (g *fakeGateway) ComputeCharges(ctx context.Context, token, trackingID string, req ferry.ComputeChargesRequest) (*ferry.ComputedCharges, error) {
	g.seen(token)
	g.mu.Lock()
	defer g.mu.Unlock()
	charges := g.charges
	return &charges, nil
}

func (g *fakeGateway) CreateTicket(ctx context.Context, token, trackingID string, req ferry.TicketRequest) (*ferry.TicketConfirmation, error) {
	g.seen(token)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.onCreate != nil {
		g.onCreate()
	}
	if len(g.createErrs) > 0 {
		err := g.createErrs[0]
		g.createErrs = g.createErrs[1:]
		return nil, err
	}
	confirmation := g.confirmation
	return &confirmation, nil
}

func (g *fakeGateway) SearchTickets(ctx context.Context, token, trackingID string, from, to time.Time) ([]ferry.Ticket, error) {
	g.seen(token)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.searchFrom, g.searchTo = from, to
	return g.searched, nil
}

func (g *fakeGateway) GetLatestTicket(ctx context.Context, token, trackingID, expectedRef string) ([]ferry.Ticket, error) {
	g.seen(token)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latestCalls++
	if g.latestErr != nil {
		return nil, g.latestErr
	}
	return g.latest, nil
}

func (g *fakeGateway) VoidTicket(ctx context.Context, token, trackingID, bookingID, remarks string) error {
	g.seen(token)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.onVoid != nil {
		g.onVoid()
	}
	if err := g.voidErrs[bookingID]; err != nil {
		return err
	}
	g.voided = append(g.voided, bookingID)
	return nil
}

func (g *fakeGateway) GetPrintURL(ctx context.Context, token, trackingID, transactionID string) (string, error) {
	g.seen(token)
	return g.printURL, nil
}

func (g *fakeGateway) seen(token string) {
	g.mu.Lock()
	g.tokensSeen = append(g.tokensSeen, token)
	g.mu.Unlock()
}

func (g *fakeGateway) counts() (auth, create, latest int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authCalls, g.createCalls, g.latestCalls
}

func testTicket(id, bookingID, ref string) ferry.Ticket {
	return ferry.Ticket{
		ID:               ferry.FlexString(id),
		BarkotaBookingID: ferry.FlexString(bookingID),
		Status:           "CONFIRMED",
		PassengerName:    "Juan Dela Cruz",
		TransactionInfo: ferry.TransactionInfo{
			BookingReferenceNumber: ferry.FlexString(ref),
		},
	}
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestTokenRepository(t *testing.T, store database.DocumentStore) *database.TokenRepository {
	t.Helper()
	box, err := sealbox.New(strings.Repeat("ab", 32))
	require.NoError(t, err)
	return database.NewTokenRepository(store, box)
}

func intPtr(v int) *int { return &v }

func testPassenger() *ferry.PassengerInfo {
	return &ferry.PassengerInfo{
		FirstName:    "Juan",
		LastName:     "Dela Cruz",
		Gender:       intPtr(1),
		Birthdate:    "1990-05-14",
		Nationality:  "Filipino",
		DiscountType: "NONE",
	}
}

func testChargesRequest() *ferry.ComputeChargesRequest {
	return &ferry.ComputeChargesRequest{
		PassengerList: []ferry.PassengerEntry{{
			Passenger:        testPassenger(),
			DeparturePriceID: "price-1",
		}},
	}
}

func testTicketRequest() *ferry.TicketRequest {
	return &ferry.TicketRequest{
		Passengers: []ferry.PassengerEntry{{
			Passenger:        testPassenger(),
			DeparturePriceID: "price-1",
		}},
		ContactInfo: &ferry.ContactInfo{
			Name:    "Juan Dela Cruz",
			Email:   "juan@example.com",
			Mobile:  "09171234567",
			Address: "Cebu City",
		},
		ReturnPrintURL: 1,
	}
}

// bookingHarness wires a FerryBookingService to a fake gateway and a document store
type bookingHarness struct {
	store   database.DocumentStore
	gateway *fakeGateway
	tokens  *TokenCache
	ledger  *database.LedgerRepository
	audit   *database.AuditRepository
	service *FerryBookingService
}

func newBookingHarness(t *testing.T) *bookingHarness {
	return newBookingHarnessWithStore(t, database.NewMemoryDocumentStore())
}

func newBookingHarnessWithStore(t *testing.T, store database.DocumentStore) *bookingHarness {
	t.Helper()
	logger := newTestLogger()
	gateway := newFakeGateway()

	tokens := NewTokenCache(gateway, newTestTokenRepository(t, store), TokenCacheConfig{Buffer: 5 * time.Minute}, logger)
	ledger := database.NewLedgerRepository(store)
	audit := database.NewAuditRepository(store, logger)

	cfg := DefaultFerryBookingConfig()
	cfg.ReconcileGrace = 0
	cfg.ReconcileBackoff = 0
	cfg.ReconcileAttempts = 2
	cfg.Now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }

	service := NewFerryBookingService(
		gateway,
		tokens,
		NewAccessPolicy(database.NewDirectoryRepository(store), logger),
		NewWalletService(database.NewWalletRepository(store), logger),
		NewKeyedLocker(),
		ledger,
		database.NewChargesCacheRepository(store, time.Hour),
		audit,
		cfg,
		logger,
	)

	return &bookingHarness{
		store:   store,
		gateway: gateway,
		tokens:  tokens,
		ledger:  ledger,
		audit:   audit,
		service: service,
	}
}

func (h *bookingHarness) seedUser(t *testing.T, user models.User) {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), models.CollectionUsers, user.ID, user))
}

func (h *bookingHarness) seedBalance(t *testing.T, walletID, total string) {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), models.CollectionBalances, walletID, models.WalletBalance{
		UserID:   walletID,
		Total:    decimal.RequireFromString(total),
		Currency: "PHP",
		Last5:    []string{},
	}))
}

func (h *bookingHarness) seedHold(t *testing.T, id, userID, amount string) {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), models.CollectionFundsOnHold, id, models.FundsOnHold{
		UserID:   userID,
		Currency: "PHP",
		Amount:   decimal.RequireFromString(amount),
		Status:   models.FundsOnHoldStatusActive,
	}))
}

func (h *bookingHarness) balance(t *testing.T, walletID string) decimal.Decimal {
	t.Helper()
	var balance models.WalletBalance
	require.NoError(t, h.store.Get(context.Background(), models.CollectionBalances, walletID, &balance))
	return balance.Total
}

func (h *bookingHarness) ledgerEntries(t *testing.T) []database.Document {
	t.Helper()
	docs, err := h.store.Query(context.Background(), models.CollectionLedger, database.QueryOptions{})
	require.NoError(t, err)
	return docs
}

func (h *bookingHarness) bookings(t *testing.T) []database.Document {
	t.Helper()
	docs, err := h.store.Query(context.Background(), models.CollectionBookings, database.QueryOptions{})
	require.NoError(t, err)
	return docs
}

// computeAndBuy runs compute charges then create ticket for principal
func (h *bookingHarness) computeAndBuy(ctx context.Context, principal models.Principal) (*models.PurchaseResult, error) {
	if _, err := h.service.ComputeCharges(ctx, principal, testChargesRequest()); err != nil {
		return nil, err
	}
	return h.service.CreateTicket(ctx, principal, testTicketRequest())
}

func agentUser(id string) models.User {
	return models.User{
		ID:        id,
		FirstName: "Juan",
		LastName:  "Dela Cruz",
		Type:      "AGENT",
		Currency:  "PHP",
	}
}

func principalFor(user models.User, session string) models.Principal {
	return models.Principal{
		UserID:    user.ID,
		Type:      user.Type,
		Currency:  user.Currency,
		Name:      user.FullName(),
		SessionID: session,
	}
}

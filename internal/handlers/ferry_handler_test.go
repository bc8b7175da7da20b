package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshlanuevo/ferry-api/internal/middleware"
	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
)

type stubBooking struct {
	err          error
	principal    models.Principal
	voidID       string
	voidRemarks  string
	printID      string
	criteria     models.TicketSearchCriteria
	searchCalled bool
}

func (s *stubBooking) Search(ctx context.Context, principal models.Principal, req *ferry.VoyageSearchRequest) ([]ferry.VoyageInfo, error) {
	s.principal = principal
	s.searchCalled = true
	if s.err != nil {
		return nil, s.err
	}
	return []ferry.VoyageInfo{{PassageRemarks: "on time"}}, nil
}

func (s *stubBooking) ComputeCharges(ctx context.Context, principal models.Principal, req *ferry.ComputeChargesRequest) (*ferry.ComputedCharges, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ferry.ComputedCharges{}, nil
}

func (s *stubBooking) CreateTicket(ctx context.Context, principal models.Principal, req *ferry.TicketRequest) (*models.PurchaseResult, error) {
	s.principal = principal
	if s.err != nil {
		return nil, s.err
	}
	return &models.PurchaseResult{Status: true, PrintURL: "https://print.example/REF1", BookingReferenceNumber: "REF1", TransactionID: "tx-1"}, nil
}

func (s *stubBooking) GetTickets(ctx context.Context, principal models.Principal, criteria models.TicketSearchCriteria) ([]ferry.Ticket, error) {
	s.criteria = criteria
	if s.err != nil {
		return nil, s.err
	}
	return []ferry.Ticket{}, nil
}

func (s *stubBooking) GetPrintURL(ctx context.Context, principal models.Principal, transactionID string) (string, error) {
	s.printID = transactionID
	if s.err != nil {
		return "", s.err
	}
	return "https://print.example/" + transactionID, nil
}

func (s *stubBooking) VoidBooking(ctx context.Context, principal models.Principal, transactionID, remarks string) (*models.VoidResult, error) {
	s.voidID, s.voidRemarks = transactionID, remarks
	if s.err != nil {
		return nil, s.err
	}
	return &models.VoidResult{TransactionID: transactionID, VoidedBookingIDs: []string{"b1"}, Refunded: true}, nil
}

type stubAudit struct {
	events    []*models.BookingAudit
	eventType models.BookingEventType
	limit     int
}

func (s *stubAudit) ListByTransaction(ctx context.Context, transactionID string) ([]*models.BookingAudit, error) {
	return s.events, nil
}

func (s *stubAudit) ListRecent(ctx context.Context, eventType models.BookingEventType, limit int) ([]*models.BookingAudit, error) {
	s.eventType, s.limit = eventType, limit
	return s.events, nil
}

var testPrincipal = models.Principal{UserID: "user-1", Type: "AGENT", SessionID: "session-1"}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fakeAuth(principal *models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal == nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(middleware.PrincipalContextKey, *principal)
		c.Next()
	}
}

func setupFerryRouter(booking *stubBooking, audit *stubAudit) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Tracking())

	principal := testPrincipal
	handler := NewFerryHandler(booking, audit, newTestLogger())
	handler.RegisterRoutes(router.Group("/api/v1"), fakeAuth(&principal), func(c *gin.Context) { c.Next() })
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TrackingHeader, "track-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestFerryHandler_Routes(t *testing.T) {
	t.Run("Search", func(t *testing.T) {
		booking := &stubBooking{}
		router := setupFerryRouter(booking, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/search", ferry.VoyageSearchRequest{Origin: 1, Destination: 2, PassengerCount: 1, DepartureDate: "2026-03-10"})

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, "success", resp.Status)
		assert.Equal(t, 200, resp.Code)
		assert.Equal(t, "track-1", resp.TrackingID)
		assert.Equal(t, "user-1", booking.principal.UserID)
	})

	t.Run("Create Ticket", func(t *testing.T) {
		router := setupFerryRouter(&stubBooking{}, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/create_ticket", ferry.TicketRequest{})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"booking_reference_no":"REF1"`)
		assert.Contains(t, w.Body.String(), `"transaction_id":"tx-1"`)
	})

	t.Run("Hold Booking Under Maintenance", func(t *testing.T) {
		router := setupFerryRouter(&stubBooking{}, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/hold_booking", gin.H{})

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Equal(t, "Ferry Module Is Under Maintenance Mode. We will notify once it's back.", decodeResponse(t, w).Message)
	})

	t.Run("Confirm Booking Acknowledges", func(t *testing.T) {
		router := setupFerryRouter(&stubBooking{}, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/confirm_booking", gin.H{})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"success":true`)
	})

	t.Run("Void Booking", func(t *testing.T) {
		booking := &stubBooking{}
		router := setupFerryRouter(booking, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/void_booking", models.VoidBookingRequest{TransactionID: "tx-9", Remarks: "customer cancelled"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "tx-9", booking.voidID)
		assert.Equal(t, "customer cancelled", booking.voidRemarks)
	})

	t.Run("Print URL", func(t *testing.T) {
		booking := &stubBooking{}
		router := setupFerryRouter(booking, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/print_url", models.PrintURLRequest{TransactionID: "tx-5"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "https://print.example/tx-5")
	})

	t.Run("Get Tickets Without Body", func(t *testing.T) {
		booking := &stubBooking{}
		router := setupFerryRouter(booking, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/get_tickets", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.TicketSearchCriteria{}, booking.criteria)
	})

	t.Run("Get Tickets With Window", func(t *testing.T) {
		booking := &stubBooking{}
		router := setupFerryRouter(booking, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/get_tickets", models.TicketSearchCriteria{DateFrom: "2026-03-01", DateTo: "2026-03-05"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2026-03-01", booking.criteria.DateFrom)
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		booking := &stubBooking{}
		router := setupFerryRouter(booking, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/search", "{not json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_JSON", decodeResponse(t, w).ErrorCode)
		assert.False(t, booking.searchCalled)
	})
}

func TestFerryHandler_Audit(t *testing.T) {
	audit := &stubAudit{events: []*models.BookingAudit{{ID: "a1", EventType: models.BookingEventVoidPartial}}}
	router := setupFerryRouter(&stubBooking{}, audit)

	t.Run("By Transaction", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/ferry/audit/tx-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"event_type":"void_partial"`)
	})

	t.Run("Recent", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/ferry/audit?event=ledger_commit_failed&limit=10", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.BookingEventLedgerCommitFailed, audit.eventType)
		assert.Equal(t, 10, audit.limit)
	})

	t.Run("Missing Event", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/ferry/audit", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Bad Limit", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/ferry/audit?event=void_partial&limit=0", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestFerryHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantInMsg  string
	}{
		{"Validation", models.NewValidationError("origin", "Origin must be a positive integer"), http.StatusBadRequest, "VALIDATION_ERROR", "Origin must be a positive integer"},
		{"Upstream Bad Request", &ferry.BadRequestError{Detail: "seat taken"}, http.StatusBadRequest, "BAD_REQUEST", "seat taken"},
		{"Upstream Error", &ferry.UpstreamError{Message: "Trip closed"}, http.StatusBadRequest, "UPSTREAM_ERROR", "Trip closed"},
		{"Precondition", &models.PreconditionError{Message: "No computed charges found. Please compute charges first."}, http.StatusPreconditionFailed, "PRECONDITION_FAILED", "compute charges first"},
		{"Insufficient Funds", &models.InsufficientFundsError{Reason: models.InsufficientReasonFundsOnHold, OnHold: decimal.NewFromInt(60), Currency: "PHP"}, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "60 PHP is still on hold"},
		{"Not Found", &models.NotFoundError{Resource: "transaction", ID: "tx-0"}, http.StatusNotFound, "NOT_FOUND", "tx-0"},
		{"Wallet Busy", &models.WalletBusyError{WalletID: "w1", Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, "WALLET_BUSY", "try again"},
		{"Auth Unavailable", &models.AuthUnavailableError{Err: errors.New("down")}, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "try again"},
		{"Auth Expired", &ferry.AuthExpiredError{Operation: "createTicket"}, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "try again"},
		{"Gateway Timeout", fmt.Errorf("failed to search: %w", &ferry.GatewayUnavailableError{Operation: "search", Err: context.DeadlineExceeded}), http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "try again"},
		{"Partial Void", &models.PartialVoidError{TransactionID: "tx-1", FailedIDs: []string{"b2"}}, http.StatusConflict, "PARTIAL_VOID", "No refund"},
		{"Reconciliation", &models.TicketReconciliationError{Attempts: 3, Err: ferry.ErrNoTicketsFound}, http.StatusBadGateway, "TICKET_NOT_CONFIRMED", "track-1"},
		{"Invalid Ticket Data", &models.InvalidTicketDataError{Reason: "missing bookingReferenceNumber"}, http.StatusBadGateway, "TICKET_NOT_CONFIRMED", "missing bookingReferenceNumber"},
		{"Missing Print URL", &ferry.MissingPrintURLError{}, http.StatusBadGateway, "BAD_GATEWAY", "No print URL"},
		{"Ledger Commit", &models.CriticalError{BookingReferenceNo: "REF1", Err: errors.New("tx aborted")}, http.StatusInternalServerError, "LEDGER_COMMIT_FAILED", "track-1"},
		{"Store Failure", &models.StoreError{Op: "get", Err: errors.New("connection reset")}, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error. Please contact our administrator and present this tracking ID: track-1"},
		{"Configuration", &models.ConfigurationError{Message: "Invalid parent company"}, http.StatusInternalServerError, "INTERNAL_ERROR", "track-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupFerryRouter(&stubBooking{err: tt.err}, &stubAudit{})

			w := doJSON(router, "POST", "/api/v1/ferry/create_ticket", ferry.TicketRequest{})

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
			assert.Contains(t, resp.Message, tt.wantInMsg)
			assert.Equal(t, "track-1", resp.TrackingID)
		})
	}

	t.Run("Internal Details Not Leaked", func(t *testing.T) {
		router := setupFerryRouter(&stubBooking{err: &models.StoreError{Op: "get", Err: errors.New("password=hunter2")}}, &stubAudit{})

		w := doJSON(router, "POST", "/api/v1/ferry/search", ferry.VoyageSearchRequest{})

		assert.NotContains(t, w.Body.String(), "hunter2")
	})
}

func TestFerryHandler_RequiresPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/v1/ferry/search", bytes.NewBufferString(`{}`))

	booking := &stubBooking{}
	NewFerryHandler(booking, &stubAudit{}, newTestLogger()).Search(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, booking.searchCalled)
}

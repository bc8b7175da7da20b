package models

import (
	"time"

	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
)

// PurchaseState tracks the ticket purchase workflow
type PurchaseState string

const (
	PurchaseStateChargesComputed PurchaseState = "CHARGES_COMPUTED"
	PurchaseStateValidated       PurchaseState = "VALIDATED"
	PurchaseStateTicketCreated   PurchaseState = "TICKET_CREATED"
	PurchaseStateLedgerCommitted PurchaseState = "LEDGER_COMMITTED"
	PurchaseStateFailed          PurchaseState = "FAILED"
)

// FerryAuthTokenDocID is the singleton document holding the gateway token
const FerryAuthTokenDocID = "currentToken"

// FerryAuthToken is the persisted gateway bearer token. Token is sealed at rest
// and ExpiresAt already includes the safety buffer.
type FerryAuthToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChargesCacheEntry holds the compute-charges result of a session
type ChargesCacheEntry struct {
	SessionKey string                       `json:"sessionKey"`
	UserID     string                       `json:"userId"`
	Charges    ferry.ComputedCharges        `json:"charges"`
	Request    *ferry.ComputeChargesRequest `json:"request,omitempty"`
	ExpiresAt  time.Time                    `json:"expiresAt"`
	CreatedAt  time.Time                    `json:"createdAt"`
}

// PurchaseResult is returned by a successful ticket purchase
type PurchaseResult struct {
	Status                 bool           `json:"status"`
	PrintURL               string         `json:"printUrl"`
	Data                   []ferry.Ticket `json:"data"`
	BookingReferenceNumber string         `json:"booking_reference_no"`
	TransactionID          string         `json:"transaction_id"`
}

// VoidResult is returned by a successful void
type VoidResult struct {
	TransactionID    string   `json:"transaction_id"`
	VoidedBookingIDs []string `json:"voided_booking_ids"`
	Refunded         bool     `json:"refunded"`
	RefundID         string   `json:"refund_id,omitempty"`
}

// TicketSearchCriteria is the get_tickets request body. Dates are YYYY-MM-DD.
type TicketSearchCriteria struct {
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
}

// VoidBookingRequest is the void_booking request body
type VoidBookingRequest struct {
	TransactionID string `json:"transactionId"`
	Remarks       string `json:"remarks"`
}

// PrintURLRequest is the print_url request body
type PrintURLRequest struct {
	TransactionID string `json:"transactionId"`
}

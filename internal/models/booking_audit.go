package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingEventType represents the type of booking audit event
type BookingEventType string

const (
	BookingEventPurchaseCommitted    BookingEventType = "purchase_committed"
	BookingEventPurchaseFailed       BookingEventType = "purchase_failed"
	BookingEventReconciliationFailed BookingEventType = "reconciliation_failed"
	BookingEventLedgerCommitFailed   BookingEventType = "ledger_commit_failed"
	BookingEventVoidCompleted        BookingEventType = "void_completed"
	BookingEventVoidPartial          BookingEventType = "void_partial"
	BookingEventRefundIssued         BookingEventType = "refund_issued"
	BookingEventBookingRemovalFailed BookingEventType = "booking_removal_failed"
)

// BookingAudit is an immutable audit log entry for purchase and void outcomes
type BookingAudit struct {
	ID            string           `json:"id"`
	EventType     BookingEventType `json:"event_type"`
	TransactionID *string          `json:"transaction_id,omitempty"`
	WalletID      *string          `json:"wallet_id,omitempty"`
	UserID        *string          `json:"user_id,omitempty"`

	// Booking identifiers from the gateway
	BookingReferenceNo *string  `json:"booking_reference_no,omitempty"`
	BookingIDs         []string `json:"booking_ids,omitempty"`
	PrintURL           *string  `json:"print_url,omitempty"`

	// Amount tracking
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Currency *string          `json:"currency,omitempty"`

	// Error tracking
	ErrorMessage *string `json:"error_message,omitempty"`
	ErrorCode    *string `json:"error_code,omitempty"`

	// Metadata
	CorrelationID *string                `json:"correlation_id,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewBookingAudit creates a new audit entry with required fields
func NewBookingAudit(eventType BookingEventType) *BookingAudit {
	return &BookingAudit{
		ID:        uuid.New().String(),
		EventType: eventType,
		CreatedAt: time.Now().UTC(),
	}
}

// SetTransaction sets the ledger transaction id
func (a *BookingAudit) SetTransaction(transactionID string) *BookingAudit {
	if transactionID != "" {
		a.TransactionID = &transactionID
	}
	return a
}

// SetParties sets the requesting user and the paying wallet
func (a *BookingAudit) SetParties(userID, walletID string) *BookingAudit {
	if userID != "" {
		a.UserID = &userID
	}
	if walletID != "" {
		a.WalletID = &walletID
	}
	return a
}

// SetBooking sets the gateway booking reference and print URL
func (a *BookingAudit) SetBooking(referenceNo, printURL string) *BookingAudit {
	if referenceNo != "" {
		a.BookingReferenceNo = &referenceNo
	}
	if printURL != "" {
		a.PrintURL = &printURL
	}
	return a
}

// SetBookingIDs sets the upstream booking ids involved in a void
func (a *BookingAudit) SetBookingIDs(ids []string) *BookingAudit {
	a.BookingIDs = append([]string(nil), ids...)
	return a
}

// SetAmount sets the amount and currency
func (a *BookingAudit) SetAmount(amount decimal.Decimal, currency string) *BookingAudit {
	a.Amount = &amount
	a.Currency = &currency
	return a
}

// SetError sets error information
func (a *BookingAudit) SetError(err error, code string) *BookingAudit {
	if err != nil {
		msg := err.Error()
		a.ErrorMessage = &msg
	}
	if code != "" {
		a.ErrorCode = &code
	}
	return a
}

// SetCorrelationID sets the request tracking id
func (a *BookingAudit) SetCorrelationID(id string) *BookingAudit {
	if id != "" {
		a.CorrelationID = &id
	}
	return a
}

// SetDetail adds one free-form detail
func (a *BookingAudit) SetDetail(key string, value interface{}) *BookingAudit {
	if a.Details == nil {
		a.Details = make(map[string]interface{})
	}
	a.Details[key] = value
	return a
}

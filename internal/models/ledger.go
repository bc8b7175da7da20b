package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeFerry               TransactionType = "ferry"
	TransactionTypeBus                 TransactionType = "bus"
	TransactionTypeFlight              TransactionType = "flight"
	TransactionTypeFlightNonLCC        TransactionType = "flightnonlcc"
	TransactionTypeHotel               TransactionType = "hotel"
	TransactionTypeInsurance           TransactionType = "insurance"
	TransactionTypeTopup               TransactionType = "topup"
	TransactionTypeVisa                TransactionType = "visa"
	TransactionTypeRefund              TransactionType = "refund"
	TransactionTypeRefundDebit         TransactionType = "refund_debit"
	TransactionTypeBillsPayment        TransactionType = "billspayment"
	TransactionTypePackage             TransactionType = "package"
	TransactionTypeAttractions         TransactionType = "attractions"
	TransactionTypeCreditTransfer      TransactionType = "credit_transfer"
	TransactionTypeCreditTransferDebit TransactionType = "credit_transfer_debit"
)

// IsCredit reports whether entries of this type add to the wallet
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionTypeTopup, TransactionTypeRefund, TransactionTypeCreditTransfer:
		return true
	}
	return false
}

// CreditTypeWallet marks entries that move wallet credits
const CreditTypeWallet = "wallet"

// RefundSuffix is appended to a transaction id to form its refund id
const RefundSuffix = "_refund"

// Collections touched by the booking workflow
const (
	CollectionLedger          = "user_balance_transactions"
	CollectionBalances        = "user_balance"
	CollectionFundsOnHold     = "user_funds_on_hold"
	CollectionBookings        = "ferry_bookings"
	CollectionUsers           = "users"
	CollectionAgencies        = "agencies"
	CollectionAccessLevels    = "access_levels"
	CollectionFerryAuthTokens = "ferryAuthTokens"
	CollectionSessionCharges  = "ferry_session_charges"
	CollectionAuditEvents     = "ferry_audit_events"
)

// LedgerEntry is an immutable balance-affecting transaction
type LedgerEntry struct {
	TransactionID         string          `json:"transaction_id"`
	UserID                string          `json:"userId"`
	WalletID              string          `json:"wallet_id"`
	CreatedBy             string          `json:"created_by"`
	UserName              string          `json:"user_name"`
	Amount                decimal.Decimal `json:"amount"`
	BaseAmount            decimal.Decimal `json:"base_amount"`
	Currency              string          `json:"currency"`
	Type                  TransactionType `json:"type"`
	ReferenceNo           string          `json:"reference_no"`
	Timestamp             time.Time       `json:"timestamp"`
	CreditType            string          `json:"credit_type"`
	Meta                  json.RawMessage `json:"meta,omitempty"`
	AgentID               *string         `json:"agent_id"`
	OriginalTransactionID string          `json:"original_transaction_id,omitempty"`
}

// BalanceOwner returns the wallet whose balance this entry moves
func (e *LedgerEntry) BalanceOwner() string {
	if e.WalletID != "" {
		return e.WalletID
	}
	return e.UserID
}

// RefundID returns the deterministic id of this entry's refund
func (e *LedgerEntry) RefundID() string {
	return e.TransactionID + RefundSuffix
}

// FerryMeta decodes the meta payload of a ferry purchase
func (e *LedgerEntry) FerryMeta() (*FerryPurchaseMeta, error) {
	if len(e.Meta) == 0 {
		return nil, fmt.Errorf("transaction %s has no meta", e.TransactionID)
	}
	var meta FerryPurchaseMeta
	if err := json.Unmarshal(e.Meta, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode meta of transaction %s: %w", e.TransactionID, err)
	}
	return &meta, nil
}

// LedgerEntryInput holds the caller-supplied fields of a new entry
type LedgerEntryInput struct {
	UserID    string
	WalletID  string
	CreatedBy string
	UserName  string
	Amount    decimal.Decimal
	Currency  string
	Type      TransactionType
	AgentID   string
	Meta      interface{}
}

// FerryPurchaseMeta is stored in LedgerEntry.Meta for ferry purchases
type FerryPurchaseMeta struct {
	Request            ferry.TicketRequest   `json:"request"`
	Response           []ferry.Ticket        `json:"response"`
	ComputeCharges     ferry.ComputedCharges `json:"compute_charges"`
	PrintURL           string                `json:"printUrl"`
	BookingReferenceNo string                `json:"booking_reference_no"`
}

// ActiveBooking is the operational record of a live ferry booking.
// It is removed once the booking has been voided and refunded.
type ActiveBooking struct {
	TransactionID      string          `json:"transactionId"`
	UserID             string          `json:"userId"`
	WalletID           string          `json:"walletId"`
	BookingReferenceNo string          `json:"booking_reference_no"`
	PrintURL           string          `json:"printUrl"`
	Total              decimal.Decimal `json:"total"`
	Currency           string          `json:"currency"`
	TicketCount        int             `json:"ticketCount"`
	CreatedAt          time.Time       `json:"createdAt"`
}

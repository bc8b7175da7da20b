package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError is returned when caller input is malformed or incomplete
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error for field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PreconditionError is returned when a required prior step has not been done
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// Reasons for an InsufficientFundsError
const (
	InsufficientReasonLowBalance  = "low_balance"
	InsufficientReasonFundsOnHold = "funds_on_hold"
)

// InsufficientFundsError is a business rejection of a purchase
type InsufficientFundsError struct {
	Reason   string
	Balance  decimal.Decimal
	Required decimal.Decimal
	OnHold   decimal.Decimal
	Currency string
}

func (e *InsufficientFundsError) Error() string {
	if e.Reason == InsufficientReasonFundsOnHold {
		return fmt.Sprintf("Not enough credits for this transaction because %s %s is still on hold.", e.OnHold.String(), e.Currency)
	}
	return "Insufficient balance to proceed with ticket purchase."
}

// NotFoundError is returned when a referenced record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigurationError is returned when stored reference data is inconsistent,
// such as a broken agency hierarchy
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StoreError wraps a document store failure
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WalletBusyError is returned when the wallet lock is not acquired in time
type WalletBusyError struct {
	WalletID string
	Err      error
}

func (e *WalletBusyError) Error() string {
	return fmt.Sprintf("wallet %s is busy with another purchase: %v", e.WalletID, e.Err)
}

func (e *WalletBusyError) Unwrap() error { return e.Err }

// AuthUnavailableError is returned when a gateway token cannot be obtained
type AuthUnavailableError struct {
	Err error
}

func (e *AuthUnavailableError) Error() string {
	return fmt.Sprintf("ferry authentication unavailable: %v", e.Err)
}

func (e *AuthUnavailableError) Unwrap() error { return e.Err }

// TicketReconciliationError is returned when a confirmed booking cannot be found
// upstream afterwards. The booking may exist with no local ledger entry.
type TicketReconciliationError struct {
	PrintURL    string
	ExpectedRef string
	Attempts    int
	Err         error
}

func (e *TicketReconciliationError) Error() string {
	return fmt.Sprintf("No ticket data found after creation (attempts: %d): %v", e.Attempts, e.Err)
}

func (e *TicketReconciliationError) Unwrap() error { return e.Err }

// InvalidTicketDataError is returned when reconciled tickets lack a booking reference
type InvalidTicketDataError struct {
	Reason string
}

func (e *InvalidTicketDataError) Error() string {
	return fmt.Sprintf("Invalid ticket data received: %s", e.Reason)
}

// CriticalError is returned when the ledger commit fails after the gateway
// confirmed a booking. Operators must reconcile the wallet by hand.
type CriticalError struct {
	WalletID           string
	BookingReferenceNo string
	Amount             decimal.Decimal
	Currency           string
	Err                error
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("ledger commit failed for confirmed booking %s (%s %s, wallet %s): %v",
		e.BookingReferenceNo, e.Amount.String(), e.Currency, e.WalletID, e.Err)
}

func (e *CriticalError) Unwrap() error { return e.Err }

// PartialVoidError is returned when some tickets of a booking could not be voided.
// No refund is issued.
type PartialVoidError struct {
	TransactionID string
	FailedIDs     []string
	Details       map[string]string
}

func (e *PartialVoidError) Error() string {
	return fmt.Sprintf("void incomplete for transaction %s, failed booking ids: %s",
		e.TransactionID, strings.Join(e.FailedIDs, ", "))
}

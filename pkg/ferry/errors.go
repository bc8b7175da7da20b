package ferry

import (
	"errors"
	"fmt"
)

// ErrNoTicketsFound is returned by GetLatestTicket when no booking group matches
var ErrNoTicketsFound = errors.New("no ticket data found")

// GatewayUnavailableError covers network failures, timeouts and unexpected upstream statuses.
type GatewayUnavailableError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *GatewayUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ferry gateway unavailable during %s: HTTP %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("ferry gateway unavailable during %s: %v", e.Operation, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }

// AuthExpiredError is returned for HTTP 401. The caller should refresh its token and may retry once.
type AuthExpiredError struct {
	Operation string
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("Authentication failed: Invalid or expired token (%s)", e.Operation)
}

// BadRequestError is returned for HTTP 400 and carries the upstream detail.
type BadRequestError struct {
	Operation string
	Detail    string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("Bad request: %s", e.Detail)
}

// UpstreamError is a structured error reported inside a 200 response,
// either as error_message or as a {status, title, detail} triple.
type UpstreamError struct {
	Operation string
	Title     string
	Detail    string
	Message   string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Error: %s - %s", orDefault(e.Title, "Unknown error"), orDefault(e.Detail, "No details provided"))
}

// ProtocolError is returned when the upstream body is not the expected shape.
type ProtocolError struct {
	Operation string
	Reason    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("Invalid response format from ferry API during %s: %s", e.Operation, e.Reason)
}

// MissingPrintURLError is returned when a ticket was confirmed without a print URL.
type MissingPrintURLError struct{}

func (e *MissingPrintURLError) Error() string {
	return "No print URL found in the response."
}

// VoidError is returned when upstream refuses to void a booking.
type VoidError struct {
	BookingID string
	Detail    string
}

func (e *VoidError) Error() string {
	return fmt.Sprintf("failed to void booking %s: %s", e.BookingID, e.Detail)
}

// IsTransient reports whether err is a retryable transport-level failure.
func IsTransient(err error) bool {
	var unavailable *GatewayUnavailableError
	var expired *AuthExpiredError
	return errors.As(err, &unavailable) || errors.As(err, &expired)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

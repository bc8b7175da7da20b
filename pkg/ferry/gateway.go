package ferry

import (
	"context"
	"time"
)

// Gateway defines the ferry reseller operations the booking workflow depends on.
// Every call except Authenticate takes the bearer token obtained from Authenticate.
type Gateway interface {
	// Authenticate exchanges client credentials for a bearer token
	Authenticate(ctx context.Context, trackingID string) (*AuthResponse, error)

	// SearchVoyages lists itineraries with their priced accommodations
	SearchVoyages(ctx context.Context, token, trackingID string, req VoyageSearchRequest) ([]VoyageInfo, error)

	// ComputeCharges prices a passenger list
	ComputeCharges(ctx context.Context, token, trackingID string, req ComputeChargesRequest) (*ComputedCharges, error)

	// CreateTicket confirms a booking and returns its print URL
	CreateTicket(ctx context.Context, token, trackingID string, req TicketRequest) (*TicketConfirmation, error)

	// SearchTickets lists tickets booked within [from, to]
	SearchTickets(ctx context.Context, token, trackingID string, from, to time.Time) ([]Ticket, error)

	// GetLatestTicket returns the ticket group of the most recent booking,
	// or the group for expectedRef when it is non-empty
	GetLatestTicket(ctx context.Context, token, trackingID, expectedRef string) ([]Ticket, error)

	// VoidTicket cancels one booking upstream
	VoidTicket(ctx context.Context, token, trackingID, bookingID, remarks string) error

	// GetPrintURL resolves the voucher URL of a transaction
	GetPrintURL(ctx context.Context, token, trackingID, transactionID string) (string, error)
}

package ferry

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexString accepts either a JSON string or a JSON number
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the underlying value
func (f FlexString) String() string { return string(f) }

// IsZero reports whether the value is empty after trimming
func (f FlexString) IsZero() bool { return strings.TrimSpace(string(f)) == "" }

// ============================================================================
// AUTH
// ============================================================================

// AuthRequest is the client-credentials grant body
type AuthRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// AuthResponse is the token grant returned by /oauth
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ============================================================================
// VOYAGE SEARCH
// ============================================================================

// VoyageSearchRequest is the body for voyage-accommodations/bylocation
type VoyageSearchRequest struct {
	Origin         int    `json:"origin"`
	Destination    int    `json:"destination"`
	PassengerCount int    `json:"passengerCount"`
	DepartureDate  string `json:"departureDate"`
}

// Accommodation is one priced option within a passage
type Accommodation struct {
	ID         FlexString      `json:"id"`
	Name       string          `json:"name"`
	Code       string          `json:"code"`
	PriceID    FlexString      `json:"priceId"`
	SeatType   string          `json:"seatType"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Passage groups accommodations under one fare class
type Passage struct {
	ID             FlexString      `json:"id"`
	Name           string          `json:"name"`
	Accommodations []Accommodation `json:"accommodations"`
}

// Voyage is the schedule part of a search result
type Voyage struct {
	ID                FlexString `json:"id"`
	DepartureDateTime string     `json:"departureDateTime"`
	VesselName        string     `json:"vesselName"`
	Duration          string     `json:"duration"`
	Status            string     `json:"status"`
}

// VoyageInfo is one itinerary returned by voyage search. It re-encodes
// to the exact upstream JSON it was decoded from.
type VoyageInfo struct {
	PassageRemarks string    `json:"passageRemarks"`
	PriceGroups    []Passage `json:"priceGroups"`
	Voyage         Voyage    `json:"voyage"`
	CargoRemarks   string    `json:"cargoRemarks,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON keeps the upstream payload alongside the typed fields
func (v *VoyageInfo) UnmarshalJSON(b []byte) error {
	type alias VoyageInfo
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*v = VoyageInfo(a)
	v.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON emits the upstream payload when available
func (v VoyageInfo) MarshalJSON() ([]byte, error) {
	if len(v.raw) > 0 {
		return v.raw, nil
	}
	type alias VoyageInfo
	return json.Marshal(alias(v))
}

// ============================================================================
// COMPUTE CHARGES / CONFIRM BOOKING
// ============================================================================

// PassengerInfo identifies a traveller
type PassengerInfo struct {
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	MiddleInitial string `json:"mi,omitempty"`
	IsDriver      int    `json:"isDriver"`
	Gender        *int   `json:"gender"`
	Birthdate     string `json:"birthdate"`
	IDNumber      string `json:"idnumber,omitempty"`
	Nationality   string `json:"nationality"`
	DiscountType  string `json:"discountType"`
	Filenames     string `json:"filenames"`
}

// PassengerEntry binds a traveller to priced fare options
type PassengerEntry struct {
	Passenger        *PassengerInfo `json:"passenger"`
	DeparturePriceID FlexString     `json:"departurePriceId"`
	ReturnPriceID    FlexString     `json:"returnPriceId,omitempty"`
	DepartureCotID   FlexString     `json:"departureCotId,omitempty"`
	ReturnCotID      FlexString     `json:"returnCotId,omitempty"`
}

// ComputeChargesRequest is the body for compute-charges/passage
type ComputeChargesRequest struct {
	PassengerList []PassengerEntry `json:"passengerList"`
	IsServiceFee  int              `json:"isServiceFee"`
}

// ComputedCharges is the itemized fare breakdown. Total is authoritative.
type ComputedCharges struct {
	CargoTotal       decimal.Decimal `json:"cargoTotal"`
	ArrastreTotal    decimal.Decimal `json:"arrastreTotal"`
	Docstamp         decimal.Decimal `json:"docstamp"`
	DriverTotal      decimal.Decimal `json:"driverTotal"`
	BarkotaFee       decimal.Decimal `json:"barkotaFee"`
	GatewayFee       decimal.Decimal `json:"gatewayFee"`
	ServiceCharge    decimal.Decimal `json:"serviceCharge"`
	TerminalFee      decimal.Decimal `json:"terminalFee"`
	TicketTotal      decimal.Decimal `json:"ticketTotal"`
	OutletServiceFee decimal.Decimal `json:"outletServiceFee"`
	Total            decimal.Decimal `json:"total"`
	DiffAmount       decimal.Decimal `json:"diffAmount"`
}

// ContactInfo is the booking contact
type ContactInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
}

// TicketRequest is the body for confirm-booking
type TicketRequest struct {
	Passengers                  []PassengerEntry `json:"passengers"`
	ContactInfo                 *ContactInfo     `json:"contactInfo"`
	AllowPromotionsNotification int              `json:"allowPromotionsNotification"`
	ReturnPrintURL              int              `json:"returnPrintUrl"`
	IsServiceFee                int              `json:"isServiceFee"`
}

// TicketConfirmation is the result of confirm-booking
type TicketConfirmation struct {
	PrintURL               string
	BookingReferenceNumber string
	Raw                    json.RawMessage
}

// ============================================================================
// TICKETS
// ============================================================================

// TransactionInfo is the booking-level part of a ticket
type TransactionInfo struct {
	ID                     FlexString      `json:"id"`
	BookingReferenceNumber FlexString      `json:"bookingReferenceNumber"`
	Total                  decimal.Decimal `json:"total"`
	BookingDate            string          `json:"bookingDate"`
	Status                 string          `json:"status"`
}

// TicketVoyage is the sailing a ticket belongs to
type TicketVoyage struct {
	DepartureDate string     `json:"departureDate"`
	VesselName    string     `json:"vesselName"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	VoyageID      FlexString `json:"voyageId"`
}

// TicketCharges are the per-ticket amounts
type TicketCharges struct {
	TicketTotal  decimal.Decimal `json:"ticketTotal"`
	TerminalFee  decimal.Decimal `json:"terminalFee"`
	OverAllTotal decimal.Decimal `json:"overAllTotal"`
}

// Ticket is one passenger ticket. It re-encodes to the exact upstream JSON
// it was decoded from so it can be stored verbatim.
type Ticket struct {
	ID                FlexString      `json:"id"`
	TicketNumber      FlexString      `json:"ticketNumber"`
	BarkotaBookingID  FlexString      `json:"barkotaBookingId"`
	Status            string          `json:"status"`
	PassengerName     string          `json:"passengerName"`
	AccommodationName string          `json:"accommodationName"`
	TransactionInfo   TransactionInfo `json:"transactionInfo"`
	Voyage            TicketVoyage    `json:"voyage"`
	Charges           TicketCharges   `json:"charges"`

	raw json.RawMessage
}

// UnmarshalJSON keeps the upstream payload alongside the typed fields
func (t *Ticket) UnmarshalJSON(b []byte) error {
	type alias Ticket
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*t = Ticket(a)
	t.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON emits the upstream payload when available
func (t Ticket) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	type alias Ticket
	return json.Marshal(alias(t))
}

// VoidID returns the identifier accepted by the void endpoint
func (t Ticket) VoidID() string {
	if !t.BarkotaBookingID.IsZero() {
		return t.BarkotaBookingID.String()
	}
	return t.ID.String()
}

// ReferenceNumber returns the booking reference the ticket belongs to
func (t Ticket) ReferenceNumber() string {
	return strings.TrimSpace(t.TransactionInfo.BookingReferenceNumber.String())
}

// TicketSearchRequest is the body for search-ticket/searchbyreferenceanddate
type TicketSearchRequest struct {
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
}

// VoidRequest is the body for ticket/void/ticket
type VoidRequest struct {
	BookingID string `json:"bookingId"`
	Remarks   string `json:"remarks"`
}

// PrintURLRequest is the body for transactionvoucherurl
type PrintURLRequest struct {
	BarkotaTransactionID string `json:"barkotaTransactionId"`
}

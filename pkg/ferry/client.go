package ferry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Reseller API endpoints, relative to the configured base URL
const (
	EndpointAuth           = "/oauth"
	EndpointVoyageSearch   = "/outlet/voyage-accommodations/bylocation"
	EndpointComputeCharges = "/outlet/compute-charges/passage"
	EndpointConfirmBooking = "/outlet/confirm-booking"
	EndpointSearchTickets  = "/outlet/search-ticket/searchbyreferenceanddate"
	EndpointVoidTicket     = "/outlet/ticket/void/ticket"
	EndpointPrintURL       = "/outlet/bt/search/transactionvoucherurl"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultTokenTTL     = 3600
	defaultSearchWindow = 6
	dateLayout          = "2006-01-02"
	maxResponseBytes    = 10 << 20
)

// Config holds configuration for the ferry reseller client
type Config struct {
	BaseURL          string
	ClientID         string
	ClientSecret     string
	Timeout          time.Duration
	SearchWindowDays int
	HTTPClient       *http.Client     // optional, overrides Timeout
	Now              func() time.Time // optional, defaults to time.Now
}

// Client implements Gateway over the reseller HTTP/JSON API
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	searchWindow int
	now          func() time.Time
}

// NewClient creates a new reseller API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	window := cfg.SearchWindowDays
	if window <= 0 {
		window = defaultSearchWindow
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       httpClient,
		searchWindow: window,
		now:          now,
	}
}

var _ Gateway = (*Client)(nil)

// Authenticate exchanges client credentials for a bearer token
func (c *Client) Authenticate(ctx context.Context, trackingID string) (*AuthResponse, error) {
	const op = "authenticate"

	body, err := c.post(ctx, op, EndpointAuth, "", trackingID, AuthRequest{
		GrantType:    "client_credentials",
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
	})
	if err != nil {
		return nil, err
	}

	obj, err := decodeObject(op, body)
	if err != nil {
		return nil, err
	}
	if err := upstreamError(op, obj); err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProtocolError{Operation: op, Reason: err.Error()}
	}
	if resp.AccessToken == "" {
		return nil, &ProtocolError{Operation: op, Reason: "missing access_token"}
	}
	if resp.ExpiresIn <= 0 {
		resp.ExpiresIn = defaultTokenTTL
	}
	return &resp, nil
}

// SearchVoyages lists itineraries for a route and date
func (c *Client) SearchVoyages(ctx context.Context, token, trackingID string, req VoyageSearchRequest) ([]VoyageInfo, error) {
	const op = "search voyages"

	body, err := c.post(ctx, op, EndpointVoyageSearch, token, trackingID, req)
	if err != nil {
		return nil, err
	}

	if isJSONObject(body) {
		obj, err := decodeObject(op, body)
		if err != nil {
			return nil, err
		}
		if err := upstreamError(op, obj); err != nil {
			return nil, err
		}
		return nil, &ProtocolError{Operation: op, Reason: "expected an array"}
	}

	var voyages []VoyageInfo
	if err := json.Unmarshal(body, &voyages); err != nil {
		return nil, &ProtocolError{Operation: op, Reason: "expected an array"}
	}
	return voyages, nil
}

// ComputeCharges prices a passenger list
func (c *Client) ComputeCharges(ctx context.Context, token, trackingID string, req ComputeChargesRequest) (*ComputedCharges, error) {
	const op = "compute charges"

	body, err := c.post(ctx, op, EndpointComputeCharges, token, trackingID, req)
	if err != nil {
		return nil, err
	}

	obj, err := decodeObject(op, body)
	if err != nil {
		return nil, err
	}
	if err := upstreamError(op, obj); err != nil {
		return nil, err
	}

	var charges ComputedCharges
	if err := json.Unmarshal(body, &charges); err != nil {
		return nil, &ProtocolError{Operation: op, Reason: err.Error()}
	}
	return &charges, nil
}

// CreateTicket confirms a booking. A response without printUrl is a MissingPrintURLError.
func (c *Client) CreateTicket(ctx context.Context, token, trackingID string, req TicketRequest) (*TicketConfirmation, error) {
	const op = "create ticket"

	body, err := c.post(ctx, op, EndpointConfirmBooking, token, trackingID, req)
	if err != nil {
		return nil, err
	}

	obj, err := decodeObject(op, body)
	if err != nil {
		return nil, err
	}
	if err := upstreamError(op, obj); err != nil {
		return nil, err
	}

	printURL := stringField(obj, "printUrl")
	if printURL == "" {
		return nil, &MissingPrintURLError{}
	}

	return &TicketConfirmation{
		PrintURL:               printURL,
		BookingReferenceNumber: bookingReference(obj),
		Raw:                    append(json.RawMessage(nil), body...),
	}, nil
}

// SearchTickets lists tickets booked within [from, to]. Zero times fall back
// to the trailing search window ending today.
func (c *Client) SearchTickets(ctx context.Context, token, trackingID string, from, to time.Time) ([]Ticket, error) {
	const op = "search tickets"

	now := c.now()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = now.AddDate(0, 0, -c.searchWindow)
	}

	body, err := c.post(ctx, op, EndpointSearchTickets, token, trackingID, TicketSearchRequest{
		DateFrom: from.Format(dateLayout),
		DateTo:   to.Format(dateLayout),
	})
	if err != nil {
		return nil, err
	}

	return decodeTickets(op, body)
}

// GetLatestTicket groups recent tickets by booking reference and returns one group.
// Upstream returns newest first, so without expectedRef the first group wins.
func (c *Client) GetLatestTicket(ctx context.Context, token, trackingID, expectedRef string) ([]Ticket, error) {
	tickets, err := c.SearchTickets(ctx, token, trackingID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	order, groups := GroupByReference(tickets)
	if expectedRef != "" {
		if group, ok := groups[expectedRef]; ok {
			return group, nil
		}
		return nil, ErrNoTicketsFound
	}
	if len(order) == 0 {
		return nil, ErrNoTicketsFound
	}
	return groups[order[0]], nil
}

// VoidTicket cancels one booking upstream
func (c *Client) VoidTicket(ctx context.Context, token, trackingID, bookingID, remarks string) error {
	const op = "void ticket"

	body, err := c.post(ctx, op, EndpointVoidTicket, token, trackingID, VoidRequest{
		BookingID: bookingID,
		Remarks:   remarks,
	})
	if err != nil {
		return err
	}

	obj, err := decodeObject(op, body)
	if err != nil {
		return err
	}
	if raw, ok := obj["error"]; ok && truthy(raw) {
		return &VoidError{BookingID: bookingID, Detail: messageText(raw)}
	}
	if err := upstreamError(op, obj); err != nil {
		return &VoidError{BookingID: bookingID, Detail: err.Error()}
	}
	return nil
}

// GetPrintURL resolves the voucher URL of a transaction
func (c *Client) GetPrintURL(ctx context.Context, token, trackingID, transactionID string) (string, error) {
	const op = "get print url"

	body, err := c.post(ctx, op, EndpointPrintURL, token, trackingID, PrintURLRequest{
		BarkotaTransactionID: transactionID,
	})
	if err != nil {
		return "", err
	}

	obj, err := decodeObject(op, body)
	if err != nil {
		return "", err
	}
	if err := upstreamError(op, obj); err != nil {
		return "", err
	}

	rawBody, ok := obj["body"]
	if !ok || !isJSONObject(rawBody) {
		return "", &ProtocolError{Operation: op, Reason: "missing body"}
	}
	inner, err := decodeObject(op, rawBody)
	if err != nil {
		return "", err
	}
	if err := upstreamError(op, inner); err != nil {
		return "", err
	}

	printURL := stringField(inner, "printUrl")
	if printURL == "" {
		return "", &MissingPrintURLError{}
	}
	return printURL, nil
}

// GroupByReference buckets tickets by booking reference, keeping upstream order.
// Tickets without a reference are dropped.
func GroupByReference(tickets []Ticket) ([]string, map[string][]Ticket) {
	var order []string
	groups := make(map[string][]Ticket)
	for _, t := range tickets {
		ref := t.ReferenceNumber()
		if ref == "" {
			continue
		}
		if _, seen := groups[ref]; !seen {
			order = append(order, ref)
		}
		groups[ref] = append(groups[ref], t)
	}
	return order, groups
}

// post sends a JSON POST and maps transport-level failures onto the error taxonomy
func (c *Client) post(ctx context.Context, op, endpoint, token, trackingID string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if trackingID != "" {
		req.Header.Set("X-Request-ID", trackingID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &GatewayUnavailableError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &GatewayUnavailableError{Operation: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthExpiredError{Operation: op}
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &BadRequestError{Operation: op, Detail: errorDetail(body)}
	case resp.StatusCode >= 300:
		return nil, &GatewayUnavailableError{Operation: op, StatusCode: resp.StatusCode}
	}

	return body, nil
}

func decodeTickets(op string, body []byte) ([]Ticket, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tickets []Ticket
		if err := json.Unmarshal(trimmed, &tickets); err != nil {
			return nil, &ProtocolError{Operation: op, Reason: err.Error()}
		}
		return tickets, nil
	}

	obj, err := decodeObject(op, trimmed)
	if err != nil {
		return nil, err
	}
	if err := upstreamError(op, obj); err != nil {
		return nil, err
	}

	for _, key := range []string{"data", "tickets", "results", "body"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		var tickets []Ticket
		if err := json.Unmarshal(raw, &tickets); err != nil {
			return nil, &ProtocolError{Operation: op, Reason: err.Error()}
		}
		return tickets, nil
	}

	return nil, &ProtocolError{Operation: op, Reason: "expected data array"}
}

func decodeObject(op string, body []byte) (map[string]json.RawMessage, error) {
	if !isJSONObject(body) {
		return nil, &ProtocolError{Operation: op, Reason: "expected a JSON object"}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, &ProtocolError{Operation: op, Reason: err.Error()}
	}
	return obj, nil
}

// upstreamError detects the two in-band error styles of a 200 response
func upstreamError(op string, obj map[string]json.RawMessage) error {
	if raw, ok := obj["error_message"]; ok && truthy(raw) {
		return &UpstreamError{Operation: op, Message: messageText(raw)}
	}
	if raw, ok := obj["status"]; ok && truthy(raw) {
		title := stringField(obj, "title")
		detail := stringField(obj, "detail")
		if title != "" || detail != "" {
			return &UpstreamError{Operation: op, Title: title, Detail: detail}
		}
	}
	return nil
}

func errorDetail(body []byte) string {
	if obj, err := decodeObject("", body); err == nil {
		if raw, ok := obj["error_message"]; ok && truthy(raw) {
			return messageText(raw)
		}
		title, detail := stringField(obj, "title"), stringField(obj, "detail")
		if title != "" || detail != "" {
			return strings.TrimSpace(title + ": " + detail)
		}
		for _, key := range []string{"message", "error"} {
			if raw, ok := obj[key]; ok && truthy(raw) {
				return messageText(raw)
			}
		}
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 500 {
		detail = detail[:500]
	}
	return detail
}

func bookingReference(obj map[string]json.RawMessage) string {
	if ref := stringField(obj, "bookingReferenceNumber"); ref != "" {
		return ref
	}
	for _, key := range []string{"transactionInfo", "body"} {
		raw, ok := obj[key]
		if !ok || !isJSONObject(raw) {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			continue
		}
		if ref := stringField(inner, "bookingReferenceNumber"); ref != "" {
			return ref
		}
	}
	return ""
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var f FlexString
	if err := json.Unmarshal(raw, &f); err != nil {
		return ""
	}
	return strings.TrimSpace(f.String())
}

func isJSONObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func truthy(raw json.RawMessage) bool {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	default:
		return true
	}
}

func messageText(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		if msg, ok := t["message"].(string); ok {
			return msg
		}
	}
	return strings.TrimSpace(string(raw))
}

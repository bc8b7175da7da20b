package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/middleware"
	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
)

const maintenanceMessage = "Ferry Module Is Under Maintenance Mode. We will notify once it's back."

// FerryBooking is the booking workflow served by FerryHandler
type FerryBooking interface {
	Search(ctx context.Context, principal models.Principal, req *ferry.VoyageSearchRequest) ([]ferry.VoyageInfo, error)
	ComputeCharges(ctx context.Context, principal models.Principal, req *ferry.ComputeChargesRequest) (*ferry.ComputedCharges, error)
	CreateTicket(ctx context.Context, principal models.Principal, req *ferry.TicketRequest) (*models.PurchaseResult, error)
	GetTickets(ctx context.Context, principal models.Principal, criteria models.TicketSearchCriteria) ([]ferry.Ticket, error)
	GetPrintURL(ctx context.Context, principal models.Principal, transactionID string) (string, error)
	VoidBooking(ctx context.Context, principal models.Principal, transactionID, remarks string) (*models.VoidResult, error)
}

// AuditReader lists booking audit events
type AuditReader interface {
	ListByTransaction(ctx context.Context, transactionID string) ([]*models.BookingAudit, error)
	ListRecent(ctx context.Context, eventType models.BookingEventType, limit int) ([]*models.BookingAudit, error)
}

// FerryHandler handles HTTP requests for ferry bookings
type FerryHandler struct {
	booking FerryBooking
	audit   AuditReader
	logger  *logrus.Logger
}

// NewFerryHandler creates a new ferry handler
func NewFerryHandler(booking FerryBooking, audit AuditReader, logger *logrus.Logger) *FerryHandler {
	return &FerryHandler{
		booking: booking,
		audit:   audit,
		logger:  logger,
	}
}

// RegisterRoutes mounts the ferry routes on group. auth guards every route;
// adminOnly additionally guards the audit routes.
func (h *FerryHandler) RegisterRoutes(group *gin.RouterGroup, auth, adminOnly gin.HandlerFunc) {
	ferryGroup := group.Group("/ferry", auth)
	{
		ferryGroup.POST("/search", h.Search)
		ferryGroup.POST("/compute_charges", h.ComputeCharges)
		ferryGroup.POST("/hold_booking", h.HoldBooking)
		ferryGroup.POST("/create_ticket", h.CreateTicket)
		ferryGroup.POST("/get_tickets", h.GetTickets)
		ferryGroup.POST("/confirm_booking", h.ConfirmBooking)
		ferryGroup.POST("/void_booking", h.VoidBooking)
		ferryGroup.POST("/print_url", h.PrintURL)

		auditGroup := ferryGroup.Group("/audit", adminOnly)
		auditGroup.GET("", h.ListAudit)
		auditGroup.GET("/:transactionId", h.GetAudit)
	}
}

// Search handles POST /api/v1/ferry/search
func (h *FerryHandler) Search(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req ferry.VoyageSearchRequest
	if !h.bind(c, &req) {
		return
	}

	voyages, err := h.booking.Search(c.Request.Context(), principal, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Voyages retrieved successfully", voyages)
}

// ComputeCharges handles POST /api/v1/ferry/compute_charges
func (h *FerryHandler) ComputeCharges(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req ferry.ComputeChargesRequest
	if !h.bind(c, &req) {
		return
	}

	charges, err := h.booking.ComputeCharges(c.Request.Context(), principal, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Charges computed successfully", charges)
}

// HoldBooking handles POST /api/v1/ferry/hold_booking. Seat holds are disabled.
func (h *FerryHandler) HoldBooking(c *gin.Context) {
	respondStatus(c, http.StatusPaymentRequired, maintenanceMessage, "MAINTENANCE", nil)
}

// CreateTicket handles POST /api/v1/ferry/create_ticket
func (h *FerryHandler) CreateTicket(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req ferry.TicketRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.booking.CreateTicket(c.Request.Context(), principal, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Ticket created successfully", result)
}

// GetTickets handles POST /api/v1/ferry/get_tickets
func (h *FerryHandler) GetTickets(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var criteria models.TicketSearchCriteria
	if c.Request.ContentLength != 0 && !h.bind(c, &criteria) {
		return
	}

	tickets, err := h.booking.GetTickets(c.Request.Context(), principal, criteria)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Tickets retrieved successfully", tickets)
}

// ConfirmBooking handles POST /api/v1/ferry/confirm_booking. Tickets are
// confirmed by create_ticket, so this only acknowledges.
func (h *FerryHandler) ConfirmBooking(c *gin.Context) {
	respondOK(c, "Booking confirmed", gin.H{"success": true})
}

// VoidBooking handles POST /api/v1/ferry/void_booking
func (h *FerryHandler) VoidBooking(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req models.VoidBookingRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.booking.VoidBooking(c.Request.Context(), principal, req.TransactionID, req.Remarks)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Booking voided successfully", result)
}

// PrintURL handles POST /api/v1/ferry/print_url
func (h *FerryHandler) PrintURL(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req models.PrintURLRequest
	if !h.bind(c, &req) {
		return
	}

	url, err := h.booking.GetPrintURL(c.Request.Context(), principal, req.TransactionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Print URL retrieved successfully", gin.H{"printUrl": url})
}

// GetAudit handles GET /api/v1/ferry/audit/:transactionId
func (h *FerryHandler) GetAudit(c *gin.Context) {
	events, err := h.audit.ListByTransaction(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Audit events retrieved successfully", events)
}

// ListAudit handles GET /api/v1/ferry/audit?event=...&limit=...
func (h *FerryHandler) ListAudit(c *gin.Context) {
	eventType := c.Query("event")
	if eventType == "" {
		respondStatus(c, http.StatusBadRequest, "event is required", "VALIDATION_ERROR", nil)
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			respondStatus(c, http.StatusBadRequest, "limit must be between 1 and 500", "VALIDATION_ERROR", nil)
			return
		}
		limit = parsed
	}

	events, err := h.audit.ListRecent(c.Request.Context(), models.BookingEventType(eventType), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Audit events retrieved successfully", events)
}

func (h *FerryHandler) principal(c *gin.Context) (models.Principal, bool) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "User context not found",
		})
		c.Abort()
	}
	return principal, ok
}

func (h *FerryHandler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.WithFields(logrus.Fields{
			"tracking_id": middleware.GetTrackingID(c),
			"path":        c.FullPath(),
		}).WithError(err).Warn("Invalid request format")
		respondStatus(c, http.StatusBadRequest, "Invalid request format", "INVALID_JSON", nil)
		return false
	}
	return true
}

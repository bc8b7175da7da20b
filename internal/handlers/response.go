package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/middleware"
	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
)

// Response is the envelope of every ferry API response
type Response struct {
	Status     string      `json:"status"`
	Code       int         `json:"code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
	TrackingID string      `json:"trackingId"`
	ErrorCode  string      `json:"errorCode,omitempty"`
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status:     "success",
		Code:       http.StatusOK,
		Message:    message,
		Data:       data,
		TrackingID: middleware.GetTrackingID(c),
	})
}

func respondStatus(c *gin.Context, status int, message, errorCode string, data interface{}) {
	c.JSON(status, Response{
		Status:     "error",
		Code:       status,
		Message:    message,
		Data:       data,
		TrackingID: middleware.GetTrackingID(c),
		ErrorCode:  errorCode,
	})
}

// respondError maps err onto an HTTP status. Unclassified errors are logged
// and answered with the tracking id only.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	trackingID := middleware.GetTrackingID(c)
	entry := logger.WithFields(logrus.Fields{
		"tracking_id": trackingID,
		"path":        c.FullPath(),
		"error":       err.Error(),
	})

	var (
		validation     *models.ValidationError
		precondition   *models.PreconditionError
		insufficient   *models.InsufficientFundsError
		notFound       *models.NotFoundError
		walletBusy     *models.WalletBusyError
		authDown       *models.AuthUnavailableError
		reconciliation *models.TicketReconciliationError
		invalidTicket  *models.InvalidTicketDataError
		critical       *models.CriticalError
		partial        *models.PartialVoidError
		badRequest     *ferry.BadRequestError
		upstream       *ferry.UpstreamError
		authExpired    *ferry.AuthExpiredError
		unavailable    *ferry.GatewayUnavailableError
		protocol       *ferry.ProtocolError
		noPrintURL     *ferry.MissingPrintURLError
	)

	switch {
	case errors.As(err, &critical):
		entry.Error("CRITICAL: Ticket confirmed upstream but the ledger was not written")
		respondStatus(c, http.StatusInternalServerError,
			fmt.Sprintf("Your ticket was issued but could not be recorded. Please contact our administrator and present this tracking ID: %s", trackingID),
			"LEDGER_COMMIT_FAILED", gin.H{"bookingReferenceNo": critical.BookingReferenceNo})
	case errors.As(err, &partial):
		entry.Warn("Void incomplete")
		respondStatus(c, http.StatusConflict, "Some bookings could not be voided. No refund was issued.",
			"PARTIAL_VOID", gin.H{"failedBookingIds": partial.FailedIDs, "details": partial.Details})
	case errors.As(err, &validation):
		respondStatus(c, http.StatusBadRequest, validation.Message, "VALIDATION_ERROR", nil)
	case errors.As(err, &badRequest):
		respondStatus(c, http.StatusBadRequest, badRequest.Error(), "BAD_REQUEST", nil)
	case errors.As(err, &upstream):
		respondStatus(c, http.StatusBadRequest, upstream.Error(), "UPSTREAM_ERROR", nil)
	case errors.As(err, &precondition):
		respondStatus(c, http.StatusPreconditionFailed, precondition.Message, "PRECONDITION_FAILED", nil)
	case errors.As(err, &insufficient):
		respondStatus(c, http.StatusPaymentRequired, insufficient.Error(), "INSUFFICIENT_FUNDS", nil)
	case errors.As(err, &notFound):
		respondStatus(c, http.StatusNotFound, notFound.Error(), "NOT_FOUND", nil)
	case errors.As(err, &walletBusy):
		entry.Warn("Wallet lock wait timed out")
		respondStatus(c, http.StatusServiceUnavailable, "Another purchase on this wallet is in progress. Please try again.", "WALLET_BUSY", nil)
	case errors.As(err, &authDown), errors.As(err, &authExpired), errors.As(err, &unavailable):
		entry.Warn("Ferry gateway unavailable")
		respondStatus(c, http.StatusServiceUnavailable, "Ferry service is temporarily unavailable. Please try again.", "GATEWAY_UNAVAILABLE", nil)
	case errors.As(err, &reconciliation), errors.As(err, &invalidTicket):
		entry.Error("Ticket outcome could not be confirmed")
		respondStatus(c, http.StatusBadGateway,
			fmt.Sprintf("%s Please contact our administrator and present this tracking ID: %s", err.Error(), trackingID),
			"TICKET_NOT_CONFIRMED", nil)
	case errors.As(err, &protocol), errors.As(err, &noPrintURL):
		entry.Error("Unexpected response from ferry gateway")
		respondStatus(c, http.StatusBadGateway, err.Error(), "BAD_GATEWAY", nil)
	default:
		entry.Error("Internal error")
		respondStatus(c, http.StatusInternalServerError,
			fmt.Sprintf("Internal server error. Please contact our administrator and present this tracking ID: %s", trackingID),
			"INTERNAL_ERROR", nil)
	}
}

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/database"
	"github.com/Joshlanuevo/ferry-api/internal/metrics"
	"github.com/Joshlanuevo/ferry-api/internal/models"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
)

// FerryBookingConfig holds configuration for the booking workflow
type FerryBookingConfig struct {
	ReconcileGrace    time.Duration    // wait after confirm-booking before the first lookup (default 1s)
	ReconcileAttempts int              // ticket lookups before giving up (default 3)
	ReconcileBackoff  time.Duration    // base delay between lookups, multiplied by the attempt (default 1s)
	SearchWindowDays  int              // default get_tickets window (default 6)
	FinalizeTimeout   time.Duration    // bound on reconcile and commit after confirm-booking, derived when zero
	Now               func() time.Time // clock, time.Now when nil
}

const auditTimeout = 5 * time.Second

// finalizeMargin covers the lookup calls themselves and the ledger commit
const finalizeMargin = 30 * time.Second

// reconcileBudget is the total sleep of one reconcile run
func (c FerryBookingConfig) reconcileBudget() time.Duration {
	n := c.ReconcileAttempts
	return c.ReconcileGrace + c.ReconcileBackoff*time.Duration(n*(n-1)/2)
}

// DefaultFerryBookingConfig returns default configuration
func DefaultFerryBookingConfig() FerryBookingConfig {
	return FerryBookingConfig{
		ReconcileGrace:    time.Second,
		ReconcileAttempts: 3,
		ReconcileBackoff:  time.Second,
		SearchWindowDays:  6,
		Now:               time.Now,
	}
}

// FerryBookingService runs the compute charges → create ticket → ledger
// commit purchase flow and the void → refund → remove flow
type FerryBookingService struct {
	gateway ferry.Gateway
	tokens  *TokenCache
	policy  *AccessPolicy
	wallets *WalletService
	locker  WalletLocker
	ledger  *database.LedgerRepository
	charges *database.ChargesCacheRepository
	audit   *database.AuditRepository
	config  FerryBookingConfig
	logger  *logrus.Logger
}

// NewFerryBookingService creates a new FerryBookingService
func NewFerryBookingService(
	gateway ferry.Gateway,
	tokens *TokenCache,
	policy *AccessPolicy,
	wallets *WalletService,
	locker WalletLocker,
	ledger *database.LedgerRepository,
	charges *database.ChargesCacheRepository,
	audit *database.AuditRepository,
	config FerryBookingConfig,
	logger *logrus.Logger,
) *FerryBookingService {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.ReconcileAttempts < 1 {
		config.ReconcileAttempts = 1
	}
	if config.FinalizeTimeout <= 0 {
		config.FinalizeTimeout = config.reconcileBudget() + finalizeMargin
	}
	return &FerryBookingService{
		gateway: gateway,
		tokens:  tokens,
		policy:  policy,
		wallets: wallets,
		locker:  locker,
		ledger:  ledger,
		charges: charges,
		audit:   audit,
		config:  config,
		logger:  logger,
	}
}

// ============================================================================
// SEARCH AND PRICING
// ============================================================================

// Search lists voyages matching req
func (s *FerryBookingService) Search(ctx context.Context, principal models.Principal, req *ferry.VoyageSearchRequest) ([]ferry.VoyageInfo, error) {
	if err := ValidateSearchRequest(req, s.config.Now()); err != nil {
		return nil, err
	}

	var voyages []ferry.VoyageInfo
	err := s.withToken(ctx, "search_voyages", func(token string) error {
		var err error
		voyages, err = s.gateway.SearchVoyages(ctx, token, models.TrackingID(ctx), *req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tracking_id": models.TrackingID(ctx),
		"user_id":     principal.UserID,
		"results":     len(voyages),
	}).Info("Ferry search completed")

	return voyages, nil
}

// ComputeCharges prices req and caches the result for the principal's session.
// A later CreateTicket debits exactly the cached total.
func (s *FerryBookingService) ComputeCharges(ctx context.Context, principal models.Principal, req *ferry.ComputeChargesRequest) (*ferry.ComputedCharges, error) {
	if err := ValidateComputeChargesRequest(req); err != nil {
		return nil, err
	}

	var charges *ferry.ComputedCharges
	err := s.withToken(ctx, "compute_charges", func(token string) error {
		var err error
		charges, err = s.gateway.ComputeCharges(ctx, token, models.TrackingID(ctx), *req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.charges.Put(ctx, principal.SessionKey(), principal.UserID, *charges, req); err != nil {
		return nil, &models.StoreError{Op: "cache charges", Err: err}
	}

	s.logState(ctx, principal.UserID, models.PurchaseStateChargesComputed, logrus.Fields{
		"total": charges.Total.String(),
	})

	return charges, nil
}

// ============================================================================
// PURCHASE
// ============================================================================

// CreateTicket confirms the booking upstream and debits the paying wallet.
// The wallet is never debited unless the booking was confirmed and found
// upstream.
func (s *FerryBookingService) CreateTicket(ctx context.Context, principal models.Principal, req *ferry.TicketRequest) (*models.PurchaseResult, error) {
	trackingID := models.TrackingID(ctx)
	log := s.logger.WithFields(logrus.Fields{
		"tracking_id": trackingID,
		"user_id":     principal.UserID,
	})

	fail := func(err error) (*models.PurchaseResult, error) {
		outcome := purchaseOutcome(err)
		metrics.PurchaseOutcome(outcome)
		s.logState(ctx, principal.UserID, models.PurchaseStateFailed, logrus.Fields{
			"outcome": outcome,
			"error":   err.Error(),
		})
		return nil, err
	}

	// 1. Load cached charges and validate the request
	cached, err := s.charges.Get(ctx, principal.SessionKey())
	if err != nil {
		return fail(&models.StoreError{Op: "load cached charges", Err: err})
	}
	if cached == nil {
		return fail(&models.PreconditionError{Message: "No cached compute charges found. Please compute charges first."})
	}
	total := cached.Charges.Total

	if err := ValidateTicketRequest(req); err != nil {
		return fail(err)
	}
	s.logState(ctx, principal.UserID, models.PurchaseStateValidated, logrus.Fields{"total": total.String()})

	// 2. Resolve the paying wallet
	user, err := s.policy.LoadUser(ctx, principal)
	if err != nil {
		return fail(err)
	}
	walletID, err := s.policy.ResolveWalletOwner(ctx, user)
	if err != nil {
		return fail(err)
	}
	currency := user.WalletCurrency()
	log = log.WithField("wallet_id", walletID)

	// 3. Serialize purchases against this wallet until the ledger commit
	lockStart := time.Now()
	unlock, err := s.locker.Lock(ctx, walletID)
	metrics.ObserveLockWait(time.Since(lockStart))
	if err != nil {
		return fail(err)
	}
	defer unlock()

	// 4. Check funds unless admin
	if IsAdmin(user.Type) {
		log.Info("Admin purchase, skipping balance check")
	} else if err := s.wallets.CheckFunds(ctx, walletID, user.ID, currency, total); err != nil {
		return fail(err)
	}

	// 5. Confirm the booking upstream
	var confirmation *ferry.TicketConfirmation
	err = s.withToken(ctx, "create_ticket", func(token string) error {
		var err error
		confirmation, err = s.gateway.CreateTicket(ctx, token, trackingID, *req)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Ticket creation failed")
		return fail(err)
	}
	s.logState(ctx, principal.UserID, models.PurchaseStateTicketCreated, logrus.Fields{
		"print_url":    confirmation.PrintURL,
		"expected_ref": confirmation.BookingReferenceNumber,
	})

	// The booking now exists upstream. Steps 6 to 8 run detached from the
	// caller so a dropped connection cannot leave an unpaid ticket.
	finalCtx, cancelFinal := context.WithTimeout(context.WithoutCancel(ctx), s.config.FinalizeTimeout)
	defer cancelFinal()
	failFinal := func(err error) (*models.PurchaseResult, error) {
		if ctx.Err() != nil {
			log.WithError(err).Warn("Purchase finished after the caller went away")
		}
		return fail(err)
	}

	// 6. Find the confirmed booking upstream
	tickets, attempts, err := s.reconcile(finalCtx, confirmation.BookingReferenceNumber)
	if err != nil {
		recErr := &models.TicketReconciliationError{
			PrintURL:    confirmation.PrintURL,
			ExpectedRef: confirmation.BookingReferenceNumber,
			Attempts:    attempts,
			Err:         err,
		}
		log.WithError(err).WithFields(logrus.Fields{
			"print_url":    confirmation.PrintURL,
			"expected_ref": confirmation.BookingReferenceNumber,
			"attempts":     attempts,
		}).Error("Booking confirmed upstream but no ticket data found, wallet not debited")
		s.recordAudit(finalCtx, models.NewBookingAudit(models.BookingEventReconciliationFailed).
			SetParties(user.ID, walletID).
			SetBooking(confirmation.BookingReferenceNumber, confirmation.PrintURL).
			SetAmount(total, currency).
			SetError(recErr, "RECONCILIATION_FAILED").
			SetCorrelationID(trackingID))
		return failFinal(recErr)
	}

	// 7. Require a booking reference
	referenceNo := tickets[0].ReferenceNumber()
	if referenceNo == "" {
		return failFinal(&models.InvalidTicketDataError{Reason: "missing bookingReferenceNumber"})
	}

	// 8. Commit the debit and the booking record atomically
	entry, err := s.ledger.Commit(finalCtx, models.LedgerEntryInput{
		UserID:    user.ID,
		WalletID:  walletID,
		CreatedBy: user.ID,
		UserName:  user.FullName(),
		Amount:    total,
		Currency:  currency,
		Type:      models.TransactionTypeFerry,
		AgentID:   agentFor(user, walletID),
		Meta: models.FerryPurchaseMeta{
			Request:            *req,
			Response:           tickets,
			ComputeCharges:     cached.Charges,
			PrintURL:           confirmation.PrintURL,
			BookingReferenceNo: referenceNo,
		},
	}, &models.ActiveBooking{
		BookingReferenceNo: referenceNo,
		PrintURL:           confirmation.PrintURL,
		Total:              total,
		TicketCount:        len(tickets),
	})
	if err != nil {
		critical := &models.CriticalError{
			WalletID:           walletID,
			BookingReferenceNo: referenceNo,
			Amount:             total,
			Currency:           currency,
			Err:                err,
		}
		log.WithError(err).WithFields(logrus.Fields{
			"booking_reference_no": referenceNo,
			"amount":               total.String(),
			"currency":             currency,
		}).Error("CRITICAL: Ledger commit failed for confirmed booking")
		s.recordAudit(finalCtx, models.NewBookingAudit(models.BookingEventLedgerCommitFailed).
			SetParties(user.ID, walletID).
			SetBooking(referenceNo, confirmation.PrintURL).
			SetBookingIDs(voidIDs(tickets)).
			SetAmount(total, currency).
			SetError(err, "LEDGER_COMMIT_FAILED").
			SetCorrelationID(trackingID))
		return failFinal(critical)
	}
	s.logState(finalCtx, principal.UserID, models.PurchaseStateLedgerCommitted, logrus.Fields{
		"transaction_id":       entry.TransactionID,
		"booking_reference_no": referenceNo,
		"amount":               entry.Amount.String(),
	})
	s.recordAudit(finalCtx, models.NewBookingAudit(models.BookingEventPurchaseCommitted).
		SetTransaction(entry.TransactionID).
		SetParties(user.ID, walletID).
		SetBooking(referenceNo, confirmation.PrintURL).
		SetBookingIDs(voidIDs(tickets)).
		SetAmount(entry.Amount, currency).
		SetCorrelationID(trackingID).
		SetDetail("reconcile_attempts", attempts))

	// 9. Clear the session's charges
	if err := s.charges.Delete(finalCtx, principal.SessionKey()); err != nil {
		log.WithError(err).Warn("Failed to clear cached charges")
	}

	metrics.PurchaseOutcome(metrics.OutcomeSuccess)

	return &models.PurchaseResult{
		Status:                 true,
		PrintURL:               confirmation.PrintURL,
		Data:                   tickets,
		BookingReferenceNumber: referenceNo,
		TransactionID:          entry.TransactionID,
	}, nil
}

// reconcile waits the grace period and then polls for the ticket group of
// expectedRef. It returns the number of lookups made.
func (s *FerryBookingService) reconcile(ctx context.Context, expectedRef string) ([]ferry.Ticket, int, error) {
	if err := sleepContext(ctx, s.config.ReconcileGrace); err != nil {
		return nil, 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.config.ReconcileAttempts; attempt++ {
		var tickets []ferry.Ticket
		err := s.withToken(ctx, "get_latest_ticket", func(token string) error {
			var err error
			tickets, err = s.gateway.GetLatestTicket(ctx, token, models.TrackingID(ctx), expectedRef)
			return err
		})
		if err == nil && len(tickets) > 0 {
			return tickets, attempt, nil
		}
		if err == nil {
			err = ferry.ErrNoTicketsFound
		}
		lastErr = err

		s.logger.WithFields(logrus.Fields{
			"tracking_id":  models.TrackingID(ctx),
			"expected_ref": expectedRef,
			"attempt":      attempt,
		}).WithError(err).Warn("Ticket lookup after creation returned nothing")

		if attempt < s.config.ReconcileAttempts {
			if err := sleepContext(ctx, s.config.ReconcileBackoff*time.Duration(attempt)); err != nil {
				return nil, attempt, err
			}
		}
	}
	return nil, s.config.ReconcileAttempts, lastErr
}

// ============================================================================
// TICKET LOOKUP
// ============================================================================

// GetTickets lists tickets booked within the criteria window
func (s *FerryBookingService) GetTickets(ctx context.Context, principal models.Principal, criteria models.TicketSearchCriteria) ([]ferry.Ticket, error) {
	from, to, err := ValidateTicketSearchRequest(criteria, s.config.Now(), s.config.SearchWindowDays)
	if err != nil {
		return nil, err
	}

	var tickets []ferry.Ticket
	err = s.withToken(ctx, "search_tickets", func(token string) error {
		var err error
		tickets, err = s.gateway.SearchTickets(ctx, token, models.TrackingID(ctx), from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// GetPrintURL resolves the voucher URL of an upstream transaction
func (s *FerryBookingService) GetPrintURL(ctx context.Context, principal models.Principal, transactionID string) (string, error) {
	if strings.TrimSpace(transactionID) == "" {
		return "", models.NewValidationError("transactionId", "Transaction ID is required")
	}

	var url string
	err := s.withToken(ctx, "print_url", func(token string) error {
		var err error
		url, err = s.gateway.GetPrintURL(ctx, token, models.TrackingID(ctx), transactionID)
		return err
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// ============================================================================
// VOID
// ============================================================================

// VoidBooking voids every ticket of a purchase, refunds the wallet and drops
// the booking record. A partial void refunds nothing and keeps the record.
func (s *FerryBookingService) VoidBooking(ctx context.Context, principal models.Principal, transactionID, remarks string) (*models.VoidResult, error) {
	trackingID := models.TrackingID(ctx)
	log := s.logger.WithFields(logrus.Fields{
		"tracking_id":    trackingID,
		"user_id":        principal.UserID,
		"transaction_id": transactionID,
	})

	// 1. Load the purchase
	if strings.TrimSpace(transactionID) == "" {
		metrics.VoidOutcome(metrics.OutcomeRejected)
		return nil, models.NewValidationError("transactionId", "Transaction ID is required")
	}
	entry, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		metrics.VoidOutcome(metrics.OutcomeRejected)
		return nil, err
	}

	if entry.Type != models.TransactionTypeFerry || !entry.Amount.IsNegative() {
		metrics.VoidOutcome(metrics.OutcomeRejected)
		return nil, models.NewValidationError("transactionId", "Transaction %s is not a ferry purchase", transactionID)
	}

	// 2. Resolve admin bypass and ownership
	user, err := s.policy.LoadUser(ctx, principal)
	if err != nil {
		return nil, err
	}
	admin := IsAdmin(user.Type)
	if !admin {
		owns, err := s.ownsEntry(ctx, user, entry)
		if err != nil {
			return nil, err
		}
		if !owns {
			log.Warn("Void rejected, transaction belongs to another wallet")
			metrics.VoidOutcome(metrics.OutcomeRejected)
			return nil, &models.NotFoundError{Resource: "transaction", ID: transactionID}
		}
	}

	// 3. Collect the tickets bought
	meta, err := entry.FerryMeta()
	if err != nil {
		metrics.VoidOutcome(metrics.OutcomeRejected)
		return nil, models.NewValidationError("transactionId", "No ticket data found for transaction %s", transactionID)
	}
	if len(meta.Response) == 0 {
		metrics.VoidOutcome(metrics.OutcomeRejected)
		return nil, models.NewValidationError("transactionId", "No tickets found for transaction %s", transactionID)
	}

	// 4. Void every ticket upstream
	var voided, failed []string
	details := make(map[string]string)
	for _, ticket := range meta.Response {
		bookingID := ticket.VoidID()
		err := s.withToken(ctx, "void_ticket", func(token string) error {
			return s.gateway.VoidTicket(ctx, token, trackingID, bookingID, remarks)
		})
		if err != nil {
			log.WithError(err).WithField("booking_id", bookingID).Error("Failed to void ticket")
			failed = append(failed, bookingID)
			details[bookingID] = err.Error()
			continue
		}
		voided = append(voided, bookingID)
	}

	if len(failed) > 0 {
		partial := &models.PartialVoidError{
			TransactionID: transactionID,
			FailedIDs:     failed,
			Details:       details,
		}
		s.recordAudit(ctx, models.NewBookingAudit(models.BookingEventVoidPartial).
			SetTransaction(transactionID).
			SetParties(entry.UserID, entry.BalanceOwner()).
			SetBooking(meta.BookingReferenceNo, meta.PrintURL).
			SetBookingIDs(failed).
			SetError(partial, "PARTIAL_VOID").
			SetCorrelationID(trackingID).
			SetDetail("voided", voided))
		metrics.VoidOutcome(metrics.OutcomePartial)
		return nil, partial
	}

	s.recordAudit(ctx, models.NewBookingAudit(models.BookingEventVoidCompleted).
		SetTransaction(transactionID).
		SetParties(entry.UserID, entry.BalanceOwner()).
		SetBooking(meta.BookingReferenceNo, meta.PrintURL).
		SetBookingIDs(voided).
		SetCorrelationID(trackingID))

	result := &models.VoidResult{
		TransactionID:    transactionID,
		VoidedBookingIDs: voided,
	}

	// Tickets are void upstream; the refund must not depend on the caller
	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(ctx), finalizeMargin)
	defer cancelSettle()

	// 5. Refund unless admin
	if !admin {
		refund, err := s.ledger.Refund(settleCtx, entry, principal.UserID, "")
		if err != nil {
			log.WithError(err).Error("CRITICAL: Refund failed after tickets were voided")
			metrics.VoidOutcome(metrics.OutcomeLedgerFailed)
			return nil, err
		}
		result.Refunded = true
		result.RefundID = refund.TransactionID
		s.recordAudit(ctx, models.NewBookingAudit(models.BookingEventRefundIssued).
			SetTransaction(refund.TransactionID).
			SetParties(refund.UserID, refund.BalanceOwner()).
			SetAmount(refund.Amount, refund.Currency).
			SetCorrelationID(trackingID).
			SetDetail("original_transaction_id", transactionID))
	} else {
		log.Info("Admin void, no refund issued")
	}

	// 6. Drop the booking record
	if err := s.ledger.Remove(settleCtx, transactionID); err != nil {
		log.WithError(err).Error("Failed to remove voided booking")
		s.recordAudit(ctx, models.NewBookingAudit(models.BookingEventBookingRemovalFailed).
			SetTransaction(transactionID).
			SetError(err, "BOOKING_REMOVAL_FAILED").
			SetCorrelationID(trackingID))
	}

	log.WithFields(logrus.Fields{
		"voided":   len(voided),
		"refunded": result.Refunded,
	}).Info("Ferry booking voided")
	metrics.VoidOutcome(metrics.OutcomeSuccess)

	return result, nil
}

// ============================================================================
// HELPERS
// ============================================================================

// withToken runs call with a gateway token. A 401 invalidates the token and
// the call is retried once with a fresh one.
func (s *FerryBookingService) withToken(ctx context.Context, operation string, call func(token string) error) error {
	token, err := s.tokens.GetToken(ctx)
	if err != nil {
		return err
	}

	err = s.observe(operation, func() error { return call(token) })

	var expired *ferry.AuthExpiredError
	if !errors.As(err, &expired) {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"tracking_id": models.TrackingID(ctx),
		"operation":   operation,
	}).Warn("Ferry token rejected, refreshing and retrying once")

	s.tokens.Invalidate()
	token, err = s.tokens.Refresh(ctx)
	if err != nil {
		return err
	}
	return s.observe(operation, func() error { return call(token) })
}

func (s *FerryBookingService) observe(operation string, call func() error) error {
	start := time.Now()
	err := call()
	metrics.ObserveGatewayCall(operation, err, time.Since(start))
	return err
}

func (s *FerryBookingService) logState(ctx context.Context, userID string, state models.PurchaseState, fields logrus.Fields) {
	entry := s.logger.WithFields(logrus.Fields{
		"tracking_id": models.TrackingID(ctx),
		"user_id":     userID,
		"state":       state,
	}).WithFields(fields)
	if state == models.PurchaseStateFailed {
		entry.Warn("Ferry purchase state changed")
		return
	}
	entry.Info("Ferry purchase state changed")
}

// recordAudit writes an audit event. Failures are logged by the repository
// and never fail the request. A nil repository disables auditing.
func (s *FerryBookingService) recordAudit(ctx context.Context, audit *models.BookingAudit) {
	if s.audit == nil {
		return
	}
	// The event outlives the request that triggered it
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	_ = s.audit.Record(auditCtx, audit)
}

// ownsEntry reports whether user bought entry or pays from the wallet it debited
func (s *FerryBookingService) ownsEntry(ctx context.Context, user *models.User, entry *models.LedgerEntry) (bool, error) {
	if entry.UserID == user.ID || entry.BalanceOwner() == user.ID {
		return true, nil
	}
	walletID, err := s.policy.ResolveWalletOwner(ctx, user)
	if err != nil {
		return false, err
	}
	return walletID == entry.BalanceOwner(), nil
}

// agentFor returns the purchasing user when they spend from someone else's wallet
func agentFor(user *models.User, walletID string) string {
	if walletID != user.ID {
		return user.ID
	}
	return ""
}

func voidIDs(tickets []ferry.Ticket) []string {
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.VoidID())
	}
	return ids
}

func purchaseOutcome(err error) string {
	var insufficient *models.InsufficientFundsError
	var reconcile *models.TicketReconciliationError
	var critical *models.CriticalError
	var unavailable *ferry.GatewayUnavailableError
	var upstream *ferry.UpstreamError
	var badRequest *ferry.BadRequestError
	switch {
	case errors.As(err, &insufficient):
		return metrics.OutcomeInsufficientFunds
	case errors.As(err, &reconcile):
		return metrics.OutcomeReconcileFailed
	case errors.As(err, &critical):
		return metrics.OutcomeLedgerFailed
	case errors.As(err, &unavailable), errors.As(err, &upstream), errors.As(err, &badRequest), ferry.IsTransient(err):
		return metrics.OutcomeGatewayError
	}
	return metrics.OutcomeRejected
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

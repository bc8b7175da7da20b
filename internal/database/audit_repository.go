package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/models"
)

// AuditRepository handles booking audit operations
type AuditRepository struct {
	store  DocumentStore
	logger *logrus.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(store DocumentStore, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{
		store:  store,
		logger: logger,
	}
}

// Record appends a booking audit entry. Callers treat failures as non-fatal.
func (r *AuditRepository) Record(ctx context.Context, audit *models.BookingAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	if err := r.store.Set(ctx, models.CollectionAuditEvents, audit.ID, audit); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":     audit.EventType,
			"transaction_id": audit.TransactionID,
		}).Error("CRITICAL: Failed to record booking audit")
		return fmt.Errorf("failed to record booking audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Booking audit recorded")

	return nil
}

// ListByTransaction returns the audit entries of a transaction, oldest first
func (r *AuditRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*models.BookingAudit, error) {
	docs, err := r.store.Query(ctx, models.CollectionAuditEvents, QueryOptions{
		Filters: []Filter{Where("transaction_id", transactionID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by transaction ID: %w", err)
	}

	audits := make([]*models.BookingAudit, 0, len(docs))
	for _, doc := range docs {
		var audit models.BookingAudit
		if err := doc.Decode(&audit); err != nil {
			return nil, err
		}
		audits = append(audits, &audit)
	}
	sort.SliceStable(audits, func(i, j int) bool {
		return audits[i].CreatedAt.Before(audits[j].CreatedAt)
	})
	return audits, nil
}

// ListRecent returns the newest audit entries of an event type
func (r *AuditRepository) ListRecent(ctx context.Context, eventType models.BookingEventType, limit int) ([]*models.BookingAudit, error) {
	docs, err := r.store.Query(ctx, models.CollectionAuditEvents, QueryOptions{
		Filters: []Filter{Where("event_type", string(eventType))},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}

	audits := make([]*models.BookingAudit, 0, len(docs))
	for _, doc := range docs {
		var audit models.BookingAudit
		if err := doc.Decode(&audit); err != nil {
			return nil, err
		}
		audits = append(audits, &audit)
	}
	sort.SliceStable(audits, func(i, j int) bool {
		return audits[i].CreatedAt.After(audits[j].CreatedAt)
	})
	if limit > 0 && len(audits) > limit {
		audits = audits[:limit]
	}
	return audits, nil
}

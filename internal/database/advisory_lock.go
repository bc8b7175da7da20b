package database

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// AdvisoryLocker serializes work per key across server instances using
// Postgres session advisory locks. Each held lock pins one pool connection,
// so at most maxHeld locks are held at once and the rest of the pool stays
// free for the work done under them.
type AdvisoryLocker struct {
	db     *sqlx.DB
	slots  *semaphore.Weighted
	logger *logrus.Logger
}

// NewAdvisoryLocker creates a new AdvisoryLocker
func NewAdvisoryLocker(db *sqlx.DB, maxHeld int, logger *logrus.Logger) *AdvisoryLocker {
	if maxHeld < 1 {
		maxHeld = 1
	}
	return &AdvisoryLocker{db: db, slots: semaphore.NewWeighted(int64(maxHeld)), logger: logger}
}

// Lock blocks until the lock for key is held or ctx is done
func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to wait for a lock slot: %w", err)
	}

	conn, err := l.db.Connx(ctx)
	if err != nil {
		l.slots.Release(1)
		return nil, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, key); err != nil {
		// A cancelled wait may still leave the lock granted, so drop the session
		_ = conn.Raw(func(interface{}) error { return driver.ErrBadConn })
		conn.Close()
		l.slots.Release(1)
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}

	return func() {
		defer l.slots.Release(1)

		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
			l.logger.WithError(err).WithField("lock_key", key).Error("Failed to release advisory lock")
			// Drop the connection so the session lock dies with it
			_ = conn.Raw(func(interface{}) error { return driver.ErrBadConn })
		}
		conn.Close()
	}, nil
}

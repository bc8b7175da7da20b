package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/config"
	"github.com/Joshlanuevo/ferry-api/internal/database"
)

// cronJobTimeout bounds a single job run
const cronJobTimeout = 2 * time.Minute

// CronService manages scheduled background jobs
type CronService struct {
	cron    *cron.Cron
	tokens  *TokenCache
	charges *database.ChargesCacheRepository
	config  config.CronConfig
	now     func() time.Time
	logger  *logrus.Logger
}

// NewCronService creates a new CronService. Schedules use the standard
// five-field cron format.
func NewCronService(tokens *TokenCache, charges *database.ChargesCacheRepository, cfg config.CronConfig, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:    cron.New(),
		tokens:  tokens,
		charges: charges,
		config:  cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// Job 1: Pre-refresh the ferry token before it expires
	if _, err := s.cron.AddFunc(s.config.TokenRefreshSchedule, s.refreshTokenJob); err != nil {
		return fmt.Errorf("failed to schedule token refresh job: %w", err)
	}
	s.logger.WithField("schedule", s.config.TokenRefreshSchedule).Info("Scheduled: ferry token pre-refresh")

	// Job 2: Sweep expired session charges
	if _, err := s.cron.AddFunc(s.config.ChargesSweepSchedule, s.sweepChargesJob); err != nil {
		return fmt.Errorf("failed to schedule charges sweep job: %w", err)
	}
	s.logger.WithField("schedule", s.config.ChargesSweepSchedule).Info("Scheduled: expired charges sweep")

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) refreshTokenJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	if _, err := s.RunTokenRefresh(ctx); err != nil {
		s.logger.WithError(err).Error("[CRON] Ferry token pre-refresh failed")
	}
}

func (s *CronService) sweepChargesJob() {
	ctx, cancel := context.WithTimeout(context.Background(), cronJobTimeout)
	defer cancel()

	if _, err := s.RunChargesSweep(ctx); err != nil {
		s.logger.WithError(err).Error("[CRON] Charges sweep failed")
	}
}

// RunTokenRefresh refreshes the ferry token if it expires within the
// configured window and reports whether it did
func (s *CronService) RunTokenRefresh(ctx context.Context) (bool, error) {
	refreshed, err := s.tokens.RefreshIfExpiring(ctx, s.config.TokenRefreshWindow)
	if err != nil {
		return false, err
	}
	if refreshed {
		s.logger.Info("[CRON] Ferry token pre-refreshed")
	}
	return refreshed, nil
}

// RunChargesSweep deletes expired session charges and returns how many
func (s *CronService) RunChargesSweep(ctx context.Context) (int, error) {
	start := time.Now()
	removed, err := s.charges.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"removed":  removed,
		"duration": time.Since(start).String(),
	}).Info("[CRON] Expired charges swept")
	return removed, nil
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}

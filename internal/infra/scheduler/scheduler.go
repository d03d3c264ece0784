package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper is the part of the notification service the scheduler drives.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
	RedeliverPending(ctx context.Context) (int, error)
}

type NotificationScheduler struct {
	cronEngine         *cron.Cron
	sweeper            Sweeper
	logger             *logrus.Entry
	cronSpecCleanup    string
	cronSpecRedelivery string // Empty disables redelivery (bot off)
}

func NewNotificationScheduler(
	sweeper Sweeper,
	logger *logrus.Entry,
	cronSpecCleanup string, // e.g., "0 3 * * *" (3 AM daily)
	cronSpecRedelivery string, // e.g., "*/10 * * * *" (every 10 minutes)
) *NotificationScheduler {
	return &NotificationScheduler{
		cronEngine:         cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		sweeper:            sweeper,
		logger:             logger,
		cronSpecCleanup:    cronSpecCleanup,
		cronSpecRedelivery: cronSpecRedelivery,
	}
}

// Start registers the jobs and starts the cron engine. It fails without
// starting anything if a cron spec is invalid.
func (s *NotificationScheduler) Start() error {
	s.logger.Info("Starting notification scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecCleanup, s.runCleanup); err != nil {
		return fmt.Errorf("could not add notification cleanup cron job: %w", err)
	}

	if s.cronSpecRedelivery != "" {
		if _, err := s.cronEngine.AddFunc(s.cronSpecRedelivery, s.runRedelivery); err != nil {
			return fmt.Errorf("could not add notification redelivery cron job: %w", err)
		}
	}

	s.cronEngine.Start()
	s.logger.WithField("jobs", len(s.cronEngine.Entries())).Info("Notification scheduler started with jobs.")
	return nil
}

func (s *NotificationScheduler) runCleanup() {
	s.logger.Info("Cron job triggered for expired notification cleanup.")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	removed, err := s.sweeper.CleanupExpired(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error during expired notification cleanup")
		return
	}
	s.logger.WithField("removed", removed).Info("Expired notification cleanup finished.")
}

func (s *NotificationScheduler) runRedelivery() {
	s.logger.Debug("Cron job triggered for notification redelivery.")
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()
	delivered, err := s.sweeper.RedeliverPending(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error during notification redelivery")
		return
	}
	if delivered > 0 {
		s.logger.WithField("delivered", delivered).Info("Redelivered pending notifications.")
	}
}

func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Notification scheduler gracefully stopped.")
}

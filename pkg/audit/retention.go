package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tidewater/agencyhub/pkg/observability"
)

// RetentionSweeper periodically deletes audit events older than the
// configured retention window.
type RetentionSweeper struct {
	dbLogger      *DBLogger
	retentionDays int
	schedule      string
	logger        *observability.Logger
	cron          *cron.Cron
}

// NewRetentionSweeper creates a sweeper; schedule is a standard cron
// expression (e.g. "0 3 * * *" for 3am daily).
func NewRetentionSweeper(dbLogger *DBLogger, retentionDays int, schedule string, logger *observability.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		dbLogger:      dbLogger,
		retentionDays: retentionDays,
		schedule:      schedule,
		logger:        logger.WithField("component", "audit_retention"),
		cron:          cron.New(),
	}
}

// Start registers the sweep job and starts the scheduler
func (s *RetentionSweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infof("audit retention sweep scheduled (%s, %d days)", s.schedule, s.retentionDays)
	return nil
}

// Sweep runs one retention pass
func (s *RetentionSweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.dbLogger.Cleanup(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("audit retention sweep failed")
		return
	}
	s.logger.WithField("deleted", deleted).Info("audit retention sweep complete")
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *RetentionSweeper) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package service

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/config"
)

// Jobs are the two entry points the scheduler drives: the daily
// schedule-then-publish cycle and the quarter-hourly engage cycle. The HTTP
// trigger routes invoke the same functions.
type Jobs struct {
	Daily         func(ctx context.Context) error
	QuarterHourly func(ctx context.Context) error
}

// Scheduler runs the two cadences in-process, for deployments without an
// external cron hitting the trigger endpoints.
type Scheduler struct {
	config *config.SchedulerConfig
	logger *zap.Logger
	jobs   Jobs
	cron   *cron.Cron
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, jobs Jobs) *Scheduler {
	return &Scheduler{
		config: cfg,
		logger: logger,
		jobs:   jobs,
		cron:   cron.New(),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.DailyCron, func() {
		s.runJob(ctx, "daily", s.jobs.Daily)
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.config.QuarterHourlyCron, func() {
		s.runJob(ctx, "quarter-hourly", s.jobs.QuarterHourly)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("daily_cron", s.config.DailyCron),
		zap.String("quarter_hourly_cron", s.config.QuarterHourlyCron))
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler shutdown completed")
}

// runJob isolates one tick. A failed run is logged and retried naturally on
// the next tick; the pipelines are idempotent and resumable.
func (s *Scheduler) runJob(ctx context.Context, name string, job func(ctx context.Context) error) {
	s.logger.Info("Running scheduled job", zap.String("job", name))
	if err := job(ctx); err != nil {
		s.logger.Error("Scheduled job failed",
			zap.String("job", name),
			zap.Error(err))
		return
	}
	s.logger.Info("Scheduled job finished", zap.String("job", name))
}

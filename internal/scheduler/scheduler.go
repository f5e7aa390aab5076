package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/alx-report/report-api/internal/service"
	"github.com/alx-report/report-api/pkg/config"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

// Scheduler runs the background jobs: the incremental sync pass, the cache
// sweep and request-log retention.
type Scheduler struct {
	cron    *cron.Cron
	sync    *service.SyncService
	cache   *service.CacheService
	limiter *service.RateLimitService
	logger  *zap.Logger
	cfg     *config.Config
}

// New constructs the scheduler without starting it.
func New(sync *service.SyncService, cache *service.CacheService, limiter *service.RateLimitService, logger *zap.Logger, cfg *config.Config) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		sync:    sync,
		cache:   cache,
		limiter: limiter,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start registers and starts the cron jobs.
func (s *Scheduler) Start() error {
	if s.cfg.Sync.Enabled {
		if _, err := s.cron.AddFunc(s.cfg.Sync.CronSpec, s.runSyncPass); err != nil {
			return err
		}
	}
	if _, err := s.cron.AddFunc(s.cfg.Cache.SweepCronSpec, s.sweepCache); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.Retention.CleanupCron, s.pruneRequestLog); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Bool("sync_enabled", s.cfg.Sync.Enabled),
		zap.String("sync_cron", s.cfg.Sync.CronSpec))
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runSyncPass() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Sync.MaxRunTime+time.Minute)
	defer cancel()

	stats, err := s.sync.RunIncrementalPass(ctx, 0, s.cfg.Sync.LookbackHours)
	if err != nil {
		// An overlapping run is expected when a pass outlasts the
		// schedule interval; anything else is a real failure.
		if errors.Is(err, appErrors.ErrSyncInProgress) {
			s.logger.Info("sync pass skipped, previous pass still running")
			return
		}
		s.logger.Error("scheduled sync pass failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled sync pass done",
		zap.Int("companies", stats.CompaniesProcessed),
		zap.Int("created", stats.RecordsCreated),
		zap.Int("updated", stats.RecordsUpdated),
		zap.Bool("partial", stats.Partial))
}

func (s *Scheduler) sweepCache() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.cache.Sweep(ctx, time.Now().Unix())
	if err != nil {
		s.logger.Error("cache sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("cache sweep done", zap.Int64("removed", removed))
	}
}

func (s *Scheduler) pruneRequestLog() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	retention := time.Duration(s.cfg.Retention.RequestLogDays) * 24 * time.Hour
	removed, err := s.limiter.Prune(ctx, time.Now(), retention)
	if err != nil {
		s.logger.Error("request log prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("request log prune done", zap.Int64("removed", removed))
	}
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

const syncLockName = "sync_engine"

// admissionMargin is the minimum wall-clock budget left before the engine
// admits another company into a pass.
const admissionMargin = 30 * time.Second

type syncReportingRepo interface {
	Upsert(ctx context.Context, key models.ReportingKey, p *models.SourceProjection, now int64) (bool, error)
	InsertIfAbsent(ctx context.Context, companyID int64, p *models.SourceProjection, now int64) (bool, error)
	SoftDelete(ctx context.Context, key models.ReportingKey, now int64) error
	Stats(ctx context.Context, companyID int64) (*models.ReportingStats, error)
}

type syncSourceRepo interface {
	FetchProjection(ctx context.Context, key models.ReportingKey) (*models.SourceProjection, error)
	ChangedKeys(ctx context.Context, companyID, cutoff int64) ([]models.ReportingKey, error)
	EnrolledProjections(ctx context.Context, companyID int64, courseIDs []int64, limit, offset int) ([]models.SourceProjection, error)
	OrphanKeys(ctx context.Context, companyID int64) ([]models.ReportingKey, error)
	Companies(ctx context.Context) ([]models.Company, error)
	CompanyByID(ctx context.Context, id int64) (*models.Company, error)
}

type syncLockRepo interface {
	Acquire(ctx context.Context, name, holder string, now int64, staleAfter time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

type syncLedgerLister interface {
	ListByCompany(ctx context.Context, companyID int64) ([]models.SyncStatus, error)
}

// SyncEngineConfig tunes the background sync pass.
type SyncEngineConfig struct {
	LookbackHours  int
	MaxRunTime     time.Duration
	BatchSize      int
	LockStaleAfter time.Duration
}

// SyncService maintains the reporting table from the operational tables: the
// scheduled incremental pass, the bootstrap populate and orphan cleanup.
type SyncService struct {
	reporting syncReportingRepo
	source    syncSourceRepo
	locks     syncLockRepo
	ledger    syncLedgerLister
	settings  settingsLoader
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	config    SyncEngineConfig
	now       func() time.Time
}

// NewSyncService constructs the engine.
func NewSyncService(reporting syncReportingRepo, source syncSourceRepo, locks syncLockRepo, ledger syncLedgerLister, settings settingsLoader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, config SyncEngineConfig) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LookbackHours <= 0 {
		config.LookbackHours = 1
	}
	if config.MaxRunTime <= 0 {
		config.MaxRunTime = 5 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	if config.LockStaleAfter <= 0 {
		config.LockStaleAfter = 15 * time.Minute
	}
	return &SyncService{
		reporting: reporting,
		source:    source,
		locks:     locks,
		ledger:    ledger,
		settings:  settings,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// RunIncrementalPass recomputes every reporting row whose source changed
// within the lookback window. companyID of zero means all companies. A
// company that fails is logged and skipped; the pass never aborts for one
// company's errors. The pass stops admitting companies once the run-time
// budget is nearly spent and reports the run as partial.
func (s *SyncService) RunIncrementalPass(ctx context.Context, companyID int64, lookbackHours int) (*models.SyncRunStats, error) {
	start := s.now()
	holder := uuid.NewString()
	acquired, err := s.locks.Acquire(ctx, syncLockName, holder, start.Unix(), s.config.LockStaleAfter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire sync lock")
	}
	if !acquired {
		return nil, appErrors.ErrSyncInProgress
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), syncLockName, holder); err != nil {
			s.logger.Error("failed to release sync lock", zap.Error(err))
		}
	}()

	if lookbackHours <= 0 {
		lookbackHours = s.config.LookbackHours
	}
	cutoff := start.Unix() - int64(lookbackHours)*3600
	deadline := start.Add(s.config.MaxRunTime)

	companies, err := s.targetCompanies(ctx, companyID)
	if err != nil {
		return nil, err
	}

	stats := &models.SyncRunStats{}
	for _, company := range companies {
		if s.now().After(deadline.Add(-admissionMargin)) {
			stats.Partial = true
			s.logger.Warn("sync pass out of time, remaining companies deferred",
				zap.Int("processed", stats.CompaniesProcessed),
				zap.Int("total", len(companies)))
			break
		}

		created, updated, users, rowErrors, err := s.syncCompany(ctx, company.ID, cutoff)
		if err != nil {
			stats.TotalErrors++
			stats.CompaniesWithErrors = append(stats.CompaniesWithErrors, company.ID)
			s.logger.Error("company sync failed",
				zap.Int64("company_id", company.ID),
				zap.Error(err))
			continue
		}

		stats.CompaniesProcessed++
		stats.RecordsCreated += created
		stats.RecordsUpdated += updated
		stats.UsersUpdated += users
		stats.TotalErrors += rowErrors
		if rowErrors > 0 {
			stats.CompaniesWithErrors = append(stats.CompaniesWithErrors, company.ID)
		}

		// Stale cached responses must not outlive the data change that
		// made them stale.
		if created+updated > 0 {
			s.cache.InvalidateCompany(ctx, company.ID)
		}
	}

	duration := s.now().Sub(start)
	stats.DurationSeconds = int64(duration.Seconds())
	s.metrics.RecordSyncPass(duration, stats.RecordsCreated, stats.RecordsUpdated, stats.TotalErrors)
	s.logger.Info("sync pass finished",
		zap.Int("companies", stats.CompaniesProcessed),
		zap.Int("created", stats.RecordsCreated),
		zap.Int("updated", stats.RecordsUpdated),
		zap.Int("errors", stats.TotalErrors),
		zap.Bool("partial", stats.Partial),
		zap.Duration("duration", duration))
	return stats, nil
}

func (s *SyncService) syncCompany(ctx context.Context, companyID, cutoff int64) (created, updated, users, rowErrors int, err error) {
	keys, err := s.source.ChangedKeys(ctx, companyID, cutoff)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	seenUsers := make(map[int64]struct{})
	for _, key := range keys {
		wasCreated, err := s.RecomputeAndUpsert(ctx, key)
		if err != nil {
			rowErrors++
			s.logger.Warn("row recompute failed",
				zap.Int64("user_id", key.UserID),
				zap.Int64("course_id", key.CourseID),
				zap.Error(err))
			continue
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
		if _, seen := seenUsers[key.UserID]; !seen {
			seenUsers[key.UserID] = struct{}{}
			users++
		}
	}
	return created, updated, users, rowErrors, nil
}

// RecomputeAndUpsert refreshes one reporting row from the source of truth. A
// key whose source rows are gone is soft-deleted so incremental consumers
// observe the removal; either way the row's last_updated is bumped.
func (s *SyncService) RecomputeAndUpsert(ctx context.Context, key models.ReportingKey) (bool, error) {
	now := s.now().Unix()
	projection, err := s.source.FetchProjection(ctx, key)
	if err != nil {
		return false, err
	}
	if projection == nil {
		return false, s.reporting.SoftDelete(ctx, key, now)
	}
	return s.reporting.Upsert(ctx, key, projection, now)
}

// FullPopulate bootstraps the reporting table from current enrollments. It
// only inserts missing rows, so re-running it never clobbers rows the
// incremental sync has already refreshed.
func (s *SyncService) FullPopulate(ctx context.Context, companyID int64, batchSize int) (*models.PopulateStats, error) {
	start := s.now()
	if batchSize <= 0 {
		batchSize = s.config.BatchSize
	}

	companies, err := s.targetCompanies(ctx, companyID)
	if err != nil {
		return nil, err
	}

	stats := &models.PopulateStats{}
	for _, company := range companies {
		settings, err := s.settings.Load(ctx, company.ID)
		if err != nil {
			return nil, err
		}
		var courseIDs []int64
		if settings.HasCourseSettings {
			courseIDs = settings.EnabledCourseIDs()
			if len(courseIDs) == 0 {
				continue
			}
		}

		offset := 0
		for {
			projections, err := s.source.EnrolledProjections(ctx, company.ID, courseIDs, batchSize, offset)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stream enrollments")
			}
			for i := range projections {
				inserted, err := s.reporting.InsertIfAbsent(ctx, company.ID, &projections[i], s.now().Unix())
				if err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert reporting row")
				}
				stats.TotalProcessed++
				if inserted {
					stats.TotalInserted++
				}
			}
			if len(projections) < batchSize {
				break
			}
			offset += batchSize
		}
		stats.CompaniesProcessed++
	}

	stats.DurationSeconds = int64(s.now().Sub(start).Seconds())
	s.logger.Info("full populate finished",
		zap.Int("companies", stats.CompaniesProcessed),
		zap.Int("processed", stats.TotalProcessed),
		zap.Int("inserted", stats.TotalInserted))
	return stats, nil
}

// CleanupOrphans soft-deletes active reporting rows whose source no longer
// satisfies the membership, visibility and enrollment predicates.
func (s *SyncService) CleanupOrphans(ctx context.Context, companyID int64) (int, error) {
	companies, err := s.targetCompanies(ctx, companyID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, company := range companies {
		keys, err := s.source.OrphanKeys(ctx, company.ID)
		if err != nil {
			return removed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find orphan rows")
		}
		now := s.now().Unix()
		for _, key := range keys {
			if err := s.reporting.SoftDelete(ctx, key, now); err != nil {
				return removed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to soft delete orphan row")
			}
			removed++
		}
		if len(keys) > 0 {
			s.cache.InvalidateCompany(ctx, company.ID)
		}
	}
	return removed, nil
}

// ReportingStats exposes a company's reporting-table summary for monitoring.
func (s *SyncService) ReportingStats(ctx context.Context, companyID int64) (*models.ReportingStats, error) {
	stats, err := s.reporting.Stats(ctx, companyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reporting stats")
	}
	return stats, nil
}

// ListStatuses returns a company's ledger rows for the monitoring endpoint.
func (s *SyncService) ListStatuses(ctx context.Context, companyID int64) ([]models.SyncStatus, error) {
	statuses, err := s.ledger.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sync statuses")
	}
	return statuses, nil
}

func (s *SyncService) targetCompanies(ctx context.Context, companyID int64) ([]models.Company, error) {
	if companyID > 0 {
		company, err := s.source.CompanyByID(ctx, companyID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "company not found")
		}
		return []models.Company{*company}, nil
	}
	companies, err := s.source.Companies(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list companies")
	}
	return companies, nil
}

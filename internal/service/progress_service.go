package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alx-report/report-api/internal/dto"
	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

type reportingReader interface {
	FindIncremental(ctx context.Context, companyID, since int64, courseIDs []int64, limit, offset int) ([]models.ReportingRecord, error)
	FindFull(ctx context.Context, companyID int64, courseIDs []int64, limit, offset int) ([]models.ReportingRecord, error)
	CountActive(ctx context.Context, companyID int64) (int64, error)
}

type fallbackReader interface {
	FallbackProjections(ctx context.Context, companyID int64, courseIDs []int64, completedAfter int64, limit, offset int) ([]models.SourceProjection, error)
}

type syncLedger interface {
	Get(ctx context.Context, companyID int64, tokenHash string) (*models.SyncStatus, error)
	RecordAttempt(ctx context.Context, status *models.SyncStatus, now int64) error
}

type settingsLoader interface {
	Load(ctx context.Context, companyID int64) (*models.CompanySettings, error)
}

// ProgressConfig tunes the read API.
type ProgressConfig struct {
	MaxRecords   int
	DefaultLimit int
}

// ProgressResult is one resolved read-API response. Payload is set instead
// of Rows when the response came from the cache.
type ProgressResult struct {
	Rows    []dto.ProgressRow
	Payload json.RawMessage
	Mode    models.ResolvedMode
	Cached  bool
}

// ProgressService resolves read-API requests: mode determination, cache
// lookup, reporting-table queries, the verified-empty fallback and the
// ordered field projection.
type ProgressService struct {
	reporting reportingReader
	source    fallbackReader
	ledger    syncLedger
	settings  settingsLoader
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	config    ProgressConfig
	now       func() time.Time
}

// NewProgressService constructs the resolver.
func NewProgressService(reporting reportingReader, source fallbackReader, ledger syncLedger, settings settingsLoader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, config ProgressConfig) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRecords <= 0 {
		config.MaxRecords = 1000
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 100
	}
	return &ProgressService{
		reporting: reporting,
		source:    source,
		ledger:    ledger,
		settings:  settings,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// ResolveSyncMode decides how a request is served. It is a pure function of
// the configured mode, the ledger row and the clock:
//
//	no ledger row  -> first, regardless of the configured mode, so the
//	                  first-sync window applies to a brand-new consumer
//	full/disabled  -> full
//	last run failed -> full, so the consumer recovers anything a failed
//	                  response made it skip
//	forced incremental -> incremental regardless of elapsed time
//	auto           -> full once the window has elapsed, else incremental
func ResolveSyncMode(mode models.SyncMode, status *models.SyncStatus, now int64, windowHours int) models.ResolvedMode {
	if status == nil || status.LastSyncTimestamp == 0 {
		return models.ResolvedFirst
	}
	if mode == models.SyncModeFull || mode == models.SyncModeDisabled {
		return models.ResolvedFull
	}
	if status.LastSyncStatus == models.SyncOutcomeFailed {
		return models.ResolvedFull
	}
	if mode == models.SyncModeIncremental {
		return models.ResolvedIncremental
	}
	if now-status.LastSyncTimestamp > int64(windowHours)*3600 {
		return models.ResolvedFull
	}
	return models.ResolvedIncremental
}

// GetProgress serves one read-API request for the authenticated principal.
func (s *ProgressService) GetProgress(ctx context.Context, principal *models.Principal, query dto.ProgressQuery) (*ProgressResult, error) {
	limit := query.Limit
	if limit == 0 {
		limit = s.config.DefaultLimit
	}
	if limit < 0 || limit > s.config.MaxRecords {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("limit must be between 1 and %d", s.config.MaxRecords))
	}
	offset := query.Offset
	if offset < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "offset must not be negative")
	}

	settings, err := s.settings.Load(ctx, principal.CompanyID)
	if err != nil {
		return nil, err
	}

	// An explicit course configuration with nothing enabled means the
	// company opted out of every course, which is an empty result rather
	// than an unfiltered one.
	var courseIDs []int64
	emptySelection := false
	if settings.HasCourseSettings {
		courseIDs = settings.EnabledCourseIDs()
		emptySelection = len(courseIDs) == 0
	}

	status, err := s.ledger.Get(ctx, principal.CompanyID, principal.TokenHash)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sync status")
	}

	windowHours := settings.SyncWindowHours
	if status != nil && status.SyncWindowHours > 0 {
		windowHours = status.SyncWindowHours
	}
	now := s.now().Unix()
	resolved := ResolveSyncMode(settings.SyncMode, status, now, windowHours)
	s.metrics.RecordResolvedMode(string(resolved))

	// An opted-out company still gets its ledger advanced; otherwise the
	// consumer would stay resolved as first forever.
	if emptySelection {
		s.recordAttempt(ctx, principal, settings, windowHours, 0, models.SyncOutcomeSuccess, nil, now)
		return &ProgressResult{Rows: []dto.ProgressRow{}, Mode: resolved}, nil
	}

	cacheKey := fmt.Sprintf("progress_%s_%d_%d", principal.TokenHash, limit, offset)
	companyCaching := s.cache.Enabled() && settings.CacheEnabled

	// Only incremental responses are cacheable: first and full responses
	// are both large and rare, and caching them would blunt the window
	// semantics they exist to restore.
	if resolved == models.ResolvedIncremental && companyCaching {
		if payload, hit := s.cache.Get(ctx, cacheKey, principal.CompanyID, now); hit {
			return &ProgressResult{Payload: payload, Mode: resolved, Cached: true}, nil
		}
	}

	rows, err := s.queryRows(ctx, principal, settings, status, resolved, courseIDs, limit, offset, now)
	if err != nil {
		// A failing reporting store is marked failed in the ledger and then
		// served from the source of truth: consumers keep getting data, and
		// the failed mark makes the next request resolve full so nothing a
		// degraded response missed stays skipped.
		s.recordAttempt(ctx, principal, settings, windowHours, 0, models.SyncOutcomeFailed, err, now)
		s.logger.Warn("reporting query failed, serving source fallback",
			zap.Int64("company_id", principal.CompanyID),
			zap.String("mode", string(resolved)),
			zap.Error(err))
		rows, err = s.fallbackRows(ctx, principal, settings, resolved, courseIDs, limit, offset, now)
		if err != nil {
			return nil, err
		}
		return &ProgressResult{Rows: rows, Mode: resolved}, nil
	}

	s.recordAttempt(ctx, principal, settings, windowHours, len(rows), models.SyncOutcomeSuccess, nil, now)

	if resolved == models.ResolvedIncremental && companyCaching && len(rows) > 0 {
		if payload, err := json.Marshal(rows); err == nil {
			ttl := time.Duration(settings.CacheTTLMinutes) * time.Minute
			s.cache.Set(ctx, cacheKey, principal.CompanyID, payload, now, ttl)
		}
	}

	return &ProgressResult{Rows: rows, Mode: resolved}, nil
}

func (s *ProgressService) queryRows(ctx context.Context, principal *models.Principal, settings *models.CompanySettings, status *models.SyncStatus, resolved models.ResolvedMode, courseIDs []int64, limit, offset int, now int64) ([]dto.ProgressRow, error) {
	var (
		records []models.ReportingRecord
		err     error
	)
	switch resolved {
	case models.ResolvedIncremental:
		records, err = s.reporting.FindIncremental(ctx, principal.CompanyID, status.LastSyncTimestamp, courseIDs, limit, offset)
	default:
		records, err = s.reporting.FindFull(ctx, principal.CompanyID, courseIDs, limit, offset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query reporting data")
	}

	if len(records) > 0 || offset > 0 {
		return s.projectRecords(records, settings), nil
	}

	// An empty first page could mean the company's reporting slice has not
	// been populated yet. Only a verified-empty table falls back to the
	// source of truth; an empty incremental delta over a populated table is
	// the normal "no changes" answer.
	active, err := s.reporting.CountActive(ctx, principal.CompanyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify reporting data")
	}
	if active > 0 {
		return []dto.ProgressRow{}, nil
	}

	return s.fallbackRows(ctx, principal, settings, resolved, courseIDs, limit, offset, now)
}

// fallbackRows serves a page straight from the source-of-truth tables. Used
// when the reporting slice is verified empty and when a reporting query
// fails. The first-sync window only narrows a first-mode read.
func (s *ProgressService) fallbackRows(ctx context.Context, principal *models.Principal, settings *models.CompanySettings, resolved models.ResolvedMode, courseIDs []int64, limit, offset int, now int64) ([]dto.ProgressRow, error) {
	var completedAfter int64
	if resolved == models.ResolvedFirst && settings.FirstSyncHours > 0 {
		completedAfter = now - int64(settings.FirstSyncHours)*3600
	}
	projections, err := s.source.FallbackProjections(ctx, principal.CompanyID, courseIDs, completedAfter, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query source data")
	}
	return s.projectFallback(projections, settings), nil
}

func (s *ProgressService) recordAttempt(ctx context.Context, principal *models.Principal, settings *models.CompanySettings, windowHours, records int, outcome string, attemptErr error, now int64) {
	status := &models.SyncStatus{
		CompanyID:       principal.CompanyID,
		TokenHash:       principal.TokenHash,
		SyncMode:        settings.SyncMode,
		SyncWindowHours: windowHours,
		LastSyncRecords: records,
		LastSyncStatus:  outcome,
	}
	if attemptErr != nil {
		msg := attemptErr.Error()
		status.LastSyncError = &msg
	}
	if err := s.ledger.RecordAttempt(ctx, status, now); err != nil {
		s.logger.Error("failed to record sync attempt",
			zap.Int64("company_id", principal.CompanyID),
			zap.Error(err))
	}
}

// fieldValue returns the output value for one enabled field name.
func fieldValue(name string, rec *models.ReportingRecord) interface{} {
	switch name {
	case "userid":
		return rec.UserID
	case "firstname":
		return rec.FirstName
	case "lastname":
		return rec.LastName
	case "email":
		return rec.Email
	case "courseid":
		return rec.CourseID
	case "coursename":
		return rec.CourseName
	case "timecompleted":
		return formatUnix(rec.TimeCompleted)
	case "timecompleted_unix":
		return rec.TimeCompleted
	case "timestarted":
		return formatUnix(rec.TimeStarted)
	case "timestarted_unix":
		return rec.TimeStarted
	case "percentage":
		return rec.Percentage
	case "status":
		return rec.Status
	}
	return nil
}

func (s *ProgressService) projectRecords(records []models.ReportingRecord, settings *models.CompanySettings) []dto.ProgressRow {
	rows := make([]dto.ProgressRow, 0, len(records))
	for i := range records {
		row := make(dto.ProgressRow, 0, len(models.ProgressFieldNames))
		for _, name := range models.ProgressFieldNames {
			if !settings.FieldVisible(name) {
				continue
			}
			row = append(row, dto.ProgressField{Name: name, Value: fieldValue(name, &records[i])})
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *ProgressService) projectFallback(projections []models.SourceProjection, settings *models.CompanySettings) []dto.ProgressRow {
	records := make([]models.ReportingRecord, len(projections))
	for i, p := range projections {
		records[i] = models.ReportingRecord{
			UserID:        p.UserID,
			FirstName:     p.FirstName,
			LastName:      p.LastName,
			Email:         p.Email,
			CourseID:      p.CourseID,
			CourseName:    p.CourseName,
			TimeCompleted: p.TimeCompleted,
			TimeStarted:   p.TimeStarted,
			Percentage:    p.Percentage,
			Status:        p.Status,
		}
	}
	return s.projectRecords(records, settings)
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

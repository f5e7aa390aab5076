package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alx-report/report-api/internal/dto"
	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

type reportingReaderStub struct {
	incremental []models.ReportingRecord
	full        []models.ReportingRecord
	active      int64
	err         error

	incrementalSince int64
	fullCalls        int
	incrementalCalls int
}

func (s *reportingReaderStub) FindIncremental(ctx context.Context, companyID, since int64, courseIDs []int64, limit, offset int) ([]models.ReportingRecord, error) {
	s.incrementalCalls++
	s.incrementalSince = since
	return s.incremental, s.err
}

func (s *reportingReaderStub) FindFull(ctx context.Context, companyID int64, courseIDs []int64, limit, offset int) ([]models.ReportingRecord, error) {
	s.fullCalls++
	return s.full, s.err
}

func (s *reportingReaderStub) CountActive(ctx context.Context, companyID int64) (int64, error) {
	return s.active, nil
}

type fallbackReaderStub struct {
	projections    []models.SourceProjection
	completedAfter int64
	calls          int
}

func (s *fallbackReaderStub) FallbackProjections(ctx context.Context, companyID int64, courseIDs []int64, completedAfter int64, limit, offset int) ([]models.SourceProjection, error) {
	s.calls++
	s.completedAfter = completedAfter
	return s.projections, nil
}

type syncLedgerStub struct {
	status   *models.SyncStatus
	attempts []models.SyncStatus
}

func (s *syncLedgerStub) Get(ctx context.Context, companyID int64, tokenHash string) (*models.SyncStatus, error) {
	return s.status, nil
}

func (s *syncLedgerStub) RecordAttempt(ctx context.Context, status *models.SyncStatus, now int64) error {
	s.attempts = append(s.attempts, *status)
	return nil
}

type settingsLoaderStub struct {
	settings *models.CompanySettings
}

func (s *settingsLoaderStub) Load(ctx context.Context, companyID int64) (*models.CompanySettings, error) {
	return s.settings, nil
}

type cacheRepoStub struct {
	entries map[string]json.RawMessage
	sets    int
}

func (s *cacheRepoStub) Get(ctx context.Context, cacheKey string, companyID int64, now int64) (json.RawMessage, error) {
	if payload, ok := s.entries[cacheKey]; ok {
		return payload, nil
	}
	return nil, appErrors.ErrCacheMiss
}

func (s *cacheRepoStub) Set(ctx context.Context, cacheKey string, companyID int64, payload json.RawMessage, now, expiresAt int64) error {
	if s.entries == nil {
		s.entries = make(map[string]json.RawMessage)
	}
	s.entries[cacheKey] = payload
	s.sets++
	return nil
}

func (s *cacheRepoStub) InvalidateCompany(ctx context.Context, companyID int64) (int64, error) {
	n := int64(len(s.entries))
	s.entries = nil
	return n, nil
}

func (s *cacheRepoStub) Sweep(ctx context.Context, cutoff int64) (int64, error) {
	return 0, nil
}

func defaultSettings() *models.CompanySettings {
	settings := &models.CompanySettings{
		CompanyID:       42,
		Fields:          make(map[string]bool),
		EnabledCourses:  make(map[int64]bool),
		SyncMode:        models.SyncModeAuto,
		SyncWindowHours: 24,
		CacheEnabled:    true,
		CacheTTLMinutes: 30,
	}
	for _, name := range models.ProgressFieldNames {
		settings.Fields[name] = true
	}
	return settings
}

func testPrincipal() *models.Principal {
	return &models.Principal{UserID: 7, CompanyID: 42, TokenHash: "abc123"}
}

func newProgressService(reporting *reportingReaderStub, source *fallbackReaderStub, ledger *syncLedgerStub, settings *models.CompanySettings, cacheRepo CacheRepository) *ProgressService {
	cache := NewCacheService(cacheRepo, nil, 30*time.Minute, nil, cacheRepo != nil)
	svc := NewProgressService(reporting, source, ledger, &settingsLoaderStub{settings: settings}, cache, nil, nil, ProgressConfig{MaxRecords: 1000, DefaultLimit: 100})
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return svc
}

func TestResolveSyncMode(t *testing.T) {
	now := int64(1_700_000_000)
	healthy := &models.SyncStatus{LastSyncTimestamp: now - 3600, LastSyncStatus: models.SyncOutcomeSuccess}
	failed := &models.SyncStatus{LastSyncTimestamp: now - 3600, LastSyncStatus: models.SyncOutcomeFailed}
	stale := &models.SyncStatus{LastSyncTimestamp: now - 90_000, LastSyncStatus: models.SyncOutcomeSuccess}

	cases := []struct {
		name   string
		mode   models.SyncMode
		status *models.SyncStatus
		want   models.ResolvedMode
	}{
		{"disabled always full", models.SyncModeDisabled, healthy, models.ResolvedFull},
		{"full always full", models.SyncModeFull, healthy, models.ResolvedFull},
		{"no ledger row is first", models.SyncModeAuto, nil, models.ResolvedFirst},
		{"zero timestamp is first", models.SyncModeAuto, &models.SyncStatus{}, models.ResolvedFirst},
		{"full without ledger is still first", models.SyncModeFull, nil, models.ResolvedFirst},
		{"disabled without ledger is still first", models.SyncModeDisabled, nil, models.ResolvedFirst},
		{"failed last run forces full", models.SyncModeAuto, failed, models.ResolvedFull},
		{"recent success is incremental", models.SyncModeAuto, healthy, models.ResolvedIncremental},
		{"elapsed window forces full", models.SyncModeAuto, stale, models.ResolvedFull},
		{"forced incremental ignores window", models.SyncModeIncremental, stale, models.ResolvedIncremental},
		{"forced incremental still first without ledger", models.SyncModeIncremental, nil, models.ResolvedFirst},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveSyncMode(tc.mode, tc.status, now, 24))
		})
	}
}

func TestResolveSyncModeIsPure(t *testing.T) {
	now := int64(1_700_000_000)
	status := &models.SyncStatus{LastSyncTimestamp: now - 10, LastSyncStatus: models.SyncOutcomeSuccess}
	first := ResolveSyncMode(models.SyncModeAuto, status, now, 24)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ResolveSyncMode(models.SyncModeAuto, status, now, 24))
	}
	assert.Equal(t, models.SyncStatus{LastSyncTimestamp: now - 10, LastSyncStatus: models.SyncOutcomeSuccess}, *status)
}

func TestGetProgressFirstSyncFallsBackToSource(t *testing.T) {
	reporting := &reportingReaderStub{active: 0}
	source := &fallbackReaderStub{projections: []models.SourceProjection{{
		UserID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		CourseID: 9, CourseName: "Analysis", TimeCompleted: 1_699_000_000,
		TimeStarted: 1_698_000_000, Percentage: 100, Status: models.StatusCompleted,
	}}}
	ledger := &syncLedgerStub{}
	settings := defaultSettings()
	settings.FirstSyncHours = 48

	svc := newProgressService(reporting, source, ledger, settings, nil)
	result, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{})
	require.NoError(t, err)

	assert.Equal(t, models.ResolvedFirst, result.Mode)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, int64(1_700_000_000-48*3600), source.completedAfter)

	require.Len(t, ledger.attempts, 1)
	assert.Equal(t, models.SyncOutcomeSuccess, ledger.attempts[0].LastSyncStatus)
	assert.Equal(t, 1, ledger.attempts[0].LastSyncRecords)
}

func TestGetProgressIncrementalUsesLedgerTimestamp(t *testing.T) {
	rec := models.ReportingRecord{UserID: 1, CourseID: 2, CompanyID: 42, Status: models.StatusInProgress}
	reporting := &reportingReaderStub{incremental: []models.ReportingRecord{rec}, active: 10}
	ledger := &syncLedgerStub{status: &models.SyncStatus{
		LastSyncTimestamp: 1_700_000_000 - 600,
		LastSyncStatus:    models.SyncOutcomeSuccess,
		SyncWindowHours:   24,
	}}

	svc := newProgressService(reporting, &fallbackReaderStub{}, ledger, defaultSettings(), nil)
	result, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{})
	require.NoError(t, err)

	assert.Equal(t, models.ResolvedIncremental, result.Mode)
	assert.Equal(t, int64(1_700_000_000-600), reporting.incrementalSince)
	require.Len(t, result.Rows, 1)
}

func TestGetProgressEmptyIncrementalOverPopulatedTableStaysEmpty(t *testing.T) {
	reporting := &reportingReaderStub{incremental: nil, active: 500}
	source := &fallbackReaderStub{projections: []models.SourceProjection{{UserID: 1}}}
	ledger := &syncLedgerStub{status: &models.SyncStatus{
		LastSyncTimestamp: 1_700_000_000 - 600,
		LastSyncStatus:    models.SyncOutcomeSuccess,
	}}

	svc := newProgressService(reporting, source, ledger, defaultSettings(), nil)
	result, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{})
	require.NoError(t, err)

	assert.Empty(t, result.Rows)
	assert.Equal(t, 0, source.calls, "populated table must not fall back")
}

func TestGetProgressDisabledFieldsAreAbsentNotNull(t *testing.T) {
	rec := models.ReportingRecord{
		UserID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		CourseID: 9, CourseName: "Analysis", Percentage: 50, Status: models.StatusInProgress,
	}
	reporting := &reportingReaderStub{full: []models.ReportingRecord{rec}, active: 1}
	settings := defaultSettings()
	settings.SyncMode = models.SyncModeFull
	settings.Fields["email"] = false
	settings.Fields["percentage"] = false

	svc := newProgressService(reporting, &fallbackReaderStub{}, &syncLedgerStub{}, settings, nil)
	result, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	payload, err := json.Marshal(result.Rows[0])
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.NotContains(t, decoded, "email")
	assert.NotContains(t, decoded, "percentage")
	assert.Contains(t, decoded, "firstname")

	// Order must follow the field table, not map iteration.
	assert.True(t, json.Valid(payload))
	text := string(payload)
	assert.Less(t, strings.Index(text, `"userid"`), strings.Index(text, `"firstname"`))
	assert.Less(t, strings.Index(text, `"coursename"`), strings.Index(text, `"status"`))
}

func TestGetProgressCacheRoundTrip(t *testing.T) {
	rec := models.ReportingRecord{UserID: 1, CourseID: 2, Status: models.StatusCompleted}
	reporting := &reportingReaderStub{incremental: []models.ReportingRecord{rec}, active: 5}
	ledger := &syncLedgerStub{status: &models.SyncStatus{
		LastSyncTimestamp: 1_700_000_000 - 600,
		LastSyncStatus:    models.SyncOutcomeSuccess,
	}}
	cacheRepo := &cacheRepoStub{}

	svc := newProgressService(reporting, &fallbackReaderStub{}, ledger, defaultSettings(), cacheRepo)

	first, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, cacheRepo.sets)

	second, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, reporting.incrementalCalls, "cache hit must not query")

	expected, err := json.Marshal(first.Rows)
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), string(second.Payload))
}

func TestGetProgressLimitAboveMaxIsCallerError(t *testing.T) {
	svc := newProgressService(&reportingReaderStub{}, &fallbackReaderStub{}, &syncLedgerStub{}, defaultSettings(), nil)
	_, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{Limit: 5000})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGetProgressExplicitEmptyCourseSelection(t *testing.T) {
	reporting := &reportingReaderStub{full: []models.ReportingRecord{{UserID: 1}}, active: 1}
	settings := defaultSettings()
	settings.HasCourseSettings = true
	settings.EnabledCourses = map[int64]bool{5: false}

	ledger := &syncLedgerStub{}
	svc := newProgressService(reporting, &fallbackReaderStub{}, ledger, settings, nil)
	result, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, 0, reporting.fullCalls)
	assert.Equal(t, models.ResolvedFirst, result.Mode)

	// The opted-out consumer still gets a ledger row, so it does not stay
	// resolved as first forever.
	require.Len(t, ledger.attempts, 1)
	assert.Equal(t, models.SyncOutcomeSuccess, ledger.attempts[0].LastSyncStatus)
	assert.Equal(t, 0, ledger.attempts[0].LastSyncRecords)
}

func TestGetProgressReportingFailureDegradesToSource(t *testing.T) {
	reporting := &reportingReaderStub{err: assert.AnError}
	source := &fallbackReaderStub{projections: []models.SourceProjection{{
		UserID: 1, CourseID: 9, Status: models.StatusInProgress, Percentage: 40,
	}}}
	ledger := &syncLedgerStub{status: &models.SyncStatus{
		LastSyncTimestamp: 1_700_000_000 - 600,
		LastSyncStatus:    models.SyncOutcomeSuccess,
	}}

	svc := newProgressService(reporting, source, ledger, defaultSettings(), nil)
	result, err := svc.GetProgress(context.Background(), testPrincipal(), dto.ProgressQuery{})
	require.NoError(t, err, "a broken reporting store degrades instead of erroring")

	require.Len(t, result.Rows, 1)
	assert.Equal(t, models.ResolvedIncremental, result.Mode)
	assert.Equal(t, 1, source.calls)
	assert.Zero(t, source.completedAfter, "window narrowing only applies to first mode")

	require.Len(t, ledger.attempts, 1)
	assert.Equal(t, models.SyncOutcomeFailed, ledger.attempts[0].LastSyncStatus)
	require.NotNil(t, ledger.attempts[0].LastSyncError)
}

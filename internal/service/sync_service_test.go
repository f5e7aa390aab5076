package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alx-report/report-api/internal/models"
	appErrors "github.com/alx-report/report-api/pkg/errors"
)

type reportingWriterStub struct {
	rows        map[models.ReportingKey]*models.ReportingRecord
	softDeleted []models.ReportingKey
	upsertErr   error
}

func newReportingWriterStub() *reportingWriterStub {
	return &reportingWriterStub{rows: make(map[models.ReportingKey]*models.ReportingRecord)}
}

func (s *reportingWriterStub) Upsert(ctx context.Context, key models.ReportingKey, p *models.SourceProjection, now int64) (bool, error) {
	if s.upsertErr != nil {
		return false, s.upsertErr
	}
	_, existed := s.rows[key]
	s.rows[key] = &models.ReportingRecord{
		UserID: key.UserID, CourseID: key.CourseID, CompanyID: key.CompanyID,
		Status: p.Status, LastUpdated: now,
	}
	return !existed, nil
}

func (s *reportingWriterStub) InsertIfAbsent(ctx context.Context, companyID int64, p *models.SourceProjection, now int64) (bool, error) {
	key := models.ReportingKey{UserID: p.UserID, CourseID: p.CourseID, CompanyID: companyID}
	if _, existed := s.rows[key]; existed {
		return false, nil
	}
	s.rows[key] = &models.ReportingRecord{UserID: p.UserID, CourseID: p.CourseID, CompanyID: companyID, LastUpdated: now}
	return true, nil
}

func (s *reportingWriterStub) SoftDelete(ctx context.Context, key models.ReportingKey, now int64) error {
	s.softDeleted = append(s.softDeleted, key)
	if row, ok := s.rows[key]; ok {
		row.IsDeleted = true
		row.LastUpdated = now
	}
	return nil
}

func (s *reportingWriterStub) Stats(ctx context.Context, companyID int64) (*models.ReportingStats, error) {
	return &models.ReportingStats{TotalRecords: int64(len(s.rows))}, nil
}

type sourceStub struct {
	companies   []models.Company
	changed     map[int64][]models.ReportingKey
	projections map[models.ReportingKey]*models.SourceProjection
	enrolled    map[int64][]models.SourceProjection
	orphans     map[int64][]models.ReportingKey
}

func newSourceStub() *sourceStub {
	return &sourceStub{
		companies:   []models.Company{{ID: 1, Name: "Acme", ShortName: "acme"}},
		changed:     make(map[int64][]models.ReportingKey),
		projections: make(map[models.ReportingKey]*models.SourceProjection),
		enrolled:    make(map[int64][]models.SourceProjection),
		orphans:     make(map[int64][]models.ReportingKey),
	}
}

func (s *sourceStub) FetchProjection(ctx context.Context, key models.ReportingKey) (*models.SourceProjection, error) {
	return s.projections[key], nil
}

func (s *sourceStub) ChangedKeys(ctx context.Context, companyID, cutoff int64) ([]models.ReportingKey, error) {
	return s.changed[companyID], nil
}

func (s *sourceStub) EnrolledProjections(ctx context.Context, companyID int64, courseIDs []int64, limit, offset int) ([]models.SourceProjection, error) {
	all := s.enrolled[companyID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *sourceStub) OrphanKeys(ctx context.Context, companyID int64) ([]models.ReportingKey, error) {
	return s.orphans[companyID], nil
}

func (s *sourceStub) Companies(ctx context.Context) ([]models.Company, error) {
	return s.companies, nil
}

func (s *sourceStub) CompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	for _, company := range s.companies {
		if company.ID == id {
			return &company, nil
		}
	}
	return nil, fmt.Errorf("company %d not found", id)
}

type lockStub struct {
	held     bool
	acquires int
	releases int
}

func (s *lockStub) Acquire(ctx context.Context, name, holder string, now int64, staleAfter time.Duration) (bool, error) {
	s.acquires++
	if s.held {
		return false, nil
	}
	s.held = true
	return true, nil
}

func (s *lockStub) Release(ctx context.Context, name, holder string) error {
	s.releases++
	s.held = false
	return nil
}

type ledgerListerStub struct{}

func (ledgerListerStub) ListByCompany(ctx context.Context, companyID int64) ([]models.SyncStatus, error) {
	return nil, nil
}

func newSyncService(reporting *reportingWriterStub, source *sourceStub, lock *lockStub) *SyncService {
	settings := &settingsLoaderStub{settings: defaultSettings()}
	svc := NewSyncService(reporting, source, lock, ledgerListerStub{}, settings, NewCacheService(nil, nil, 0, nil, false), nil, nil, SyncEngineConfig{
		LookbackHours:  1,
		MaxRunTime:     5 * time.Minute,
		BatchSize:      2,
		LockStaleAfter: 15 * time.Minute,
	})
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return svc
}

func TestRecomputeAndUpsertSoftDeletesVanishedKeys(t *testing.T) {
	reporting := newReportingWriterStub()
	source := newSourceStub()
	key := models.ReportingKey{UserID: 3, CourseID: 4, CompanyID: 1}
	reporting.rows[key] = &models.ReportingRecord{UserID: 3, CourseID: 4, CompanyID: 1}

	svc := newSyncService(reporting, source, &lockStub{})
	created, err := svc.RecomputeAndUpsert(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, reporting.softDeleted, 1)
	assert.Equal(t, key, reporting.softDeleted[0])
	assert.True(t, reporting.rows[key].IsDeleted)
	assert.Equal(t, int64(1_700_000_000), reporting.rows[key].LastUpdated)
}

func TestRecomputeAndUpsertRefreshesLiveKeys(t *testing.T) {
	reporting := newReportingWriterStub()
	source := newSourceStub()
	key := models.ReportingKey{UserID: 3, CourseID: 4, CompanyID: 1}
	source.projections[key] = &models.SourceProjection{UserID: 3, CourseID: 4, Status: models.StatusCompleted}

	svc := newSyncService(reporting, source, &lockStub{})

	created, err := svc.RecomputeAndUpsert(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.RecomputeAndUpsert(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, reporting.softDeleted)
}

func TestRunIncrementalPassCountsAndReleasesLock(t *testing.T) {
	reporting := newReportingWriterStub()
	source := newSourceStub()
	lock := &lockStub{}

	existing := models.ReportingKey{UserID: 1, CourseID: 10, CompanyID: 1}
	fresh := models.ReportingKey{UserID: 2, CourseID: 10, CompanyID: 1}
	gone := models.ReportingKey{UserID: 3, CourseID: 10, CompanyID: 1}
	reporting.rows[existing] = &models.ReportingRecord{UserID: 1, CourseID: 10, CompanyID: 1}
	reporting.rows[gone] = &models.ReportingRecord{UserID: 3, CourseID: 10, CompanyID: 1}
	source.changed[1] = []models.ReportingKey{existing, fresh, gone}
	source.projections[existing] = &models.SourceProjection{UserID: 1, CourseID: 10, Status: models.StatusCompleted}
	source.projections[fresh] = &models.SourceProjection{UserID: 2, CourseID: 10, Status: models.StatusInProgress}

	svc := newSyncService(reporting, source, lock)
	stats, err := svc.RunIncrementalPass(context.Background(), 0, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CompaniesProcessed)
	assert.Equal(t, 1, stats.RecordsCreated)
	// The refreshed row and the soft-deleted row both count as updates:
	// each got its last_updated bumped.
	assert.Equal(t, 2, stats.RecordsUpdated)
	assert.Equal(t, 0, stats.TotalErrors)
	assert.False(t, stats.Partial)
	require.Len(t, reporting.softDeleted, 1)
	assert.Equal(t, gone, reporting.softDeleted[0])
	assert.Equal(t, 1, lock.releases)
}

func TestRunIncrementalPassRefusesWhileLocked(t *testing.T) {
	lock := &lockStub{held: true}
	svc := newSyncService(newReportingWriterStub(), newSourceStub(), lock)

	_, err := svc.RunIncrementalPass(context.Background(), 0, 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSyncInProgress.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, lock.releases, "lock held by someone else must not be released")
}

func TestFullPopulateIsIdempotent(t *testing.T) {
	reporting := newReportingWriterStub()
	source := newSourceStub()
	source.enrolled[1] = []models.SourceProjection{
		{UserID: 1, CourseID: 10},
		{UserID: 2, CourseID: 10},
		{UserID: 3, CourseID: 10},
	}

	svc := newSyncService(reporting, source, &lockStub{})

	first, err := svc.FullPopulate(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalProcessed)
	assert.Equal(t, 3, first.TotalInserted)

	second, err := svc.FullPopulate(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, second.TotalProcessed)
	assert.Equal(t, 0, second.TotalInserted, "re-running populate must insert nothing")
	assert.Len(t, reporting.rows, 3)
}

func TestCleanupOrphansSoftDeletes(t *testing.T) {
	reporting := newReportingWriterStub()
	source := newSourceStub()
	key := models.ReportingKey{UserID: 5, CourseID: 10, CompanyID: 1}
	reporting.rows[key] = &models.ReportingRecord{UserID: 5, CourseID: 10, CompanyID: 1}
	source.orphans[1] = []models.ReportingKey{key}

	svc := newSyncService(reporting, source, &lockStub{})
	removed, err := svc.CleanupOrphans(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, reporting.rows[key].IsDeleted)
}

package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alx-report/report-api/pkg/errors"
)

func cacheRows(payload string, created, expires, hits int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "cache_key", "companyid", "payload", "cache_timestamp", "expires_at", "hit_count", "last_accessed",
	}).AddRow(1, "progress_abc_100_0", 42, []byte(payload), created, expires, hits, created)
}

func TestCacheRepositoryGetLiveEntryTouchesCounter(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewCacheRepository(db)
	now := int64(1_700_000_000)

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_cache WHERE cache_key = $1 AND companyid = $2")).
		WithArgs("progress_abc_100_0", int64(42)).
		WillReturnRows(cacheRows(`[{"userid":7}]`, now-60, now+600, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_cache SET hit_count = hit_count + 1, last_accessed = $3")).
		WithArgs("progress_abc_100_0", int64(42), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	payload, err := repo.Get(context.Background(), "progress_abc_100_0", 42, now)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"userid":7}]`, string(payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryGetExpiredEntryDeletesAndMisses(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewCacheRepository(db)
	now := int64(1_700_000_000)

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_cache WHERE cache_key = $1 AND companyid = $2")).
		WithArgs("progress_abc_100_0", int64(42)).
		WillReturnRows(cacheRows(`[]`, now-7200, now-1, 9))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM api_cache WHERE cache_key = $1 AND companyid = $2")).
		WithArgs("progress_abc_100_0", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	payload, err := repo.Get(context.Background(), "progress_abc_100_0", 42, now)
	assert.ErrorIs(t, err, errors.ErrCacheMiss)
	assert.Nil(t, payload)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryGetUnknownKeyMisses(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewCacheRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM api_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "progress_missing_100_0", 42, 1_700_000_000)
	assert.ErrorIs(t, err, errors.ErrCacheMiss)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositorySetResetsHitCount(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewCacheRepository(db)
	now := int64(1_700_000_000)
	payload := json.RawMessage(`[{"userid":7}]`)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_cache (cache_key, companyid, payload, cache_timestamp, expires_at, hit_count, last_accessed)")).
		WithArgs("progress_abc_100_0", int64(42), []byte(payload), now, now+1800).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Set(context.Background(), "progress_abc_100_0", 42, payload, now, now+1800)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositorySweepDeletesExpiredEntries(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewCacheRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM api_cache WHERE expires_at < $1")).
		WithArgs(int64(1_699_900_000)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := repo.Sweep(context.Background(), 1_699_900_000)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryInvalidateCompany(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewCacheRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM api_cache WHERE companyid = $1")).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := repo.InvalidateCompany(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

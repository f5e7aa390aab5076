package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepositoryGetAll(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	rows := sqlmock.NewRows([]string{"id", "companyid", "setting_name", "setting_value", "created_at", "updated_at"}).
		AddRow(1, 42, "field_email", "1", 1_699_000_000, 1_700_000_000).
		AddRow(2, 42, "sync_mode", "auto", 1_699_000_000, 1_700_000_000)

	mock.ExpectQuery(regexp.QuoteMeta("FROM company_settings WHERE companyid = $1 ORDER BY setting_name")).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	settings, err := repo.GetAll(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "field_email", settings[0].SettingName)
	assert.Equal(t, "auto", settings[1].SettingValue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryGetMissingReportsNotFound(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT setting_value FROM company_settings")).
		WithArgs(int64(42), "field_email").
		WillReturnRows(sqlmock.NewRows([]string{"setting_value"}))

	value, ok, err := repo.Get(context.Background(), 42, "field_email")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryUpsertManyCommitsInOneTx(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO company_settings")).
		WithArgs(int64(42), "sync_mode", "incremental", int64(1_700_000_000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertMany(context.Background(), 42, map[string]string{"sync_mode": "incremental"}, 1_700_000_000)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryUpsertManyRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO company_settings")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.UpsertMany(context.Background(), 42, map[string]string{"sync_mode": "incremental"}, 1_700_000_000)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryExists(t *testing.T) {
	db, mock, cleanup := newReportingRepoMock(t)
	defer cleanup()

	repo := NewSettingsRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM company_settings WHERE companyid = $1)")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.Exists(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alx-report/report-api/internal/models"
)

// SyncStatusRepository persists the per (company, token-hash) sync ledger.
type SyncStatusRepository struct {
	db *sqlx.DB
}

// NewSyncStatusRepository constructs the repository.
func NewSyncStatusRepository(db *sqlx.DB) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

const syncStatusColumns = `id, companyid, token_hash, last_sync_timestamp, sync_mode,
sync_window_hours, last_sync_records, last_sync_status, last_sync_error, total_syncs,
created_at, updated_at`

// Get returns the ledger row for a (company, token-hash) pair or nil when the
// consumer has never synced.
func (r *SyncStatusRepository) Get(ctx context.Context, companyID int64, tokenHash string) (*models.SyncStatus, error) {
	query := fmt.Sprintf(`SELECT %s FROM sync_status WHERE companyid = $1 AND token_hash = $2`, syncStatusColumns)
	var status models.SyncStatus
	if err := r.db.GetContext(ctx, &status, query, companyID, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sync status: %w", err)
	}
	return &status, nil
}

// RecordAttempt upserts the ledger after a completed request attempt. New
// rows are seeded with the provided mode and window (the company's configured
// defaults); existing rows keep theirs and bump the cumulative counter.
func (r *SyncStatusRepository) RecordAttempt(ctx context.Context, status *models.SyncStatus, now int64) error {
	const query = `INSERT INTO sync_status
(companyid, token_hash, last_sync_timestamp, sync_mode, sync_window_hours,
 last_sync_records, last_sync_status, last_sync_error, total_syncs, created_at, updated_at)
VALUES (:companyid, :token_hash, :last_sync_timestamp, :sync_mode, :sync_window_hours,
        :last_sync_records, :last_sync_status, :last_sync_error, 1, :created_at, :updated_at)
ON CONFLICT (companyid, token_hash)
DO UPDATE SET last_sync_timestamp = EXCLUDED.last_sync_timestamp,
              last_sync_records = EXCLUDED.last_sync_records,
              last_sync_status = EXCLUDED.last_sync_status,
              last_sync_error = EXCLUDED.last_sync_error,
              total_syncs = sync_status.total_syncs + 1,
              updated_at = EXCLUDED.updated_at`
	status.LastSyncTimestamp = now
	status.CreatedAt = now
	status.UpdatedAt = now
	if _, err := r.db.NamedExecContext(ctx, query, status); err != nil {
		return fmt.Errorf("record sync attempt: %w", err)
	}
	return nil
}

// SetMode updates the configured mode and window for an existing ledger row.
func (r *SyncStatusRepository) SetMode(ctx context.Context, companyID int64, tokenHash string, mode models.SyncMode, windowHours int, now int64) error {
	const query = `UPDATE sync_status SET sync_mode = $3, sync_window_hours = $4, updated_at = $5
WHERE companyid = $1 AND token_hash = $2`
	if _, err := r.db.ExecContext(ctx, query, companyID, tokenHash, mode, windowHours, now); err != nil {
		return fmt.Errorf("set sync mode: %w", err)
	}
	return nil
}

// ListByCompany returns all ledger rows for a company, most recent first.
func (r *SyncStatusRepository) ListByCompany(ctx context.Context, companyID int64) ([]models.SyncStatus, error) {
	query := fmt.Sprintf(`SELECT %s FROM sync_status WHERE companyid = $1 ORDER BY last_sync_timestamp DESC`, syncStatusColumns)
	var statuses []models.SyncStatus
	if err := r.db.SelectContext(ctx, &statuses, query, companyID); err != nil {
		return nil, fmt.Errorf("list sync statuses: %w", err)
	}
	return statuses, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alx-report/report-api/internal/models"
)

// SettingsRepository manages per-company configuration rows.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetAll returns every setting row for a company.
func (r *SettingsRepository) GetAll(ctx context.Context, companyID int64) ([]models.CompanySetting, error) {
	const query = `SELECT id, companyid, setting_name, setting_value, created_at, updated_at
FROM company_settings WHERE companyid = $1 ORDER BY setting_name`
	var settings []models.CompanySetting
	if err := r.db.SelectContext(ctx, &settings, query, companyID); err != nil {
		return nil, fmt.Errorf("get company settings: %w", err)
	}
	return settings, nil
}

// Get returns a single setting value, with ok reporting whether it exists.
func (r *SettingsRepository) Get(ctx context.Context, companyID int64, name string) (string, bool, error) {
	const query = `SELECT setting_value FROM company_settings WHERE companyid = $1 AND setting_name = $2`
	var value string
	if err := r.db.GetContext(ctx, &value, query, companyID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get company setting: %w", err)
	}
	return value, true, nil
}

// Upsert writes a single setting.
func (r *SettingsRepository) Upsert(ctx context.Context, companyID int64, name, value string, now int64) error {
	const query = `INSERT INTO company_settings (companyid, setting_name, setting_value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (companyid, setting_name)
DO UPDATE SET setting_value = EXCLUDED.setting_value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, companyID, name, value, now); err != nil {
		return fmt.Errorf("upsert company setting: %w", err)
	}
	return nil
}

// UpsertMany writes a batch of settings in a single transaction so a partial
// update never becomes visible.
func (r *SettingsRepository) UpsertMany(ctx context.Context, companyID int64, settings map[string]string, now int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO company_settings (companyid, setting_name, setting_value, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (companyid, setting_name)
DO UPDATE SET setting_value = EXCLUDED.setting_value, updated_at = EXCLUDED.updated_at`
	for name, value := range settings {
		if _, err := tx.ExecContext(ctx, query, companyID, name, value, now); err != nil {
			return fmt.Errorf("upsert company setting %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings tx: %w", err)
	}
	return nil
}

// DeleteAll removes every setting for a company. Used before a settings copy
// so stale keys from the target do not survive.
func (r *SettingsRepository) DeleteAll(ctx context.Context, companyID int64) error {
	const query = `DELETE FROM company_settings WHERE companyid = $1`
	if _, err := r.db.ExecContext(ctx, query, companyID); err != nil {
		return fmt.Errorf("delete company settings: %w", err)
	}
	return nil
}

// Exists reports whether the company has any settings at all.
func (r *SettingsRepository) Exists(ctx context.Context, companyID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM company_settings WHERE companyid = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, companyID); err != nil {
		return false, fmt.Errorf("check company settings: %w", err)
	}
	return exists, nil
}

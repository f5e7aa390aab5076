package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alx-report/report-api/internal/models"
	"github.com/alx-report/report-api/pkg/errors"
)

// CacheRepository backs the response cache with the api_cache table so that
// hit counts and expiry survive process restarts.
type CacheRepository struct {
	db *sqlx.DB
}

func NewCacheRepository(db *sqlx.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get looks up a cache entry. Expired entries are deleted on read and
// reported as a miss; live entries get their hit counter and access time
// bumped before the payload is returned.
func (r *CacheRepository) Get(ctx context.Context, cacheKey string, companyID int64, now int64) (json.RawMessage, error) {
	const query = `SELECT id, cache_key, companyid, payload, cache_timestamp, expires_at, hit_count, last_accessed
FROM api_cache WHERE cache_key = $1 AND companyid = $2`
	var entry models.CacheEntry
	if err := r.db.GetContext(ctx, &entry, query, cacheKey, companyID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrCacheMiss
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	if entry.ExpiresAt <= now {
		const del = `DELETE FROM api_cache WHERE cache_key = $1 AND companyid = $2`
		if _, err := r.db.ExecContext(ctx, del, cacheKey, companyID); err != nil {
			return nil, fmt.Errorf("delete expired cache entry: %w", err)
		}
		return nil, errors.ErrCacheMiss
	}

	const touch = `UPDATE api_cache SET hit_count = hit_count + 1, last_accessed = $3
WHERE cache_key = $1 AND companyid = $2`
	if _, err := r.db.ExecContext(ctx, touch, cacheKey, companyID, now); err != nil {
		return nil, fmt.Errorf("touch cache entry: %w", err)
	}
	return entry.Payload, nil
}

// Set stores a payload under (cache_key, companyid), replacing any previous
// entry and resetting its hit counter.
func (r *CacheRepository) Set(ctx context.Context, cacheKey string, companyID int64, payload json.RawMessage, now, expiresAt int64) error {
	const query = `INSERT INTO api_cache (cache_key, companyid, payload, cache_timestamp, expires_at, hit_count, last_accessed)
VALUES ($1, $2, $3, $4, $5, 0, $4)
ON CONFLICT (cache_key, companyid)
DO UPDATE SET payload = EXCLUDED.payload,
              cache_timestamp = EXCLUDED.cache_timestamp,
              expires_at = EXCLUDED.expires_at,
              hit_count = 0,
              last_accessed = EXCLUDED.last_accessed`
	if _, err := r.db.ExecContext(ctx, query, cacheKey, companyID, payload, now, expiresAt); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// InvalidateCompany removes every cache entry belonging to a company.
func (r *CacheRepository) InvalidateCompany(ctx context.Context, companyID int64) (int64, error) {
	const query = `DELETE FROM api_cache WHERE companyid = $1`
	res, err := r.db.ExecContext(ctx, query, companyID)
	if err != nil {
		return 0, fmt.Errorf("invalidate company cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("invalidate company cache: rows affected: %w", err)
	}
	return n, nil
}

// Sweep bulk-deletes entries whose expiry has passed. The read path already
// deletes expired entries lazily; the sweep clears the ones nobody asks for
// again.
func (r *CacheRepository) Sweep(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM api_cache WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep cache: rows affected: %w", err)
	}
	return n, nil
}

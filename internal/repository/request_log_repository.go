package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alx-report/report-api/internal/models"
)

// RequestLogRepository records every authenticated API request. The log is
// the source of truth for rate limiting, so it must be written before the
// request is served.
type RequestLogRepository struct {
	db *sqlx.DB
}

func NewRequestLogRepository(db *sqlx.DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// Insert appends a log row.
func (r *RequestLogRepository) Insert(ctx context.Context, log *models.RequestLog) error {
	const query = `INSERT INTO request_log (userid, companyid, endpoint, ipaddress, useragent, timecreated)
VALUES (:userid, :companyid, :endpoint, :ipaddress, :useragent, :timecreated)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// CountSince returns the number of requests a user has made at or after the
// given instant.
func (r *RequestLogRepository) CountSince(ctx context.Context, userID, since int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM request_log WHERE userid = $1 AND timecreated >= $2`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, userID, since); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

// DeleteOlderThan prunes log rows created before the cutoff.
func (r *RequestLogRepository) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM request_log WHERE timecreated < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune request log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune request log: rows affected: %w", err)
	}
	return n, nil
}

// UsageStats aggregates request counts for a company since the cutoff.
func (r *RequestLogRepository) UsageStats(ctx context.Context, companyID, since int64) (*models.UsageStats, error) {
	const query = `SELECT COUNT(*) AS total_requests,
       COUNT(DISTINCT userid) AS unique_users,
       COALESCE(MAX(timecreated), 0) AS last_access
FROM request_log WHERE companyid = $1 AND timecreated >= $2`
	var stats models.UsageStats
	if err := r.db.GetContext(ctx, &stats, query, companyID, since); err != nil {
		return nil, fmt.Errorf("usage stats: %w", err)
	}
	return &stats, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alx-report/report-api/internal/models"
)

// ReportingRepository persists the denormalized reporting rows. All mutations
// go through upsert-by-(userid, courseid, companyid); rows are soft-deleted,
// never removed, so incremental consumers can observe removals.
type ReportingRepository struct {
	db *sqlx.DB
}

// NewReportingRepository constructs the repository.
func NewReportingRepository(db *sqlx.DB) *ReportingRepository {
	return &ReportingRepository{db: db}
}

const reportingColumns = `id, userid, courseid, companyid, firstname, lastname, email, coursename,
timecompleted, timestarted, percentage, status, last_updated, is_deleted, created_at, updated_at`

// Upsert writes the projection for a key, bumping last_updated and clearing
// the soft-delete flag. It reports whether the row was newly created.
func (r *ReportingRepository) Upsert(ctx context.Context, key models.ReportingKey, p *models.SourceProjection, now int64) (bool, error) {
	const query = `INSERT INTO reporting
(userid, courseid, companyid, firstname, lastname, email, coursename,
 timecompleted, timestarted, percentage, status, last_updated, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE, $13, $13)
ON CONFLICT (userid, courseid, companyid)
DO UPDATE SET firstname = EXCLUDED.firstname, lastname = EXCLUDED.lastname,
              email = EXCLUDED.email, coursename = EXCLUDED.coursename,
              timecompleted = EXCLUDED.timecompleted, timestarted = EXCLUDED.timestarted,
              percentage = EXCLUDED.percentage, status = EXCLUDED.status,
              last_updated = EXCLUDED.last_updated, is_deleted = FALSE,
              updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`
	var inserted bool
	err := r.db.QueryRowxContext(ctx, query,
		key.UserID, key.CourseID, key.CompanyID,
		p.FirstName, p.LastName, p.Email, p.CourseName,
		p.TimeCompleted, p.TimeStarted, p.Percentage, p.Status,
		now, now,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert reporting row: %w", err)
	}
	return inserted, nil
}

// InsertIfAbsent inserts a projection only when no row exists for the key.
// Used by the bootstrap populate, which must be idempotent and must not
// overwrite rows the incremental sync already touched.
func (r *ReportingRepository) InsertIfAbsent(ctx context.Context, companyID int64, p *models.SourceProjection, now int64) (bool, error) {
	const query = `INSERT INTO reporting
(userid, courseid, companyid, firstname, lastname, email, coursename,
 timecompleted, timestarted, percentage, status, last_updated, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE, $13, $13)
ON CONFLICT (userid, courseid, companyid) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		p.UserID, p.CourseID, companyID,
		p.FirstName, p.LastName, p.Email, p.CourseName,
		p.TimeCompleted, p.TimeStarted, p.Percentage, p.Status,
		now, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert reporting row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert reporting row affected: %w", err)
	}
	return affected > 0, nil
}

// SoftDelete marks the row for a key deleted and bumps last_updated so
// incremental consumers pick the deletion up. Deleting an absent key is a
// no-op success.
func (r *ReportingRepository) SoftDelete(ctx context.Context, key models.ReportingKey, now int64) error {
	const query = `UPDATE reporting SET is_deleted = TRUE, last_updated = $4, updated_at = $4
WHERE userid = $1 AND courseid = $2 AND companyid = $3`
	if _, err := r.db.ExecContext(ctx, query, key.UserID, key.CourseID, key.CompanyID, now); err != nil {
		return fmt.Errorf("soft delete reporting row: %w", err)
	}
	return nil
}

// FindByKey fetches a single row regardless of its deletion flag.
func (r *ReportingRepository) FindByKey(ctx context.Context, key models.ReportingKey) (*models.ReportingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM reporting WHERE userid = $1 AND courseid = $2 AND companyid = $3`, reportingColumns)
	var record models.ReportingRecord
	if err := r.db.GetContext(ctx, &record, query, key.UserID, key.CourseID, key.CompanyID); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindIncremental pages the non-deleted rows whose last_updated is strictly
// after the cutoff, newest first. Ordering by (last_updated DESC, userid,
// courseid) keeps pagination stable within one resolved mode.
func (r *ReportingRepository) FindIncremental(ctx context.Context, companyID, since int64, courseIDs []int64, limit, offset int) ([]models.ReportingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM reporting
WHERE companyid = ? AND is_deleted = FALSE AND last_updated > ?`, reportingColumns)
	args := []interface{}{companyID, since}

	query, args, err := appendCourseFilter(query, args, courseIDs)
	if err != nil {
		return nil, err
	}
	query += ` ORDER BY last_updated DESC, userid, courseid LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var records []models.ReportingRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query incremental reporting rows: %w", err)
	}
	return records, nil
}

// FindFull pages all non-deleted rows for a company, keyed order.
func (r *ReportingRepository) FindFull(ctx context.Context, companyID int64, courseIDs []int64, limit, offset int) ([]models.ReportingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM reporting
WHERE companyid = ? AND is_deleted = FALSE`, reportingColumns)
	args := []interface{}{companyID}

	query, args, err := appendCourseFilter(query, args, courseIDs)
	if err != nil {
		return nil, err
	}
	query += ` ORDER BY userid, courseid LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var records []models.ReportingRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query full reporting rows: %w", err)
	}
	return records, nil
}

// CountActive counts a company's non-deleted rows without any course filter.
// The resolver uses it to tell a genuinely empty table from a filtered-empty
// page before falling back to the source of truth.
func (r *ReportingRepository) CountActive(ctx context.Context, companyID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM reporting WHERE companyid = $1 AND is_deleted = FALSE`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, companyID); err != nil {
		return 0, fmt.Errorf("count active reporting rows: %w", err)
	}
	return count, nil
}

// Stats summarises the company's reporting slice for monitoring.
func (r *ReportingRepository) Stats(ctx context.Context, companyID int64) (*models.ReportingStats, error) {
	const query = `SELECT
COUNT(*) AS total_records,
COUNT(*) FILTER (WHERE is_deleted = FALSE) AS active_records,
COUNT(*) FILTER (WHERE is_deleted = TRUE) AS deleted_records,
COUNT(*) FILTER (WHERE status = 'completed' AND is_deleted = FALSE) AS completed_courses,
COUNT(*) FILTER (WHERE status = 'in_progress' AND is_deleted = FALSE) AS in_progress_courses,
COALESCE(MAX(last_updated), 0) AS last_update
FROM reporting WHERE companyid = $1`
	var stats models.ReportingStats
	if err := r.db.GetContext(ctx, &stats, query, companyID); err != nil {
		return nil, fmt.Errorf("reporting stats: %w", err)
	}
	return &stats, nil
}

// Purge physically removes a company's rows. Administrative use only; normal
// removal is always a soft delete.
func (r *ReportingRepository) Purge(ctx context.Context, companyID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reporting WHERE companyid = $1`, companyID)
	if err != nil {
		return 0, fmt.Errorf("purge reporting rows: %w", err)
	}
	return res.RowsAffected()
}

func appendCourseFilter(query string, args []interface{}, courseIDs []int64) (string, []interface{}, error) {
	if len(courseIDs) == 0 {
		return query, args, nil
	}
	filtered, inArgs, err := sqlx.In(` AND courseid IN (?)`, courseIDs)
	if err != nil {
		return "", nil, fmt.Errorf("build course filter: %w", err)
	}
	return query + filtered, append(args, inArgs...), nil
}

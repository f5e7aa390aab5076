package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alx-report/report-api/internal/models"
)

// SourceRepository reads the operational (source-of-truth) tables: users,
// companies, courses, enrollments and completion records. It never writes.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository constructs the repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// projectionSelect derives the full denormalized view for user/course pairs.
// Completion time falls back to the newest completed module when the course
// completion row has none; percentage is the share of completed modules, or
// 100 for a completed course; status follows the completion evidence, then
// enrollment presence.
const projectionSelect = `SELECT
    u.id AS userid,
    u.firstname,
    u.lastname,
    u.email,
    c.id AS courseid,
    c.fullname AS coursename,
    COALESCE(cc.timecompleted,
        (SELECT MAX(mc.timemodified) FROM module_completions mc
         WHERE mc.courseid = c.id AND mc.userid = u.id AND mc.completionstate = 1), 0) AS timecompleted,
    COALESCE(cc.timestarted, e.timecreated, 0) AS timestarted,
    COALESCE(CASE WHEN cc.timecompleted > 0 THEN 100.0
        ELSE COALESCE(
            (SELECT AVG(CASE WHEN mc.completionstate = 1 THEN 100.0 ELSE 0.0 END)
             FROM module_completions mc
             WHERE mc.courseid = c.id AND mc.userid = u.id), 0.0)
        END, 0.0) AS percentage,
    CASE WHEN cc.timecompleted > 0 THEN 'completed'
        WHEN EXISTS (SELECT 1 FROM module_completions mc
                     WHERE mc.courseid = c.id AND mc.userid = u.id AND mc.completionstate = 1) THEN 'completed'
        WHEN EXISTS (SELECT 1 FROM module_completions mc
                     WHERE mc.courseid = c.id AND mc.userid = u.id AND mc.completionstate > 0) THEN 'in_progress'
        WHEN e.id IS NOT NULL THEN 'not_started'
        ELSE 'not_enrolled' END AS status`

// FetchProjection recomputes the denormalized view for one key. A nil result
// with nil error means the user, company membership or course is gone and the
// reporting row should be soft-deleted.
func (r *SourceRepository) FetchProjection(ctx context.Context, key models.ReportingKey) (*models.SourceProjection, error) {
	query := projectionSelect + `
FROM users u
JOIN company_users cu ON cu.userid = u.id
JOIN courses c ON c.id = $2
LEFT JOIN enrollments e ON e.userid = u.id AND e.courseid = c.id AND e.status = 0
LEFT JOIN course_completions cc ON cc.userid = u.id AND cc.courseid = c.id
WHERE u.id = $1
  AND cu.companyid = $3
  AND u.deleted = FALSE
  AND u.suspended = FALSE
  AND c.visible = TRUE`
	var projection models.SourceProjection
	err := r.db.GetContext(ctx, &projection, query, key.UserID, key.CourseID, key.CompanyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch projection: %w", err)
	}
	return &projection, nil
}

// ChangedKeys finds the (user, course, company) triples whose completion,
// module-progress or enrollment record changed after the cutoff. UNION
// deduplicates across the three change sources.
func (r *SourceRepository) ChangedKeys(ctx context.Context, companyID, cutoff int64) ([]models.ReportingKey, error) {
	const query = `SELECT cc.userid, cc.courseid, cu.companyid
FROM course_completions cc
JOIN company_users cu ON cu.userid = cc.userid
WHERE cc.timemodified > $1 AND cu.companyid = $2
UNION
SELECT mc.userid, mc.courseid, cu.companyid
FROM module_completions mc
JOIN company_users cu ON cu.userid = mc.userid
WHERE mc.timemodified > $1 AND cu.companyid = $2
UNION
SELECT e.userid, e.courseid, cu.companyid
FROM enrollments e
JOIN company_users cu ON cu.userid = e.userid
WHERE e.timemodified > $1 AND cu.companyid = $2`
	var keys []models.ReportingKey
	if err := r.db.SelectContext(ctx, &keys, query, cutoff, companyID); err != nil {
		return nil, fmt.Errorf("find changed keys: %w", err)
	}
	return keys, nil
}

// EnrolledProjections streams one batch of the full (user, course) projection
// set for active enrollments in the given courses. Used by the bootstrap
// populate; ordered by (userid, courseid) so offset paging is stable.
func (r *SourceRepository) EnrolledProjections(ctx context.Context, companyID int64, courseIDs []int64, limit, offset int) ([]models.SourceProjection, error) {
	query := projectionSelect + `
FROM users u
JOIN company_users cu ON cu.userid = u.id
JOIN enrollments e ON e.userid = u.id AND e.status = 0
JOIN courses c ON c.id = e.courseid
LEFT JOIN course_completions cc ON cc.userid = u.id AND cc.courseid = c.id
WHERE cu.companyid = ?
  AND u.deleted = FALSE
  AND u.suspended = FALSE
  AND c.visible = TRUE`
	args := []interface{}{companyID}

	query, args, err := appendSourceCourseFilter(query, args, courseIDs)
	if err != nil {
		return nil, err
	}
	query += ` ORDER BY u.id, c.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var projections []models.SourceProjection
	if err := r.db.SelectContext(ctx, &projections, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("stream enrolled projections: %w", err)
	}
	return projections, nil
}

// FallbackProjections serves the read API straight from the source of truth
// when the reporting table is empty. completedAfter > 0 restricts the page to
// recent completions (plus everything not yet completed), the first-sync
// window behaviour.
func (r *SourceRepository) FallbackProjections(ctx context.Context, companyID int64, courseIDs []int64, completedAfter int64, limit, offset int) ([]models.SourceProjection, error) {
	query := projectionSelect + `
FROM users u
JOIN company_users cu ON cu.userid = u.id
JOIN enrollments e ON e.userid = u.id AND e.status = 0
JOIN courses c ON c.id = e.courseid
LEFT JOIN course_completions cc ON cc.userid = u.id AND cc.courseid = c.id
WHERE cu.companyid = ?
  AND u.deleted = FALSE
  AND u.suspended = FALSE
  AND c.visible = TRUE`
	args := []interface{}{companyID}

	if completedAfter > 0 {
		query += ` AND (cc.timecompleted > ? OR cc.timecompleted = 0 OR cc.timecompleted IS NULL)`
		args = append(args, completedAfter)
	}

	query, args, err := appendSourceCourseFilter(query, args, courseIDs)
	if err != nil {
		return nil, err
	}
	query += ` ORDER BY u.lastname, u.firstname, c.fullname LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var projections []models.SourceProjection
	if err := r.db.SelectContext(ctx, &projections, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fallback projections: %w", err)
	}
	return projections, nil
}

// OrphanKeys returns active reporting rows whose source no longer satisfies
// the company-membership, visibility and active-enrollment predicates.
func (r *SourceRepository) OrphanKeys(ctx context.Context, companyID int64) ([]models.ReportingKey, error) {
	const query = `SELECT rep.userid, rep.courseid, rep.companyid
FROM reporting rep
WHERE rep.companyid = $1
  AND rep.is_deleted = FALSE
  AND NOT EXISTS (
    SELECT 1
    FROM users u
    JOIN company_users cu ON cu.userid = u.id AND cu.companyid = rep.companyid
    JOIN enrollments e ON e.userid = u.id AND e.courseid = rep.courseid AND e.status = 0
    JOIN courses c ON c.id = rep.courseid AND c.visible = TRUE
    WHERE u.id = rep.userid AND u.deleted = FALSE AND u.suspended = FALSE)`
	var keys []models.ReportingKey
	if err := r.db.SelectContext(ctx, &keys, query, companyID); err != nil {
		return nil, fmt.Errorf("find orphan keys: %w", err)
	}
	return keys, nil
}

// Companies lists every company, id order.
func (r *SourceRepository) Companies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, `SELECT id, name, shortname FROM companies ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

// CompanyByID fetches one company.
func (r *SourceRepository) CompanyByID(ctx context.Context, id int64) (*models.Company, error) {
	var company models.Company
	if err := r.db.GetContext(ctx, &company, `SELECT id, name, shortname FROM companies WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &company, nil
}

// CompanyCourses lists a company's visible courses, name order.
func (r *SourceRepository) CompanyCourses(ctx context.Context, companyID int64) ([]models.Course, error) {
	const query = `SELECT c.id, c.fullname, c.visible
FROM courses c
JOIN company_courses cc ON cc.courseid = c.id
WHERE cc.companyid = $1 AND c.visible = TRUE
ORDER BY c.fullname ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, companyID); err != nil {
		return nil, fmt.Errorf("list company courses: %w", err)
	}
	return courses, nil
}

func appendSourceCourseFilter(query string, args []interface{}, courseIDs []int64) (string, []interface{}, error) {
	if len(courseIDs) == 0 {
		return query, args, nil
	}
	filtered, inArgs, err := sqlx.In(` AND c.id IN (?)`, courseIDs)
	if err != nil {
		return "", nil, fmt.Errorf("build course filter: %w", err)
	}
	return query + filtered, append(args, inArgs...), nil
}

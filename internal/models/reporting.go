package models

// ProgressStatus enumerates the completion state of a (user, course) pair.
type ProgressStatus string

const (
	StatusNotEnrolled ProgressStatus = "not_enrolled"
	StatusNotStarted  ProgressStatus = "not_started"
	StatusInProgress  ProgressStatus = "in_progress"
	StatusCompleted   ProgressStatus = "completed"
)

// ReportingRecord is one denormalized row per (userid, courseid, companyid).
// Domain timestamps are unix seconds; zero means "not yet". LastUpdated is
// the logical clock incremental consumers page against. Rows are never
// physically removed outside an administrative purge; IsDeleted lets
// incremental consumers observe removals.
type ReportingRecord struct {
	ID            int64          `db:"id" json:"id"`
	UserID        int64          `db:"userid" json:"userid"`
	CourseID      int64          `db:"courseid" json:"courseid"`
	CompanyID     int64          `db:"companyid" json:"companyid"`
	FirstName     string         `db:"firstname" json:"firstname"`
	LastName      string         `db:"lastname" json:"lastname"`
	Email         string         `db:"email" json:"email"`
	CourseName    string         `db:"coursename" json:"coursename"`
	TimeCompleted int64          `db:"timecompleted" json:"timecompleted"`
	TimeStarted   int64          `db:"timestarted" json:"timestarted"`
	Percentage    float64        `db:"percentage" json:"percentage"`
	Status        ProgressStatus `db:"status" json:"status"`
	LastUpdated   int64          `db:"last_updated" json:"last_updated"`
	IsDeleted     bool           `db:"is_deleted" json:"is_deleted"`
	CreatedAt     int64          `db:"created_at" json:"created_at"`
	UpdatedAt     int64          `db:"updated_at" json:"updated_at"`
}

// ReportingKey identifies a reporting row.
type ReportingKey struct {
	UserID    int64 `db:"userid"`
	CourseID  int64 `db:"courseid"`
	CompanyID int64 `db:"companyid"`
}

// ReportingStats summarises a company's slice of the reporting table.
type ReportingStats struct {
	TotalRecords      int64 `db:"total_records" json:"total_records"`
	ActiveRecords     int64 `db:"active_records" json:"active_records"`
	DeletedRecords    int64 `db:"deleted_records" json:"deleted_records"`
	CompletedCourses  int64 `db:"completed_courses" json:"completed_courses"`
	InProgressCourses int64 `db:"in_progress_courses" json:"in_progress_courses"`
	LastUpdate        int64 `db:"last_update" json:"last_update"`
}

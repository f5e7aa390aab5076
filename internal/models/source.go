package models

// Company mirrors the operational companies table (read-only here).
type Company struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	ShortName string `db:"shortname" json:"shortname"`
}

// Course mirrors the operational courses table (read-only here).
type Course struct {
	ID       int64  `db:"id" json:"id"`
	FullName string `db:"fullname" json:"fullname"`
	Visible  bool   `db:"visible" json:"visible"`
}

// SourceProjection is the freshly computed denormalized view of one
// (user, course, company) triple, derived from the operational tables by the
// recompute join. It carries everything a reporting row needs.
type SourceProjection struct {
	UserID        int64          `db:"userid"`
	FirstName     string         `db:"firstname"`
	LastName      string         `db:"lastname"`
	Email         string         `db:"email"`
	CourseID      int64          `db:"courseid"`
	CourseName    string         `db:"coursename"`
	TimeCompleted int64          `db:"timecompleted"`
	TimeStarted   int64          `db:"timestarted"`
	Percentage    float64        `db:"percentage"`
	Status        ProgressStatus `db:"status"`
}

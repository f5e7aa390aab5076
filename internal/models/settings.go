package models

// CompanySetting is one (companyid, setting_name) key-value row. Values are
// stored as strings; typed access goes through CompanySettings.
type CompanySetting struct {
	ID           int64  `db:"id" json:"id"`
	CompanyID    int64  `db:"companyid" json:"companyid"`
	SettingName  string `db:"setting_name" json:"setting_name"`
	SettingValue string `db:"setting_value" json:"setting_value"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
	UpdatedAt    int64  `db:"updated_at" json:"updated_at"`
}

// Setting name prefixes and knob names persisted in company_settings.
const (
	SettingPrefixField  = "field_"
	SettingPrefixCourse = "course_"

	SettingSyncMode        = "sync_mode"
	SettingSyncWindowHours = "sync_window_hours"
	SettingFirstSyncHours  = "first_sync_hours"
	SettingCacheEnabled    = "cache_enabled"
	SettingCacheTTLMinutes = "cache_ttl_minutes"
)

// ProgressFieldNames lists the response fields in output order. This slice is
// the single source of truth for field order; the resolver builds each row by
// walking it and skipping disabled fields.
var ProgressFieldNames = []string{
	"userid",
	"firstname",
	"lastname",
	"email",
	"courseid",
	"coursename",
	"timecompleted",
	"timecompleted_unix",
	"timestarted",
	"timestarted_unix",
	"percentage",
	"status",
}

// CompanySettings is the typed view of a company's key-value rows, loaded
// once per request. Absent rows fall back to the documented defaults
// (every field visible, caching on, auto mode, 24h window).
type CompanySettings struct {
	CompanyID int64 `json:"companyid"`

	// Fields maps response field name to visibility. Always contains every
	// name in ProgressFieldNames.
	Fields map[string]bool `json:"fields"`

	// EnabledCourses carries course_<id> toggles as stored. An empty map
	// with HasCourseSettings true means "settings exist but nothing is
	// enabled", which serves an empty result rather than everything.
	EnabledCourses    map[int64]bool `json:"enabled_courses"`
	HasCourseSettings bool           `json:"has_course_settings"`

	SyncMode        SyncMode `json:"sync_mode"`
	SyncWindowHours int      `json:"sync_window_hours"`
	FirstSyncHours  int      `json:"first_sync_hours"`
	CacheEnabled    bool     `json:"cache_enabled"`
	CacheTTLMinutes int      `json:"cache_ttl_minutes"`
}

// EnabledCourseIDs returns the IDs explicitly toggled on, in no particular
// order.
func (s *CompanySettings) EnabledCourseIDs() []int64 {
	ids := make([]int64, 0, len(s.EnabledCourses))
	for id, enabled := range s.EnabledCourses {
		if enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// FieldVisible reports whether the named response field is enabled.
func (s *CompanySettings) FieldVisible(name string) bool {
	visible, ok := s.Fields[name]
	if !ok {
		return true
	}
	return visible
}

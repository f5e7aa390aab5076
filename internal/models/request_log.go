package models

// RequestLog is one durable row per API request, used for auditing and for
// the calendar-day rate limiter. The limiter must count from these rows, not
// from memory: the serving process is neither long-lived nor singular.
type RequestLog struct {
	ID          int64  `db:"id" json:"id"`
	UserID      int64  `db:"userid" json:"userid"`
	CompanyID   int64  `db:"companyid" json:"companyid"`
	Endpoint    string `db:"endpoint" json:"endpoint"`
	IPAddress   string `db:"ipaddress" json:"ipaddress"`
	UserAgent   string `db:"useragent" json:"useragent"`
	TimeCreated int64  `db:"timecreated" json:"timecreated"`
}

// UsageStats summarises a company's recent API traffic.
type UsageStats struct {
	TotalRequests int64 `db:"total_requests" json:"total_requests"`
	UniqueUsers   int64 `db:"unique_users" json:"unique_users"`
	LastAccess    int64 `db:"last_access" json:"last_access"`
}

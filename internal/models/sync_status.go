package models

// SyncMode governs the query shape served to a (company, token) consumer.
type SyncMode string

const (
	// SyncModeAuto lets the resolver pick between full and incremental.
	SyncModeAuto SyncMode = "auto"
	// SyncModeIncremental forces delta queries while the ledger is healthy.
	SyncModeIncremental SyncMode = "incremental"
	// SyncModeFull always serves the whole non-deleted set.
	SyncModeFull SyncMode = "full"
	// SyncModeDisabled turns incremental serving off entirely.
	SyncModeDisabled SyncMode = "disabled"
)

// ResolvedMode is the per-request outcome of mode determination.
type ResolvedMode string

const (
	ResolvedFirst       ResolvedMode = "first"
	ResolvedFull        ResolvedMode = "full"
	ResolvedIncremental ResolvedMode = "incremental"
)

// Sync outcome values recorded in the ledger.
const (
	SyncOutcomeSuccess = "success"
	SyncOutcomeFailed  = "failed"
)

// SyncStatus is the per (companyid, token_hash) ledger row that drives mode
// determination on the next request.
type SyncStatus struct {
	ID                int64    `db:"id" json:"id"`
	CompanyID         int64    `db:"companyid" json:"companyid"`
	TokenHash         string   `db:"token_hash" json:"token_hash"`
	LastSyncTimestamp int64    `db:"last_sync_timestamp" json:"last_sync_timestamp"`
	SyncMode          SyncMode `db:"sync_mode" json:"sync_mode"`
	SyncWindowHours   int      `db:"sync_window_hours" json:"sync_window_hours"`
	LastSyncRecords   int      `db:"last_sync_records" json:"last_sync_records"`
	LastSyncStatus    string   `db:"last_sync_status" json:"last_sync_status"`
	LastSyncError     *string  `db:"last_sync_error" json:"last_sync_error,omitempty"`
	TotalSyncs        int64    `db:"total_syncs" json:"total_syncs"`
	CreatedAt         int64    `db:"created_at" json:"created_at"`
	UpdatedAt         int64    `db:"updated_at" json:"updated_at"`
}

// SyncRunStats aggregates one sync-engine pass for logging and the admin API.
type SyncRunStats struct {
	CompaniesProcessed  int     `json:"companies_processed"`
	UsersUpdated        int     `json:"users_updated"`
	RecordsUpdated      int     `json:"records_updated"`
	RecordsCreated      int     `json:"records_created"`
	TotalErrors         int     `json:"total_errors"`
	CompaniesWithErrors []int64 `json:"companies_with_errors,omitempty"`
	DurationSeconds     int64   `json:"duration_seconds"`
	Partial             bool    `json:"partial"`
}

// PopulateStats aggregates a bootstrap full-populate run.
type PopulateStats struct {
	CompaniesProcessed int   `json:"companies_processed"`
	TotalProcessed     int   `json:"total_processed"`
	TotalInserted      int   `json:"total_inserted"`
	DurationSeconds    int64 `json:"duration_seconds"`
}

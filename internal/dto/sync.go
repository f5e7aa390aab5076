package dto

import "github.com/alx-report/report-api/internal/models"

// SyncRunRequest triggers a synchronous sync pass for operator testing.
type SyncRunRequest struct {
	CompanyID     int64 `json:"company_id" form:"company_id" validate:"gte=0"`
	LookbackHours int   `json:"lookback_hours" form:"lookback_hours" validate:"gte=0,lte=168"`
}

// PopulateRequest triggers the bootstrap full populate.
type PopulateRequest struct {
	CompanyID int64 `json:"company_id" form:"company_id" validate:"gte=0"`
	BatchSize int   `json:"batch_size" form:"batch_size" validate:"gte=0,lte=10000"`
}

// SyncOverview combines the ledger rows and reporting statistics for the
// monitoring endpoint.
type SyncOverview struct {
	CompanyID int64                 `json:"company_id,omitempty"`
	Statuses  []models.SyncStatus   `json:"statuses"`
	Reporting models.ReportingStats `json:"reporting"`
	Usage     models.UsageStats     `json:"usage"`
}

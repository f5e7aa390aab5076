package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alx-report/report-api/internal/dto"
	"github.com/alx-report/report-api/internal/service"
	appErrors "github.com/alx-report/report-api/pkg/errors"
	"github.com/alx-report/report-api/pkg/response"
)

// SyncHandler exposes the sync engine to operators.
type SyncHandler struct {
	sync    *service.SyncService
	limiter *service.RateLimitService
}

// NewSyncHandler creates the handler.
func NewSyncHandler(sync *service.SyncService, limiter *service.RateLimitService) *SyncHandler {
	return &SyncHandler{sync: sync, limiter: limiter}
}

// Run godoc
// @Summary Trigger an incremental sync pass
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.SyncRunRequest true "Run payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/sync/run [post]
func (h *SyncHandler) Run(c *gin.Context) {
	var req dto.SyncRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sync payload"))
		return
	}

	stats, err := h.sync.RunIncrementalPass(c.Request.Context(), req.CompanyID, req.LookbackHours)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Populate godoc
// @Summary Bootstrap the reporting table
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.PopulateRequest true "Populate payload"
// @Success 200 {object} response.Envelope
// @Router /admin/sync/populate [post]
func (h *SyncHandler) Populate(c *gin.Context) {
	var req dto.PopulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid populate payload"))
		return
	}

	stats, err := h.sync.FullPopulate(c.Request.Context(), req.CompanyID, req.BatchSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Cleanup godoc
// @Summary Soft-delete orphaned reporting rows
// @Tags Sync
// @Produce json
// @Param company_id query int false "Company ID, all companies when omitted"
// @Success 200 {object} response.Envelope
// @Router /admin/sync/cleanup [post]
func (h *SyncHandler) Cleanup(c *gin.Context) {
	companyID, err := optionalCompanyID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	removed, err := h.sync.CleanupOrphans(c.Request.Context(), companyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}

// Status godoc
// @Summary Sync and usage overview for a company
// @Tags Sync
// @Produce json
// @Param company_id query int true "Company ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	companyID, err := optionalCompanyID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if companyID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "company_id is required"))
		return
	}

	statuses, err := h.sync.ListStatuses(c.Request.Context(), companyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	reporting, err := h.sync.ReportingStats(c.Request.Context(), companyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	usage, err := h.limiter.Usage(c.Request.Context(), companyID, timeNow().Add(-24*time.Hour))
	if err != nil {
		response.Error(c, err)
		return
	}

	overview := dto.SyncOverview{
		CompanyID: companyID,
		Statuses:  statuses,
		Reporting: *reporting,
		Usage:     *usage,
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

func optionalCompanyID(c *gin.Context) (int64, error) {
	raw := c.Query("company_id")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid company_id")
	}
	return id, nil
}

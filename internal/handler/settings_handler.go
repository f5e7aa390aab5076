package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alx-report/report-api/internal/dto"
	"github.com/alx-report/report-api/internal/service"
	appErrors "github.com/alx-report/report-api/pkg/errors"
	"github.com/alx-report/report-api/pkg/response"
)

// SettingsHandler exposes per-company configuration to the admin surface.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler creates the handler.
func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// List godoc
// @Summary List company settings
// @Tags Settings
// @Produce json
// @Param id path int true "Company ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/companies/{id}/settings [get]
func (h *SettingsHandler) List(c *gin.Context) {
	companyID, ok := companyIDParam(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), companyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Update godoc
// @Summary Update company settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param id path int true "Company ID"
// @Param payload body dto.UpdateSettingsRequest true "Settings payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/companies/{id}/settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	companyID, ok := companyIDParam(c)
	if !ok {
		return
	}
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	if err := h.service.Update(c.Request.Context(), companyID, req, timeNow()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Copy godoc
// @Summary Copy settings from another company
// @Tags Settings
// @Accept json
// @Produce json
// @Param id path int true "Target company ID"
// @Param payload body dto.CopySettingsRequest true "Copy payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/companies/{id}/settings/copy [post]
func (h *SettingsHandler) Copy(c *gin.Context) {
	companyID, ok := companyIDParam(c)
	if !ok {
		return
	}
	var req dto.CopySettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid copy payload"))
		return
	}
	copied, err := h.service.Copy(c.Request.Context(), req.FromCompanyID, companyID, timeNow())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"copied": copied}, nil)
}

func companyIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid company id"))
		return 0, false
	}
	return id, true
}

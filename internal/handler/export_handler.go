package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alx-report/report-api/internal/service"
	appErrors "github.com/alx-report/report-api/pkg/errors"
	"github.com/alx-report/report-api/pkg/response"
)

// ExportHandler serves reporting-data downloads for operators.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates the handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Progress godoc
// @Summary Download a company's progress report
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Param company_id query int true "Company ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /admin/export/progress [get]
func (h *ExportHandler) Progress(c *gin.Context) {
	companyID, err := strconv.ParseInt(c.Query("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid company_id"))
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))
	result, err := h.service.Export(c.Request.Context(), companyID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alx-report/report-api/internal/dto"
	"github.com/alx-report/report-api/internal/service"
	appErrors "github.com/alx-report/report-api/pkg/errors"
	"github.com/alx-report/report-api/pkg/response"
)

// ProgressHandler serves the external read API.
type ProgressHandler struct {
	service *service.ProgressService
}

// NewProgressHandler creates the handler.
func NewProgressHandler(svc *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: svc}
}

// GetProgress godoc
// @Summary Course progress report
// @Description Paginated course-completion rows for the authenticated company
// @Tags Progress
// @Accept json
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} object
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /progress [post]
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	// Paging knobs arrive in the query string for both GET and POST; BI
	// clients send POST with an empty body.
	var query dto.ProgressQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	result, err := h.service.GetProgress(c.Request.Context(), principal, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	// The read API keeps its historical flat-array body, with an empty
	// array rather than null for no rows.
	if result.Cached {
		c.Header("Cache-Control", "no-store")
		c.Header("X-Cache", "hit")
		c.Data(http.StatusOK, "application/json; charset=utf-8", result.Payload)
		return
	}
	if result.Rows == nil {
		result.Rows = []dto.ProgressRow{}
	}
	response.Raw(c, http.StatusOK, result.Rows)
}

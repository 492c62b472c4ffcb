package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/norish-recipes/norish-caldav/internal/dto"
	"github.com/norish-recipes/norish-caldav/internal/models"
	"github.com/norish-recipes/norish-caldav/internal/service"
	appErrors "github.com/norish-recipes/norish-caldav/pkg/errors"
	"github.com/norish-recipes/norish-caldav/pkg/response"
)

type statusReader interface {
	List(ctx context.Context, userID string, query dto.StatusListQuery) ([]models.SyncStatusRecord, *models.Pagination, error)
	Summary(ctx context.Context, userID string) (*models.SyncStatusSummary, error)
	Export(ctx context.Context, userID string, query dto.StatusListQuery, format string) (*service.ExportResult, error)
}

// StatusHandler exposes the sync status table.
type StatusHandler struct {
	status statusReader
}

// NewStatusHandler builds a new handler.
func NewStatusHandler(status statusReader) *StatusHandler {
	return &StatusHandler{status: status}
}

// List godoc
// @Summary List sync status rows
// @Tags Status
// @Produce json
// @Param status query string false "Filter by sync status"
// @Param item_type query string false "Filter by item type"
// @Param search query string false "Search event titles"
// @Success 200 {object} response.Envelope
// @Router /caldav/status [get]
func (h *StatusHandler) List(c *gin.Context) {
	var query dto.StatusListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status query"))
		return
	}

	records, pagination, err := h.status.List(c.Request.Context(), userIDFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Summary godoc
// @Summary Per-status counts for the current user
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /caldav/status/summary [get]
func (h *StatusHandler) Summary(c *gin.Context) {
	summary, err := h.status.Summary(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export the status table as CSV or PDF
// @Tags Status
// @Produce text/csv,application/pdf
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Router /caldav/status/export [get]
func (h *StatusHandler) Export(c *gin.Context) {
	var query dto.StatusListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status query"))
		return
	}

	format := c.DefaultQuery("format", "csv")
	result, err := h.status.Export(c.Request.Context(), userIDFromContext(c), query, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

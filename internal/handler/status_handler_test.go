package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norish-recipes/norish-caldav/internal/dto"
	"github.com/norish-recipes/norish-caldav/internal/models"
	"github.com/norish-recipes/norish-caldav/internal/service"
)

type statusReaderMock struct {
	records   []models.SyncStatusRecord
	summary   *models.SyncStatusSummary
	export    *service.ExportResult
	exportErr error
	lastQuery dto.StatusListQuery
}

func (m *statusReaderMock) List(ctx context.Context, userID string, query dto.StatusListQuery) ([]models.SyncStatusRecord, *models.Pagination, error) {
	m.lastQuery = query
	return m.records, models.NewPagination(query.Page, query.PageSize, len(m.records)), nil
}

func (m *statusReaderMock) Summary(ctx context.Context, userID string) (*models.SyncStatusSummary, error) {
	return m.summary, nil
}

func (m *statusReaderMock) Export(ctx context.Context, userID string, query dto.StatusListQuery, format string) (*service.ExportResult, error) {
	if m.exportErr != nil {
		return nil, m.exportErr
	}
	return m.export, nil
}

func TestStatusHandlerListBindsQuery(t *testing.T) {
	mock := &statusReaderMock{records: []models.SyncStatusRecord{{ItemID: "item1", EventTitle: "Pasta Night"}}}
	handler := NewStatusHandler(mock)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/caldav/status?status=failed&item_type=recipe&page=2&page_size=5", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", mock.lastQuery.Status)
	assert.Equal(t, "recipe", mock.lastQuery.ItemType)
	assert.Equal(t, 2, mock.lastQuery.Page)
	assert.Equal(t, 5, mock.lastQuery.PageSize)
	assert.Contains(t, w.Body.String(), "Pasta Night")
	assert.Contains(t, w.Body.String(), "pagination")
}

func TestStatusHandlerListDefaultsPaging(t *testing.T) {
	mock := &statusReaderMock{}
	handler := NewStatusHandler(mock)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/caldav/status", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mock.lastQuery.Page)
	assert.Equal(t, 20, mock.lastQuery.PageSize)
}

func TestStatusHandlerListRejectsUnknownStatus(t *testing.T) {
	handler := NewStatusHandler(&statusReaderMock{})

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/caldav/status?status=exploded", nil)

	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusHandlerSummary(t *testing.T) {
	mock := &statusReaderMock{summary: &models.SyncStatusSummary{Synced: 4, Failed: 1, Total: 5}}
	handler := NewStatusHandler(mock)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/caldav/status/summary", nil)

	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"synced":4`)
	assert.Contains(t, w.Body.String(), `"total":5`)
}

func TestStatusHandlerExportSetsDisposition(t *testing.T) {
	mock := &statusReaderMock{export: &service.ExportResult{
		ContentType: "text/csv",
		Filename:    "caldav-sync-status-20250310.csv",
		Content:     []byte("Item ID,Type\n"),
	}}
	handler := NewStatusHandler(mock)

	w := httptest.NewRecorder()
	c := authedContext(t, w, http.MethodGet, "/caldav/status/export?format=csv", nil)

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "caldav-sync-status-20250310.csv")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
}

package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norish-recipes/norish-caldav/internal/dto"
	"github.com/norish-recipes/norish-caldav/internal/models"
	appErrors "github.com/norish-recipes/norish-caldav/pkg/errors"
	"github.com/norish-recipes/norish-caldav/pkg/export"
)

type statusQuerierStub struct {
	records      []models.SyncStatusRecord
	summary      models.SyncStatusSummary
	listCalls    int
	summaryCalls int
	lastFilter   models.SyncStatusFilter
}

func (s *statusQuerierStub) List(ctx context.Context, userID string, filter models.SyncStatusFilter) ([]models.SyncStatusRecord, *models.Pagination, error) {
	s.listCalls++
	s.lastFilter = filter
	return s.records, models.NewPagination(filter.Page, filter.PageSize, len(s.records)), nil
}

func (s *statusQuerierStub) Summary(ctx context.Context, userID string) (*models.SyncStatusSummary, error) {
	s.summaryCalls++
	summary := s.summary
	return &summary, nil
}

type cacheStub struct {
	values map[string][]byte
	sets   int
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	c.sets++
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

func sampleStatusRecords() []models.SyncStatusRecord {
	uid := "uid-1"
	failure := "connection refused"
	return []models.SyncStatusRecord{
		{
			ItemID: "item1", ItemType: models.ItemTypeRecipe, EventTitle: "Pasta Night",
			Date: "2025-03-10", Slot: models.SlotDinner,
			CalDAVEventUID: &uid, SyncStatus: models.SyncStatusSynced,
		},
		{
			ItemID: "item2", ItemType: models.ItemTypeNote, EventTitle: "Buy basil",
			Date: "2025-03-11", Slot: models.SlotLunch,
			SyncStatus: models.SyncStatusFailed, ErrorMessage: &failure,
		},
	}
}

func TestStatusServiceListTranslatesFilters(t *testing.T) {
	repo := &statusQuerierStub{records: sampleStatusRecords()}
	svc := NewStatusService(repo, nil, export.NewCSVExporter(), export.NewPDFExporter(), time.Minute, nil)

	records, pagination, err := svc.List(context.Background(), "u1", dto.StatusListQuery{
		Status: "failed", ItemType: "note", Search: "basil", Page: 2, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.NotNil(t, pagination)

	require.NotNil(t, repo.lastFilter.Status)
	assert.Equal(t, models.SyncStatusFailed, *repo.lastFilter.Status)
	require.NotNil(t, repo.lastFilter.ItemType)
	assert.Equal(t, models.ItemTypeNote, *repo.lastFilter.ItemType)
	assert.Equal(t, "basil", repo.lastFilter.Search)
	assert.Equal(t, 2, repo.lastFilter.Page)
}

func TestStatusServiceListRejectsUnknownStatus(t *testing.T) {
	svc := NewStatusService(&statusQuerierStub{}, nil, export.NewCSVExporter(), export.NewPDFExporter(), time.Minute, nil)

	_, _, err := svc.List(context.Background(), "u1", dto.StatusListQuery{Status: "exploded"})
	assert.Error(t, err)
}

func TestStatusServiceSummaryCaches(t *testing.T) {
	repo := &statusQuerierStub{summary: models.SyncStatusSummary{Synced: 3, Failed: 1, Total: 4}}
	cache := &cacheStub{}
	svc := NewStatusService(repo, cache, export.NewCSVExporter(), export.NewPDFExporter(), time.Minute, nil)

	first, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Synced)
	assert.Equal(t, 1, repo.summaryCalls)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, 1, repo.summaryCalls, "second read must come from cache")
}

func TestStatusServiceInvalidateSummaryForcesRecount(t *testing.T) {
	repo := &statusQuerierStub{summary: models.SyncStatusSummary{Synced: 1, Total: 1}}
	cache := &cacheStub{}
	svc := NewStatusService(repo, cache, export.NewCSVExporter(), export.NewPDFExporter(), time.Minute, nil)

	_, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)

	svc.InvalidateSummary(context.Background(), "u1")

	_, err = svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.summaryCalls)
}

func TestStatusServiceExportCSV(t *testing.T) {
	repo := &statusQuerierStub{records: sampleStatusRecords()}
	svc := NewStatusService(repo, nil, export.NewCSVExporter(), export.NewPDFExporter(), time.Minute, nil)

	result, err := svc.Export(context.Background(), "u1", dto.StatusListQuery{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "caldav-sync-status-"))

	body := string(result.Content)
	assert.Contains(t, body, "Item ID")
	assert.Contains(t, body, "Pasta Night")
	assert.Contains(t, body, "connection refused")
}

func TestStatusServiceExportPDF(t *testing.T) {
	repo := &statusQuerierStub{records: sampleStatusRecords()}
	svc := NewStatusService(repo, nil, export.NewCSVExporter(), export.NewPDFExporter(), time.Minute, nil)

	result, err := svc.Export(context.Background(), "u1", dto.StatusListQuery{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, len(result.Content) > 0)
	assert.Equal(t, "%PDF", string(result.Content[:4]))
}

func TestStatusServiceExportUnknownFormat(t *testing.T) {
	svc := NewStatusService(&statusQuerierStub{}, nil, export.NewCSVExporter(), export.NewPDFExporter(), time.Minute, nil)

	_, err := svc.Export(context.Background(), "u1", dto.StatusListQuery{}, "xlsx")
	assert.Error(t, err)
}

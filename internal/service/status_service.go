package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/norish-recipes/norish-caldav/internal/dto"
	"github.com/norish-recipes/norish-caldav/internal/models"
	appErrors "github.com/norish-recipes/norish-caldav/pkg/errors"
	"github.com/norish-recipes/norish-caldav/pkg/export"
)

type syncStatusQuerier interface {
	List(ctx context.Context, userID string, filter models.SyncStatusFilter) ([]models.SyncStatusRecord, *models.Pagination, error)
	Summary(ctx context.Context, userID string) (*models.SyncStatusSummary, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type tableExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

type reportExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult carries rendered export bytes with HTTP metadata.
type ExportResult struct {
	ContentType string
	Filename    string
	Content     []byte
}

// StatusService serves the per-user sync status table, its cached summary
// and file exports of it.
type StatusService struct {
	repo       syncStatusQuerier
	cache      summaryCache
	csv        tableExporter
	pdf        reportExporter
	summaryTTL time.Duration
	logger     *zap.Logger
}

// NewStatusService constructs the service. cache may be nil when Redis is
// not configured.
func NewStatusService(repo syncStatusQuerier, cache summaryCache, csv tableExporter, pdf reportExporter, summaryTTL time.Duration, logger *zap.Logger) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if summaryTTL <= 0 {
		summaryTTL = time.Minute
	}
	return &StatusService{
		repo:       repo,
		cache:      cache,
		csv:        csv,
		pdf:        pdf,
		summaryTTL: summaryTTL,
		logger:     logger,
	}
}

func summaryCacheKey(userID string) string {
	return "caldav:summary:" + userID
}

// List returns one page of the user's status table.
func (s *StatusService) List(ctx context.Context, userID string, query dto.StatusListQuery) ([]models.SyncStatusRecord, *models.Pagination, error) {
	filter, err := statusFilter(query)
	if err != nil {
		return nil, nil, err
	}

	records, pagination, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list sync status")
	}
	return records, pagination, nil
}

// Summary returns per-status counts, served from Redis when fresh.
func (s *StatusService) Summary(ctx context.Context, userID string) (*models.SyncStatusSummary, error) {
	key := summaryCacheKey(userID)

	if s.cache != nil {
		var cached models.SyncStatusSummary
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("read summary cache", zap.String("user_id", userID), zap.Error(err))
		}
	}

	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "summarize sync status")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.summaryTTL); err != nil {
			s.logger.Warn("write summary cache", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return summary, nil
}

// InvalidateSummary drops the cached counts after a status row changes.
func (s *StatusService) InvalidateSummary(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, summaryCacheKey(userID)); err != nil {
		s.logger.Warn("invalidate summary cache", zap.String("user_id", userID), zap.Error(err))
	}
}

// Export renders the full (unpaginated, filtered) status table as CSV or PDF.
func (s *StatusService) Export(ctx context.Context, userID string, query dto.StatusListQuery, format string) (*ExportResult, error) {
	filter, err := statusFilter(query)
	if err != nil {
		return nil, err
	}
	filter.Page = 1
	filter.PageSize = 10000

	records, _, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list sync status for export")
	}

	data := statusDataset(records)
	stamp := time.Now().UTC().Format("20060102")

	switch format {
	case "csv":
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv export")
		}
		return &ExportResult{
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("caldav-sync-status-%s.csv", stamp),
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(data, "CalDAV Sync Status")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf export")
		}
		return &ExportResult{
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("caldav-sync-status-%s.pdf", stamp),
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func statusFilter(query dto.StatusListQuery) (models.SyncStatusFilter, error) {
	filter := models.SyncStatusFilter{
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Status != "" {
		status := models.SyncStatus(query.Status)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown sync status filter")
		}
		filter.Status = &status
	}
	if query.ItemType != "" {
		itemType := models.ItemType(query.ItemType)
		if !itemType.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown item type filter")
		}
		filter.ItemType = &itemType
	}
	return filter, nil
}

func statusDataset(records []models.SyncStatusRecord) export.Dataset {
	data := export.Dataset{
		Headers: []string{"Item ID", "Type", "Title", "Date", "Slot", "Status", "Event UID", "Last Sync", "Error"},
	}
	for _, rec := range records {
		uid := ""
		if rec.CalDAVEventUID != nil {
			uid = *rec.CalDAVEventUID
		}
		lastSync := ""
		if rec.LastSyncAt != nil {
			lastSync = rec.LastSyncAt.UTC().Format(time.RFC3339)
		}
		errMsg := ""
		if rec.ErrorMessage != nil {
			errMsg = *rec.ErrorMessage
		}
		data.Rows = append(data.Rows, []string{
			rec.ItemID,
			string(rec.ItemType),
			rec.EventTitle,
			rec.Date,
			string(rec.Slot),
			string(rec.SyncStatus),
			uid,
			lastSync,
			errMsg,
		})
	}
	return data
}

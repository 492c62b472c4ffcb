package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/norish-recipes/norish-caldav/internal/models"
)

const syncStatusColumns = `id, user_id, item_id, item_type, event_title, date, slot,
caldav_event_uid, sync_status, error_message, last_sync_at, created_at, updated_at`

// SyncStatusRepository persists per-item sync outcomes. Rows are upserted
// on the (user_id, item_id) pair and never physically deleted.
type SyncStatusRepository struct {
	db *sqlx.DB
}

// NewSyncStatusRepository constructs the repository.
func NewSyncStatusRepository(db *sqlx.DB) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

// Get fetches the status row for one planned item. Returns sql.ErrNoRows
// when the item was never synced.
func (r *SyncStatusRepository) Get(ctx context.Context, userID, itemID string) (*models.SyncStatusRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM caldav_sync_status WHERE user_id = $1 AND item_id = $2`, syncStatusColumns)
	var rec models.SyncStatusRecord
	if err := r.db.GetContext(ctx, &rec, query, userID, itemID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert writes the outcome of a sync attempt. Last write wins per row.
func (r *SyncStatusRepository) Upsert(ctx context.Context, rec *models.SyncStatusRecord) error {
	const query = `INSERT INTO caldav_sync_status
(id, user_id, item_id, item_type, event_title, date, slot, caldav_event_uid, sync_status, error_message, last_sync_at, created_at, updated_at)
VALUES (:id, :user_id, :item_id, :item_type, :event_title, :date, :slot, :caldav_event_uid, :sync_status, :error_message, :last_sync_at, :updated_at, :updated_at)
ON CONFLICT (user_id, item_id)
DO UPDATE SET item_type = EXCLUDED.item_type, event_title = EXCLUDED.event_title, date = EXCLUDED.date,
              slot = EXCLUDED.slot, caldav_event_uid = EXCLUDED.caldav_event_uid, sync_status = EXCLUDED.sync_status,
              error_message = EXCLUDED.error_message, last_sync_at = EXCLUDED.last_sync_at, updated_at = EXCLUDED.updated_at`
	rec.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("upsert sync status: %w", err)
	}
	return nil
}

// List returns a filtered, paginated slice of status rows for one user
// ordered by most recently updated first.
func (r *SyncStatusRepository) List(ctx context.Context, userID string, filter models.SyncStatusFilter) ([]models.SyncStatusRecord, *models.Pagination, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("sync_status = $%d", len(args)))
	}
	if filter.ItemType != nil {
		args = append(args, *filter.ItemType)
		conditions = append(conditions, fmt.Sprintf("item_type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("event_title ILIKE $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM caldav_sync_status WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, nil, fmt.Errorf("count sync status: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	args = append(args, pageSize, (page-1)*pageSize)
	listQuery := fmt.Sprintf(`SELECT %s FROM caldav_sync_status WHERE %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		syncStatusColumns, where, len(args)-1, len(args))

	var records []models.SyncStatusRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, nil, fmt.Errorf("list sync status: %w", err)
	}

	return records, models.NewPagination(page, pageSize, total), nil
}

// Summary aggregates row counts per status for one user.
func (r *SyncStatusRepository) Summary(ctx context.Context, userID string) (*models.SyncStatusSummary, error) {
	const query = `SELECT
COUNT(*) FILTER (WHERE sync_status = 'pending') AS pending,
COUNT(*) FILTER (WHERE sync_status = 'synced') AS synced,
COUNT(*) FILTER (WHERE sync_status = 'failed') AS failed,
COUNT(*) FILTER (WHERE sync_status = 'removed') AS removed,
COUNT(*) AS total
FROM caldav_sync_status WHERE user_id = $1`
	var summary models.SyncStatusSummary
	if err := r.db.GetContext(ctx, &summary, query, userID); err != nil {
		return nil, fmt.Errorf("summarize sync status: %w", err)
	}
	return &summary, nil
}

// ListByStatuses returns every row for the user in one of the given states,
// used to drive bulk resyncs.
func (r *SyncStatusRepository) ListByStatuses(ctx context.Context, userID string, statuses []models.SyncStatus) ([]models.SyncStatusRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := []interface{}{userID}
	placeholders := make([]string, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, status)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM caldav_sync_status WHERE user_id = $1 AND sync_status IN (%s) ORDER BY updated_at ASC`,
		syncStatusColumns, strings.Join(placeholders, ","))

	var records []models.SyncStatusRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list sync status by state: %w", err)
	}
	return records, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/norish-recipes/norish-caldav/internal/caldav"
	"github.com/norish-recipes/norish-caldav/internal/models"
	appErrors "github.com/norish-recipes/norish-caldav/pkg/errors"
	"github.com/norish-recipes/norish-caldav/pkg/jobs"
)

// ResyncJobType labels queued background resync jobs.
const ResyncJobType = "caldav.resync"

const maxErrorMessageLen = 500

type calDAVConfigReader interface {
	GetByUser(ctx context.Context, userID string) (*models.CalDAVConfig, error)
}

type syncStatusStore interface {
	Get(ctx context.Context, userID, itemID string) (*models.SyncStatusRecord, error)
	Upsert(ctx context.Context, rec *models.SyncStatusRecord) error
	ListByStatuses(ctx context.Context, userID string, statuses []models.SyncStatus) ([]models.SyncStatusRecord, error)
}

type remoteCalendar interface {
	TestConnection(ctx context.Context) caldav.ConnectionResult
	CreateEvent(ctx context.Context, spec caldav.EventSpec) (*caldav.CreatedEvent, error)
	DeleteEvent(ctx context.Context, uid string) error
}

// RemoteCalendarFactory builds a protocol client from a user configuration.
// Injected so tests can substitute fakes and so credentials are always read
// fresh from the store.
type RemoteCalendarFactory func(serverURL, username, password string) (remoteCalendar, error)

// NewCalDAVClientFactory returns the production factory backed by a shared
// HTTP client.
func NewCalDAVClientFactory(httpClient *http.Client, logger *zap.Logger) RemoteCalendarFactory {
	return func(serverURL, username, password string) (remoteCalendar, error) {
		client, err := caldav.NewClient(httpClient, serverURL, username, password, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

type syncEventPublisher interface {
	Publish(ctx context.Context, event models.SyncEvent)
}

type summaryInvalidator interface {
	InvalidateSummary(ctx context.Context, userID string)
}

type calDAVMetrics interface {
	ObserveCalDAVOperation(operation, outcome string, duration time.Duration)
}

type resyncEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// SyncItemInput describes a domain mutation to project remotely.
type SyncItemInput struct {
	ItemID     string
	ItemType   models.ItemType
	EventTitle string
	Date       string
	Slot       models.MealSlot
	RecipeID   string
}

// SyncResult reports the remote UID written for the item.
type SyncResult struct {
	UID   string
	IsNew bool
}

// deleteOutcome distinguishes "nothing to delete" from "delete attempted
// and failed" even though DeletePlannedItem itself never fails.
type deleteOutcome struct {
	kind    deleteOutcomeKind
	message string
}

type deleteOutcomeKind int

const (
	deleteNothing deleteOutcomeKind = iota
	deleteSkipped
	deleteDone
	deleteRemoteFailed
)

// SyncService maps domain mutations onto idempotent create/delete
// operations against the user's remote calendar and records each outcome.
type SyncService struct {
	configs    calDAVConfigReader
	statuses   syncStatusStore
	newRemote  RemoteCalendarFactory
	events     syncEventPublisher
	metrics    calDAVMetrics
	queue      resyncEnqueuer
	logger     *zap.Logger
	appBaseURL string
	summaries  summaryInvalidator

	locks keyedMutex
}

// SetSummaryInvalidator wires cached summary invalidation into every
// status write. Set after construction to break the service cycle.
func (s *SyncService) SetSummaryInvalidator(inv summaryInvalidator) {
	s.summaries = inv
}

// NewSyncService constructs the orchestrator. events, metrics and queue may
// be nil; the corresponding side effects are skipped.
func NewSyncService(configs calDAVConfigReader, statuses syncStatusStore, factory RemoteCalendarFactory, events syncEventPublisher, metrics calDAVMetrics, queue resyncEnqueuer, appBaseURL string, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		configs:    configs,
		statuses:   statuses,
		newRemote:  factory,
		events:     events,
		metrics:    metrics,
		queue:      queue,
		logger:     logger,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

// SyncPlannedItem creates (or recreates) the remote event for one planned
// item and persists the outcome. Remote failures are recorded as a failed
// status and returned to the caller; configuration problems are returned
// without touching the status row.
func (s *SyncService) SyncPlannedItem(ctx context.Context, userID string, input SyncItemInput) (*SyncResult, error) {
	if err := validateSyncInput(userID, input); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(userID + "/" + input.ItemID)
	defer unlock()

	cfg, err := s.loadEnabledConfig(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.statuses.Get(ctx, userID, input.ItemID)
	isNew := false
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		isNew = true
		existing = nil
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load sync status")
	}

	// The protocol has no rename verb: a title change must drop the old
	// remote event or it survives forever under a dead UID.
	if existing != nil && existing.EventTitle != input.EventTitle {
		s.deleteLocked(ctx, userID, input.ItemID)
		if refreshed, err := s.statuses.Get(ctx, userID, input.ItemID); err == nil {
			existing = refreshed
		}
	}

	start, end, err := eventWindow(cfg, input.Date, input.Slot)
	if err != nil {
		return nil, err
	}

	spec := caldav.EventSpec{
		Summary: input.EventTitle,
		Start:   start,
		End:     end,
	}
	if input.RecipeID != "" {
		recipeURL := fmt.Sprintf("%s/recipes/%s", s.appBaseURL, input.RecipeID)
		spec.URL = recipeURL
		spec.Description = "Open in Norish: " + recipeURL
	}

	client, err := s.newRemote(cfg.ServerURL, cfg.Username, cfg.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid caldav configuration")
	}

	rec := s.mergedRecord(existing, userID, input)

	began := time.Now()
	created, err := client.CreateEvent(ctx, spec)
	s.observe("create", err == nil, time.Since(began))
	if err != nil {
		rec.SyncStatus = models.SyncStatusFailed
		// A failed row must not claim a remote event: the UID is only
		// stored alongside synced or removed.
		rec.CalDAVEventUID = nil
		rec.ErrorMessage = truncatedMessage(err.Error())
		s.persist(ctx, rec)
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteRejected.Code, appErrors.ErrRemoteRejected.Status, "caldav event creation failed")
	}

	now := time.Now().UTC()
	rec.SyncStatus = models.SyncStatusSynced
	rec.CalDAVEventUID = &created.UID
	rec.ErrorMessage = nil
	rec.LastSyncAt = &now
	s.persist(ctx, rec)

	s.logger.Info("planned item synced",
		zap.String("user_id", userID),
		zap.String("item_id", input.ItemID),
		zap.String("uid", created.UID),
		zap.Bool("is_new", isNew))

	return &SyncResult{UID: created.UID, IsNew: isNew}, nil
}

// DeletePlannedItem removes the remote event for an unplanned item. Local
// deletion always wins: the remote side effect is best-effort and its
// failure is recorded on the status row, never surfaced to the domain.
func (s *SyncService) DeletePlannedItem(ctx context.Context, userID, itemID string) {
	if userID == "" || itemID == "" {
		return
	}

	unlock := s.locks.lock(userID + "/" + itemID)
	defer unlock()

	s.deleteLocked(ctx, userID, itemID)
}

func (s *SyncService) deleteLocked(ctx context.Context, userID, itemID string) {
	rec, err := s.statuses.Get(ctx, userID, itemID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("load sync status for delete", zap.String("item_id", itemID), zap.Error(err))
		}
		return
	}

	outcome := deleteOutcome{kind: deleteNothing}
	if rec.CalDAVEventUID != nil {
		outcome = s.deleteRemote(ctx, userID, *rec.CalDAVEventUID)
	}

	rec.SyncStatus = models.SyncStatusRemoved
	switch outcome.kind {
	case deleteDone:
		rec.ErrorMessage = nil
	case deleteRemoteFailed:
		rec.ErrorMessage = truncatedMessage(outcome.message)
	}
	s.persist(ctx, rec)
}

func (s *SyncService) deleteRemote(ctx context.Context, userID, uid string) deleteOutcome {
	cfg, err := s.configs.GetByUser(ctx, userID)
	if err != nil || !cfg.Enabled {
		// A disabled integration must never block local item deletion.
		return deleteOutcome{kind: deleteSkipped}
	}

	client, err := s.newRemote(cfg.ServerURL, cfg.Username, cfg.Password)
	if err != nil {
		return deleteOutcome{kind: deleteRemoteFailed, message: err.Error()}
	}

	began := time.Now()
	err = client.DeleteEvent(ctx, uid)
	s.observe("delete", err == nil, time.Since(began))
	if err != nil {
		return deleteOutcome{kind: deleteRemoteFailed, message: err.Error()}
	}
	return deleteOutcome{kind: deleteDone}
}

// TestConnection probes a calendar collection with explicit credentials.
// It never fails: constructor and network errors become messages.
func (s *SyncService) TestConnection(ctx context.Context, serverURL, username, password string) caldav.ConnectionResult {
	client, err := s.newRemote(serverURL, username, password)
	if err != nil {
		return caldav.ConnectionResult{Success: false, Message: err.Error()}
	}

	began := time.Now()
	result := client.TestConnection(ctx)
	s.observe("test_connection", result.Success, time.Since(began))
	return result
}

// TestStoredConnection probes using the user's persisted configuration.
func (s *SyncService) TestStoredConnection(ctx context.Context, userID string) caldav.ConnectionResult {
	cfg, err := s.configs.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return caldav.ConnectionResult{Success: false, Message: "caldav sync is not configured"}
		}
		return caldav.ConnectionResult{Success: false, Message: "failed to load caldav configuration"}
	}
	return s.TestConnection(ctx, cfg.ServerURL, cfg.Username, cfg.Password)
}

// Resync queues a fresh sync attempt for every failed (and optionally
// pending) item of the user.
func (s *SyncService) Resync(ctx context.Context, userID string, includePending bool) (int, error) {
	if s.queue == nil {
		return 0, appErrors.Clone(appErrors.ErrInternal, "resync queue is not available")
	}

	statuses := []models.SyncStatus{models.SyncStatusFailed}
	if includePending {
		statuses = append(statuses, models.SyncStatusPending)
	}

	records, err := s.statuses.ListByStatuses(ctx, userID, statuses)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list resync candidates")
	}

	enqueued := 0
	for _, rec := range records {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    ResyncJobType,
			Payload: rec,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("enqueue resync job", zap.String("item_id", rec.ItemID), zap.Error(err))
			continue
		}
		enqueued++
	}

	return enqueued, nil
}

// HandleResyncJob is the queue handler for jobs produced by Resync.
func (s *SyncService) HandleResyncJob(ctx context.Context, job jobs.Job) error {
	rec, ok := job.Payload.(models.SyncStatusRecord)
	if !ok {
		return fmt.Errorf("unexpected resync payload %T", job.Payload)
	}

	_, err := s.SyncPlannedItem(ctx, rec.UserID, SyncItemInput{
		ItemID:     rec.ItemID,
		ItemType:   rec.ItemType,
		EventTitle: rec.EventTitle,
		Date:       rec.Date,
		Slot:       rec.Slot,
	})
	return err
}

func (s *SyncService) loadEnabledConfig(ctx context.Context, userID string) (*models.CalDAVConfig, error) {
	cfg, err := s.configs.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSyncNotConfigured
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load caldav configuration")
	}
	if !cfg.Enabled {
		return nil, appErrors.ErrSyncDisabled
	}
	return cfg, nil
}

func (s *SyncService) mergedRecord(existing *models.SyncStatusRecord, userID string, input SyncItemInput) *models.SyncStatusRecord {
	rec := &models.SyncStatusRecord{
		ID:       uuid.NewString(),
		UserID:   userID,
		ItemID:   input.ItemID,
		Slot:     input.Slot,
		Date:     input.Date,
		ItemType: input.ItemType,
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CalDAVEventUID = existing.CalDAVEventUID
		rec.LastSyncAt = existing.LastSyncAt
		rec.CreatedAt = existing.CreatedAt
	}
	rec.EventTitle = input.EventTitle
	return rec
}

func (s *SyncService) persist(ctx context.Context, rec *models.SyncStatusRecord) {
	if err := s.statuses.Upsert(ctx, rec); err != nil {
		s.logger.Error("persist sync status",
			zap.String("user_id", rec.UserID),
			zap.String("item_id", rec.ItemID),
			zap.Error(err))
		return
	}
	if s.summaries != nil {
		s.summaries.InvalidateSummary(ctx, rec.UserID)
	}
	if s.events != nil {
		s.events.Publish(ctx, models.SyncEvent{
			UserID:   rec.UserID,
			ItemID:   rec.ItemID,
			ItemType: rec.ItemType,
			Status:   rec.SyncStatus,
		})
	}
}

func (s *SyncService) observe(operation string, ok bool, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	s.metrics.ObserveCalDAVOperation(operation, outcome, duration)
}

func validateSyncInput(userID string, input SyncItemInput) error {
	switch {
	case userID == "":
		return appErrors.Clone(appErrors.ErrValidation, "user id is required")
	case input.ItemID == "":
		return appErrors.Clone(appErrors.ErrValidation, "item id is required")
	case strings.TrimSpace(input.EventTitle) == "":
		return appErrors.Clone(appErrors.ErrValidation, "event title is required")
	case !input.ItemType.Valid():
		return appErrors.Clone(appErrors.ErrValidation, "unknown item type")
	case !input.Slot.Valid():
		return appErrors.Clone(appErrors.ErrValidation, "unknown meal slot")
	}
	if _, err := time.Parse("2006-01-02", input.Date); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	return nil
}

// eventWindow combines the planned date with the configured slot range into
// UTC start/end instants.
func eventWindow(cfg *models.CalDAVConfig, date string, slot models.MealSlot) (time.Time, time.Time, error) {
	window := cfg.SlotWindow(slot)
	parts := strings.Split(window, "-")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("slot %s has no configured time range", slot))
	}

	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}

	startHour, startMin, err := parseClock(parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endHour, endMin, err := parseClock(parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start := day.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute)
	end := day.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute)
	if !end.After(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "slot window must end after it starts")
	}

	return start, end, nil
}

func parseClock(raw string) (int, int, error) {
	pieces := strings.Split(strings.TrimSpace(raw), ":")
	if len(pieces) != 2 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid time %q, want HH:MM", raw))
	}
	hour, err := strconv.Atoi(pieces[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid hour in %q", raw))
	}
	minute, err := strconv.Atoi(pieces[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid minute in %q", raw))
	}
	return hour, minute, nil
}

// truncatedMessage bounds persisted error text to 500 characters.
func truncatedMessage(msg string) *string {
	runes := []rune(msg)
	if len(runes) > maxErrorMessageLen {
		msg = string(runes[:maxErrorMessageLen-3]) + "..."
	}
	return &msg
}

// keyedMutex serializes concurrent sync attempts per (user, item) so a
// rapid double-edit cannot interleave the delete/recreate pair.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*lockEntry)
	}
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

package repository

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/norish-recipes/norish-caldav/internal/models"
)

// SyncEventChannel is the redis pub/sub channel the main application
// subscribes to for live status updates.
const SyncEventChannel = "caldav.sync.events"

// SyncEventPublisher broadcasts status-store changes to connected clients.
// Publishing is best-effort: a dropped event only delays the UI until the
// next refetch, so failures are logged rather than propagated.
type SyncEventPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSyncEventPublisher constructs the publisher. A nil client makes
// Publish a no-op.
func NewSyncEventPublisher(client *redis.Client, logger *zap.Logger) *SyncEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncEventPublisher{client: client, logger: logger}
}

// Publish sends a status change on the sync event channel.
func (p *SyncEventPublisher) Publish(ctx context.Context, event models.SyncEvent) {
	if p.client == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshal sync event", zap.Error(err))
		return
	}

	if err := p.client.Publish(ctx, SyncEventChannel, payload).Err(); err != nil {
		p.logger.Warn("publish sync event",
			zap.String("user_id", event.UserID),
			zap.String("item_id", event.ItemID),
			zap.Error(err))
	}
}

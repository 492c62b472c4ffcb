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

type syncOrchestrator interface {
	SyncPlannedItem(ctx context.Context, userID string, input service.SyncItemInput) (*service.SyncResult, error)
	DeletePlannedItem(ctx context.Context, userID, itemID string)
	Resync(ctx context.Context, userID string, includePending bool) (int, error)
}

// SyncHandler exposes the sync mutation endpoints.
type SyncHandler struct {
	sync syncOrchestrator
}

// NewSyncHandler builds a new handler.
func NewSyncHandler(sync syncOrchestrator) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// SyncItem godoc
// @Summary Sync one planned item to the remote calendar
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.SyncItemRequest true "Planned item"
// @Success 200 {object} response.Envelope
// @Router /caldav/sync/items [post]
func (h *SyncHandler) SyncItem(c *gin.Context) {
	var req dto.SyncItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sync payload"))
		return
	}

	result, err := h.sync.SyncPlannedItem(c.Request.Context(), userIDFromContext(c), service.SyncItemInput{
		ItemID:     req.ItemID,
		ItemType:   models.ItemType(req.ItemType),
		EventTitle: req.EventTitle,
		Date:       req.Date,
		Slot:       models.MealSlot(req.Slot),
		RecipeID:   req.RecipeID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.SyncItemResponse{UID: result.UID, IsNew: result.IsNew}, nil)
}

// DeleteItem godoc
// @Summary Remove the remote event for an unplanned item
// @Tags Sync
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 204
// @Router /caldav/sync/items/{itemId} [delete]
func (h *SyncHandler) DeleteItem(c *gin.Context) {
	itemID := c.Param("itemId")
	if itemID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "item id is required"))
		return
	}

	// Unplanning always succeeds locally; remote failures are recorded
	// on the status row instead of surfacing here.
	h.sync.DeletePlannedItem(c.Request.Context(), userIDFromContext(c), itemID)
	response.NoContent(c)
}

// Resync godoc
// @Summary Queue a re-sync of previously failed items
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.ResyncRequest false "Resync options"
// @Success 202 {object} response.Envelope
// @Router /caldav/sync/resync [post]
func (h *SyncHandler) Resync(c *gin.Context) {
	var req dto.ResyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resync payload"))
		return
	}

	enqueued, err := h.sync.Resync(c.Request.Context(), userIDFromContext(c), req.IncludePending)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, dto.ResyncResponse{Enqueued: enqueued}, nil)
}

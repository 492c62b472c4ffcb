package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/norish-recipes/norish-caldav/internal/caldav"
	"github.com/norish-recipes/norish-caldav/internal/dto"
	appErrors "github.com/norish-recipes/norish-caldav/pkg/errors"
	"github.com/norish-recipes/norish-caldav/pkg/response"
)

type settingsService interface {
	Get(ctx context.Context, userID string) (*dto.SettingsResponse, error)
	Update(ctx context.Context, userID string, req dto.SettingsRequest) (*dto.SettingsResponse, error)
}

type connectionTester interface {
	TestConnection(ctx context.Context, serverURL, username, password string) caldav.ConnectionResult
	TestStoredConnection(ctx context.Context, userID string) caldav.ConnectionResult
}

// SettingsHandler exposes per-user CalDAV configuration endpoints.
type SettingsHandler struct {
	settings settingsService
	tester   connectionTester
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(settings settingsService, tester connectionTester) *SettingsHandler {
	return &SettingsHandler{settings: settings, tester: tester}
}

// Get godoc
// @Summary Get CalDAV settings
// @Tags CalDAV
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /caldav/settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Update CalDAV settings
// @Tags CalDAV
// @Accept json
// @Produce json
// @Param payload body dto.SettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /caldav/settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), userIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// TestConnection godoc
// @Summary Probe a CalDAV server
// @Tags CalDAV
// @Accept json
// @Produce json
// @Param payload body dto.TestConnectionRequest false "Credential overrides"
// @Success 200 {object} response.Envelope
// @Router /caldav/test-connection [post]
func (h *SettingsHandler) TestConnection(c *gin.Context) {
	var req dto.TestConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid test connection payload"))
		return
	}

	var result caldav.ConnectionResult
	if req.ServerURL != "" {
		result = h.tester.TestConnection(c.Request.Context(), req.ServerURL, req.Username, req.Password)
	} else {
		result = h.tester.TestStoredConnection(c.Request.Context(), userIDFromContext(c))
	}

	// Probe outcome is payload, not transport: failures still answer 200.
	response.JSON(c, http.StatusOK, dto.TestConnectionResponse{
		Success: result.Success,
		Message: result.Message,
	}, nil)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/norish-recipes/norish-caldav/internal/dto"
	"github.com/norish-recipes/norish-caldav/internal/models"
	appErrors "github.com/norish-recipes/norish-caldav/pkg/errors"
)

// Fallback windows applied when a settings write leaves a slot blank, so
// the sync path never sees an unconfigured range.
const (
	defaultBreakfastTime = "08:00-08:30"
	defaultLunchTime     = "12:00-12:30"
	defaultDinnerTime    = "18:00-18:30"
	defaultSnackTime     = "15:00-15:15"
)

type calDAVConfigStore interface {
	GetByUser(ctx context.Context, userID string) (*models.CalDAVConfig, error)
	Upsert(ctx context.Context, cfg *models.CalDAVConfig) error
}

// ConfigService manages per-user CalDAV connection settings.
type ConfigService struct {
	repo      calDAVConfigStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConfigService constructs the service and registers the timerange rule
// used by the settings payload.
func NewConfigService(repo calDAVConfigStore, validate *validator.Validate, logger *zap.Logger) *ConfigService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ConfigService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("timerange", func(fl validator.FieldLevel) bool {
		return validTimeRange(fl.Field().String())
	})
	return svc
}

// Get returns the stored settings without the credential.
func (s *ConfigService) Get(ctx context.Context, userID string) (*dto.SettingsResponse, error) {
	cfg, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSyncNotConfigured
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load caldav configuration")
	}
	return settingsResponse(cfg), nil
}

// Update validates and persists the settings, encrypting the password at
// the repository boundary.
func (s *ConfigService) Update(ctx context.Context, userID string, req dto.SettingsRequest) (*dto.SettingsResponse, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid caldav settings")
	}

	cfg := &models.CalDAVConfig{
		UserID:        userID,
		ServerURL:     strings.TrimSpace(req.ServerURL),
		Username:      req.Username,
		Password:      req.Password,
		Enabled:       req.Enabled,
		BreakfastTime: slotOrDefault(req.BreakfastTime, defaultBreakfastTime),
		LunchTime:     slotOrDefault(req.LunchTime, defaultLunchTime),
		DinnerTime:    slotOrDefault(req.DinnerTime, defaultDinnerTime),
		SnackTime:     slotOrDefault(req.SnackTime, defaultSnackTime),
	}

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "save caldav configuration")
	}

	s.logger.Info("caldav settings updated",
		zap.String("user_id", userID),
		zap.Bool("enabled", cfg.Enabled))

	return settingsResponse(cfg), nil
}

func settingsResponse(cfg *models.CalDAVConfig) *dto.SettingsResponse {
	return &dto.SettingsResponse{
		ServerURL:     cfg.ServerURL,
		Username:      cfg.Username,
		Enabled:       cfg.Enabled,
		BreakfastTime: cfg.BreakfastTime,
		LunchTime:     cfg.LunchTime,
		DinnerTime:    cfg.DinnerTime,
		SnackTime:     cfg.SnackTime,
	}
}

func slotOrDefault(window, fallback string) string {
	if strings.TrimSpace(window) == "" {
		return fallback
	}
	return strings.TrimSpace(window)
}

// validTimeRange accepts "HH:MM-HH:MM" windows that end after they start.
func validTimeRange(window string) bool {
	parts := strings.Split(window, "-")
	if len(parts) != 2 {
		return false
	}
	startHour, startMin, err := parseClock(parts[0])
	if err != nil {
		return false
	}
	endHour, endMin, err := parseClock(parts[1])
	if err != nil {
		return false
	}
	return endHour*60+endMin > startHour*60+startMin
}

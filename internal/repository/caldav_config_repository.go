package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/norish-recipes/norish-caldav/internal/models"
	"github.com/norish-recipes/norish-caldav/pkg/crypto"
)

// CalDAVConfigRepository persists per-user remote calendar settings. The
// password column holds AES-GCM ciphertext; callers always see plaintext.
type CalDAVConfigRepository struct {
	db        *sqlx.DB
	encryptor *crypto.Encryptor
}

// NewCalDAVConfigRepository constructs the repository.
func NewCalDAVConfigRepository(db *sqlx.DB, encryptor *crypto.Encryptor) *CalDAVConfigRepository {
	return &CalDAVConfigRepository{db: db, encryptor: encryptor}
}

// GetByUser fetches and decrypts the configuration for one user. Returns
// sql.ErrNoRows when the user never configured sync.
func (r *CalDAVConfigRepository) GetByUser(ctx context.Context, userID string) (*models.CalDAVConfig, error) {
	const query = `SELECT user_id, server_url, username, password, enabled,
breakfast_time, lunch_time, dinner_time, snack_time, updated_at
FROM caldav_configs WHERE user_id = $1`
	var cfg models.CalDAVConfig
	if err := r.db.GetContext(ctx, &cfg, query, userID); err != nil {
		return nil, err
	}

	plaintext, err := r.encryptor.Decrypt(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("decrypt caldav password for user %s: %w", userID, err)
	}
	cfg.Password = plaintext

	return &cfg, nil
}

// Upsert encrypts the password and writes the configuration.
func (r *CalDAVConfigRepository) Upsert(ctx context.Context, cfg *models.CalDAVConfig) error {
	ciphertext, err := r.encryptor.Encrypt(cfg.Password)
	if err != nil {
		return fmt.Errorf("encrypt caldav password: %w", err)
	}

	stored := *cfg
	stored.Password = ciphertext
	stored.UpdatedAt = time.Now().UTC()

	const query = `INSERT INTO caldav_configs
(user_id, server_url, username, password, enabled, breakfast_time, lunch_time, dinner_time, snack_time, updated_at)
VALUES (:user_id, :server_url, :username, :password, :enabled, :breakfast_time, :lunch_time, :dinner_time, :snack_time, :updated_at)
ON CONFLICT (user_id)
DO UPDATE SET server_url = EXCLUDED.server_url, username = EXCLUDED.username, password = EXCLUDED.password,
              enabled = EXCLUDED.enabled, breakfast_time = EXCLUDED.breakfast_time, lunch_time = EXCLUDED.lunch_time,
              dinner_time = EXCLUDED.dinner_time, snack_time = EXCLUDED.snack_time, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, &stored); err != nil {
		return fmt.Errorf("upsert caldav config: %w", err)
	}

	cfg.UpdatedAt = stored.UpdatedAt
	return nil
}

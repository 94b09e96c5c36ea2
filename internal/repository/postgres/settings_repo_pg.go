package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepo(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, category domain.SettingCategory) (json.RawMessage, error) {
	var payload []byte
	if err := r.db.GetContext(ctx, &payload, `SELECT payload FROM system_setting WHERE category = $1`, category); err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

func (r *SettingsRepository) Put(ctx context.Context, category domain.SettingCategory, payload json.RawMessage) error {
	const query = `
		INSERT INTO system_setting (category, payload)
		VALUES ($1, $2)
		ON CONFLICT (category) DO UPDATE
		SET payload = EXCLUDED.payload,
		    updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, category, string(payload))
	return err
}

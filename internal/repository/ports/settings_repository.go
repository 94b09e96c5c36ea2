package ports

import (
	"context"
	"encoding/json"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type SettingsRepository interface {
	Get(ctx context.Context, category domain.SettingCategory) (json.RawMessage, error)
	Put(ctx context.Context, category domain.SettingCategory, payload json.RawMessage) error
}

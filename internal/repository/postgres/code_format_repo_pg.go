package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type CodeFormatRepository struct {
	db *sqlx.DB
}

func NewCodeFormatRepo(db *sqlx.DB) *CodeFormatRepository {
	return &CodeFormatRepository{db: db}
}

const codeFormatColumns = `id, code_type, prefix, starting_number, current_number, description, is_active, created_at, updated_at`

func (r *CodeFormatRepository) List(ctx context.Context) ([]domain.CodeFormat, error) {
	out := make([]domain.CodeFormat, 0)
	err := r.db.SelectContext(ctx, &out, `SELECT `+codeFormatColumns+` FROM code_format ORDER BY code_type, created_at`)
	return out, err
}

func (r *CodeFormatRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.CodeFormat, error) {
	var f domain.CodeFormat
	if err := r.db.GetContext(ctx, &f, `SELECT `+codeFormatColumns+` FROM code_format WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *CodeFormatRepository) FindActiveByType(ctx context.Context, codeType domain.CodeType) (*domain.CodeFormat, error) {
	var f domain.CodeFormat
	query := `SELECT ` + codeFormatColumns + ` FROM code_format WHERE code_type = $1 AND is_active`
	if err := r.db.GetContext(ctx, &f, query, codeType); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *CodeFormatRepository) Create(ctx context.Context, f *domain.CodeFormat) (*domain.CodeFormat, error) {
	query := `
		INSERT INTO code_format (code_type, prefix, starting_number, current_number, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + codeFormatColumns
	var inserted domain.CodeFormat
	if err := r.db.GetContext(ctx, &inserted, query,
		f.CodeType, f.Prefix, f.StartingNumber, f.CurrentNumber, nullStringPtr(f.Description), f.IsActive,
	); err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (r *CodeFormatRepository) Update(ctx context.Context, id uuid.UUID, u domain.CodeFormatUpdate) (*domain.CodeFormat, error) {
	query := `
		UPDATE code_format
		SET prefix = COALESCE($2, prefix),
		    description = COALESCE($3, description),
		    is_active = COALESCE($4, is_active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + codeFormatColumns
	var updated domain.CodeFormat
	if err := r.db.GetContext(ctx, &updated, query, id, u.Prefix, u.Description, u.IsActive); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *CodeFormatRepository) Increment(ctx context.Context, codeType domain.CodeType) (*domain.CodeFormat, error) {
	query := `
		UPDATE code_format
		SET current_number = current_number + 1,
		    updated_at = NOW()
		WHERE code_type = $1 AND is_active
		RETURNING ` + codeFormatColumns
	var updated domain.CodeFormat
	if err := r.db.GetContext(ctx, &updated, query, codeType); err != nil {
		return nil, err
	}
	return &updated, nil
}

package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type CodeFormatRepository interface {
	List(ctx context.Context) ([]domain.CodeFormat, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.CodeFormat, error)
	FindActiveByType(ctx context.Context, codeType domain.CodeType) (*domain.CodeFormat, error)
	Create(ctx context.Context, format *domain.CodeFormat) (*domain.CodeFormat, error)
	Update(ctx context.Context, id uuid.UUID, update domain.CodeFormatUpdate) (*domain.CodeFormat, error)
	// Increment atomically bumps the active counter and returns the new state.
	Increment(ctx context.Context, codeType domain.CodeType) (*domain.CodeFormat, error)
}

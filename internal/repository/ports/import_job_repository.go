package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type ImportJobRepository interface {
	CreateJob(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, error)
	UpdateProgress(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, error)
	FindJobByID(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error)
	InsertErrors(ctx context.Context, importID uuid.UUID, errs []domain.ImportError) error
	ListErrors(ctx context.Context, importID uuid.UUID, limit int) ([]domain.ImportError, error)
	CountErrors(ctx context.Context, importID uuid.UUID) (int, error)
	FailProcessing(ctx context.Context, reason string) (int64, error)
}

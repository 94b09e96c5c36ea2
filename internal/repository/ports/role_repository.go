package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type RoleRepository interface {
	List(ctx context.Context) ([]domain.Role, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	Create(ctx context.Context, input domain.RoleInput) (*domain.Role, error)
	Update(ctx context.Context, id uuid.UUID, input domain.RoleInput) (*domain.Role, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountAssignments(ctx context.Context, roleID uuid.UUID) (int, error)
	AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) (*domain.UserRoleAssignment, error)
	FindUserRole(ctx context.Context, userID uuid.UUID) (*domain.Role, error)
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/repository/ports"
)

var (
	ErrRoleNotFound      = errors.New("role not found")
	ErrRoleNameRequired  = errors.New("role name is required")
	ErrRoleNoModules     = errors.New("select at least one module")
	ErrRoleNoPermissions = errors.New("select at least one permission")
	ErrRoleUnknownModule = errors.New("unknown module")
	ErrRoleUnknownPerm   = errors.New("unknown permission")
	ErrRoleExists        = errors.New("a role with this name already exists")
	ErrRoleInUse         = errors.New("role is assigned to users and cannot be deleted")
	ErrRoleInactive      = errors.New("inactive roles cannot be assigned")
	ErrUserNotFound      = errors.New("user not found")
)

type RoleService struct {
	roles ports.RoleRepository
	users ports.UserRepository
}

func NewRoleService(roles ports.RoleRepository, users ports.UserRepository) *RoleService {
	return &RoleService{roles: roles, users: users}
}

// ValidateRoleInput applies the create/update gate: a named role with at
// least one known module and one known permission.
func ValidateRoleInput(in domain.RoleInput) (domain.RoleInput, error) {
	in.RoleName = strings.TrimSpace(in.RoleName)
	if in.RoleName == "" {
		return in, ErrRoleNameRequired
	}
	if len(in.Modules) == 0 {
		return in, ErrRoleNoModules
	}
	if len(in.Permissions) == 0 {
		return in, ErrRoleNoPermissions
	}
	in.Modules = dedupe(in.Modules)
	in.Permissions = dedupe(in.Permissions)
	for _, m := range in.Modules {
		if !m.Valid() {
			return in, fmt.Errorf("%w: %s", ErrRoleUnknownModule, m)
		}
	}
	for _, p := range in.Permissions {
		if !p.Valid() {
			return in, fmt.Errorf("%w: %s", ErrRoleUnknownPerm, p)
		}
	}
	return in, nil
}

func dedupe[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (s *RoleService) List(ctx context.Context) ([]domain.Role, error) {
	return s.roles.List(ctx)
}

// ListUsers returns every account with its currently effective role.
func (s *RoleService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *RoleService) Create(ctx context.Context, in domain.RoleInput) (*domain.Role, error) {
	in, err := ValidateRoleInput(in)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.Create(ctx, in)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRoleExists
		}
		return nil, err
	}
	return role, nil
}

func (s *RoleService) Update(ctx context.Context, id uuid.UUID, in domain.RoleInput) (*domain.Role, error) {
	in, err := ValidateRoleInput(in)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.Update(ctx, id, in)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrRoleExists
		}
		return nil, err
	}
	return role, nil
}

func (s *RoleService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Role, error) {
	role, err := s.roles.SetActive(ctx, id, active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	return role, err
}

func (s *RoleService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.roles.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoleNotFound
		}
		return err
	}
	n, err := s.roles.CountAssignments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrRoleInUse
	}
	return s.roles.Delete(ctx, id)
}

// Assign gives userID exactly one role, replacing any previous one.
func (s *RoleService) Assign(ctx context.Context, userID, roleID uuid.UUID) (*domain.UserRoleAssignment, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	if !role.IsActive {
		return nil, ErrRoleInactive
	}
	return s.roles.AssignUserRole(ctx, userID, roleID)
}

func (s *RoleService) UserPermissions(ctx context.Context, userID uuid.UUID) (domain.UserPermissions, error) {
	role, err := s.roles.FindUserRole(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ResolvePermissions(userID, nil), nil
		}
		return domain.UserPermissions{}, err
	}
	return domain.ResolvePermissions(userID, role), nil
}

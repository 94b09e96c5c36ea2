package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type RoleRepository struct {
	db *sqlx.DB
}

func NewRoleRepo(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `id, role_name, description, is_active, allowed_modules, permissions, created_at, updated_at`

func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	roles := make([]domain.Role, 0)
	err := r.db.SelectContext(ctx, &roles, `SELECT `+roleColumns+` FROM role ORDER BY role_name ASC`)
	return roles, err
}

func (r *RoleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	var role domain.Role
	if err := r.db.GetContext(ctx, &role, `SELECT `+roleColumns+` FROM role WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	if err := r.db.GetContext(ctx, &role, `SELECT `+roleColumns+` FROM role WHERE role_name = $1`, name); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) Create(ctx context.Context, input domain.RoleInput) (*domain.Role, error) {
	query := `
        INSERT INTO role (role_name, description, is_active, allowed_modules, permissions)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + roleColumns
	row := r.db.QueryRowxContext(ctx, query,
		strings.TrimSpace(input.RoleName),
		nullString(input.Description),
		input.IsActive,
		moduleArray(input.Modules),
		permissionArray(input.Permissions),
	)
	var role domain.Role
	if err := row.StructScan(&role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) Update(ctx context.Context, id uuid.UUID, input domain.RoleInput) (*domain.Role, error) {
	query := `
        UPDATE role
        SET role_name = $2,
            description = $3,
            is_active = $4,
            allowed_modules = $5,
            permissions = $6,
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + roleColumns
	row := r.db.QueryRowxContext(ctx, query,
		id,
		strings.TrimSpace(input.RoleName),
		nullString(input.Description),
		input.IsActive,
		moduleArray(input.Modules),
		permissionArray(input.Permissions),
	)
	var role domain.Role
	if err := row.StructScan(&role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Role, error) {
	query := `
        UPDATE role SET is_active = $2, updated_at = NOW()
        WHERE id = $1
        RETURNING ` + roleColumns
	var role domain.Role
	if err := r.db.GetContext(ctx, &role, query, id, active); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM role WHERE id = $1`, id)
	return err
}

func (r *RoleRepository) CountAssignments(ctx context.Context, roleID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_role WHERE role_id = $1`, roleID)
	return count, err
}

// AssignUserRole replaces whatever role the user held before.
func (r *RoleRepository) AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) (*domain.UserRoleAssignment, error) {
	const query = `
        INSERT INTO user_role (user_id, role_id)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE
        SET role_id = EXCLUDED.role_id,
            assigned_at = NOW()
        RETURNING user_id, role_id, assigned_at
    `
	var assignment domain.UserRoleAssignment
	if err := r.db.GetContext(ctx, &assignment, query, userID, roleID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *RoleRepository) FindUserRole(ctx context.Context, userID uuid.UUID) (*domain.Role, error) {
	const query = `
        SELECT r.id, r.role_name, r.description, r.is_active, r.allowed_modules, r.permissions,
               r.created_at, r.updated_at
        FROM user_role ur
        JOIN role r ON r.id = ur.role_id
        WHERE ur.user_id = $1
    `
	var role domain.Role
	if err := r.db.GetContext(ctx, &role, query, userID); err != nil {
		return nil, err
	}
	return &role, nil
}

func nullString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.TrimSpace(v)
}

func moduleArray(modules []domain.Module) pq.StringArray {
	out := make(pq.StringArray, 0, len(modules))
	for _, m := range modules {
		out = append(out, string(m))
	}
	return out
}

func permissionArray(perms []domain.Permission) pq.StringArray {
	out := make(pq.StringArray, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

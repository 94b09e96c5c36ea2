// Package rbac is the client-side role model: role CRUD, the single-slot
// user to role assignment and permission introspection. Every mutation is
// validated locally first and followed by a full reload.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/njprem/agri_admin_backend/internal/client"
	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/validation"
)

// ValidationError is a precondition that failed before any network call.
type ValidationError = validation.FieldError

var (
	ErrNotConfirmed = errors.New("role assignment was not confirmed")
	ErrRoleInactive = errors.New("inactive roles cannot be assigned")
)

// API is the part of the admin API client the manager needs.
type API interface {
	ListRoles(ctx context.Context) ([]domain.Role, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateRole(ctx context.Context, in domain.RoleInput) (*domain.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, in domain.RoleInput) (*domain.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	ActivateRole(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	DeactivateRole(ctx context.Context, id uuid.UUID) (*domain.Role, error)
	AssignRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (*domain.UserRoleAssignment, error)
	GetUserPermissions(ctx context.Context, userID uuid.UUID) (*domain.UserPermissions, error)
}

// Confirmer asks the operator before an assignment fires.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// AlwaysConfirm is for non-interactive callers that already asked.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// MutationError is a failed RBAC call. Message is the server's own text
// when it sent one, otherwise a generic line for the operation.
type MutationError struct {
	Op      string
	Message string
	Err     error
}

func (e *MutationError) Error() string { return e.Message }
func (e *MutationError) Unwrap() error { return e.Err }

func mutationFailed(op string, err error) error {
	msg := "Failed to " + op
	var se *client.ServerError
	if errors.As(err, &se) && se.HasMessage() {
		msg = se.Message
	}
	return &MutationError{Op: op, Message: msg, Err: err}
}

type Manager struct {
	api     API
	confirm Confirmer

	mu          sync.RWMutex
	roles       []domain.Role
	users       []domain.User
	assignments map[uuid.UUID]uuid.UUID
	reloadErr   error
}

func NewManager(api API, confirm Confirmer) *Manager {
	if confirm == nil {
		confirm = AlwaysConfirm
	}
	return &Manager{api: api, confirm: confirm, assignments: make(map[uuid.UUID]uuid.UUID)}
}

// Reload replaces the cached roles, users and assignments with server state.
func (m *Manager) Reload(ctx context.Context) error {
	var (
		roles []domain.Role
		users []domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roles, err = m.api.ListRoles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = m.api.ListUsers(gctx)
		return err
	})
	err := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloadErr = err
	if err != nil {
		return err
	}
	sort.Slice(roles, func(i, j int) bool { return strings.ToLower(roles[i].Name) < strings.ToLower(roles[j].Name) })
	m.roles = roles
	m.users = users
	m.assignments = make(map[uuid.UUID]uuid.UUID, len(users))
	for _, u := range users {
		if u.RoleID != nil {
			m.assignments[u.ID] = *u.RoleID
		}
	}
	return nil
}

// reload runs after a successful mutation. Its failure leaves the cache
// stale but does not undo the mutation; Stale reports it.
func (m *Manager) reload(ctx context.Context) {
	_ = m.Reload(ctx)
}

// Stale returns the error of the last reload, nil when the cache is current.
func (m *Manager) Stale() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reloadErr
}

func (m *Manager) Roles() []domain.Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Role(nil), m.roles...)
}

func (m *Manager) Users() []domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.User(nil), m.users...)
}

// AssignedRole is the role currently held by userID, if any.
func (m *Manager) AssignedRole(userID uuid.UUID) (uuid.UUID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.assignments[userID]
	return id, ok
}

func (m *Manager) role(id uuid.UUID) (domain.Role, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.roles {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Role{}, false
}

// ValidateRole is the local create/update gate.
func ValidateRole(in domain.RoleInput) (domain.RoleInput, error) {
	in.RoleName = strings.TrimSpace(in.RoleName)
	in.Description = strings.TrimSpace(in.Description)
	if in.RoleName == "" {
		return in, &ValidationError{Field: "roleName", Message: "is required"}
	}
	if len(in.Modules) == 0 {
		return in, &ValidationError{Field: "allowedModules", Message: "select at least one module"}
	}
	if len(in.Permissions) == 0 {
		return in, &ValidationError{Field: "permissions", Message: "select at least one permission"}
	}
	for _, mod := range in.Modules {
		if !mod.Valid() {
			return in, &ValidationError{Field: "allowedModules", Message: fmt.Sprintf("unknown module %q", mod)}
		}
	}
	for _, p := range in.Permissions {
		if !p.Valid() {
			return in, &ValidationError{Field: "permissions", Message: fmt.Sprintf("unknown permission %q", p)}
		}
	}
	return in, nil
}

func (m *Manager) CreateRole(ctx context.Context, in domain.RoleInput) (*domain.Role, error) {
	in, err := ValidateRole(in)
	if err != nil {
		return nil, err
	}
	role, err := m.api.CreateRole(ctx, in)
	if err != nil {
		return nil, mutationFailed("create role", err)
	}
	m.reload(ctx)
	return role, nil
}

// UpdateRole replaces a role's fields; the id itself never changes.
func (m *Manager) UpdateRole(ctx context.Context, id uuid.UUID, in domain.RoleInput) (*domain.Role, error) {
	if id == uuid.Nil {
		return nil, &ValidationError{Field: "roleId", Message: "is required"}
	}
	in, err := ValidateRole(in)
	if err != nil {
		return nil, err
	}
	role, err := m.api.UpdateRole(ctx, id, in)
	if err != nil {
		return nil, mutationFailed("update role", err)
	}
	m.reload(ctx)
	return role, nil
}

func (m *Manager) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return &ValidationError{Field: "roleId", Message: "is required"}
	}
	if err := m.api.DeleteRole(ctx, id); err != nil {
		return mutationFailed("delete role", err)
	}
	m.reload(ctx)
	return nil
}

func (m *Manager) ActivateRole(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return m.setActive(ctx, id, true)
}

// DeactivateRole switches a role off. Holders keep the assignment but the
// role grants no permissions while inactive.
func (m *Manager) DeactivateRole(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return m.setActive(ctx, id, false)
}

func (m *Manager) setActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Role, error) {
	if id == uuid.Nil {
		return nil, &ValidationError{Field: "roleId", Message: "is required"}
	}
	var (
		role *domain.Role
		err  error
		op   = "activate role"
	)
	if active {
		role, err = m.api.ActivateRole(ctx, id)
	} else {
		op = "deactivate role"
		role, err = m.api.DeactivateRole(ctx, id)
	}
	if err != nil {
		return nil, mutationFailed(op, err)
	}
	m.reload(ctx)
	return role, nil
}

// AssignRole gives userID the role roleID after the confirmer agrees,
// replacing whatever role the user held before.
func (m *Manager) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if userID == uuid.Nil {
		return &ValidationError{Field: "userId", Message: "is required"}
	}
	if roleID == uuid.Nil {
		return &ValidationError{Field: "roleId", Message: "is required"}
	}
	name := roleID.String()
	if r, ok := m.role(roleID); ok {
		if !r.IsActive {
			return ErrRoleInactive
		}
		name = r.Name
	}

	ok, err := m.confirm.Confirm(ctx, fmt.Sprintf("Assign role %s to user %s?", name, userID))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}

	if _, err := m.api.AssignRoleToUser(ctx, userID, roleID); err != nil {
		return mutationFailed("assign role", err)
	}
	m.mu.Lock()
	m.assignments[userID] = roleID
	m.mu.Unlock()
	m.reload(ctx)
	return nil
}

// BulkAssign is the optimistic quick path: the local map is patched first,
// the calls go out, and a reload settles the final state.
func (m *Manager) BulkAssign(ctx context.Context, userIDs []uuid.UUID, roleID uuid.UUID) error {
	if roleID == uuid.Nil {
		return &ValidationError{Field: "roleId", Message: "is required"}
	}
	if len(userIDs) == 0 {
		return &ValidationError{Field: "userIds", Message: "select at least one user"}
	}
	if r, ok := m.role(roleID); ok && !r.IsActive {
		return ErrRoleInactive
	}
	ok, err := m.confirm.Confirm(ctx, fmt.Sprintf("Assign role to %d users?", len(userIDs)))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}

	m.mu.Lock()
	for _, id := range userIDs {
		m.assignments[id] = roleID
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range userIDs {
		if _, err := m.api.AssignRoleToUser(ctx, id, roleID); err != nil {
			errs = append(errs, mutationFailed("assign role", err))
		}
	}
	m.reload(ctx)
	return errors.Join(errs...)
}

// GetUserPermissions always asks the server; permissions are not cached.
func (m *Manager) GetUserPermissions(ctx context.Context, userID uuid.UUID) (*domain.UserPermissions, error) {
	if userID == uuid.Nil {
		return nil, &ValidationError{Field: "userId", Message: "is required"}
	}
	perms, err := m.api.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, mutationFailed("load permissions", err)
	}
	return perms, nil
}

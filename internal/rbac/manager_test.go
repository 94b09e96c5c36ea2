package rbac

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/client"
	"github.com/njprem/agri_admin_backend/internal/domain"
)

// fakeAPI keeps server-side state the way the admin API does: one role
// slot per user.
type fakeAPI struct {
	mu          sync.Mutex
	roles       map[uuid.UUID]*domain.Role
	users       []domain.User
	assigned    map[uuid.UUID]uuid.UUID
	creates     int
	listCalls   int
	failCreate  error
	failAssign  map[uuid.UUID]error
	permissions *domain.UserPermissions
}

func newFakeAPI(users ...domain.User) *fakeAPI {
	return &fakeAPI{
		roles:      map[uuid.UUID]*domain.Role{},
		users:      users,
		assigned:   map[uuid.UUID]uuid.UUID{},
		failAssign: map[uuid.UUID]error{},
	}
}

func (f *fakeAPI) addRole(name string, active bool) uuid.UUID {
	id := uuid.New()
	f.roles[id] = &domain.Role{ID: id, Name: name, IsActive: active, AllowedModules: []string{"FARMER"}, Permissions: []string{"VIEW"}}
	return id
}

func (f *fakeAPI) ListRoles(ctx context.Context) ([]domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]domain.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeAPI) ListUsers(ctx context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		if roleID, ok := f.assigned[u.ID]; ok && f.roles[roleID] != nil && f.roles[roleID].IsActive {
			id := roleID
			u.RoleID = &id
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeAPI) CreateRole(ctx context.Context, in domain.RoleInput) (*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	id := uuid.New()
	role := &domain.Role{ID: id, Name: in.RoleName, IsActive: in.IsActive}
	for _, m := range in.Modules {
		role.AllowedModules = append(role.AllowedModules, string(m))
	}
	for _, p := range in.Permissions {
		role.Permissions = append(role.Permissions, string(p))
	}
	f.roles[id] = role
	return role, nil
}

func (f *fakeAPI) UpdateRole(ctx context.Context, id uuid.UUID, in domain.RoleInput) (*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok {
		return nil, &client.ServerError{StatusCode: http.StatusNotFound, Message: "role not found"}
	}
	role.Name = in.RoleName
	return role, nil
}

func (f *fakeAPI) DeleteRole(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, roleID := range f.assigned {
		if roleID == id {
			return &client.ServerError{StatusCode: http.StatusConflict, Message: "role is assigned to users and cannot be deleted"}
		}
	}
	delete(f.roles, id)
	return nil
}

func (f *fakeAPI) ActivateRole(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return f.setActive(id, true)
}

func (f *fakeAPI) DeactivateRole(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return f.setActive(id, false)
}

func (f *fakeAPI) setActive(id uuid.UUID, active bool) (*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok {
		return nil, &client.ServerError{StatusCode: http.StatusNotFound}
	}
	role.IsActive = active
	return role, nil
}

func (f *fakeAPI) AssignRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (*domain.UserRoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failAssign[userID]; err != nil {
		return nil, err
	}
	f.assigned[userID] = roleID
	return &domain.UserRoleAssignment{UserID: userID, RoleID: roleID}, nil
}

func (f *fakeAPI) GetUserPermissions(ctx context.Context, userID uuid.UUID) (*domain.UserPermissions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role := f.roles[f.assigned[userID]]
	perms := domain.ResolvePermissions(userID, role)
	return &perms, nil
}

func viewerInput(modules []domain.Module, perms []domain.Permission) domain.RoleInput {
	return domain.RoleInput{RoleName: "Viewer", IsActive: true, Modules: modules, Permissions: perms}
}

func TestCreateRoleValidatesLocally(t *testing.T) {
	cases := []struct {
		name  string
		in    domain.RoleInput
		field string
	}{
		{"no modules", viewerInput(nil, []domain.Permission{domain.PermissionView}), "allowedModules"},
		{"no permissions", viewerInput([]domain.Module{domain.ModuleFarmer}, nil), "permissions"},
		{"blank name", domain.RoleInput{RoleName: "  ", Modules: []domain.Module{domain.ModuleFarmer}, Permissions: []domain.Permission{domain.PermissionView}}, "roleName"},
		{"unknown module", viewerInput([]domain.Module{"PAYROLL"}, []domain.Permission{domain.PermissionView}), "allowedModules"},
	}
	for _, tc := range cases {
		api := newFakeAPI()
		m := NewManager(api, nil)
		_, err := m.CreateRole(context.Background(), tc.in)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != tc.field {
			t.Errorf("%s: expected ValidationError on %s, got %v", tc.name, tc.field, err)
		}
		if api.creates != 0 || api.listCalls != 0 {
			t.Errorf("%s: backend was called", tc.name)
		}
	}
}

func TestCreateRoleCallsBackendOnceAndReloads(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, nil)

	role, err := m.CreateRole(context.Background(), viewerInput(
		[]domain.Module{domain.ModuleFarmer},
		[]domain.Permission{domain.PermissionView},
	))
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if api.creates != 1 {
		t.Fatalf("expected exactly one create call, got %d", api.creates)
	}
	roles := m.Roles()
	if len(roles) != 1 || roles[0].ID != role.ID {
		t.Fatalf("roles not reloaded: %+v", roles)
	}
}

func TestServerMessageSurfacedVerbatim(t *testing.T) {
	api := newFakeAPI()
	api.failCreate = &client.ServerError{StatusCode: http.StatusConflict, Message: "a role with this name already exists"}
	m := NewManager(api, nil)

	_, err := m.CreateRole(context.Background(), viewerInput([]domain.Module{domain.ModuleFarmer}, []domain.Permission{domain.PermissionView}))
	if err == nil || err.Error() != "a role with this name already exists" {
		t.Fatalf("unexpected error %v", err)
	}

	api.failCreate = &client.TransportError{Op: "POST", Err: errors.New("dial tcp: refused")}
	_, err = m.CreateRole(context.Background(), viewerInput([]domain.Module{domain.ModuleFarmer}, []domain.Permission{domain.PermissionView}))
	if err == nil || err.Error() != "Failed to create role" {
		t.Fatalf("expected generic message, got %v", err)
	}
}

func TestAssignRoleOverwritesPrevious(t *testing.T) {
	user := domain.User{ID: uuid.New(), Email: "officer@agri.in"}
	api := newFakeAPI(user)
	first := api.addRole("Viewer", true)
	second := api.addRole("Editor", true)
	m := NewManager(api, nil)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if err := m.AssignRole(context.Background(), user.ID, first); err != nil {
		t.Fatalf("assign first: %v", err)
	}
	if err := m.AssignRole(context.Background(), user.ID, second); err != nil {
		t.Fatalf("assign second: %v", err)
	}

	want := map[uuid.UUID]uuid.UUID{user.ID: second}
	if diff := cmp.Diff(want, api.assigned); diff != "" {
		t.Fatalf("server assignments (-want +got):\n%s", diff)
	}
	if got, ok := m.AssignedRole(user.ID); !ok || got != second {
		t.Fatalf("local assignment = %s, %v", got, ok)
	}
}

func TestAssignRoleNeedsConfirmation(t *testing.T) {
	user := domain.User{ID: uuid.New()}
	api := newFakeAPI(user)
	roleID := api.addRole("Viewer", true)
	var prompts []string
	m := NewManager(api, ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
		prompts = append(prompts, prompt)
		return false, nil
	}))
	_ = m.Reload(context.Background())

	if err := m.AssignRole(context.Background(), user.ID, roleID); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if len(api.assigned) != 0 {
		t.Fatal("assignment fired without confirmation")
	}
	if len(prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(prompts))
	}
}

func TestAssignRoleValidation(t *testing.T) {
	api := newFakeAPI()
	inactive := api.addRole("Retired", false)
	m := NewManager(api, nil)
	_ = m.Reload(context.Background())

	var ve *ValidationError
	if err := m.AssignRole(context.Background(), uuid.Nil, inactive); !errors.As(err, &ve) || ve.Field != "userId" {
		t.Fatalf("missing user: %v", err)
	}
	if err := m.AssignRole(context.Background(), uuid.New(), uuid.Nil); !errors.As(err, &ve) || ve.Field != "roleId" {
		t.Fatalf("missing role: %v", err)
	}
	if err := m.AssignRole(context.Background(), uuid.New(), inactive); !errors.Is(err, ErrRoleInactive) {
		t.Fatalf("inactive role: %v", err)
	}
}

func TestDeactivatedRoleGrantsNothing(t *testing.T) {
	user := domain.User{ID: uuid.New()}
	api := newFakeAPI(user)
	roleID := api.addRole("Viewer", true)
	m := NewManager(api, nil)
	_ = m.Reload(context.Background())
	if err := m.AssignRole(context.Background(), user.ID, roleID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	perms, err := m.GetUserPermissions(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserPermissions: %v", err)
	}
	want := []domain.ModulePermission{{ModuleName: domain.ModuleFarmer, CanView: true}}
	if diff := cmp.Diff(want, perms.Permissions); diff != "" {
		t.Fatalf("active permissions (-want +got):\n%s", diff)
	}

	if _, err := m.DeactivateRole(context.Background(), roleID); err != nil {
		t.Fatalf("DeactivateRole: %v", err)
	}
	perms, _ = m.GetUserPermissions(context.Background(), user.ID)
	if len(perms.Permissions) != 0 || perms.RoleActive {
		t.Fatalf("deactivated role still grants %+v", perms)
	}
	if _, ok := m.AssignedRole(user.ID); ok {
		t.Fatal("reload should drop the inactive assignment from the local map")
	}
}

func TestDeleteRoleInUse(t *testing.T) {
	user := domain.User{ID: uuid.New()}
	api := newFakeAPI(user)
	roleID := api.addRole("Viewer", true)
	m := NewManager(api, nil)
	_ = m.Reload(context.Background())
	_ = m.AssignRole(context.Background(), user.ID, roleID)

	err := m.DeleteRole(context.Background(), roleID)
	var me *MutationError
	if !errors.As(err, &me) || me.Message != "role is assigned to users and cannot be deleted" {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestBulkAssignIsOptimisticThenReloads(t *testing.T) {
	a, b := domain.User{ID: uuid.New()}, domain.User{ID: uuid.New()}
	api := newFakeAPI(a, b)
	roleID := api.addRole("Viewer", true)
	api.failAssign[b.ID] = &client.ServerError{StatusCode: http.StatusNotFound, Message: "user not found"}
	m := NewManager(api, nil)
	_ = m.Reload(context.Background())

	err := m.BulkAssign(context.Background(), []uuid.UUID{a.ID, b.ID}, roleID)
	if err == nil {
		t.Fatal("expected the failed assignment to be reported")
	}
	if got, ok := m.AssignedRole(a.ID); !ok || got != roleID {
		t.Fatalf("user a: %s %v", got, ok)
	}
	if _, ok := m.AssignedRole(b.ID); ok {
		t.Fatal("reload should have removed the optimistic assignment for user b")
	}
}

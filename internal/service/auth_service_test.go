package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/util"
)

const adminPassword = "Harvest-Season-24"

func newAuthFixture(t *testing.T) (*AuthService, *memoryUserRepo, *memoryRoleRepo) {
	t.Helper()
	roles := newMemoryRoleRepo()
	users := newMemoryUserRepo(roles)
	return NewAuthService(users, roles, util.NewJWTManager("secret", time.Hour)), users, roles
}

func TestAuthService_BootstrapAndLogin(t *testing.T) {
	svc, _, roles := newAuthFixture(t)
	ctx := context.Background()

	admin, err := svc.BootstrapSuperAdmin(ctx, "Root@Agri.in", adminPassword)
	if err != nil {
		t.Fatalf("BootstrapSuperAdmin: %v", err)
	}
	if !admin.IsSuperAdmin() {
		t.Fatalf("expected bootstrap user to hold super admin role")
	}
	if _, err := svc.BootstrapSuperAdmin(ctx, "root@agri.in", "ignored"); err != nil {
		t.Fatalf("second bootstrap should be a no-op: %v", err)
	}
	if len(roles.roles) != 1 {
		t.Fatalf("expected a single super admin role, got %d", len(roles.roles))
	}

	result, err := svc.Login(ctx, "root@agri.in", adminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	user, err := svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != admin.ID {
		t.Fatalf("token resolved to wrong user")
	}

	if _, err := svc.Login(ctx, "root@agri.in", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@agri.in", adminPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestAuthService_DeactivatedRoleDropsSuperAdmin(t *testing.T) {
	svc, _, roles := newAuthFixture(t)
	ctx := context.Background()
	admin, err := svc.BootstrapSuperAdmin(ctx, "root@agri.in", adminPassword)
	if err != nil {
		t.Fatalf("BootstrapSuperAdmin: %v", err)
	}
	result, _ := svc.Login(ctx, "root@agri.in", adminPassword)

	role, _ := roles.FindByName(ctx, domain.SuperAdminRoleName)
	roles.SetActive(ctx, role.ID, false)

	user, err := svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != admin.ID || user.IsSuperAdmin() {
		t.Fatalf("inactive role must not grant super admin")
	}
}

func TestAuthService_BootstrapRejectsWeakPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	if _, err := svc.BootstrapSuperAdmin(context.Background(), "root@agri.in", "short"); !errors.Is(err, util.ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "not-a-token"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_ConfiguredPasswordPolicy(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	svc.WithPasswordPolicy(util.PasswordPolicy{MinLength: 20, RequireClasses: true})
	if _, err := svc.BootstrapSuperAdmin(context.Background(), "root@agri.in", adminPassword); !errors.Is(err, util.ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort under a 20 character policy, got %v", err)
	}

	svc.WithPasswordPolicy(util.PasswordPolicy{MinLength: 8})
	if _, err := svc.BootstrapSuperAdmin(context.Background(), "root@agri.in", "fieldwork"); err != nil {
		t.Fatalf("relaxed policy should accept the seed password: %v", err)
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/repository/ports"
	"github.com/njprem/agri_admin_backend/internal/util"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUnauthorized       = errors.New("unauthorized")
)

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

type AuthService struct {
	users     ports.UserRepository
	roles     ports.RoleRepository
	jwt       *util.JWTManager
	passwords util.PasswordPolicy
}

func NewAuthService(users ports.UserRepository, roles ports.RoleRepository, jwt *util.JWTManager) *AuthService {
	return &AuthService{users: users, roles: roles, jwt: jwt, passwords: util.DefaultPasswordPolicy}
}

// WithPasswordPolicy replaces the policy new admin passwords are checked against.
func (s *AuthService) WithPasswordPolicy(p util.PasswordPolicy) *AuthService {
	s.passwords = p
	return s
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !util.VerifyPassword(password, user.PasswordSalt, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	token, expiresAt, err := s.jwt.Generate(user.ID, user.Email, user.RoleName)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to the current user record, so role
// changes and deactivation apply to tokens already issued.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// BootstrapSuperAdmin makes sure the super-admin role and the given account
// exist and are linked. It is idempotent; an existing password is never
// replaced.
func (s *AuthService) BootstrapSuperAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	role, err := s.roles.FindByName(ctx, domain.SuperAdminRoleName)
	if errors.Is(err, sql.ErrNoRows) {
		role, err = s.roles.Create(ctx, domain.RoleInput{
			RoleName:    domain.SuperAdminRoleName,
			Description: "Full access to every module",
			IsActive:    true,
			Modules:     domain.AllModules,
			Permissions: domain.AllPermissions,
		})
	}
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.passwords.Check(password); err != nil {
			return nil, err
		}
		hash, salt, derr := util.DerivePassword(password)
		if derr != nil {
			return nil, derr
		}
		user, err = s.users.Create(ctx, &domain.User{Email: email, PasswordHash: hash, PasswordSalt: salt, IsActive: true})
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.roles.AssignUserRole(ctx, user.ID, role.ID); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, user.ID)
}

func (s *AuthService) CurrentUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return user, err
}

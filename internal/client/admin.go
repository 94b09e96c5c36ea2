package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	out, err := call[*LoginResult](ctx, c, "POST", "/auth/login", credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if out != nil {
		c.SetToken(out.Token)
	}
	return out, nil
}

type Me struct {
	User        *domain.User           `json:"user"`
	SuperAdmin  bool                   `json:"superAdmin"`
	Permissions domain.UserPermissions `json:"permissions"`
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	return call[*Me](ctx, c, "GET", "/auth/me", nil)
}

func (c *Client) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return call[[]domain.Role](ctx, c, "GET", "/admin/rbac/roles", nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	return call[[]domain.User](ctx, c, "GET", "/admin/rbac/users", nil)
}

func (c *Client) CreateRole(ctx context.Context, in domain.RoleInput) (*domain.Role, error) {
	return call[*domain.Role](ctx, c, "POST", "/admin/rbac/roles", in)
}

func (c *Client) UpdateRole(ctx context.Context, id uuid.UUID, in domain.RoleInput) (*domain.Role, error) {
	return call[*domain.Role](ctx, c, "PUT", fmt.Sprintf("/admin/rbac/roles/%s", id), in)
}

func (c *Client) DeleteRole(ctx context.Context, id uuid.UUID) error {
	_, err := call[json.RawMessage](ctx, c, "DELETE", fmt.Sprintf("/admin/rbac/roles/%s", id), nil)
	return err
}

func (c *Client) ActivateRole(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return call[*domain.Role](ctx, c, "PUT", fmt.Sprintf("/admin/rbac/roles/%s/activate", id), nil)
}

func (c *Client) DeactivateRole(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	return call[*domain.Role](ctx, c, "PUT", fmt.Sprintf("/admin/rbac/roles/%s/deactivate", id), nil)
}

type roleAssignment struct {
	UserID uuid.UUID `json:"userId"`
	RoleID uuid.UUID `json:"roleId"`
}

func (c *Client) AssignRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (*domain.UserRoleAssignment, error) {
	return call[*domain.UserRoleAssignment](ctx, c, "POST", "/admin/rbac/assign", roleAssignment{UserID: userID, RoleID: roleID})
}

func (c *Client) GetUserPermissions(ctx context.Context, userID uuid.UUID) (*domain.UserPermissions, error) {
	return call[*domain.UserPermissions](ctx, c, "GET", fmt.Sprintf("/admin/rbac/users/%s/permissions", userID), nil)
}

// NewCodeFormat is the create payload; StartingNumber cannot change later.
type NewCodeFormat struct {
	CodeType       domain.CodeType `json:"codeType"`
	Prefix         string          `json:"prefix"`
	StartingNumber int64           `json:"startingNumber"`
	Description    string          `json:"description,omitempty"`
	IsActive       *bool           `json:"isActive,omitempty"`
}

func (c *Client) GetAllCodeFormats(ctx context.Context) ([]domain.CodeFormat, error) {
	return call[[]domain.CodeFormat](ctx, c, "GET", "/admin/code-formats", nil)
}

func (c *Client) CreateCodeFormat(ctx context.Context, in NewCodeFormat) (*domain.CodeFormat, error) {
	return call[*domain.CodeFormat](ctx, c, "POST", "/admin/code-formats", in)
}

func (c *Client) UpdateCodeFormat(ctx context.Context, id uuid.UUID, in domain.CodeFormatUpdate) (*domain.CodeFormat, error) {
	return call[*domain.CodeFormat](ctx, c, "PUT", fmt.Sprintf("/admin/code-formats/%s", id), in)
}

type generatedCode struct {
	Code string `json:"code"`
}

// GenerateNextCode consumes the next number of the active format.
func (c *Client) GenerateNextCode(ctx context.Context, codeType domain.CodeType) (string, error) {
	out, err := call[generatedCode](ctx, c, "POST", fmt.Sprintf("/admin/code-formats/%s/next", codeType), nil)
	return out.Code, err
}

// GetSettings returns the raw payload of one settings category.
func (c *Client) GetSettings(ctx context.Context, category domain.SettingCategory) (json.RawMessage, error) {
	return call[json.RawMessage](ctx, c, "GET", "/admin/settings/"+string(category), nil)
}

func (c *Client) UpdateSettings(ctx context.Context, category domain.SettingCategory, payload any) (json.RawMessage, error) {
	return call[json.RawMessage](ctx, c, "PUT", "/admin/settings/"+string(category), payload)
}

func (c *Client) GetAgeSettings(ctx context.Context) (domain.AgeSettings, error) {
	return getSetting[domain.AgeSettings](ctx, c, domain.SettingAge)
}

func (c *Client) GetEducationTypes(ctx context.Context) (domain.EducationTypes, error) {
	return getSetting[domain.EducationTypes](ctx, c, domain.SettingEducationTypes)
}

func (c *Client) GetCropNames(ctx context.Context) (domain.CropNames, error) {
	return getSetting[domain.CropNames](ctx, c, domain.SettingCropNames)
}

func (c *Client) GetCropTypes(ctx context.Context) (domain.CropTypes, error) {
	return getSetting[domain.CropTypes](ctx, c, domain.SettingCropTypes)
}

func getSetting[T any](ctx context.Context, c *Client, category domain.SettingCategory) (T, error) {
	return call[T](ctx, c, "GET", "/admin/settings/"+string(category), nil)
}

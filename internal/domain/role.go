package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Module string

const (
	ModuleEmployee       Module = "EMPLOYEE"
	ModuleFarmer         Module = "FARMER"
	ModuleFPO            Module = "FPO"
	ModuleConfiguration  Module = "CONFIGURATION"
	ModuleAnalytics      Module = "ANALYTICS"
	ModuleUserManagement Module = "USER_MANAGEMENT"
)

// AllModules is the fixed module enumeration in display order.
var AllModules = []Module{
	ModuleEmployee,
	ModuleFarmer,
	ModuleFPO,
	ModuleConfiguration,
	ModuleAnalytics,
	ModuleUserManagement,
}

func (m Module) Valid() bool {
	for _, known := range AllModules {
		if m == known {
			return true
		}
	}
	return false
}

type Permission string

const (
	PermissionAdd    Permission = "ADD"
	PermissionView   Permission = "VIEW"
	PermissionEdit   Permission = "EDIT"
	PermissionDelete Permission = "DELETE"
)

var AllPermissions = []Permission{PermissionAdd, PermissionView, PermissionEdit, PermissionDelete}

func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// SuperAdminRoleName is the role allowed to exchange employee data.
const SuperAdminRoleName = "SUPER_ADMIN"

type Role struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	Name           string         `db:"role_name" json:"roleName"`
	Description    *string        `db:"description" json:"description,omitempty"`
	IsActive       bool           `db:"is_active" json:"isActive"`
	AllowedModules pq.StringArray `db:"allowed_modules" json:"allowedModules"`
	Permissions    pq.StringArray `db:"permissions" json:"permissions"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

func (r *Role) HasModule(m Module) bool {
	for _, v := range r.AllowedModules {
		if Module(v) == m {
			return true
		}
	}
	return false
}

func (r *Role) HasPermission(p Permission) bool {
	for _, v := range r.Permissions {
		if Permission(v) == p {
			return true
		}
	}
	return false
}

// RoleInput is the create/update payload; the role id never changes.
type RoleInput struct {
	RoleName    string       `json:"roleName"`
	Description string       `json:"description,omitempty"`
	IsActive    bool         `json:"isActive"`
	Modules     []Module     `json:"allowedModules"`
	Permissions []Permission `json:"permissions"`
}

type UserRoleAssignment struct {
	UserID     uuid.UUID `db:"user_id" json:"userId"`
	RoleID     uuid.UUID `db:"role_id" json:"roleId"`
	AssignedAt time.Time `db:"assigned_at" json:"assignedAt"`
}

type ModulePermission struct {
	ModuleName Module `json:"moduleName"`
	CanAdd     bool   `json:"canAdd"`
	CanView    bool   `json:"canView"`
	CanEdit    bool   `json:"canEdit"`
	CanDelete  bool   `json:"canDelete"`
}

type UserPermissions struct {
	UserID      uuid.UUID          `json:"userId"`
	RoleName    string             `json:"roleName,omitempty"`
	RoleActive  bool               `json:"roleActive"`
	Permissions []ModulePermission `json:"permissions"`
}

// ResolvePermissions expands a role into per-module flags. A nil or inactive
// role grants nothing.
func ResolvePermissions(userID uuid.UUID, role *Role) UserPermissions {
	out := UserPermissions{UserID: userID, Permissions: []ModulePermission{}}
	if role == nil {
		return out
	}
	out.RoleName = role.Name
	out.RoleActive = role.IsActive
	if !role.IsActive {
		return out
	}
	for _, m := range AllModules {
		if !role.HasModule(m) {
			continue
		}
		out.Permissions = append(out.Permissions, ModulePermission{
			ModuleName: m,
			CanAdd:     role.HasPermission(PermissionAdd),
			CanView:    role.HasPermission(PermissionView),
			CanEdit:    role.HasPermission(PermissionEdit),
			CanDelete:  role.HasPermission(PermissionDelete),
		})
	}
	return out
}

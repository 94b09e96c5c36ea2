package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	FullName     *string    `db:"full_name" json:"fullName,omitempty"`
	PasswordHash []byte     `db:"password_hash" json:"-"`
	PasswordSalt []byte     `db:"password_salt" json:"-"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	RoleID       *uuid.UUID `db:"role_id" json:"roleId,omitempty"`
	RoleName     *string    `db:"role_name" json:"roleName,omitempty"`
}

func (u *User) IsSuperAdmin() bool {
	return u != nil && u.RoleName != nil && *u.RoleName == SuperAdminRoleName
}

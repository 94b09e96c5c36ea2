package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userSelect = `
        SELECT u.id, u.email, u.full_name, u.password_hash, u.password_salt, u.is_active,
               u.created_at, u.updated_at, r.id AS role_id, r.role_name AS role_name
        FROM user_account u
        LEFT JOIN user_role ur ON ur.user_id = u.id
        LEFT JOIN role r ON r.id = ur.role_id AND r.is_active
`

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.GetContext(ctx, &user, userSelect+` WHERE LOWER(u.email) = LOWER($1)`, email); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := r.db.GetContext(ctx, &user, userSelect+` WHERE u.id = $1`, id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	const query = `
        INSERT INTO user_account (email, full_name, password_hash, password_salt, is_active)
        VALUES (LOWER($1), $2, $3, $4, $5)
        RETURNING id, email, full_name, password_hash, password_salt, is_active, created_at, updated_at
    `
	var created domain.User
	if err := r.db.GetContext(ctx, &created, query, user.Email, user.FullName, user.PasswordHash, user.PasswordSalt, user.IsActive); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := r.db.SelectContext(ctx, &users, userSelect+` ORDER BY LOWER(u.email)`); err != nil {
		return nil, err
	}
	return users, nil
}

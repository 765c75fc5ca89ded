package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Rrens/reframe-journal/internal/domain"
)

// UserRepository implements domain.UserRepository on SQLite
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Conn.ExecContext(ctx, query,
		user.ID.String(),
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID. A missing user yields (nil, nil).
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `WHERE id = ?`, id.String())
}

// GetByEmail retrieves a user by email. A missing user yields (nil, nil).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `WHERE email = ?`, email)
}

// EmailExists checks whether an email is already registered
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT id, email, display_name, password_hash, created_at, updated_at FROM users ` + where

	var u domain.User
	var id, created, updated string
	err := r.db.Conn.QueryRowContext(ctx, query, arg).Scan(
		&id, &u.Email, &u.DisplayName, &u.PasswordHash, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

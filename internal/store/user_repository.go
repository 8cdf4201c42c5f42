package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tasnim.dev/cloud-gatekeeper/internal/access"
)

// UserRepository persists the user directory.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts the user or replaces the existing record with the same id.
func (r *UserRepository) Upsert(ctx context.Context, u *access.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("user id is required")
	}
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username is required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, is_admin) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			is_admin = excluded.is_admin
	`, u.ID, u.Username, u.Email, boolToInt(u.IsAdmin))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// FindByID returns the user, or ErrNotFound.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*access.User, error) {
	var u access.User
	var admin int
	err := r.db.QueryRowContext(ctx, `SELECT id, username, email, is_admin FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Email, &admin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	u.IsAdmin = admin != 0
	return &u, nil
}

// List returns all users ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]*access.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, email, is_admin FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*access.User
	for rows.Next() {
		var u access.User
		var admin int
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &admin); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.IsAdmin = admin != 0
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

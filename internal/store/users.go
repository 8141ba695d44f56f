// Package store persists users and contacts. Every store works on a
// sqlx.ExtContext, so the same code runs on the connection pool and inside a
// transaction. Uniqueness is enforced by the database; violations are
// reported as common.ErrDuplicateUsername and common.ErrDuplicatePhone.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-book/internal/common"
	"gitlab.com/dirk.krummacker/contact-book/internal/database"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
)

// UserStore persists users.
type UserStore struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewUserStore returns a store that runs each query with the given timeout.
func NewUserStore(db sqlx.ExtContext, timeout time.Duration) *UserStore {
	return &UserStore{db: db, timeout: timeout}
}

// Create inserts a user and returns the new id.
func (s *UserStore) Create(ctx context.Context, username string, passwordHash string) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`, username, passwordHash)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("create user %q: %w", username, common.ErrDuplicateUsername)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// FindByUsername looks up a user by the exact username.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (model.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var user model.User
	err := sqlx.GetContext(ctx, s.db, &user,
		`SELECT id, username, password_hash FROM users WHERE username = ?`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, common.ErrNotFound
		}
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// withTimeout bounds a single query. A non-positive timeout only adds
// cancellation.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

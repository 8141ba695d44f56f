// Package auth registers users, verifies their passwords and binds an
// authenticated identity to a server-side session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gitlab.com/dirk.krummacker/contact-book/internal/common"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
	"gitlab.com/dirk.krummacker/contact-book/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the persistence needed by Credentials. store.UserStore
// implements it.
type UserRepository interface {
	Create(ctx context.Context, username string, passwordHash string) (int64, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
}

// Credentials registers users and verifies their passwords.
type Credentials struct {
	users     UserRepository
	cost      int
	dummyHash []byte
}

// NewCredentials returns Credentials hashing with the given bcrypt cost.
func NewCredentials(users UserRepository, cost int) (*Credentials, error) {
	// Verify compares against this hash when the user does not exist, so that
	// unknown usernames take as long as wrong passwords.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("contact-book"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hashing: %w", err)
	}
	return &Credentials{users: users, cost: cost, dummyHash: dummyHash}, nil
}

// Register creates a user with a salted bcrypt hash of the password. The
// username is trimmed and otherwise taken as is; an existing exact match fails
// with common.ErrDuplicateUsername.
func (c *Credentials) Register(ctx context.Context, username string, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if err := validation.Struct(model.Credentials{Username: username, Password: password}); err != nil {
		return 0, err
	}
	_, err := c.users.FindByUsername(ctx, username)
	if err == nil {
		return 0, fmt.Errorf("register %q: %w", username, common.ErrDuplicateUsername)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return 0, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return 0, fmt.Errorf("%w: password must be at most 72 bytes", common.ErrValidation)
		}
		return 0, fmt.Errorf("hash password: %w", err)
	}
	// The unique index on users.username decides races between two
	// registrations of the same name.
	return c.users.Create(ctx, username, string(hash))
}

// Verify returns the user if the password matches. An unknown username and a
// wrong password both fail with common.ErrAuthFailure.
func (c *Credentials) Verify(ctx context.Context, username string, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	user, err := c.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(password))
			return model.User{}, common.ErrAuthFailure
		}
		return model.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, common.ErrAuthFailure
	}
	return user, nil
}

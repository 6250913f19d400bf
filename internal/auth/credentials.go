package auth

import (
	"context"
	"errors"
	"fmt"

	"schooldesk/identity/internal/crypto"
	"schooldesk/identity/internal/model"
)

// UserSource is the persistence surface the core needs for users.
// Implementations return ErrUserNotFound for a missing user and any
// other error for an infrastructure fault.
type UserSource interface {
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUserByID(ctx context.Context, userID string) (model.User, error)
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

// CredentialStore verifies presented passwords and rewrites hashes.
// It surfaces only ErrInvalidCredentials and ErrStoreUnavailable.
type CredentialStore struct {
	users UserSource
}

func NewCredentialStore(users UserSource) *CredentialStore {
	return &CredentialStore{users: users}
}

// Verify looks the user up by exact, case-sensitive username and checks
// the password against the stored bcrypt hash. A missing user and an
// inactive user fail identically.
func (c *CredentialStore) Verify(ctx context.Context, username, password string) (model.User, error) {
	user, err := c.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !user.Active {
		return model.User{}, ErrInvalidCredentials
	}
	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// SetPassword overwrites the stored hash with a fresh one. It does not
// revoke sessions; the caller orchestrates revoke-all after a reset.
func (c *CredentialStore) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	if err := c.users.SetPasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

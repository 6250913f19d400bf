package auth

import (
	"context"
	"errors"
	"fmt"

	"schooldesk/identity/internal/session"
)

// Authenticator orchestrates login, logout and credential resets over
// the credential store and the session store.
type Authenticator struct {
	creds    *CredentialStore
	sessions session.Store
}

func NewAuthenticator(creds *CredentialStore, sessions session.Store) *Authenticator {
	return &Authenticator{creds: creds, sessions: sessions}
}

// Login verifies the credentials and mints one session. Every
// credential failure surfaces as ErrInvalidCredentials; the caller
// never learns which step rejected.
func (a *Authenticator) Login(ctx context.Context, username, password string, meta session.ClientMeta) (string, UserSummary, error) {
	user, err := a.creds.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return "", UserSummary{}, err
		}
		return "", UserSummary{}, ErrInvalidCredentials
	}

	token, err := a.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return "", UserSummary{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return token, UserSummary{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		SchoolID: user.SchoolID,
	}, nil
}

// Logout revokes the session. Revoking an unknown or already-revoked
// token is a no-op, so logout is idempotent from the caller's view.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := a.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ResetCredential rewrites the user's password hash. It deliberately
// leaves existing sessions alone; callers follow up with RevokeAll.
func (a *Authenticator) ResetCredential(ctx context.Context, userID, newPassword string) error {
	return a.creds.SetPassword(ctx, userID, newPassword)
}

// RevokeAll invalidates every outstanding session for the user. Used
// after a password reset or account deactivation.
func (a *Authenticator) RevokeAll(ctx context.Context, userID string) error {
	if err := a.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

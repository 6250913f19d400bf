package auth

import (
	"context"
	"errors"
	"fmt"

	"schooldesk/identity/internal/session"
)

// Resolver turns a bearer token into a live Identity. It is the single
// mandatory gate; every guard predicate runs after it.
type Resolver struct {
	sessions session.Store
	users    UserSource
}

func NewResolver(sessions session.Store, users UserSource) *Resolver {
	return &Resolver{sessions: sessions, users: users}
}

// Resolve looks the token up and reloads the user record. The active
// flag is re-checked on every request; a session minted before a
// deactivation never survives it.
func (r *Resolver) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	sess, err := r.sessions.Lookup(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if sess == nil {
		return Identity{}, ErrUnauthenticated
	}

	user, err := r.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !user.Active {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		SchoolID: user.SchoolID,
	}, nil
}

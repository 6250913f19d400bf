package session

import (
	"context"
	"time"
)

// Session is the server-side record behind an opaque bearer token.
// The token is the only handle callers hold; IP and user agent are
// diagnostic, never enforced.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// ClientMeta is captured at session creation.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// Store holds active sessions keyed by opaque token.
//
// Lookup reports a uniform miss (nil, nil) for unknown, expired and
// revoked tokens; an expired record that has not been purged must still
// miss. Revoke is idempotent. Once RevokeAllForUser returns, no token
// created for that user before the call may resolve, even under
// concurrent lookups; a login that starts after the call may create a
// new valid session.
type Store interface {
	Create(ctx context.Context, userID string, meta ClientMeta) (string, error)
	Lookup(ctx context.Context, token string) (*Session, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

package auth

import "errors"

// The four outcomes the route layer can observe. Store faults are never
// folded into an authorization outcome, and credential failures are
// never differentiated further than ErrInvalidCredentials.
var (
	// ErrInvalidCredentials covers unknown username, wrong password and
	// inactive account alike, so login cannot be used for enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated covers missing, unknown, expired and revoked
	// tokens, and sessions whose user no longer exists or is inactive.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the identity is known but a role or school
	// scope predicate rejected the request.
	ErrForbidden = errors.New("forbidden")

	// ErrStoreUnavailable is an infrastructure fault in an underlying
	// store. It is the only kind a caller may reasonably retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrUserNotFound is the sentinel a UserSource returns when no user
// matches. The core maps it, it never reaches the route layer.
var ErrUserNotFound = errors.New("user not found")

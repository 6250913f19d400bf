package auth

import "schooldesk/identity/internal/model"

// Identity is the resolved caller of one request: who they are, what
// role they hold and which school they belong to. SchoolID is nil for
// super admins.
type Identity struct {
	UserID   string
	Username string
	Role     model.Role
	SchoolID *string
}

// UserSummary is what login hands back to the route layer alongside
// the token. It never carries the password hash.
type UserSummary struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	SchoolID *string    `json:"schoolId,omitempty"`
}

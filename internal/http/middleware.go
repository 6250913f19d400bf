package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"schooldesk/identity/internal/auth"
)

type identityKey struct{}

func identityFromContext(ctx context.Context) *auth.Identity {
	value := ctx.Value(identityKey{})
	identity, _ := value.(*auth.Identity)
	return identity
}

// sessionToken extracts the bearer credential: the session cookie
// first, then an Authorization header for non-browser clients.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAuth is the mandatory gate: it resolves the token to a live
// identity and stashes it in the request context. Every other guard
// assumes it has run.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.resolver.Resolve(r.Context(), sessionToken(r))
		if err != nil {
			if errors.Is(err, auth.ErrStoreUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "store_unavailable")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, &identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireSuperAdmin(next http.Handler) http.Handler {
	return s.require(next, auth.SuperAdminOnly())
}

func (s *Server) requireAdminOrSuperAdmin(next http.Handler) http.Handler {
	return s.require(next, auth.AdminOrSuperAdmin())
}

func (s *Server) require(next http.Handler, requirement auth.Requirement) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFromContext(r.Context())
		if identity == nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if err := auth.Authorize(*identity, requirement); err != nil {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireSchoolContext binds the school declared in the path and runs
// the tenant predicate. It is attached after the role middleware, so a
// wrong-role request is rejected for its role, not its school.
func (s *Server) requireSchoolContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFromContext(r.Context())
		if identity == nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		schoolID := chi.URLParam(r, "schoolID")
		if err := auth.Authorize(*identity, auth.TenantScoped(schoolID)); err != nil {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

package http

import (
	"errors"
	"net/http"

	"schooldesk/identity/internal/auth"
	"schooldesk/identity/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string           `json:"token"`
	User  auth.UserSummary `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	meta := session.ClientMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	token, summary, err := s.authn.Login(r.Context(), req.Username, req.Password, meta)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: summary})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authn.Logout(r.Context(), sessionToken(r)); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, mapUserResponse(user))
}

// The cookie carries the opaque token and nothing else. The lifetime
// is absolute from issuance, matching the session TTL, not sliding.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schooldesk/identity/internal/auth"
	"schooldesk/identity/internal/crypto"
	"schooldesk/identity/internal/model"
	"schooldesk/identity/internal/repository"
)

type createSchoolRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contactEmail"`
}

func (s *Server) handleCreateSchool(w http.ResponseWriter, r *http.Request) {
	var req createSchoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}

	school := model.School{
		ID:           uuid.NewString(),
		Name:         req.Name,
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateSchool(r.Context(), school); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapSchoolResponse(school))
}

func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	schools, err := s.store.ListSchools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapSchoolResponses(schools))
}

type createUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	SchoolID  string `json:"schoolId"`
}

func (s *Server) handleCreateSchoolAdmin(w http.ResponseWriter, r *http.Request) {
	s.createUserForSchool(w, r, model.RoleAdmin)
}

func (s *Server) handleCreateStudentForSchool(w http.ResponseWriter, r *http.Request) {
	s.createUserForSchool(w, r, model.RoleStudent)
}

// createUserForSchool provisions an admin or student into an explicit
// school. The school must exist; the school id comes from the body
// here because these are super-admin-only provisioning routes, never
// an authorization input.
func (s *Server) createUserForSchool(w http.ResponseWriter, r *http.Request, role model.Role) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.SchoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if _, err := s.store.GetSchool(r.Context(), req.SchoolID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "school_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user, err := s.insertUser(r, req, role, req.SchoolID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, mapUserResponse(user))
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolID")

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	// The path school is the authoritative one; a body school id is
	// ignored on school-scoped routes.
	user, err := s.insertUser(r, req, model.RoleStudent, schoolID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, mapUserResponse(user))
}

func (s *Server) insertUser(r *http.Request, req createUserRequest, role model.Role, schoolID string) (model.User, error) {
	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return model.User{}, err
	}

	now := time.Now().UTC()
	user := model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          strings.TrimSpace(strings.ToLower(req.Email)),
		PasswordHash:   hash,
		Role:           role,
		SchoolID:       &schoolID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		SelectedAvatar: "rocket",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolID")
	students, err := s.store.ListUsersByRole(r.Context(), model.RoleStudent, schoolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapUserResponses(students))
}

func (s *Server) handleListAllStudents(w http.ResponseWriter, r *http.Request) {
	s.listUsersByRole(w, r, model.RoleStudent)
}

func (s *Server) handleListAllSchoolAdmins(w http.ResponseWriter, r *http.Request) {
	s.listUsersByRole(w, r, model.RoleAdmin)
}

func (s *Server) listUsersByRole(w http.ResponseWriter, r *http.Request, role model.Role) {
	schoolID := r.URL.Query().Get("schoolId")
	users, err := s.store.ListUsersByRole(r.Context(), role, schoolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapUserResponses(users))
}

type patchStudentRequest struct {
	Email          *string `json:"email,omitempty"`
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	SelectedAvatar *string `json:"selectedAvatar,omitempty"`
	Points         *int    `json:"points,omitempty"`
	Streak         *int    `json:"streak,omitempty"`
	Active         *bool   `json:"isActive,omitempty"`
}

func (s *Server) handlePatchStudent(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolID")
	studentID := chi.URLParam(r, "studentID")

	student, ok := s.studentInSchool(w, r, studentID, schoolID)
	if !ok {
		return
	}

	var req patchStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	update := repository.UserUpdate{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		SelectedAvatar: req.SelectedAvatar,
		Points:         req.Points,
		Streak:         req.Streak,
		Active:         req.Active,
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email != "" {
			update.Email = &email
		}
	}

	updated, err := s.store.UpdateUserProfile(r.Context(), student.ID, update)
	if err != nil {
		writeError(w, http.StatusBadRequest, "update_failed")
		return
	}

	// Deactivation cascades to sessions: a deactivated account keeps no
	// live tokens.
	if req.Active != nil && !*req.Active {
		if err := s.authn.RevokeAll(r.Context(), student.ID); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, mapUserResponse(updated))
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolID")
	studentID := chi.URLParam(r, "studentID")

	student, ok := s.studentInSchool(w, r, studentID, schoolID)
	if !ok {
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing_password")
		return
	}

	if err := s.authn.ResetCredential(r.Context(), student.ID, req.NewPassword); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	// Reset and revoke-all are two steps; the old hash is gone either
	// way, and stale sessions die here.
	if err := s.authn.RevokeAll(r.Context(), student.ID); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_reset"})
}

// studentInSchool loads the addressed student and confirms they belong
// to the path school. A student of another school is reported as not
// found, not forbidden, so ids cannot be probed across schools.
func (s *Server) studentInSchool(w http.ResponseWriter, r *http.Request, studentID, schoolID string) (model.User, bool) {
	student, err := s.store.GetUserByID(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return model.User{}, false
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.User{}, false
	}
	if student.Role != model.RoleStudent || student.SchoolID == nil || *student.SchoolID != schoolID {
		writeError(w, http.StatusNotFound, "student_not_found")
		return model.User{}, false
	}
	return student, true
}

func (s *Server) handleListSchoolTickets(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolID")
	filter := repository.TicketFilter{
		Status:    r.URL.Query().Get("status"),
		IssueType: r.URL.Query().Get("issueType"),
	}
	tickets, err := s.store.ListTickets(r.Context(), schoolID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapTicketResponses(tickets))
}

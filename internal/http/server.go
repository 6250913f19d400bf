package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schooldesk/identity/internal/auth"
	"schooldesk/identity/internal/config"
	"schooldesk/identity/internal/model"
	"schooldesk/identity/internal/repository"
)

const sessionCookieName = "session"

// Store is the persistence surface the route layer consumes. It is
// implemented by *repository.Store in production and faked in tests.
type Store interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUserByID(ctx context.Context, userID string) (model.User, error)
	UpdateUserProfile(ctx context.Context, userID string, update repository.UserUpdate) (model.User, error)
	ListUsersByRole(ctx context.Context, role model.Role, schoolID string) ([]model.User, error)

	CreateSchool(ctx context.Context, school model.School) error
	GetSchool(ctx context.Context, schoolID string) (model.School, error)
	ListSchools(ctx context.Context) ([]model.School, error)

	CreateTicket(ctx context.Context, ticket model.Ticket) error
	GetTicket(ctx context.Context, ticketID, schoolID string) (model.Ticket, error)
	ListTickets(ctx context.Context, schoolID string, filter repository.TicketFilter) ([]model.Ticket, error)
	UpdateTicket(ctx context.Context, ticketID, schoolID string, update repository.TicketUpdate) (model.Ticket, error)
}

type Server struct {
	cfg      config.Config
	store    Store
	authn    *auth.Authenticator
	resolver *auth.Resolver
}

func NewServer(cfg config.Config, store Store, authn *auth.Authenticator, resolver *auth.Resolver) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		authn:    authn,
		resolver: resolver,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/auth/login", s.handleLogin)
	r.With(s.requireAuth).Post("/api/auth/logout", s.handleLogout)
	r.With(s.requireAuth).Get("/api/auth/me", s.handleMe)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.requireAuth, s.requireSuperAdmin)
		r.Post("/schools", s.handleCreateSchool)
		r.Get("/schools", s.handleListSchools)
		r.Post("/school-admins", s.handleCreateSchoolAdmin)
		r.Post("/students", s.handleCreateStudentForSchool)
		r.Get("/all-school-admins", s.handleListAllSchoolAdmins)
		r.Get("/all-students", s.handleListAllStudents)
	})

	r.Route("/api/schools/{schoolID}", func(r chi.Router) {
		r.Use(s.requireAuth, s.requireAdminOrSuperAdmin, s.requireSchoolContext)
		r.Get("/students", s.handleListStudents)
		r.Post("/students", s.handleCreateStudent)
		r.Patch("/students/{studentID}", s.handlePatchStudent)
		r.Post("/students/{studentID}/reset-password", s.handleResetPassword)
		r.Get("/tickets", s.handleListSchoolTickets)
	})

	r.Route("/api/tickets", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleListTickets)
		r.Post("/", s.handleCreateTicket)
		r.Patch("/{ticketID}", s.handleUpdateTicket)
	})

	return r
}

type userResponse struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Role           model.Role `json:"role"`
	SchoolID       *string    `json:"schoolId,omitempty"`
	Points         int        `json:"points"`
	Streak         int        `json:"streak"`
	SelectedAvatar string     `json:"selectedAvatar"`
	Active         bool       `json:"isActive"`
}

func mapUserResponse(user model.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Role:           user.Role,
		SchoolID:       user.SchoolID,
		Points:         user.Points,
		Streak:         user.Streak,
		SelectedAvatar: user.SelectedAvatar,
		Active:         user.Active,
	}
}

type schoolResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contactEmail"`
	CreatedAt    int64  `json:"createdAt"`
}

func mapSchoolResponse(school model.School) schoolResponse {
	return schoolResponse{
		ID:           school.ID,
		Name:         school.Name,
		ContactEmail: school.ContactEmail,
		CreatedAt:    school.CreatedAt.Unix(),
	}
}

func mapSchoolResponses(schools []model.School) []schoolResponse {
	resp := make([]schoolResponse, 0, len(schools))
	for _, school := range schools {
		resp = append(resp, mapSchoolResponse(school))
	}
	return resp
}

type ticketResponse struct {
	ID          string             `json:"id"`
	SchoolID    string             `json:"schoolId"`
	AssignedTo  string             `json:"assignedTo"`
	StudentName string             `json:"studentName"`
	DeviceType  string             `json:"deviceType"`
	IssueType   model.IssueType    `json:"issueType"`
	Status      model.TicketStatus `json:"status"`
	Description string             `json:"description"`
	CreatedAt   int64              `json:"createdAt"`
	UpdatedAt   int64              `json:"updatedAt"`
}

func mapTicketResponse(ticket model.Ticket) ticketResponse {
	return ticketResponse{
		ID:          ticket.ID,
		SchoolID:    ticket.SchoolID,
		AssignedTo:  ticket.AssignedTo,
		StudentName: ticket.StudentName,
		DeviceType:  ticket.DeviceType,
		IssueType:   ticket.IssueType,
		Status:      ticket.Status,
		Description: ticket.Description,
		CreatedAt:   ticket.CreatedAt.Unix(),
		UpdatedAt:   ticket.UpdatedAt.Unix(),
	}
}

func mapUserResponses(users []model.User) []userResponse {
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, mapUserResponse(user))
	}
	return resp
}

func mapTicketResponses(tickets []model.Ticket) []ticketResponse {
	resp := make([]ticketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		resp = append(resp, mapTicketResponse(ticket))
	}
	return resp
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

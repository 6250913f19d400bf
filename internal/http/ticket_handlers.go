package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schooldesk/identity/internal/model"
	"schooldesk/identity/internal/repository"
)

// callerSchool resolves the school the ticket routes operate on. Users
// without a school (a super admin outside any school context) cannot
// touch the flat ticket routes.
func (s *Server) callerSchool(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity := identityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return "", false
	}
	if identity.SchoolID == nil || *identity.SchoolID == "" {
		writeError(w, http.StatusForbidden, "school_required")
		return "", false
	}
	return *identity.SchoolID, true
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := s.callerSchool(w, r)
	if !ok {
		return
	}
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

type createTicketRequest struct {
	StudentName string `json:"studentName"`
	DeviceType  string `json:"deviceType"`
	IssueType   string `json:"issueType"`
	AssignedTo  string `json:"assignedTo"`
	Description string `json:"description"`
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := s.callerSchool(w, r)
	if !ok {
		return
	}
	identity := identityFromContext(r.Context())

	var req createTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.StudentName = strings.TrimSpace(req.StudentName)
	if req.StudentName == "" || req.DeviceType == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	issueType := model.IssueType(req.IssueType)
	if issueType != model.IssueCheck && issueType != model.IssueRepair {
		writeError(w, http.StatusBadRequest, "invalid_issue_type")
		return
	}

	assignedTo := req.AssignedTo
	if assignedTo == "" {
		assignedTo = identity.UserID
	}

	now := time.Now().UTC()
	ticket := model.Ticket{
		ID:          uuid.NewString(),
		SchoolID:    schoolID,
		AssignedTo:  assignedTo,
		StudentName: req.StudentName,
		DeviceType:  req.DeviceType,
		IssueType:   issueType,
		Status:      model.TicketPending,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTicket(r.Context(), ticket); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapTicketResponse(ticket))
}

type updateTicketRequest struct {
	AssignedTo  *string             `json:"assignedTo,omitempty"`
	DeviceType  *string             `json:"deviceType,omitempty"`
	Status      *model.TicketStatus `json:"status,omitempty"`
	Description *string             `json:"description,omitempty"`
}

func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := s.callerSchool(w, r)
	if !ok {
		return
	}
	ticketID := chi.URLParam(r, "ticketID")

	// Scoped read: a ticket from another school looks absent.
	if _, err := s.store.GetTicket(r.Context(), ticketID, schoolID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "ticket_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	var req updateTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Status != nil {
		switch *req.Status {
		case model.TicketPending, model.TicketInProgress, model.TicketCompleted:
		default:
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
	}

	updated, err := s.store.UpdateTicket(r.Context(), ticketID, schoolID, repository.TicketUpdate{
		AssignedTo:  req.AssignedTo,
		DeviceType:  req.DeviceType,
		Status:      req.Status,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "ticket_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapTicketResponse(updated))
}

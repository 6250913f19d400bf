package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"schooldesk/identity/internal/auth"
	"schooldesk/identity/internal/config"
	"schooldesk/identity/internal/crypto"
	"schooldesk/identity/internal/model"
	"schooldesk/identity/internal/repository"
	"schooldesk/identity/internal/session"
)

type fakeStore struct {
	mu      sync.Mutex
	users   map[string]model.User
	schools map[string]model.School
	tickets map[string]model.Ticket
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]model.User),
		schools: make(map[string]model.School),
		tickets: make(map[string]model.Ticket),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, user model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return model.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return model.User{}, auth.ErrUserNotFound
}

func (f *fakeStore) SetPasswordHash(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	user.PasswordHash = hash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserProfile(_ context.Context, userID string, update repository.UserUpdate) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return model.User{}, auth.ErrUserNotFound
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.SelectedAvatar != nil {
		user.SelectedAvatar = *update.SelectedAvatar
	}
	if update.Points != nil {
		user.Points = *update.Points
	}
	if update.Streak != nil {
		user.Streak = *update.Streak
	}
	if update.Active != nil {
		user.Active = *update.Active
	}
	f.users[userID] = user
	return user, nil
}

func (f *fakeStore) ListUsersByRole(_ context.Context, role model.Role, schoolID string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, user := range f.users {
		if user.Role != role {
			continue
		}
		if schoolID != "" && (user.SchoolID == nil || *user.SchoolID != schoolID) {
			continue
		}
		out = append(out, user)
	}
	return out, nil
}

func (f *fakeStore) CreateSchool(_ context.Context, school model.School) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schools[school.ID] = school
	return nil
}

func (f *fakeStore) GetSchool(_ context.Context, schoolID string) (model.School, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	school, ok := f.schools[schoolID]
	if !ok {
		return model.School{}, repository.ErrNotFound
	}
	return school, nil
}

func (f *fakeStore) ListSchools(_ context.Context) ([]model.School, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.School
	for _, school := range f.schools {
		out = append(out, school)
	}
	return out, nil
}

func (f *fakeStore) CreateTicket(_ context.Context, ticket model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[ticket.ID] = ticket
	return nil
}

func (f *fakeStore) GetTicket(_ context.Context, ticketID, schoolID string) (model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.SchoolID != schoolID {
		return model.Ticket{}, repository.ErrNotFound
	}
	return ticket, nil
}

func (f *fakeStore) ListTickets(_ context.Context, schoolID string, filter repository.TicketFilter) ([]model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Ticket
	for _, ticket := range f.tickets {
		if ticket.SchoolID != schoolID {
			continue
		}
		if filter.Status != "" && string(ticket.Status) != filter.Status {
			continue
		}
		if filter.IssueType != "" && string(ticket.IssueType) != filter.IssueType {
			continue
		}
		out = append(out, ticket)
	}
	return out, nil
}

func (f *fakeStore) UpdateTicket(_ context.Context, ticketID, schoolID string, update repository.TicketUpdate) (model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok || ticket.SchoolID != schoolID {
		return model.Ticket{}, repository.ErrNotFound
	}
	if update.AssignedTo != nil {
		ticket.AssignedTo = *update.AssignedTo
	}
	if update.DeviceType != nil {
		ticket.DeviceType = *update.DeviceType
	}
	if update.Status != nil {
		ticket.Status = *update.Status
	}
	if update.Description != nil {
		ticket.Description = *update.Description
	}
	f.tickets[ticketID] = ticket
	return ticket, nil
}

type testEnv struct {
	store   *fakeStore
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	sessions := session.NewMemoryStore(session.MemoryStoreConfig{TTL: 12 * time.Hour})
	creds := auth.NewCredentialStore(store)
	authn := auth.NewAuthenticator(creds, sessions)
	resolver := auth.NewResolver(sessions, store)

	cfg := config.Config{HTTPAddr: ":0", SessionTTL: 12 * time.Hour}
	server := NewServer(cfg, store, authn, resolver)

	return &testEnv{store: store, handler: server.Router()}
}

func (e *testEnv) seedSchool(t *testing.T, id, name string) {
	t.Helper()
	e.store.schools[id] = model.School{ID: id, Name: name, CreatedAt: time.Now()}
}

func (e *testEnv) seedUser(t *testing.T, id, username, password string, role model.Role, schoolID string) {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := model.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if schoolID != "" {
		user.SchoolID = &schoolID
	}
	e.store.users[id] = user
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLoginLogoutMe(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchool(t, "school-1", "Lincoln High")
	env.seedUser(t, "u-alice", "alice", "s3cret", model.RoleAdmin, "school-1")

	token := env.login(t, "alice", "s3cret")

	rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, "alice", me.Username)
	require.Equal(t, model.RoleAdmin, me.Role)

	rec = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-root", "root", "rootpw", model.RoleSuperAdmin, "")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "root",
		"password": "rootpw",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	require.Equal(t, sessionCookieName, cookie.Name)
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-alice", "alice", "s3cret", model.RoleAdmin, "school-1")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "nobody",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid_credentials")

	// No lockout: the right password still works after failures.
	env.login(t, "alice", "s3cret")
}

func TestRoleGuards(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchool(t, "school-1", "Lincoln High")
	env.seedUser(t, "u-bob", "bob", "bobpw", model.RoleStudent, "school-1")

	token := env.login(t, "bob", "bobpw")

	rec := env.do(t, http.MethodGet, "/api/admin/schools", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/schools/school-1/students", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/schools", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCrossTenantForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchool(t, "school-1", "Lincoln High")
	env.seedSchool(t, "school-2", "Jefferson Middle")
	env.seedUser(t, "u-alice", "alice", "s3cret", model.RoleAdmin, "school-1")
	env.seedUser(t, "u-root", "root", "rootpw", model.RoleSuperAdmin, "")

	alice := env.login(t, "alice", "s3cret")
	rec := env.do(t, http.MethodGet, "/api/schools/school-2/students", alice, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/schools/school-1/students", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The super admin crosses school boundaries freely.
	root := env.login(t, "root", "rootpw")
	rec = env.do(t, http.MethodGet, "/api/schools/school-2/students", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSuperAdminProvisioning(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-root", "root", "rootpw", model.RoleSuperAdmin, "")
	root := env.login(t, "root", "rootpw")

	rec := env.do(t, http.MethodPost, "/api/admin/schools", root, map[string]string{
		"name":         "Lincoln High",
		"contactEmail": "office@lincoln.example",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var school schoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &school))
	require.NotEmpty(t, school.ID)

	rec = env.do(t, http.MethodPost, "/api/admin/school-admins", root, map[string]string{
		"username": "carol",
		"email":    "carol@lincoln.example",
		"password": "carolpw",
		"schoolId": school.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var admin userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &admin))
	require.Equal(t, model.RoleAdmin, admin.Role)
	require.NotNil(t, admin.SchoolID)
	require.Equal(t, school.ID, *admin.SchoolID)

	rec = env.do(t, http.MethodPost, "/api/admin/students", root, map[string]string{
		"username": "dave",
		"email":    "dave@lincoln.example",
		"password": "davepw",
		"schoolId": "no-such-school",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "school_not_found")

	env.login(t, "carol", "carolpw")
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchool(t, "school-1", "Lincoln High")
	env.seedUser(t, "u-alice", "alice", "s3cret", model.RoleAdmin, "school-1")
	env.seedUser(t, "u-bob", "bob", "bobpw", model.RoleStudent, "school-1")

	alice := env.login(t, "alice", "s3cret")
	bob := env.login(t, "bob", "bobpw")

	rec := env.do(t, http.MethodPost, "/api/schools/school-1/students/u-bob/reset-password", alice, map[string]string{
		"newPassword": "fresh-pw",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", bob, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "bob",
		"password": "bobpw",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	env.login(t, "bob", "fresh-pw")
}

func TestResetPasswordScopedToSchool(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchool(t, "school-1", "Lincoln High")
	env.seedSchool(t, "school-2", "Jefferson Middle")
	env.seedUser(t, "u-root", "root", "rootpw", model.RoleSuperAdmin, "")
	env.seedUser(t, "u-eve", "eve", "evepw", model.RoleStudent, "school-2")

	root := env.login(t, "root", "rootpw")

	// Right student, wrong school in the path: reported as absent.
	rec := env.do(t, http.MethodPost, "/api/schools/school-1/students/u-eve/reset-password", root, map[string]string{
		"newPassword": "fresh-pw",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "student_not_found")

	env.login(t, "eve", "evepw")
}

func TestDeactivationRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchool(t, "school-1", "Lincoln High")
	env.seedUser(t, "u-alice", "alice", "s3cret", model.RoleAdmin, "school-1")
	env.seedUser(t, "u-bob", "bob", "bobpw", model.RoleStudent, "school-1")

	alice := env.login(t, "alice", "s3cret")
	bob := env.login(t, "bob", "bobpw")

	rec := env.do(t, http.MethodPatch, "/api/schools/school-1/students/u-bob", alice, map[string]interface{}{
		"isActive": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", bob, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "bob",
		"password": "bobpw",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTicketLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchool(t, "school-1", "Lincoln High")
	env.seedUser(t, "u-bob", "bob", "bobpw", model.RoleStudent, "school-1")

	bob := env.login(t, "bob", "bobpw")

	rec := env.do(t, http.MethodPost, "/api/tickets/", bob, map[string]string{
		"studentName": "Bob Ricard",
		"deviceType":  "laptop",
		"issueType":   "repair",
		"status":      "completed",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tickets/", bob, map[string]string{
		"studentName": "Bob Ricard",
		"deviceType":  "laptop",
		"issueType":   "repair",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))
	require.Equal(t, model.TicketPending, ticket.Status)
	require.Equal(t, "u-bob", ticket.AssignedTo)
	require.Equal(t, "school-1", ticket.SchoolID)

	rec = env.do(t, http.MethodGet, "/api/tickets/", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/tickets/%s", ticket.ID), bob, map[string]string{
		"status": "in_progress",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var patched ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	require.Equal(t, model.TicketInProgress, patched.Status)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/tickets/%s", ticket.ID), bob, map[string]string{
		"status": "closed",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tickets/?status=in_progress", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, model.TicketInProgress, listed[0].Status)
}

func TestTicketIsInvisibleAcrossSchools(t *testing.T) {
	env := newTestEnv(t)
	env.seedSchool(t, "school-1", "Lincoln High")
	env.seedSchool(t, "school-2", "Jefferson Middle")
	env.seedUser(t, "u-bob", "bob", "bobpw", model.RoleStudent, "school-1")
	env.seedUser(t, "u-eve", "eve", "evepw", model.RoleStudent, "school-2")

	eve := env.login(t, "eve", "evepw")
	rec := env.do(t, http.MethodPost, "/api/tickets/", eve, map[string]string{
		"studentName": "Eve Moran",
		"deviceType":  "tablet",
		"issueType":   "check",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var ticket ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticket))

	bob := env.login(t, "bob", "bobpw")
	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/tickets/%s", ticket.ID), bob, map[string]string{
		"status": "completed",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tickets/", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Empty(t, listed)
}

func TestTicketsRequireSchoolContext(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-root", "root", "rootpw", model.RoleSuperAdmin, "")

	root := env.login(t, "root", "rootpw")
	rec := env.do(t, http.MethodGet, "/api/tickets/", root, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "school_required")
}

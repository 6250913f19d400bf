package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"schooldesk/identity/internal/auth"
	"schooldesk/identity/internal/model"
)

// ErrNotFound is returned for missing schools and tickets. Missing
// users surface as auth.ErrUserNotFound per the UserSource contract.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `
	id, username, email, password_hash, role, school_id,
	first_name, last_name, selected_avatar, points, streak,
	is_active, created_at, updated_at
`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.SchoolID,
		&user.FirstName,
		&user.LastName,
		&user.SelectedAvatar,
		&user.Points,
		&user.Streak,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, auth.ErrUserNotFound
	}
	return user, err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, userID)
	return scanUser(row)
}

func (s *Store) SetPasswordHash(ctx context.Context, userID, hash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2
	`, hash, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, role, school_id,
			first_name, last_name, selected_avatar, points, streak,
			is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.SchoolID,
		user.FirstName, user.LastName, user.SelectedAvatar, user.Points, user.Streak,
		user.Active, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// UserUpdate carries the mutable profile fields. Role, school and
// password hash deliberately have no place here; they move through
// their own code paths.
type UserUpdate struct {
	Email          *string
	FirstName      *string
	LastName       *string
	SelectedAvatar *string
	Points         *int
	Streak         *int
	Active         *bool
}

func (s *Store) UpdateUserProfile(ctx context.Context, userID string, update UserUpdate) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			email = COALESCE($1, email),
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			selected_avatar = COALESCE($4, selected_avatar),
			points = COALESCE($5, points),
			streak = COALESCE($6, streak),
			is_active = COALESCE($7, is_active),
			updated_at = now()
		WHERE id = $8
		RETURNING `+userColumns+`
	`,
		update.Email, update.FirstName, update.LastName, update.SelectedAvatar,
		update.Points, update.Streak, update.Active, userID,
	)
	return scanUser(row)
}

func (s *Store) ListUsersByRole(ctx context.Context, role model.Role, schoolID string) ([]model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = $1
	`
	args := []any{role}
	if schoolID != "" {
		query += ` AND school_id = $2`
		args = append(args, schoolID)
	}
	query += ` ORDER BY last_name, first_name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) CreateSchool(ctx context.Context, school model.School) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO schools (id, name, contact_email, created_at)
		VALUES ($1, $2, $3, $4)
	`, school.ID, school.Name, school.ContactEmail, school.CreatedAt)
	return err
}

func (s *Store) GetSchool(ctx context.Context, schoolID string) (model.School, error) {
	var school model.School
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, contact_email, created_at
		FROM schools
		WHERE id = $1
	`, schoolID)
	err := row.Scan(&school.ID, &school.Name, &school.ContactEmail, &school.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.School{}, ErrNotFound
	}
	return school, err
}

func (s *Store) ListSchools(ctx context.Context) ([]model.School, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, contact_email, created_at
		FROM schools
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		var school model.School
		if err := rows.Scan(&school.ID, &school.Name, &school.ContactEmail, &school.CreatedAt); err != nil {
			return nil, err
		}
		schools = append(schools, school)
	}
	return schools, rows.Err()
}

const ticketColumns = `
	id, school_id, assigned_to, student_name, device_type,
	issue_type, status, description, created_at, updated_at
`

func scanTicket(row pgx.Row) (model.Ticket, error) {
	var ticket model.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.SchoolID,
		&ticket.AssignedTo,
		&ticket.StudentName,
		&ticket.DeviceType,
		&ticket.IssueType,
		&ticket.Status,
		&ticket.Description,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ticket{}, ErrNotFound
	}
	return ticket, err
}

func (s *Store) CreateTicket(ctx context.Context, ticket model.Ticket) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (
			id, school_id, assigned_to, student_name, device_type,
			issue_type, status, description, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		ticket.ID, ticket.SchoolID, ticket.AssignedTo, ticket.StudentName, ticket.DeviceType,
		ticket.IssueType, ticket.Status, ticket.Description, ticket.CreatedAt, ticket.UpdatedAt,
	)
	return err
}

// GetTicket is always school-scoped; a ticket id from another school
// behaves as not found.
func (s *Store) GetTicket(ctx context.Context, ticketID, schoolID string) (model.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id = $1 AND school_id = $2
	`, ticketID, schoolID)
	return scanTicket(row)
}

type TicketFilter struct {
	Status    string
	IssueType string
}

func (s *Store) ListTickets(ctx context.Context, schoolID string, filter TicketFilter) ([]model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE school_id = $1
	`
	args := []any{schoolID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $2`
	}
	if filter.IssueType != "" {
		args = append(args, filter.IssueType)
		if filter.Status != "" {
			query += ` AND issue_type = $3`
		} else {
			query += ` AND issue_type = $2`
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

type TicketUpdate struct {
	AssignedTo  *string
	DeviceType  *string
	Status      *model.TicketStatus
	Description *string
}

func (s *Store) UpdateTicket(ctx context.Context, ticketID, schoolID string, update TicketUpdate) (model.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tickets SET
			assigned_to = COALESCE($1, assigned_to),
			device_type = COALESCE($2, device_type),
			status = COALESCE($3, status),
			description = COALESCE($4, description),
			updated_at = now()
		WHERE id = $5 AND school_id = $6
		RETURNING `+ticketColumns+`
	`,
		update.AssignedTo, update.DeviceType, update.Status, update.Description,
		ticketID, schoolID,
	)
	return scanTicket(row)
}

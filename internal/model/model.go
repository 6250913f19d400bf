package model

import "time"

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleStudent    Role = "student"
)

func ValidRole(role Role) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleStudent:
		return true
	default:
		return false
	}
}

// User is the account record. SchoolID is nil only for super admins;
// every admin and student belongs to exactly one school.
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	Role           Role
	SchoolID       *string
	FirstName      string
	LastName       string
	SelectedAvatar string
	Points         int
	Streak         int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type School struct {
	ID           string
	Name         string
	ContactEmail string
	CreatedAt    time.Time
}

type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketCompleted  TicketStatus = "completed"
)

type IssueType string

const (
	IssueCheck  IssueType = "check"
	IssueRepair IssueType = "repair"
)

type Ticket struct {
	ID          string
	SchoolID    string
	AssignedTo  string
	StudentName string
	DeviceType  string
	IssueType   IssueType
	Status      TicketStatus
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

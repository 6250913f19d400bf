package auth

import (
	"fmt"

	"schooldesk/identity/internal/model"
)

type requirementKind int

const (
	anyAuthenticated requirementKind = iota
	roleIn
	tenantScoped
)

// Requirement is one declarative predicate a route attaches to itself.
// Routes declare values; Authorize evaluates them.
type Requirement struct {
	kind     requirementKind
	roles    []model.Role
	schoolID string
}

// AnyAuthenticated passes for every resolved identity.
func AnyAuthenticated() Requirement {
	return Requirement{kind: anyAuthenticated}
}

// RoleIn passes when the identity's role is in the set.
func RoleIn(roles ...model.Role) Requirement {
	return Requirement{kind: roleIn, roles: roles}
}

func SuperAdminOnly() Requirement {
	return RoleIn(model.RoleSuperAdmin)
}

func AdminOrSuperAdmin() Requirement {
	return RoleIn(model.RoleAdmin, model.RoleSuperAdmin)
}

// TenantScoped applies the school scope check for the path-declared
// school. It belongs after the role predicates in a chain.
func TenantScoped(schoolID string) Requirement {
	return Requirement{kind: tenantScoped, schoolID: schoolID}
}

// Authorize evaluates the requirements left to right and stops at the
// first failure; its reason is the one reported, never a combination.
// The identity must come from Resolver.Resolve.
func Authorize(identity Identity, requirements ...Requirement) error {
	for _, req := range requirements {
		if err := req.check(identity); err != nil {
			return err
		}
	}
	return nil
}

func (r Requirement) check(identity Identity) error {
	switch r.kind {
	case anyAuthenticated:
		return nil
	case roleIn:
		for _, role := range r.roles {
			if identity.Role == role {
				return nil
			}
		}
		return fmt.Errorf("%w: role %s not permitted", ErrForbidden, identity.Role)
	case tenantScoped:
		return CheckSchoolScope(identity, r.schoolID)
	default:
		return fmt.Errorf("%w: unknown requirement", ErrForbidden)
	}
}

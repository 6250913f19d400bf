package auth

import (
	"fmt"

	"schooldesk/identity/internal/model"
)

// CheckSchoolScope decides whether the identity may touch data of the
// addressed school. Super admins hold global scope, including when the
// path school is absent; everyone else needs an exact match between
// their home school and the path school. Only the path parameter and
// the identity's own school are authoritative; a school id carried in
// a request body never is.
func CheckSchoolScope(identity Identity, schoolID string) error {
	if identity.Role == model.RoleSuperAdmin {
		return nil
	}
	if identity.SchoolID == nil || schoolID == "" || *identity.SchoolID != schoolID {
		return fmt.Errorf("%w: school scope mismatch", ErrForbidden)
	}
	return nil
}

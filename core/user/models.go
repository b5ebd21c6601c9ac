package user

import "github.com/pkg/errors"

// Role is the coarse permission level carried by the identity token.
type Role string

// Roles
const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAcademy    Role = "ACADEMY"
	RoleStudent    Role = "STUDENT"
)

var (
	AllRoles = []Role{RoleSuperAdmin, RoleAcademy, RoleStudent}

	ErrInvalidRole      = errors.New("invalid role")
	ErrAcademyIDMissing = errors.New("academy users must belong to an academy")
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAcademy, RoleStudent:
		return true
	}
	return false
}

// User is the authenticated actor. Accounts live with the identity provider;
// this service only ever sees what the token carries.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	AcademyID string `json:"academy_id,omitempty"`
}

func (u User) IsAdmin() bool   { return u.Role == RoleSuperAdmin }
func (u User) IsAcademy() bool { return u.Role == RoleAcademy }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// ActsFor reports whether u may act on behalf of the given academy.
func (u User) ActsFor(academyID string) bool {
	if u.IsAdmin() {
		return true
	}
	return u.IsAcademy() && academyID != "" && u.AcademyID == academyID
}

// Validate checks that the actor is complete enough to be trusted.
func (u User) Validate() error {
	if u.ID == "" {
		return errors.New("missing user id")
	}
	if !u.Role.IsValid() {
		return ErrInvalidRole
	}
	if u.IsAcademy() && u.AcademyID == "" {
		return ErrAcademyIDMissing
	}
	return nil
}

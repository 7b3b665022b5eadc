package entity

import (
	"net/http"
	"wedsync/lib/validate"
)

type UserRole string

const (
	RoleNone   UserRole = ""
	RoleViewer UserRole = "viewer"
	RoleAdmin  UserRole = "admin"
)

// User is an API user authenticated with a bearer token; only used for the
// read-only reporting endpoints, guests never authenticate.
type User struct {
	Username string   `json:"username" bson:"username" validate:"required"`
	Name     string   `json:"name" bson:"name" validate:"omitempty"`
	Token    string   `json:"token" bson:"token" validate:"required,min=1"`
	Role     UserRole `json:"role" bson:"role"`
}

func (u *User) Bind(_ *http.Request) error {
	return validate.Struct(u)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanReadReports is true for any user holding a role.
func (u *User) CanReadReports() bool {
	return u.Role == RoleAdmin || u.Role == RoleViewer
}

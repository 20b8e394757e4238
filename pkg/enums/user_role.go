package enums

import (
	"slices"
	"strings"
)

// UserRole gates access to the admin surface.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

var userRoles = []UserRole{UserRoleUser, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool { return slices.Contains(userRoles, r) }

// ParseUserRole accepts any casing and surrounding whitespace.
func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", userRoles, strings.ToLower(strings.TrimSpace(value)))
}

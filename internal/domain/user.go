package domain

import (
	"strings"
	"time"
)

// Role is the closed set of caller roles.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSeller Role = "seller"
	RoleTech   Role = "tech"
)

// ParseRole maps raw input onto a known role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSeller:
		return RoleSeller, true
	case RoleTech:
		return RoleTech, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// User is an operator account: admins approve, sellers request, techs execute.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	PushToken    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

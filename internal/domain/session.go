package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role defines what a scanning identity is allowed to do
type Role int

const (
	RoleUnspecified Role = iota
	RoleStudent
	RoleAssessor
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleAssessor:
		return "assessor"
	case RoleAdmin:
		return "admin"
	default:
		return "unspecified"
	}
}

// ParseRole converts a role name into a Role. Empty input maps to RoleStudent.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "student":
		return RoleStudent, nil
	case "assessor":
		return RoleAssessor, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleUnspecified, fmt.Errorf("unknown role %q", s)
	}
}

// Session is the identity a scan or admin action is performed under.
// There is no authentication; the name is whatever the user typed.
type Session struct {
	UserID   string
	UserName string
	Role     Role
}

// NewSession mints a fresh local identity for the given display name
func NewSession(name string, role Role) Session {
	return Session{
		UserID:   GenerateUserID(),
		UserName: strings.TrimSpace(name),
		Role:     role,
	}
}

// Validate checks that the session can be attributed to records
func (s Session) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("session user ID cannot be empty")
	}
	if strings.TrimSpace(s.UserName) == "" {
		return fmt.Errorf("session user name cannot be empty")
	}
	return nil
}

// IsAssessor reports whether the session may record competency assessments
func (s Session) IsAssessor() bool {
	return s.Role == RoleAssessor || s.Role == RoleAdmin
}

// GenerateUserID generates a short local user identifier of the form user_xxxxxxxx
func GenerateUserID() string {
	return "user_" + shortID()
}

// GenerateID generates a unique identifier for stored targets and records
func GenerateID() string {
	return uuid.New().String()
}

func shortID() string {
	cleanID := strings.ReplaceAll(uuid.New().String(), "-", "")
	return cleanID[:8]
}

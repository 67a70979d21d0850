package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRole distinguishes drivers filling out checklists from analysts
// reviewing them and managers administering templates.
type UserRole string

const (
	RoleDriver  UserRole = "driver"
	RoleAnalyst UserRole = "analyst"
	RoleManager UserRole = "manager"
)

// IsValid returns true if the role is a recognized value.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleDriver, RoleAnalyst, RoleManager:
		return true
	}
	return false
}

// User is an application user profile.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

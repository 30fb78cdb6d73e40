package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a system user. Tenant association lives in Membership;
// platform-wide administrators are marked in the super_admins table.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Email     string `json:"email" db:"email"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	PasswordHash string `json:"-" db:"password_hash"`

	IsActive bool `json:"isActive" db:"is_active"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
}

// SuperAdmin marks a user as platform-wide administrator, independent of
// any tenant membership.
type SuperAdmin struct {
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

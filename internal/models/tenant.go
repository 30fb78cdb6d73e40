package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the billing status label carried on a tenant.
type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "trial"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// Valid reports whether the status is a known value.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionInactive:
		return true
	}
	return false
}

// Tenant represents an isolated customer organization.
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name string `json:"name" db:"name"`

	// Workspace is the unique lowercase slug identifying the tenant's
	// subdomain. Compared case-insensitively.
	Workspace string `json:"workspace" db:"workspace"`

	IsActive   bool `json:"isActive" db:"is_active"`
	IsFreeTier bool `json:"isFreeTier" db:"is_free_tier"`

	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus" db:"subscription_status"`
	TrialEndsAt        *time.Time         `json:"trialEndsAt,omitempty" db:"trial_ends_at"`
}

// Role is a tenant-level membership role.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleCoordinator Role = "coordinator"
	RoleInstaller   Role = "installer"
	RoleAccountant  Role = "accountant"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCoordinator, RoleInstaller, RoleAccountant:
		return true
	}
	return false
}

// Membership associates a user with a tenant and a role.
// At most one membership per tenant has IsPrimaryAdmin set.
type Membership struct {
	UserID         uuid.UUID `json:"userId" db:"user_id"`
	TenantID       uuid.UUID `json:"tenantId" db:"tenant_id"`
	Role           Role      `json:"role" db:"role"`
	IsPrimaryAdmin bool      `json:"isPrimaryAdmin" db:"is_primary_admin"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports whether the membership carries the tenant admin role.
func (m *Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}

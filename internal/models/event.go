package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an audit log entry. TenantID is nil for
// platform-level events.
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	TenantID *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`
	UserID   *uuid.UUID `json:"userId,omitempty" db:"user_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Session events
	EventTypeLogin        EventType = "LOGIN"
	EventTypeAccessDenied EventType = "ACCESS_DENIED"

	// Billing events
	EventTypeBillingSubmitted EventType = "BILLING_SUBMITTED"
	EventTypeBillingApproved  EventType = "BILLING_APPROVED"

	// Tenant lifecycle events
	EventTypeTenantCreated     EventType = "TENANT_CREATED"
	EventTypeTenantActivated   EventType = "TENANT_ACTIVATED"
	EventTypeTenantDeactivated EventType = "TENANT_DEACTIVATED"

	// Data integrity anomalies
	EventTypeDataAnomaly EventType = "DATA_ANOMALY"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface. Methods taking a Scope apply the
// tenant-scoped query filter; the rest are directory and billing reads
// used by the resolution pipeline itself.
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	ListUsersByTenant(ctx context.Context, scope Scope, limit, offset int) ([]*models.User, int64, error)

	// Tenant directory methods
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantByWorkspace(ctx context.Context, workspace string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error)

	// Membership methods
	CreateMembership(ctx context.Context, m *models.Membership) error
	ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)
	ListMembershipsByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Membership, error)
	DeleteMembership(ctx context.Context, userID, tenantID uuid.UUID) error

	// Super-admin methods
	IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	CreateSuperAdmin(ctx context.Context, userID uuid.UUID) error

	// Subscription methods
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetLatestSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	ListSubscriptions(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Subscription, int64, error)

	// Vehicle methods (tenant-scoped)
	CreateVehicle(ctx context.Context, scope Scope, v *models.Vehicle) error
	GetVehicle(ctx context.Context, scope Scope, id uuid.UUID) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, scope Scope, v *models.Vehicle) error
	DeleteVehicle(ctx context.Context, scope Scope, id uuid.UUID) error
	ListVehicles(ctx context.Context, scope Scope, limit, offset int) ([]*models.Vehicle, int64, error)

	// Invoice methods (tenant-scoped)
	CreateInvoice(ctx context.Context, scope Scope, inv *models.Invoice) error
	GetInvoice(ctx context.Context, scope Scope, id uuid.UUID) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, scope Scope, inv *models.Invoice) error
	DeleteInvoice(ctx context.Context, scope Scope, id uuid.UUID) error
	ListInvoices(ctx context.Context, scope Scope, limit, offset int) ([]*models.Invoice, int64, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, scope Scope, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	UserID    *uuid.UUID
	Type      *models.EventType
	Level     *models.EventLevel
	StartTime *time.Time
	EndTime   *time.Time
}

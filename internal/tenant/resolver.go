package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
)

// Directory is the subset of the store the resolver needs.
type Directory interface {
	GetTenantByWorkspace(ctx context.Context, workspace string) (*models.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)
	IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	CreateEventLog(ctx context.Context, event *models.EventLog) error
}

// Resolver resolves workspace identifiers to tenants and users to their
// memberships.
type Resolver struct {
	dir Directory
}

// NewResolver creates a new resolver over the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve maps a workspace identifier to a session tenant context. When
// the cached context already covers the requested workspace it is reused
// without a directory read; the cache is invalidated by a workspace
// change (e.g. the user switches tenant via URL).
//
// An inactive tenant still resolves: inactivity is a property of the
// tenant, not an absence, and blocking happens later in the subscription
// gate so tenant admins can reach remediation pages.
func (r *Resolver) Resolve(ctx context.Context, workspace string, cached *SessionContext) (*SessionContext, error) {
	workspace = strings.ToLower(strings.TrimSpace(workspace))
	if workspace == "" {
		return nil, ErrUnknownWorkspace
	}

	if cached != nil && cached.Workspace == workspace && cached.TenantID != uuid.Nil {
		return cached, nil
	}

	t, err := r.dir.GetTenantByWorkspace(ctx, workspace)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownWorkspace
		}
		return nil, err
	}

	sc := &SessionContext{
		TenantID:  t.ID,
		Workspace: t.Workspace,
	}
	if cached != nil {
		sc.IsSuperAdmin = cached.IsSuperAdmin
	}
	return sc, nil
}

// Memberships returns the user's tenant memberships.
func (r *Resolver) Memberships(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	return r.dir.ListMembershipsByUser(ctx, userID)
}

// MembershipFor returns the user's membership in one tenant, or nil when
// the user does not belong to it. When the directory holds duplicate
// rows for the pair (a data-integrity anomaly) the first row wins; the
// anomaly is recorded for an operator to fix, not a reason to fail the
// request.
func (r *Resolver) MembershipFor(ctx context.Context, userID, tenantID uuid.UUID) (*models.Membership, error) {
	memberships, err := r.dir.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var found *models.Membership
	for _, m := range memberships {
		if m.TenantID != tenantID {
			continue
		}
		if found != nil {
			log.Warn().
				Str("user_id", userID.String()).
				Str("tenant_id", tenantID.String()).
				Msg("Duplicate membership rows for user, using first")
			r.auditDuplicateMembership(ctx, userID, tenantID)
			break
		}
		found = m
	}
	return found, nil
}

// auditDuplicateMembership records a duplicate-membership anomaly. Best
// effort; a failed audit write never changes the resolution.
func (r *Resolver) auditDuplicateMembership(ctx context.Context, userID, tenantID uuid.UUID) {
	uid, tid := userID, tenantID
	event := &models.EventLog{
		TenantID:    &tid,
		UserID:      &uid,
		Type:        models.EventTypeDataAnomaly,
		Level:       models.EventLevelWarning,
		Description: "Duplicate membership rows for user and tenant",
	}
	if err := r.dir.CreateEventLog(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to write data-anomaly audit event")
	}
}

// IsSuperAdmin reports whether the user is a platform-wide administrator.
func (r *Resolver) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	return r.dir.IsSuperAdmin(ctx, userID)
}

// Tenant fetches a tenant by id.
func (r *Resolver) Tenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return r.dir.GetTenant(ctx, id)
}

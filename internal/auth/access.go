package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/billing"
	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
)

// Decision is the outcome of a surface-access check. Unauthorized
// callers are redirected, never rejected with an error, so the set of
// existing tenants and surfaces is not leaked.
type Decision struct {
	Allowed    bool
	RedirectTo string
	Reason     string
}

// Grant is proof of a completed gating check. It is the only sanctioned
// way to obtain a tenant-scoped storage.Scope, so data access cannot
// run before workspace resolution and subscription gating have.
type Grant struct {
	tenantID   uuid.UUID
	superAdmin bool
	isAdmin    bool
}

// Scope returns the query scope for the granted caller.
func (g Grant) Scope() storage.Scope {
	if g.superAdmin {
		return storage.SuperAdminScope()
	}
	return storage.NewScope(g.tenantID)
}

// TenantID returns the tenant the grant was issued for. Nil for a
// super-admin operating without a tenant context.
func (g Grant) TenantID() uuid.UUID { return g.tenantID }

// IsSuperAdmin reports whether the grant belongs to a platform admin.
func (g Grant) IsSuperAdmin() bool { return g.superAdmin }

// IsTenantAdmin reports whether the caller holds the admin role in the
// granted tenant.
func (g Grant) IsTenantAdmin() bool { return g.superAdmin || g.isAdmin }

// SubscriptionSource fetches the authoritative subscription row.
type SubscriptionSource interface {
	GetLatestSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
}

// Evaluator decides whether a caller may act on a tenant or enter the
// platform console. Decisions are evaluated fresh on every check; only
// identifiers are ever cached, never the decision itself.
type Evaluator struct {
	resolver *tenant.Resolver
	subs     SubscriptionSource

	// bootstrapWorkspace names the legacy bootstrap tenant whose admins
	// may enter the platform console alongside super-admins.
	bootstrapWorkspace string
}

// NewEvaluator creates a new access evaluator.
func NewEvaluator(resolver *tenant.Resolver, subs SubscriptionSource, bootstrapWorkspace string) *Evaluator {
	return &Evaluator{
		resolver:           resolver,
		subs:               subs,
		bootstrapWorkspace: bootstrapWorkspace,
	}
}

// Authorize runs the full gating pipeline for a product-surface request:
// membership check, fresh tenant read, fresh subscription read, and the
// subscription state machine. On success it returns the grant that mints
// the tenant-scoped query filter. Any read failure fails closed.
func (e *Evaluator) Authorize(ctx context.Context, userID uuid.UUID, sc *tenant.SessionContext) (*Grant, billing.Decision, error) {
	if sc != nil && sc.IsSuperAdmin {
		// The cached flag only routes us here; the directory decides.
		// A revoked super-admin falls through to the membership path.
		isSuper, err := e.resolver.IsSuperAdmin(ctx, userID)
		if err != nil {
			return nil, billing.Decision{}, err
		}
		if isSuper {
			// Super-admins bypass subscription gating and tenant scoping.
			g := &Grant{superAdmin: true}
			if sc.TenantID != uuid.Nil {
				g.tenantID = sc.TenantID
			}
			return g, billing.Decision{State: billing.StateActive, Allowed: true}, nil
		}
	}

	if sc == nil || sc.TenantID == uuid.Nil {
		return nil, billing.Decision{}, tenant.ErrNoContext
	}

	membership, err := e.resolver.MembershipFor(ctx, userID, sc.TenantID)
	if err != nil {
		return nil, billing.Decision{}, err
	}
	if membership == nil {
		// Authenticated but not a member of this tenant: deny without
		// confirming the tenant exists.
		return nil, billing.Decision{Allowed: false, Reason: "not a member"}, nil
	}

	t, err := e.resolver.Tenant(ctx, sc.TenantID)
	if err != nil {
		return nil, billing.Decision{}, err
	}

	sub, err := e.subs.GetLatestSubscription(ctx, sc.TenantID)
	if err != nil && err != storage.ErrNotFound {
		return nil, billing.Decision{}, err
	}

	decision := billing.Evaluate(t, sub, time.Now(), membership.IsAdmin())
	if !decision.Allowed {
		log.Debug().
			Str("tenant_id", sc.TenantID.String()).
			Str("user_id", userID.String()).
			Str("state", string(decision.State)).
			Msg("Access blocked by subscription gate")
		return nil, decision, nil
	}

	return &Grant{tenantID: sc.TenantID, isAdmin: membership.IsAdmin()}, decision, nil
}

// ConsoleDecision decides entry to the platform console. Only
// super-admins and admins of the designated bootstrap tenant may enter;
// every other authenticated caller is redirected to the product surface.
func (e *Evaluator) ConsoleDecision(ctx context.Context, userID uuid.UUID) (Decision, error) {
	isSuper, err := e.resolver.IsSuperAdmin(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if isSuper {
		return Decision{Allowed: true}, nil
	}

	if e.bootstrapWorkspace != "" {
		bootstrap, err := e.resolver.Resolve(ctx, e.bootstrapWorkspace, nil)
		if err == nil {
			m, err := e.resolver.MembershipFor(ctx, userID, bootstrap.TenantID)
			if err != nil {
				return Decision{}, err
			}
			if m != nil && m.IsAdmin() {
				return Decision{Allowed: true}, nil
			}
		} else if err != tenant.ErrUnknownWorkspace {
			return Decision{}, err
		}
	}

	return Decision{
		Allowed:    false,
		RedirectTo: "/",
		Reason:     "console restricted",
	}, nil
}

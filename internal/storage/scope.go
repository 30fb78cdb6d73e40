package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// Scope is the tenant-scoped query filter. Every read and write against
// tenant-owned tables goes through a Scope: non-super-admin callers are
// constrained to rows of their resolved tenant, super-admins see all
// rows. Scopes are minted from a completed gating check (auth.Grant);
// constructing one anywhere else bypasses the access pipeline.
type Scope struct {
	tenantID   uuid.UUID
	superAdmin bool
}

// NewScope returns a scope constrained to one tenant.
func NewScope(tenantID uuid.UUID) Scope {
	return Scope{tenantID: tenantID}
}

// SuperAdminScope returns an unconstrained scope.
func SuperAdminScope() Scope {
	return Scope{superAdmin: true}
}

// IsSuperAdmin reports whether the scope is unconstrained.
func (sc Scope) IsSuperAdmin() bool { return sc.superAdmin }

// TenantID returns the tenant id new rows must be stamped with. It comes
// from the resolved context, never from client input, so a caller cannot
// write into another tenant's namespace. Super-admin scopes return Nil;
// their creates must name a tenant explicitly.
func (sc Scope) TenantID() uuid.UUID { return sc.tenantID }

// Append adds the tenant equality constraint to a query already
// containing a WHERE clause, returning the extended query and args.
// Super-admin scopes leave the query untouched.
func (sc Scope) Append(query string, args []interface{}) (string, []interface{}) {
	if sc.superAdmin {
		return query, args
	}
	query += fmt.Sprintf(" AND tenant_id = $%d", len(args)+1)
	args = append(args, sc.tenantID)
	return query, args
}

// Allows reports whether a row belonging to rowTenant is visible under
// the scope. Used on single-row fetches after the read.
func (sc Scope) Allows(rowTenant uuid.UUID) bool {
	if sc.superAdmin {
		return true
	}
	return sc.tenantID == rowTenant
}

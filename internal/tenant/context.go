package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrUnknownWorkspace = errors.New("unknown workspace")
	ErrNoContext        = errors.New("no tenant context")
)

// SessionContext is the per-session tenant context cache: the resolved
// tenant id, the workspace it was resolved from, and the caller's
// super-admin flag. It is carried in the session token and re-derivable
// from the directory at any time; it identifies the tenant but is never
// the sole basis for an authorization decision.
type SessionContext struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	Workspace    string    `json:"workspace"`
	IsSuperAdmin bool      `json:"is_super_admin"`
}

type contextKey struct{}

// NewContext returns a context carrying the session tenant context.
func NewContext(ctx context.Context, sc *SessionContext) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// FromContext extracts the session tenant context.
func FromContext(ctx context.Context) (*SessionContext, error) {
	sc, ok := ctx.Value(contextKey{}).(*SessionContext)
	if !ok || sc == nil {
		return nil, ErrNoContext
	}
	return sc, nil
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/auth"
	"github.com/fleetdesk/fleetdesk-server/internal/billing"
	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	grantKey
	gateKey
)

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

func withGrant(ctx context.Context, grant *auth.Grant) context.Context {
	return context.WithValue(ctx, grantKey, grant)
}

func grantFromContext(ctx context.Context) (*auth.Grant, bool) {
	grant, ok := ctx.Value(grantKey).(*auth.Grant)
	return grant, ok
}

func withGateDecision(ctx context.Context, d billing.Decision) context.Context {
	return context.WithValue(ctx, gateKey, d)
}

func gateDecisionFromContext(ctx context.Context) (billing.Decision, bool) {
	d, ok := ctx.Value(gateKey).(billing.Decision)
	return d, ok
}

// tenantMiddleware runs the resolution and gating pipeline for product
// routes: workspace resolution from the host header (or explicit
// parameter), directory lookup with session-cache reuse, membership
// check, and the subscription gate. Handlers behind it read their query
// scope from the grant stored in the request context.
//
// Every failure here resolves to a redirect or a restricted view; the
// only hard failure is a store error, which fails closed as a generic
// service-unavailable so tenant existence is never leaked.
func (s *RESTServer) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := claimsFromContext(ctx)
		if !ok {
			s.respondRedirect(w, "/login", "authentication required")
			return
		}

		// Administrative and static paths are never subjected to
		// workspace resolution.
		for _, prefix := range s.config.Tenancy.BypassPathPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		workspace := tenant.ResolveWorkspace(r.Host, r.URL.Query().Get("workspace"))
		cached := claims.SessionContext()

		var sc *tenant.SessionContext
		if workspace == "" {
			if cached == nil {
				s.respondRedirect(w, "/select-workspace", "no workspace")
				return
			}
			sc = cached
		} else {
			resolved, err := s.resolver.Resolve(ctx, workspace, cached)
			if err != nil {
				if errors.Is(err, tenant.ErrUnknownWorkspace) {
					s.respondError(w, http.StatusNotFound, "workspace not found")
					return
				}
				s.failClosed(w, err)
				return
			}
			sc = resolved
		}

		grant, decision, err := s.evaluator.Authorize(ctx, claims.UserID, sc)
		if err != nil {
			if errors.Is(err, tenant.ErrNoContext) {
				s.respondRedirect(w, "/select-workspace", "no workspace")
				return
			}
			s.failClosed(w, err)
			return
		}

		ctx = tenant.NewContext(ctx, sc)
		ctx = withGateDecision(ctx, decision)

		if grant == nil {
			if s.pathAllowedWhenBlocked(r.URL.Path) {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			s.auditAccessDenied(ctx, claims, sc, decision)
			s.respondRedirect(w, "/restricted", decision.Reason)
			return
		}

		next.ServeHTTP(w, r.WithContext(withGrant(ctx, grant)))
	})
}

// consoleMiddleware guards the platform console. Entry is evaluated
// fresh on every request; unauthorized callers are sent back to the
// product surface, never shown an error.
func (s *RESTServer) consoleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := claimsFromContext(ctx)
		if !ok {
			s.respondRedirect(w, "/login", "authentication required")
			return
		}

		decision, err := s.evaluator.ConsoleDecision(ctx, claims.UserID)
		if err != nil {
			s.failClosed(w, err)
			return
		}

		if !decision.Allowed {
			s.respondRedirect(w, decision.RedirectTo, decision.Reason)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// pathAllowedWhenBlocked reports whether the path stays reachable when
// the subscription gate denies access.
func (s *RESTServer) pathAllowedWhenBlocked(path string) bool {
	for _, allowed := range s.config.Tenancy.AllowedWhenBlocked {
		if strings.HasPrefix(path, allowed) {
			return true
		}
	}
	return false
}

// failClosed denies access on a failed directory or subscription read.
// The isolation invariant outranks availability, so a broken store never
// grants anything.
func (s *RESTServer) failClosed(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Gating read failed, denying access")
	s.respondError(w, http.StatusServiceUnavailable, "service unavailable")
}

// auditAccessDenied records a gating denial. Best effort; a failed audit
// write never changes the response.
func (s *RESTServer) auditAccessDenied(ctx context.Context, claims *auth.Claims, sc *tenant.SessionContext, decision billing.Decision) {
	tenantID := sc.TenantID
	userID := claims.UserID
	event := &models.EventLog{
		TenantID:    &tenantID,
		UserID:      &userID,
		Type:        models.EventTypeAccessDenied,
		Level:       models.EventLevelWarning,
		Description: decision.Reason,
		Details: models.Variables{
			"state": string(decision.State),
		},
	}
	if err := s.store.CreateEventLog(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to write access-denied audit event")
	}
}

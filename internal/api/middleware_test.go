package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/config"
	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
)

// fakeStore implements the directory, membership and billing reads the
// gating pipeline needs. The embedded interface panics on anything else,
// which is exactly what a middleware test wants to catch.
type fakeStore struct {
	storage.Store

	tenants     map[string]*models.Tenant
	memberships map[uuid.UUID][]*models.Membership
	superAdmins map[uuid.UUID]bool
	subs        map[uuid.UUID]*models.Subscription
	events      []*models.EventLog
	vehicles    []*models.Vehicle
	failWith    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:     make(map[string]*models.Tenant),
		memberships: make(map[uuid.UUID][]*models.Membership),
		superAdmins: make(map[uuid.UUID]bool),
		subs:        make(map[uuid.UUID]*models.Subscription),
	}
}

func (f *fakeStore) GetTenantByWorkspace(ctx context.Context, workspace string) (*models.Tenant, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tenants[workspace]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, t := range f.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.memberships[userID], nil
}

func (f *fakeStore) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	return f.superAdmins[userID], nil
}

func (f *fakeStore) GetLatestSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	sub, ok := f.subs[tenantID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sub, nil
}

func (f *fakeStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	f.events = append(f.events, event)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Name = "fleetdesk-server"
	cfg.Server.Version = "test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	cfg.Tenancy.BootstrapTenant = "bootstrap"
	cfg.Tenancy.AllowedWhenBlocked = []string{"/api/v1/tenant/settings", "/api/v1/about"}
	cfg.Tenancy.BypassPathPrefixes = []string{"/api/v1/platform"}
	return cfg
}

type gateFixture struct {
	store  *fakeStore
	server *RESTServer

	acme   *models.Tenant
	admin  uuid.UUID
	member uuid.UUID
}

func newGateFixture() *gateFixture {
	store := newFakeStore()
	f := &gateFixture{
		store:  store,
		server: NewRESTServer(testConfig(), store, nil),
		admin:  uuid.New(),
		member: uuid.New(),
	}

	f.acme = &models.Tenant{
		ID:                 uuid.New(),
		Workspace:          "acme",
		IsActive:           true,
		SubscriptionStatus: models.SubscriptionActive,
	}
	store.tenants["acme"] = f.acme
	store.memberships[f.admin] = []*models.Membership{
		{UserID: f.admin, TenantID: f.acme.ID, Role: models.RoleAdmin},
	}
	store.memberships[f.member] = []*models.Membership{
		{UserID: f.member, TenantID: f.acme.ID, Role: models.RoleCoordinator},
	}

	return f
}

// token issues an access token for the user with an empty session cache,
// forcing the middleware down the resolution path.
func (f *gateFixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	user := &models.User{ID: userID, Email: "user@example.com"}
	access, _, err := f.server.auth.GenerateTokenPair(user, nil)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	return access
}

// gated wires the auth and tenant middlewares around a handler that
// records whether the request got through and with what grant.
func (f *gateFixture) gated(reached *bool, hadGrant *bool) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		if hadGrant != nil {
			_, ok := grantFromContext(r.Context())
			*hadGrant = ok
		}
		w.WriteHeader(http.StatusOK)
	})
	return f.server.authMiddleware(f.server.tenantMiddleware(inner))
}

func (f *gateFixture) request(t *testing.T, userID uuid.UUID, host, path string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = host
	req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	return req
}

func TestTenantMiddleware_MemberPasses(t *testing.T) {
	f := newGateFixture()

	var reached, hadGrant bool
	rec := httptest.NewRecorder()
	f.gated(&reached, &hadGrant).ServeHTTP(rec, f.request(t, f.member, "acme.fleetdesk.io", "/api/v1/vehicles"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !reached {
		t.Error("handler not reached")
	}
	if !hadGrant {
		t.Error("no grant in request context")
	}
}

func TestTenantMiddleware_MissingTokenRedirectsToLogin(t *testing.T) {
	f := newGateFixture()

	var reached bool
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
	req.Host = "acme.fleetdesk.io"
	f.gated(&reached, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
	if reached {
		t.Error("handler reached without credentials")
	}
}

func TestTenantMiddleware_UnknownWorkspace(t *testing.T) {
	f := newGateFixture()

	var reached bool
	rec := httptest.NewRecorder()
	f.gated(&reached, nil).ServeHTTP(rec, f.request(t, f.member, "ghost.fleetdesk.io", "/api/v1/vehicles"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if reached {
		t.Error("handler reached for unknown workspace")
	}
}

func TestTenantMiddleware_NoWorkspaceRedirectsToSelection(t *testing.T) {
	f := newGateFixture()

	var reached bool
	rec := httptest.NewRecorder()
	f.gated(&reached, nil).ServeHTTP(rec, f.request(t, f.member, "localhost:3000", "/api/v1/vehicles"))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/select-workspace" {
		t.Errorf("Location = %q, want %q", loc, "/select-workspace")
	}
	if reached {
		t.Error("handler reached without a workspace")
	}
}

func TestTenantMiddleware_ExpiredSubscriptionBlocksMember(t *testing.T) {
	f := newGateFixture()
	end := time.Now().AddDate(0, 0, -2)
	f.store.subs[f.acme.ID] = &models.Subscription{
		ID:               uuid.New(),
		TenantID:         f.acme.ID,
		Status:           models.PaymentActive,
		BillingPeriodEnd: &end,
	}

	var reached bool
	rec := httptest.NewRecorder()
	f.gated(&reached, nil).ServeHTTP(rec, f.request(t, f.member, "acme.fleetdesk.io", "/api/v1/vehicles"))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/restricted" {
		t.Errorf("Location = %q, want %q", loc, "/restricted")
	}
	if reached {
		t.Error("handler reached despite expired subscription")
	}

	// The denial is audited.
	if len(f.store.events) == 0 {
		t.Fatal("no audit event written")
	}
	last := f.store.events[len(f.store.events)-1]
	if last.Type != models.EventTypeAccessDenied {
		t.Errorf("event type = %v, want %v", last.Type, models.EventTypeAccessDenied)
	}
}

func TestTenantMiddleware_BlockedMemberReachesAllowList(t *testing.T) {
	f := newGateFixture()
	end := time.Now().AddDate(0, 0, -2)
	f.store.subs[f.acme.ID] = &models.Subscription{
		ID:               uuid.New(),
		TenantID:         f.acme.ID,
		Status:           models.PaymentActive,
		BillingPeriodEnd: &end,
	}

	var reached, hadGrant bool
	rec := httptest.NewRecorder()
	f.gated(&reached, &hadGrant).ServeHTTP(rec, f.request(t, f.member, "acme.fleetdesk.io", "/api/v1/tenant/settings"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !reached {
		t.Error("allow-listed path not reachable when blocked")
	}
	if hadGrant {
		t.Error("grant present on a blocked request")
	}
}

func TestTenantMiddleware_AdminPassesWhenExpired(t *testing.T) {
	f := newGateFixture()
	end := time.Now().AddDate(0, 0, -2)
	f.store.subs[f.acme.ID] = &models.Subscription{
		ID:               uuid.New(),
		TenantID:         f.acme.ID,
		Status:           models.PaymentActive,
		BillingPeriodEnd: &end,
	}

	var reached, hadGrant bool
	rec := httptest.NewRecorder()
	f.gated(&reached, &hadGrant).ServeHTTP(rec, f.request(t, f.admin, "acme.fleetdesk.io", "/api/v1/billing/submit"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !reached || !hadGrant {
		t.Error("tenant admin should pass the gate for remediation")
	}
}

func TestTenantMiddleware_StaleSuperAdminClaimScopedDown(t *testing.T) {
	// A token minted while the user was super-admin outlives the
	// revocation; the pipeline must re-check the directory and fall back
	// to the membership grant.
	f := newGateFixture()

	user := &models.User{ID: f.member, Email: "user@example.com"}
	access, _, err := f.server.auth.GenerateTokenPair(user, &tenant.SessionContext{
		TenantID:     f.acme.ID,
		Workspace:    "acme",
		IsSuperAdmin: true,
	})
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	var reached, superScope bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		if grant, ok := grantFromContext(r.Context()); ok {
			superScope = grant.Scope().IsSuperAdmin()
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
	req.Host = "acme.fleetdesk.io"
	req.Header.Set("Authorization", "Bearer "+access)

	rec := httptest.NewRecorder()
	f.server.authMiddleware(f.server.tenantMiddleware(inner)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !reached {
		t.Fatalf("status = %d, reached = %v, want 200 and true", rec.Code, reached)
	}
	if superScope {
		t.Error("unscoped query filter minted from a stale session flag")
	}
}

func TestTenantMiddleware_StoreErrorFailsClosed(t *testing.T) {
	f := newGateFixture()
	f.store.failWith = errors.New("connection refused")

	var reached bool
	rec := httptest.NewRecorder()
	f.gated(&reached, nil).ServeHTTP(rec, f.request(t, f.member, "acme.fleetdesk.io", "/api/v1/vehicles"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if reached {
		t.Error("handler reached despite store failure")
	}
}

func TestConsoleMiddleware(t *testing.T) {
	f := newGateFixture()
	superAdmin := uuid.New()
	f.store.superAdmins[superAdmin] = true

	var reached bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	handler := f.server.authMiddleware(f.server.consoleMiddleware(inner))

	// Super-admin enters.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, f.request(t, superAdmin, "admin.fleetdesk.io", "/api/v1/platform/tenants"))
	if rec.Code != http.StatusOK || !reached {
		t.Errorf("super-admin: status = %d, reached = %v, want 200 and true", rec.Code, reached)
	}

	// A tenant admin outside the bootstrap tenant is sent back.
	reached = false
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, f.request(t, f.admin, "admin.fleetdesk.io", "/api/v1/platform/tenants"))
	if rec.Code != http.StatusSeeOther {
		t.Errorf("tenant admin: status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
	if reached {
		t.Error("console reached by non-platform admin")
	}
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/billing"
	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
)

type fakeDirectory struct {
	tenants     map[string]*models.Tenant
	memberships map[uuid.UUID][]*models.Membership
	superAdmins map[uuid.UUID]bool
	failWith    error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		tenants:     make(map[string]*models.Tenant),
		memberships: make(map[uuid.UUID][]*models.Membership),
		superAdmins: make(map[uuid.UUID]bool),
	}
}

func (f *fakeDirectory) GetTenantByWorkspace(ctx context.Context, workspace string) (*models.Tenant, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tenants[workspace]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeDirectory) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
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

func (f *fakeDirectory) ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.memberships[userID], nil
}

func (f *fakeDirectory) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	return f.superAdmins[userID], nil
}

func (f *fakeDirectory) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	return nil
}

type fakeSubscriptions struct {
	subs     map[uuid.UUID]*models.Subscription
	failWith error
}

func (f *fakeSubscriptions) GetLatestSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	sub, ok := f.subs[tenantID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sub, nil
}

type fixture struct {
	dir  *fakeDirectory
	subs *fakeSubscriptions
	eval *Evaluator

	acme   *models.Tenant
	admin  uuid.UUID
	member uuid.UUID
	super  uuid.UUID
}

func newFixture() *fixture {
	dir := newFakeDirectory()
	subs := &fakeSubscriptions{subs: make(map[uuid.UUID]*models.Subscription)}

	f := &fixture{
		dir:    dir,
		subs:   subs,
		eval:   NewEvaluator(tenant.NewResolver(dir), subs, "bootstrap"),
		admin:  uuid.New(),
		member: uuid.New(),
		super:  uuid.New(),
	}

	f.acme = &models.Tenant{
		ID:                 uuid.New(),
		Workspace:          "acme",
		IsActive:           true,
		SubscriptionStatus: models.SubscriptionActive,
	}
	dir.tenants["acme"] = f.acme
	dir.memberships[f.admin] = []*models.Membership{
		{UserID: f.admin, TenantID: f.acme.ID, Role: models.RoleAdmin},
	}
	dir.memberships[f.member] = []*models.Membership{
		{UserID: f.member, TenantID: f.acme.ID, Role: models.RoleInstaller},
	}
	dir.superAdmins[f.super] = true

	return f
}

func (f *fixture) sessionFor() *tenant.SessionContext {
	return &tenant.SessionContext{TenantID: f.acme.ID, Workspace: "acme"}
}

func TestAuthorize_Member(t *testing.T) {
	f := newFixture()

	grant, decision, err := f.eval.Authorize(context.Background(), f.member, f.sessionFor())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if grant == nil {
		t.Fatal("grant = nil, want grant")
	}
	if !decision.Allowed {
		t.Error("decision.Allowed = false, want true")
	}
	if grant.IsTenantAdmin() {
		t.Error("IsTenantAdmin = true for installer role")
	}
	if grant.Scope().IsSuperAdmin() {
		t.Error("scope is unconstrained for a plain member")
	}
	if grant.Scope().TenantID() != f.acme.ID {
		t.Errorf("scope tenant = %v, want %v", grant.Scope().TenantID(), f.acme.ID)
	}
}

func TestAuthorize_NonMemberDenied(t *testing.T) {
	f := newFixture()
	stranger := uuid.New()

	grant, decision, err := f.eval.Authorize(context.Background(), stranger, f.sessionFor())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if grant != nil {
		t.Error("grant issued to non-member")
	}
	if decision.Allowed {
		t.Error("decision.Allowed = true for non-member")
	}
	if decision.Reason != "not a member" {
		t.Errorf("Reason = %q, want %q", decision.Reason, "not a member")
	}
}

func TestAuthorize_NoContext(t *testing.T) {
	f := newFixture()

	_, _, err := f.eval.Authorize(context.Background(), f.member, nil)
	if !errors.Is(err, tenant.ErrNoContext) {
		t.Errorf("err = %v, want ErrNoContext", err)
	}

	_, _, err = f.eval.Authorize(context.Background(), f.member, &tenant.SessionContext{})
	if !errors.Is(err, tenant.ErrNoContext) {
		t.Errorf("err = %v, want ErrNoContext", err)
	}
}

func TestAuthorize_SuperAdminBypassesGate(t *testing.T) {
	f := newFixture()
	f.acme.IsActive = false

	sc := &tenant.SessionContext{TenantID: f.acme.ID, Workspace: "acme", IsSuperAdmin: true}
	grant, decision, err := f.eval.Authorize(context.Background(), f.super, sc)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if grant == nil {
		t.Fatal("grant = nil, want grant")
	}
	if !decision.Allowed {
		t.Error("decision.Allowed = false, want true")
	}
	if !grant.IsSuperAdmin() {
		t.Error("IsSuperAdmin = false, want true")
	}
	if !grant.Scope().IsSuperAdmin() {
		t.Error("scope is constrained for a super-admin")
	}
}

func TestAuthorize_StaleSuperAdminFlagNotTrusted(t *testing.T) {
	// The session carries the super-admin flag, but the directory no
	// longer does: the caller must be treated as an ordinary member.
	f := newFixture()

	sc := &tenant.SessionContext{TenantID: f.acme.ID, Workspace: "acme", IsSuperAdmin: true}
	grant, decision, err := f.eval.Authorize(context.Background(), f.member, sc)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if grant == nil {
		t.Fatal("grant = nil, want membership grant")
	}
	if grant.IsSuperAdmin() {
		t.Error("IsSuperAdmin = true on the strength of the cached flag alone")
	}
	if grant.Scope().IsSuperAdmin() {
		t.Error("unscoped query filter minted from a stale session flag")
	}
	if grant.Scope().TenantID() != f.acme.ID {
		t.Errorf("scope tenant = %v, want %v", grant.Scope().TenantID(), f.acme.ID)
	}
	if !decision.Allowed {
		t.Error("decision.Allowed = false, want true via membership")
	}
}

func TestAuthorize_StaleSuperAdminFlagNonMemberDenied(t *testing.T) {
	f := newFixture()
	stranger := uuid.New()

	sc := &tenant.SessionContext{TenantID: f.acme.ID, Workspace: "acme", IsSuperAdmin: true}
	grant, decision, err := f.eval.Authorize(context.Background(), stranger, sc)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if grant != nil {
		t.Error("grant issued to a revoked super-admin with no membership")
	}
	if decision.Allowed {
		t.Error("decision.Allowed = true, want false")
	}
}

func TestAuthorize_SuperAdminCheckErrorFailsClosed(t *testing.T) {
	f := newFixture()
	f.dir.failWith = errors.New("connection refused")

	sc := &tenant.SessionContext{TenantID: f.acme.ID, Workspace: "acme", IsSuperAdmin: true}
	grant, _, err := f.eval.Authorize(context.Background(), f.super, sc)
	if err == nil {
		t.Error("err = nil, want store error")
	}
	if grant != nil {
		t.Error("grant issued despite directory failure")
	}
}

func TestAuthorize_ExpiredBlocksMemberNotAdmin(t *testing.T) {
	f := newFixture()
	end := time.Now().AddDate(0, 0, -2)
	f.subs.subs[f.acme.ID] = &models.Subscription{
		ID:               uuid.New(),
		TenantID:         f.acme.ID,
		Status:           models.PaymentActive,
		BillingPeriodEnd: &end,
	}

	grant, decision, err := f.eval.Authorize(context.Background(), f.member, f.sessionFor())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if grant != nil {
		t.Error("grant issued despite expired subscription")
	}
	if decision.State != billing.StateExpired {
		t.Errorf("State = %v, want %v", decision.State, billing.StateExpired)
	}

	grant, decision, err = f.eval.Authorize(context.Background(), f.admin, f.sessionFor())
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if grant == nil {
		t.Fatal("admin grant = nil, want grant for remediation")
	}
	if !grant.IsTenantAdmin() {
		t.Error("IsTenantAdmin = false, want true")
	}
	if decision.State != billing.StateExpired {
		t.Errorf("State = %v, want %v", decision.State, billing.StateExpired)
	}
}

func TestAuthorize_StoreErrorFailsClosed(t *testing.T) {
	f := newFixture()
	f.subs.failWith = errors.New("connection refused")

	grant, _, err := f.eval.Authorize(context.Background(), f.member, f.sessionFor())
	if err == nil {
		t.Error("err = nil, want store error")
	}
	if grant != nil {
		t.Error("grant issued despite store error")
	}
}

func TestConsoleDecision_SuperAdmin(t *testing.T) {
	f := newFixture()

	d, err := f.eval.ConsoleDecision(context.Background(), f.super)
	if err != nil {
		t.Fatalf("ConsoleDecision failed: %v", err)
	}
	if !d.Allowed {
		t.Error("Allowed = false, want true for super-admin")
	}
}

func TestConsoleDecision_BootstrapAdmin(t *testing.T) {
	f := newFixture()
	bootstrap := &models.Tenant{ID: uuid.New(), Workspace: "bootstrap", IsActive: true}
	f.dir.tenants["bootstrap"] = bootstrap

	bootstrapAdmin := uuid.New()
	f.dir.memberships[bootstrapAdmin] = []*models.Membership{
		{UserID: bootstrapAdmin, TenantID: bootstrap.ID, Role: models.RoleAdmin},
	}

	d, err := f.eval.ConsoleDecision(context.Background(), bootstrapAdmin)
	if err != nil {
		t.Fatalf("ConsoleDecision failed: %v", err)
	}
	if !d.Allowed {
		t.Error("Allowed = false, want true for bootstrap tenant admin")
	}
}

func TestConsoleDecision_OrdinaryUserRedirected(t *testing.T) {
	f := newFixture()

	d, err := f.eval.ConsoleDecision(context.Background(), f.admin)
	if err != nil {
		t.Fatalf("ConsoleDecision failed: %v", err)
	}
	if d.Allowed {
		t.Error("Allowed = true for tenant admin outside bootstrap tenant")
	}
	if d.RedirectTo != "/" {
		t.Errorf("RedirectTo = %q, want %q", d.RedirectTo, "/")
	}
}

func TestConsoleDecision_MissingBootstrapTenant(t *testing.T) {
	// The bootstrap workspace not existing must not error; ordinary users
	// are still just redirected.
	dir := newFakeDirectory()
	subs := &fakeSubscriptions{subs: make(map[uuid.UUID]*models.Subscription)}
	eval := NewEvaluator(tenant.NewResolver(dir), subs, "ghost")

	d, err := eval.ConsoleDecision(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ConsoleDecision failed: %v", err)
	}
	if d.Allowed {
		t.Error("Allowed = true, want false")
	}
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
)

// ========== Tenant handlers (product surface) ==========

// HandleCurrentTenant returns the resolved tenant together with its
// gating state, so the client can show remaining-time information.
func (s *RESTServer) HandleCurrentTenant(w http.ResponseWriter, r *http.Request) {
	sc, err := tenant.FromContext(r.Context())
	if err != nil {
		s.respondRedirect(w, "/select-workspace", "no workspace")
		return
	}

	t, err := s.resolver.Tenant(r.Context(), sc.TenantID)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "workspace not found")
			return
		}
		s.failClosed(w, err)
		return
	}

	resp := map[string]interface{}{
		"tenant": t,
	}
	if decision, ok := gateDecisionFromContext(r.Context()); ok {
		resp["access"] = decision
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// HandleTenantSettings returns account settings. Stays reachable when
// the subscription gate blocks the tenant, so members can see why
// access is restricted.
func (s *RESTServer) HandleTenantSettings(w http.ResponseWriter, r *http.Request) {
	sc, err := tenant.FromContext(r.Context())
	if err != nil {
		s.respondRedirect(w, "/select-workspace", "no workspace")
		return
	}

	t, err := s.resolver.Tenant(r.Context(), sc.TenantID)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "workspace not found")
			return
		}
		s.failClosed(w, err)
		return
	}

	resp := map[string]interface{}{
		"name":                t.Name,
		"workspace":           t.Workspace,
		"is_active":           t.IsActive,
		"subscription_status": t.SubscriptionStatus,
		"trial_ends_at":       t.TrialEndsAt,
	}
	if decision, ok := gateDecisionFromContext(r.Context()); ok {
		resp["access"] = decision
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// ========== Membership handlers ==========

// HandleListUsers lists users of the resolved tenant
func (s *RESTServer) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	limit, offset := parsePagination(r)

	users, total, err := s.store.ListUsersByTenant(r.Context(), grant.Scope(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// HandleAddMember adds a user to the resolved tenant. Only tenant
// admins may manage members. The tenant id comes from the grant, never
// from the request.
func (s *RESTServer) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	if !grant.IsTenantAdmin() {
		s.respondRedirect(w, "/", "admin required")
		return
	}

	var req struct {
		Email string `json:"email" validate:"required,email"`
		Role  string `json:"role" validate:"required,oneof=admin manager coordinator installer accountant"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m := &models.Membership{
		UserID:   user.ID,
		TenantID: grant.TenantID(),
		Role:     models.Role(req.Role),
	}

	if err := s.store.CreateMembership(r.Context(), m); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "user is already a member")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, m)
}

// ========== Audit event handlers ==========

// HandleListEvents lists audit events visible under the caller's scope
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	limit, offset := parsePagination(r)

	filters := storage.EventLogFilters{}
	if t := r.URL.Query().Get("type"); t != "" {
		eventType := models.EventType(t)
		filters.Type = &eventType
	}
	if l := r.URL.Query().Get("level"); l != "" {
		level := models.EventLevel(l)
		filters.Level = &level
	}

	events, total, err := s.store.ListEventLogs(r.Context(), grant.Scope(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// ========== Billing handlers (product surface) ==========

// HandleSubmitPayment records a payment proof as a pending subscription
// and announces it. This is the remediation path for a blocked tenant,
// so a tenant admin reaches it even when the gate denies everyone else.
func (s *RESTServer) HandleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	if !grant.IsTenantAdmin() {
		s.respondRedirect(w, "/", "admin required")
		return
	}

	var req struct {
		Amount           float64 `json:"amount" validate:"required"`
		Currency         string  `json:"currency" validate:"required,min=3,max=3"`
		PaymentReference string  `json:"payment_reference" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub := &models.Subscription{
		TenantID:         grant.TenantID(),
		Amount:           req.Amount,
		Currency:         req.Currency,
		Status:           models.PaymentPending,
		PaymentReference: req.PaymentReference,
	}

	if err := s.store.CreateSubscription(r.Context(), sub); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tenantID := sub.TenantID
	if err := s.store.CreateEventLog(r.Context(), &models.EventLog{
		TenantID:    &tenantID,
		Type:        models.EventTypeBillingSubmitted,
		Level:       models.EventLevelInfo,
		Description: "Payment proof submitted",
		Details: models.Variables{
			"subscription_id": sub.ID.String(),
			"reference":       sub.PaymentReference,
		},
	}); err != nil {
		log.Error().Err(err).Msg("Failed to write billing audit event")
	}

	s.publisher.BillingSubmitted(sub)

	s.respondJSON(w, http.StatusCreated, sub)
}

// HandleListSubscriptions lists the tenant's subscription history
func (s *RESTServer) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	limit, offset := parsePagination(r)

	subs, total, err := s.store.ListSubscriptions(r.Context(), grant.TenantID(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"total":         total,
	})
}

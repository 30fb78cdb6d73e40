package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
	"github.com/fleetdesk/fleetdesk-server/pkg/crypto"
)

// ========== Platform console handlers ==========

// HandlePlatformListTenants lists all tenants
func (s *RESTServer) HandlePlatformListTenants(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	tenants, total, err := s.store.ListTenants(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"total":   total,
	})
}

// HandlePlatformCreateTenant provisions a tenant: the tenant row with
// its trial window, the admin user, and the primary-admin membership in
// one transaction.
func (s *RESTServer) HandlePlatformCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name" validate:"required,min=3,max=100"`
		Workspace     string `json:"workspace" validate:"required,min=3,max=63"`
		AdminEmail    string `json:"admin_email" validate:"required,email"`
		AdminPassword string `json:"admin_password" validate:"required,min=8"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	trialEnds := time.Now().Add(s.config.Tenancy.TrialWindow)
	t := &models.Tenant{
		Name:               req.Name,
		Workspace:          req.Workspace,
		IsActive:           true,
		SubscriptionStatus: models.SubscriptionTrial,
		TrialEndsAt:        &trialEnds,
	}

	hash, err := crypto.HashPassword(req.AdminPassword)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	tx, err := s.store.BeginTx(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback()

	if err := tx.CreateTenant(r.Context(), t); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "workspace already taken")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	admin, err := tx.GetUserByEmail(r.Context(), req.AdminEmail)
	if err == storage.ErrNotFound {
		admin = &models.User{
			Email:        req.AdminEmail,
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := tx.CreateUser(r.Context(), admin); err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m := &models.Membership{
		UserID:         admin.ID,
		TenantID:       t.ID,
		Role:           models.RoleAdmin,
		IsPrimaryAdmin: true,
	}
	if err := tx.CreateMembership(r.Context(), m); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tenantID := t.ID
	if err := tx.CreateEventLog(r.Context(), &models.EventLog{
		TenantID:    &tenantID,
		Type:        models.EventTypeTenantCreated,
		Level:       models.EventLevelInfo,
		Description: "Tenant provisioned",
		Details: models.Variables{
			"workspace": t.Workspace,
		},
	}); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := tx.Commit(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, t)
}

// HandlePlatformGetTenant gets a tenant with its latest subscription
func (s *RESTServer) HandlePlatformGetTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	t, err := s.store.GetTenant(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{"tenant": t}

	sub, err := s.store.GetLatestSubscription(r.Context(), id)
	if err == nil {
		resp["subscription"] = sub
	} else if err != storage.ErrNotFound {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// HandlePlatformActivateTenant sets the tenant active flag
func (s *RESTServer) HandlePlatformActivateTenant(w http.ResponseWriter, r *http.Request) {
	s.setTenantActive(w, r, true)
}

// HandlePlatformDeactivateTenant clears the tenant active flag
func (s *RESTServer) HandlePlatformDeactivateTenant(w http.ResponseWriter, r *http.Request) {
	s.setTenantActive(w, r, false)
}

func (s *RESTServer) setTenantActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	t, err := s.store.GetTenant(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	t.IsActive = active
	if !active {
		t.SubscriptionStatus = models.SubscriptionInactive
	}

	if err := s.store.UpdateTenant(r.Context(), t); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	eventType := models.EventTypeTenantDeactivated
	if active {
		eventType = models.EventTypeTenantActivated
	}
	tenantID := t.ID
	if err := s.store.CreateEventLog(r.Context(), &models.EventLog{
		TenantID:    &tenantID,
		Type:        eventType,
		Level:       models.EventLevelInfo,
		Description: "Tenant active flag changed by platform admin",
	}); err != nil {
		log.Error().Err(err).Msg("Failed to write tenant audit event")
	}

	if active {
		s.publisher.TenantActivated(t.ID)
	}

	s.respondJSON(w, http.StatusOK, t)
}

// HandlePlatformListSubscriptions lists a tenant's subscription history
func (s *RESTServer) HandlePlatformListSubscriptions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	limit, offset := parsePagination(r)

	subs, total, err := s.store.ListSubscriptions(r.Context(), id, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"total":         total,
	})
}

// HandlePlatformApproveSubscription approves a pending subscription:
// the record is settled with its billing period and the tenant is
// activated, in one transaction. The gate picks the change up on the
// next request since gating always re-reads fresh rows.
func (s *RESTServer) HandlePlatformApproveSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	// The body is optional; a bare approval defaults to one month.
	var req struct {
		PeriodMonths int `json:"period_months"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PeriodMonths <= 0 {
		req.PeriodMonths = 1
	}

	tx, err := s.store.BeginTx(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer tx.Rollback()

	sub, err := tx.GetSubscription(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "subscription not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now()
	end := now.AddDate(0, req.PeriodMonths, 0)
	sub.Status = models.PaymentActive
	sub.BillingPeriodStart = &now
	sub.BillingPeriodEnd = &end

	if err := tx.UpdateSubscription(r.Context(), sub); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	t, err := tx.GetTenant(r.Context(), sub.TenantID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	wasInactive := !t.IsActive
	t.IsActive = true
	t.SubscriptionStatus = models.SubscriptionActive
	if err := tx.UpdateTenant(r.Context(), t); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tenantID := t.ID
	if err := tx.CreateEventLog(r.Context(), &models.EventLog{
		TenantID:    &tenantID,
		Type:        models.EventTypeBillingApproved,
		Level:       models.EventLevelInfo,
		Description: "Subscription approved by platform admin",
		Details: models.Variables{
			"subscription_id": sub.ID.String(),
		},
	}); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := tx.Commit(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.publisher.BillingApproved(sub)
	if wasInactive {
		s.publisher.TenantActivated(t.ID)
	}

	s.respondJSON(w, http.StatusOK, sub)
}

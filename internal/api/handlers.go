package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/auth"
	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
)

// ========== Auth handlers ==========

// HandleLogin handles user login. The resolved tenant context is
// embedded in the issued access token as the session context cache.
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email" validate:"required,email"`
		Password  string `json:"password" validate:"required"`
		Workspace string `json:"workspace"`
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
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !user.IsActive {
		s.respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	sc, err := s.sessionContextForLogin(r, user, req.Workspace)
	if err != nil {
		if errors.Is(err, tenant.ErrUnknownWorkspace) {
			s.respondError(w, http.StatusNotFound, "workspace not found")
			return
		}
		s.failClosed(w, err)
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user, sc)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		log.Error().Err(err).Msg("Failed to record login time")
	}

	userID := user.ID
	event := &models.EventLog{
		UserID:      &userID,
		Type:        models.EventTypeLogin,
		Level:       models.EventLevelInfo,
		Description: "User signed in",
	}
	if sc != nil && sc.TenantID != uuid.Nil {
		tenantID := sc.TenantID
		event.TenantID = &tenantID
	}
	if err := s.store.CreateEventLog(r.Context(), event); err != nil {
		log.Error().Err(err).Msg("Failed to write login audit event")
	}

	resp := map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	}
	if sc != nil {
		resp["workspace"] = sc.Workspace
		resp["is_super_admin"] = sc.IsSuperAdmin
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// sessionContextForLogin derives the initial session tenant context: an
// explicit or host-derived workspace wins, otherwise the user's first
// membership. A user with no resolvable tenant still signs in and is
// routed to workspace selection by the client.
func (s *RESTServer) sessionContextForLogin(r *http.Request, user *models.User, explicit string) (*tenant.SessionContext, error) {
	isSuper, err := s.resolver.IsSuperAdmin(r.Context(), user.ID)
	if err != nil {
		return nil, err
	}

	var sc *tenant.SessionContext

	if workspace := tenant.ResolveWorkspace(r.Host, explicit); workspace != "" {
		sc, err = s.resolver.Resolve(r.Context(), workspace, nil)
		if err != nil {
			if errors.Is(err, tenant.ErrUnknownWorkspace) && isSuper {
				// Super-admins may sign in from any host.
				return &tenant.SessionContext{IsSuperAdmin: true}, nil
			}
			return nil, err
		}
	} else {
		memberships, err := s.resolver.Memberships(r.Context(), user.ID)
		if err != nil {
			return nil, err
		}
		if len(memberships) > 0 {
			t, err := s.resolver.Tenant(r.Context(), memberships[0].TenantID)
			if err != nil {
				return nil, err
			}
			sc = &tenant.SessionContext{TenantID: t.ID, Workspace: t.Workspace}
		}
	}

	if sc == nil {
		if !isSuper {
			return nil, nil
		}
		sc = &tenant.SessionContext{}
	}
	sc.IsSuperAdmin = isSuper

	return sc, nil
}

// HandleRefresh handles token refresh. The tenant context is re-derived
// rather than copied from the old token, so a refresh never extends a
// stale cache.
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
		Workspace    string `json:"workspace"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := s.auth.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil || !user.IsActive {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	sc, err := s.sessionContextForLogin(r, user, req.Workspace)
	if err != nil {
		s.failClosed(w, err)
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user, sc)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleGetCurrentUser gets the signed-in user with their memberships
func (s *RESTServer) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/login", "authentication required")
		return
	}

	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	memberships, err := s.resolver.Memberships(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":           user,
		"memberships":    memberships,
		"is_super_admin": claims.IsSuperAdmin,
	})
}

// ========== Service handlers ==========

// HandleHealth health check
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": s.config.Server.Name,
		"version": s.config.Server.Version,
	})
}

// HandleRoot root handler
func (s *RESTServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "FleetDesk Server",
		"version": s.config.Server.Version,
		"health":  "/api/v1/health",
	})
}

// HandleAbout informational page, reachable even when blocked
func (s *RESTServer) HandleAbout(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "FleetDesk",
		"support": "support@fleetdesk.example",
	})
}

// ========== Helper functions ==========

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondRedirect sends the caller to another surface instead of
// rejecting the request, so restricted resources are never confirmed to
// exist.
func (s *RESTServer) respondRedirect(w http.ResponseWriter, target, reason string) {
	w.Header().Set("Location", target)
	s.respondJSON(w, http.StatusSeeOther, map[string]string{
		"redirect": target,
		"reason":   reason,
	})
}

// tenantForWrite picks the tenant a super-admin write lands in. The
// resolved workspace supplies one; otherwise the request body must name
// it. Writes the error response and returns false when neither does.
func (s *RESTServer) tenantForWrite(w http.ResponseWriter, grant *auth.Grant, explicit string) (uuid.UUID, bool) {
	tenantID := grant.TenantID()
	if explicit != "" {
		id, err := uuid.Parse(explicit)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid tenant id")
			return uuid.Nil, false
		}
		tenantID = id
	}
	if tenantID == uuid.Nil {
		s.respondError(w, http.StatusBadRequest, "tenant id required")
		return uuid.Nil, false
	}
	return tenantID, true
}

// parsePagination reads limit/offset query parameters
func parsePagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

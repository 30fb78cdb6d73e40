package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
)

// Vehicle handlers are a downstream consumer of the gating pipeline:
// every read and write goes through the scope minted by the grant.

// HandleListVehicles lists vehicles
func (s *RESTServer) HandleListVehicles(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	limit, offset := parsePagination(r)

	vehicles, total, err := s.store.ListVehicles(r.Context(), grant.Scope(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"vehicles": vehicles,
		"total":    total,
	})
}

// HandleCreateVehicle creates a vehicle
func (s *RESTServer) HandleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	var req struct {
		Plate      string `json:"plate" validate:"required,max=16"`
		Make       string `json:"make" validate:"required"`
		Model      string `json:"model"`
		DriverName string `json:"driver_name"`
		// Only meaningful for super-admins, whose scope does not name a
		// tenant by itself.
		TenantID string `json:"tenant_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := &models.Vehicle{
		Plate:      req.Plate,
		Make:       req.Make,
		Model:      req.Model,
		Status:     models.VehicleAvailable,
		DriverName: req.DriverName,
	}

	if grant.IsSuperAdmin() {
		tenantID, ok := s.tenantForWrite(w, grant, req.TenantID)
		if !ok {
			return
		}
		v.TenantID = tenantID
	}

	if err := s.store.CreateVehicle(r.Context(), grant.Scope(), v); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "vehicle already exists")
			return
		}
		if err == storage.ErrInvalidData {
			s.respondError(w, http.StatusBadRequest, "tenant id required")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, v)
}

// HandleGetVehicle gets a vehicle
func (s *RESTServer) HandleGetVehicle(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	v, err := s.store.GetVehicle(r.Context(), grant.Scope(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, v)
}

// HandleUpdateVehicle updates a vehicle
func (s *RESTServer) HandleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	v, err := s.store.GetVehicle(r.Context(), grant.Scope(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		Plate      string `json:"plate"`
		Make       string `json:"make"`
		Model      string `json:"model"`
		Status     string `json:"status" validate:"oneof=available on_job maintenance retired"`
		DriverName string `json:"driver_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Plate != "" {
		v.Plate = req.Plate
	}
	if req.Make != "" {
		v.Make = req.Make
	}
	if req.Model != "" {
		v.Model = req.Model
	}
	if req.Status != "" {
		v.Status = models.VehicleStatus(req.Status)
	}
	if req.DriverName != "" {
		v.DriverName = req.DriverName
	}

	if err := s.store.UpdateVehicle(r.Context(), grant.Scope(), v); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, v)
}

// HandleDeleteVehicle deletes a vehicle
func (s *RESTServer) HandleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	if err := s.store.DeleteVehicle(r.Context(), grant.Scope(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
)

// HandleListInvoices lists invoices
func (s *RESTServer) HandleListInvoices(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	limit, offset := parsePagination(r)

	invoices, total, err := s.store.ListInvoices(r.Context(), grant.Scope(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"total":    total,
	})
}

// HandleCreateInvoice creates an invoice
func (s *RESTServer) HandleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	var req struct {
		Number       string  `json:"number" validate:"required"`
		CustomerName string  `json:"customer_name" validate:"required"`
		Amount       float64 `json:"amount" validate:"required"`
		Currency     string  `json:"currency" validate:"required,min=3,max=3"`
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

	inv := &models.Invoice{
		Number:       req.Number,
		CustomerName: req.CustomerName,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       models.InvoiceDraft,
	}

	if grant.IsSuperAdmin() {
		tenantID, ok := s.tenantForWrite(w, grant, req.TenantID)
		if !ok {
			return
		}
		inv.TenantID = tenantID
	}

	if err := s.store.CreateInvoice(r.Context(), grant.Scope(), inv); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "invoice number already exists")
			return
		}
		if err == storage.ErrInvalidData {
			s.respondError(w, http.StatusBadRequest, "tenant id required")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, inv)
}

// HandleGetInvoice gets an invoice
func (s *RESTServer) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	inv, err := s.store.GetInvoice(r.Context(), grant.Scope(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "invoice not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, inv)
}

// HandleUpdateInvoice updates an invoice's status fields
func (s *RESTServer) HandleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	inv, err := s.store.GetInvoice(r.Context(), grant.Scope(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "invoice not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		CustomerName string  `json:"customer_name"`
		Amount       float64 `json:"amount"`
		Status       string  `json:"status" validate:"oneof=draft issued paid voided"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.CustomerName != "" {
		inv.CustomerName = req.CustomerName
	}
	if req.Amount != 0 {
		inv.Amount = req.Amount
	}
	if req.Status != "" {
		status := models.InvoiceStatus(req.Status)
		if status == models.InvoiceIssued && inv.IssuedAt == nil {
			now := time.Now()
			inv.IssuedAt = &now
		}
		inv.Status = status
	}

	if err := s.store.UpdateInvoice(r.Context(), grant.Scope(), inv); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, inv)
}

// HandleDeleteInvoice deletes an invoice
func (s *RESTServer) HandleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	grant, ok := grantFromContext(r.Context())
	if !ok {
		s.respondRedirect(w, "/restricted", "access restricted")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	if err := s.store.DeleteInvoice(r.Context(), grant.Scope(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "invoice not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

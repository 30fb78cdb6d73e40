package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.With(httprate.LimitByIP(
			s.config.RateLimit.LoginRequests,
			s.config.RateLimit.LoginWindow,
		)).Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Product surface: resolution + gating pipeline applies
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.tenantMiddleware)

		r.Get("/tenant", s.HandleCurrentTenant)
		r.Get("/tenant/settings", s.HandleTenantSettings)
		r.Get("/about", s.HandleAbout)

		// Billing remediation, reachable by a tenant admin even while
		// the tenant is blocked for everyone else
		r.Route("/billing", func(r chi.Router) {
			r.Post("/submit", s.HandleSubmitPayment)
			r.Get("/subscriptions", s.HandleListSubscriptions)
		})

		// Users / memberships
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleAddMember)
			r.Get("/me", s.HandleGetCurrentUser)
		})

		// Vehicles
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", s.HandleListVehicles)
			r.Post("/", s.HandleCreateVehicle)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetVehicle)
				r.Put("/", s.HandleUpdateVehicle)
				r.Delete("/", s.HandleDeleteVehicle)
			})
		})

		// Invoices
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", s.HandleListInvoices)
			r.Post("/", s.HandleCreateInvoice)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetInvoice)
				r.Put("/", s.HandleUpdateInvoice)
				r.Delete("/", s.HandleDeleteInvoice)
			})
		})

		// Audit events
		r.Get("/events", s.HandleListEvents)
	})

	// Platform console: restricted to super-admins and bootstrap-tenant
	// admins, never subject to workspace resolution
	r.Route("/platform", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.consoleMiddleware)

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", s.HandlePlatformListTenants)
			r.Post("/", s.HandlePlatformCreateTenant)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandlePlatformGetTenant)
				r.Post("/activate", s.HandlePlatformActivateTenant)
				r.Post("/deactivate", s.HandlePlatformDeactivateTenant)
				r.Get("/subscriptions", s.HandlePlatformListSubscriptions)
			})
		})

		r.Post("/subscriptions/{id}/approve", s.HandlePlatformApproveSubscription)
	})
}

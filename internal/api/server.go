package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/fleetdesk/fleetdesk-server/internal/auth"
	"github.com/fleetdesk/fleetdesk-server/internal/config"
	"github.com/fleetdesk/fleetdesk-server/internal/server"
	"github.com/fleetdesk/fleetdesk-server/internal/storage"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
	"github.com/fleetdesk/fleetdesk-server/internal/validation"
)

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	auth      *auth.JWTManager
	resolver  *tenant.Resolver
	evaluator *auth.Evaluator
	validator *validation.Validator
	publisher *server.Publisher
	router    chi.Router
	server    *http.Server
}

// NewRESTServer creates a new REST API server. publisher may be nil when
// no broker is configured.
func NewRESTServer(cfg *config.Config, store storage.Store, publisher *server.Publisher) *RESTServer {
	resolver := tenant.NewResolver(store)

	s := &RESTServer{
		config:    cfg,
		store:     store,
		auth:      auth.NewJWTManager(&cfg.JWT),
		resolver:  resolver,
		evaluator: auth.NewEvaluator(resolver, store, cfg.Tenancy.BootstrapTenant),
		validator: validation.NewValidator(),
		publisher: publisher,
		router:    chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the authentication middleware. Missing or invalid
// credentials redirect to sign-in rather than erroring.
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondRedirect(w, "/login", "authentication required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondRedirect(w, "/login", "authentication required")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondRedirect(w, "/login", "session expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

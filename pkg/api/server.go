package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verenigingen/chapterkit/pkg/audit"
	"github.com/verenigingen/chapterkit/pkg/directory"
	"github.com/verenigingen/chapterkit/pkg/httputil"
	"github.com/verenigingen/chapterkit/pkg/middleware"
	"github.com/verenigingen/chapterkit/pkg/observability"
	"github.com/verenigingen/chapterkit/pkg/permissions"
	"github.com/verenigingen/chapterkit/pkg/rolesync"
	"github.com/verenigingen/chapterkit/pkg/secaudit"
	"github.com/verenigingen/chapterkit/pkg/swagger"
)

// Deps carries everything the API server needs. AuditLog, Metrics and
// RateLimit may be nil.
type Deps struct {
	Store     *directory.Store
	Resolver  *permissions.Resolver
	Builder   *permissions.QueryBuilder
	Evaluator *permissions.Evaluator
	Syncer    *rolesync.Syncer
	Validator *secaudit.Validator
	AuditLog  audit.Logger
	Logger    *observability.Logger
	Metrics   *observability.Metrics

	// AdminToken gates every route. Empty keeps the surface closed.
	AdminToken string

	// RateLimit wraps the router when set.
	RateLimit func(http.Handler) http.Handler
}

// Server is the admin API for the permission engine. Every route
// requires the admin bearer token; the engine itself is consumed as a
// library, the HTTP surface only exposes operations and introspection.
type Server struct {
	router *mux.Router
	deps   Deps
}

// NewServer creates the admin API server and registers all routes.
func NewServer(deps Deps) *Server {
	if deps.AuditLog == nil {
		deps.AuditLog = audit.NopLogger()
	}
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()

	auth := middleware.NewAdminAuth(s.deps.AdminToken)
	admin.Use(auth.Handler)

	NewSyncHandlers(s.deps.Syncer, s.deps.Logger).RegisterRoutes(admin)
	NewValidationHandlers(s.deps.Validator, s.deps.Logger).RegisterRoutes(admin)
	NewIdentityHandlers(s.deps.Store, s.deps.Resolver, s.deps.Builder, s.deps.Evaluator).RegisterRoutes(admin)
	NewAuditHandlers(s.deps.AuditLog).RegisterRoutes(admin)
	swagger.NewHandlers().RegisterRoutes(admin)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.deps.Logger),
		httputil.RecoveryMiddleware(s.deps.Logger),
		httputil.MaxBytesMiddleware(1 << 20),
	}
	if s.deps.Metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}
	if s.deps.RateLimit != nil {
		chain = append(chain, s.deps.RateLimit)
	}
	return httputil.Chain(chain...)(s.router)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

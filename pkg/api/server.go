package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tidewater/agencyhub/pkg/auth"
	"github.com/tidewater/agencyhub/pkg/clients"
	"github.com/tidewater/agencyhub/pkg/httputil"
	"github.com/tidewater/agencyhub/pkg/memory"
	"github.com/tidewater/agencyhub/pkg/observability"
	"github.com/tidewater/agencyhub/pkg/rbac"
)

// Deps are the collaborators the API server composes. Everything is
// injected; the server holds no globals.
type Deps struct {
	Authn       auth.Authenticator
	Store       rbac.Store
	Permissions *rbac.PermissionService
	Access      *rbac.ClientAccess
	Middleware  *rbac.Middleware
	Clients     clients.Store
	Memory      *memory.Service
	Injector    *memory.Injector
	DB          *sql.DB
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
}

// Server is the HTTP API server
type Server struct {
	router *mux.Router
	deps   Deps
	logger *observability.Logger
}

// NewServer creates the API server and wires all routes
func NewServer(deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		logger: deps.Logger.WithField("component", "api"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.RecoveryMiddleware(s.deps.Logger))
	s.router.Use(httputil.LoggingMiddleware(s.deps.Logger))

	s.router.HandleFunc("/healthz", s.health).Methods("GET")
	if s.deps.Registry != nil {
		s.router.Handle("/metrics", observability.Handler(s.deps.Registry)).Methods("GET")
	}

	mw := s.deps.Middleware
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Client routes
	clientHandlers := newClientHandlers(s.deps)
	api.Handle("/clients",
		mw.WithPermission(rbac.ResourceClients, rbac.ActionRead)(http.HandlerFunc(clientHandlers.list)),
	).Methods("GET")
	api.Handle("/clients",
		mw.WithPermission(rbac.ResourceClients, rbac.ActionWrite)(http.HandlerFunc(clientHandlers.create)),
	).Methods("POST")
	api.Handle("/clients/{clientID}",
		mw.WithPermission(rbac.ResourceClients, rbac.ActionRead)(http.HandlerFunc(clientHandlers.get)),
	).Methods("GET")
	api.Handle("/clients/{clientID}",
		mw.WithPermission(rbac.ResourceClients, rbac.ActionWrite)(http.HandlerFunc(clientHandlers.update)),
	).Methods("PUT")
	api.Handle("/clients/{clientID}",
		mw.WithPermission(rbac.ResourceClients, rbac.ActionWrite)(http.HandlerFunc(clientHandlers.delete)),
	).Methods("DELETE")

	// Client access grant administration (owner only)
	grantHandlers := newGrantHandlers(s.deps)
	api.Handle("/users/{userID}/client-access",
		mw.WithOwnerOnly()(http.HandlerFunc(grantHandlers.list)),
	).Methods("GET")
	api.Handle("/users/{userID}/client-access",
		mw.WithOwnerOnly()(http.HandlerFunc(grantHandlers.upsert)),
	).Methods("PUT")
	api.Handle("/users/{userID}/client-access/{clientID}",
		mw.WithOwnerOnly()(http.HandlerFunc(grantHandlers.revoke)),
	).Methods("DELETE")

	// Memory routes
	memoryHandlers := newMemoryHandlers(s.deps)
	api.Handle("/memory",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionRead)(http.HandlerFunc(memoryHandlers.list)),
	).Methods("GET")
	api.Handle("/memory",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionWrite)(http.HandlerFunc(memoryHandlers.add)),
	).Methods("POST")
	api.Handle("/memory",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionWrite)(http.HandlerFunc(memoryHandlers.delete)),
	).Methods("DELETE")
	api.Handle("/memory/search",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionRead)(http.HandlerFunc(memoryHandlers.search)),
	).Methods("POST")
	api.Handle("/memory/inject",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionRead)(http.HandlerFunc(memoryHandlers.inject)),
	).Methods("POST")
	api.Handle("/memory/stats",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionRead)(http.HandlerFunc(memoryHandlers.stats)),
	).Methods("GET")
	api.Handle("/memory/entities",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionRead)(http.HandlerFunc(memoryHandlers.entities)),
	).Methods("GET")
	api.Handle("/memory/{memoryID}",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionRead)(http.HandlerFunc(memoryHandlers.get)),
	).Methods("GET")
	api.Handle("/memory/{memoryID}",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionWrite)(http.HandlerFunc(memoryHandlers.update)),
	).Methods("PUT")
	api.Handle("/memory/{memoryID}/history",
		mw.WithPermission(rbac.ResourceMemory, rbac.ActionRead)(http.HandlerFunc(memoryHandlers.history)),
	).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router so the composition root can
// mount extra routes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// health reports liveness and database reachability
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	httputil.WriteJSON(w, code, status)
}

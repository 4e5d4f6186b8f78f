package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inkwell-cms/inkwell/pkg/apikeys"
	"github.com/inkwell-cms/inkwell/pkg/guard"
	"github.com/inkwell-cms/inkwell/pkg/httputil"
	"github.com/inkwell-cms/inkwell/pkg/observability"
	"github.com/inkwell-cms/inkwell/pkg/sites"
	"github.com/inkwell-cms/inkwell/pkg/workflow"
)

// Server wires the HTTP surface: every /api/v1 route sits behind the guard
type Server struct {
	router      *mux.Router
	gate        *guard.Guard
	keys        apikeys.Store
	generator   *apikeys.Generator
	siteStore   *sites.Store
	memberships sites.MembershipStore
	engine      *workflow.Engine
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewServer creates the API server and registers all routes
func NewServer(
	gate *guard.Guard,
	keys apikeys.Store,
	generator *apikeys.Generator,
	siteStore *sites.Store,
	memberships sites.MembershipStore,
	engine *workflow.Engine,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		gate:        gate,
		keys:        keys,
		generator:   generator,
		siteStore:   siteStore,
		memberships: memberships,
		engine:      engine,
		logger:      logger,
		metrics:     metrics,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.gate.Middleware)

	// Sites
	api.HandleFunc("/sites/{siteID}", s.getSite).Methods("GET")

	// Members
	api.HandleFunc("/sites/{siteID}/members", s.listMembers).Methods("GET")
	api.HandleFunc("/sites/{siteID}/members", s.addMember).Methods("POST")
	api.HandleFunc("/sites/{siteID}/members/{subjectID}", s.updateMember).Methods("PUT")
	api.HandleFunc("/sites/{siteID}/members/{subjectID}", s.removeMember).Methods("DELETE")
	api.HandleFunc("/sites/{siteID}/ownership", s.transferOwnership).Methods("POST")

	// API keys
	api.HandleFunc("/sites/{siteID}/keys", s.listKeys).Methods("GET")
	api.HandleFunc("/sites/{siteID}/keys", s.createKey).Methods("POST")
	api.HandleFunc("/sites/{siteID}/keys/{keyID}", s.getKey).Methods("GET")
	api.HandleFunc("/sites/{siteID}/keys/{keyID}/status", s.updateKeyStatus).Methods("PUT")
	api.HandleFunc("/sites/{siteID}/keys/{keyID}", s.deleteKey).Methods("DELETE")

	// Content workflow
	api.HandleFunc("/sites/{siteID}/workflow/transitions", s.validateTransition).Methods("POST")
}

// writeGuardError translates guard errors into responses; anything else is
// an internal failure.
func (s *Server) writeGuardError(w http.ResponseWriter, err error) {
	if gateErr, ok := err.(*guard.Error); ok {
		httputil.WriteErrorMessage(w, gateErr.HTTPStatus(), gateErr.Message)
		return
	}
	s.logger.WithError(err).Error("request failed")
	httputil.WriteInternalError(w, err)
}

// Package server exposes the HTTP surface: the handshake endpoints, the
// response ingestion endpoints and the operational routes.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recruithub/internal/auth"
	"recruithub/internal/common/errors"
	"recruithub/internal/common/logger"
	"recruithub/internal/connect"
	"recruithub/internal/ingest"
	"recruithub/internal/models"
)

// PrincipalResolver turns a session token into a principal; nil means
// anonymous.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*models.Principal, error)
}

var _ PrincipalResolver = (*auth.SessionResolver)(nil)

// Server wires the services onto the router.
type Server struct {
	connect  *connect.Service
	ingest   *ingest.Service
	sessions PrincipalResolver
	errs     *errors.HTTPHandler
	logger   logger.Logger
	router   *mux.Router
}

func New(connectSvc *connect.Service, ingestSvc *ingest.Service, sessions PrincipalResolver, log logger.Logger) *Server {
	s := &Server{
		connect:  connectSvc,
		ingest:   ingestSvc,
		sessions: sessions,
		errs:     errors.NewHTTPHandler(log),
		logger:   log,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.principalMiddleware)

	api.HandleFunc("/connect/init", s.handleConnectInit).Methods(http.MethodPost)
	api.HandleFunc("/connect/register", s.handleConnectRegister).Methods(http.MethodPost)
	api.HandleFunc("/connect/validate", s.handleConnectValidate).Methods(http.MethodPost)
	api.HandleFunc("/connect/response", s.handleReceiveResponse).Methods(http.MethodPost)

	api.HandleFunc("/responses/unprocessed", s.handleUnprocessed).Methods(http.MethodGet)
	api.HandleFunc("/responses/{id}/process", s.handleProcess).Methods(http.MethodPost)
	api.HandleFunc("/responses/{id}/create-candidate", s.handleForceCreate).Methods(http.MethodPost)
	api.HandleFunc("/responses/{id}/attach", s.handleAttach).Methods(http.MethodPost)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// Router returns the configured handler for the HTTP server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

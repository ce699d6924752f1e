// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api is the HTTP surface: read-only views over the inventory,
// incidents and topology, JSON endpoints, the SSE KPI stream, the
// websocket incident feed, admin purge and the remediation stubs.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netvigil/netvigil/internal/audit"
	"github.com/netvigil/netvigil/internal/config"
	"github.com/netvigil/netvigil/internal/devices"
	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/metrics"
	"github.com/netvigil/netvigil/internal/overview"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/topology"
	"github.com/netvigil/netvigil/internal/vault"
)

// Server wires the handlers to their collaborators.
type Server struct {
	cfg      config.Config
	logger   *logging.Logger
	store    *store.Store
	vault    *vault.Vault
	overview *overview.Service
	devices  *devices.Service
	auditor  *audit.Orchestrator
	topo     *topology.Orchestrator
	metrics  *metrics.Metrics
	feed     *Feed

	httpServer *http.Server
}

// Options holds the server's dependencies.
type Options struct {
	Config   config.Config
	Logger   *logging.Logger
	Store    *store.Store
	Vault    *vault.Vault
	Overview *overview.Service
	Devices  *devices.Service
	Auditor  *audit.Orchestrator
	Topology *topology.Orchestrator
	Metrics  *metrics.Metrics
}

// NewServer builds the server and its router.
func NewServer(opts Options) *Server {
	s := &Server{
		cfg:      opts.Config,
		logger:   opts.Logger.With("component", "api"),
		store:    opts.Store,
		vault:    opts.Vault,
		overview: opts.Overview,
		devices:  opts.Devices,
		auditor:  opts.Auditor,
		topo:     opts.Topology,
		metrics:  opts.Metrics,
		feed:     NewFeed(opts.Logger),
	}

	// Pipelines feed the live incident stream through the server.
	if s.auditor != nil {
		s.auditor.OnIncident = s.feed.Publish
	}
	if s.topo != nil {
		s.topo.OnIncident = s.feed.Publish
	}
	return s
}

// IncidentFeed returns the live incident feed, so other entry points can publish.
func (s *Server) IncidentFeed() *Feed {
	return s.feed
}

// Router assembles all routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	// Health surface.
	health := r.PathPrefix("/health").Subrouter()
	health.HandleFunc("/overview", s.handleOverview).Methods(http.MethodGet)
	health.HandleFunc("/api/overview", s.handleOverviewJSON).Methods(http.MethodGet)
	health.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	health.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)

	// Devices.
	dev := r.PathPrefix("/devices").Subrouter()
	dev.Use(s.requireToken)
	dev.HandleFunc("/", s.handleListDevices).Methods(http.MethodGet)
	dev.HandleFunc("/discover", s.handleDiscover).Methods(http.MethodPost)
	dev.HandleFunc("/onboard", s.handleOnboard).Methods(http.MethodPost)
	dev.HandleFunc("/toggle-active", s.handleToggleActive).Methods(http.MethodPost)
	dev.HandleFunc("/{id}", s.handleGetDevice).Methods(http.MethodGet)

	// Incidents.
	inc := r.PathPrefix("/incidents").Subrouter()
	inc.Use(s.requireToken)
	inc.HandleFunc("/", s.handleListIncidents).Methods(http.MethodGet)
	inc.HandleFunc("/ws", s.handleIncidentWS).Methods(http.MethodGet)
	inc.HandleFunc("/{id:[0-9]+}", s.handleGetIncident).Methods(http.MethodGet)
	inc.HandleFunc("/{id:[0-9]+}/remediation/api/suggest", s.handleRemediationSuggest).Methods(http.MethodPost)
	inc.HandleFunc("/{id:[0-9]+}/remediation/api/approve", s.handleRemediationApprove).Methods(http.MethodPost)
	inc.HandleFunc("/{id:[0-9]+}/remediation/api/execute", s.handleRemediationExecute).Methods(http.MethodPost)
	inc.HandleFunc("/{id:[0-9]+}/remediation/api/status", s.handleRemediationStatus).Methods(http.MethodGet)

	// Admin.
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireToken)
	admin.HandleFunc("/orphan-incidents", s.handleListOrphans).Methods(http.MethodGet)
	admin.HandleFunc("/orphan-incidents/purge", s.handlePurgeOrphans).Methods(http.MethodPost)

	// Topology.
	topo := r.PathPrefix("/topology").Subrouter()
	topo.Use(s.requireToken)
	topo.HandleFunc("/", s.handleTopologyHome).Methods(http.MethodGet)
	topo.HandleFunc("/nodes", s.handleTopologyNodes).Methods(http.MethodGet)
	topo.HandleFunc("/vlans", s.handleTopologyVLANs).Methods(http.MethodGet)
	topo.HandleFunc("/arp", s.handleTopologyARP).Methods(http.MethodGet)
	topo.HandleFunc("/lldp", s.handleTopologyLLDP).Methods(http.MethodGet)
	topo.HandleFunc("/scan", s.handleTopologyScan).Methods(http.MethodPost)
	topo.HandleFunc("/authorize", s.handleTopologyAuthorize).Methods(http.MethodPost)
	topo.HandleFunc("/graph-data", s.handleTopologyGraphData).Methods(http.MethodGet)

	// Auth probe and metrics.
	r.Handle("/auth/verify", s.requireToken(http.HandlerFunc(s.handleAuthVerify))).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.feed.Close()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// writeJSON writes a JSON body with status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind onto the HTTP status table and emits the
// typed {"error": ...} body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetKind(err) {
	case errors.KindValidation, errors.KindSchemaInvalid, errors.KindDiscovery, errors.KindStoreConstraint:
		status = http.StatusBadRequest
	case errors.KindNotFound, errors.KindCredentialNotFound:
		status = http.StatusNotFound
	case errors.KindAuth:
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

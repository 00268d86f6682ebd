// Package health exposes the agent's HTTP surface: the merged metrics
// exposition, liveness and readiness probes, and optional debug
// endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jenastar/aura-agent/internal/attribution"
	"github.com/jenastar/aura-agent/internal/errors"
	"github.com/jenastar/aura-agent/pkg/model"
)

// ReadinessChecker reports whether the agent is ready to serve data.
type ReadinessChecker interface {
	IsReady() bool
}

// SnapshotProvider returns the latest cycle snapshot for debugging.
type SnapshotProvider interface {
	LatestSnapshot() *model.CycleSnapshot
}

// Server exposes metrics, health, readiness, and debug endpoints.
type Server struct {
	httpServer *http.Server
	readiness  ReadinessChecker
	snapshot   SnapshotProvider
	errs       *errors.Collector
	profiles   *attribution.ProfileStore
	listener   net.Listener
}

// NewServer creates a server on the given port. dataReg carries the
// attribution exposition and selfReg the agent's own metrics; both are
// served merged on /metrics. Pass port=0 to let the OS pick a free
// port (useful for tests). When enableDebug is true, pprof and debug
// endpoints are registered.
func NewServer(
	port int,
	dataReg, selfReg prometheus.Gatherer,
	readiness ReadinessChecker,
	snapshot SnapshotProvider,
	errs *errors.Collector,
	profiles *attribution.ProfileStore,
	enableDebug bool,
) *Server {
	s := &Server{
		readiness: readiness,
		snapshot:  snapshot,
		errs:      errs,
		profiles:  profiles,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	gatherers := prometheus.Gatherers{dataReg, selfReg}
	metricsHandler := promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
	mux.Handle("/metrics", gzhttp.GzipHandler(metricsHandler))

	if enableDebug {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		mux.HandleFunc("/debug/snapshot", s.handleDebugSnapshot)
		mux.HandleFunc("/debug/profiles", s.handleDebugProfiles)
		mux.HandleFunc("/debug/errors", s.handleDebugErrors)
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Addr returns the listen address once Start has succeeded.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening and serving HTTP in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("health server listen: %w", err)
	}
	s.listener = ln
	// Update Addr to the actual address (important when port=0).
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			_ = err // server exited during shutdown
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ready := s.readiness.IsReady()
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}

func (s *Server) handleDebugSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshot.LatestSnapshot()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleDebugProfiles(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(s.profiles.Snapshot())
}

func (s *Server) handleDebugErrors(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(s.errs.Active())
}

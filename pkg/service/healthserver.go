// Package service hosts the long-lived pipeline processes: a probe HTTP
// surface reporting liveness and dispatch readiness, and the composition of
// the outbound dispatch fleet into one runnable unit.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// ProbeFunc reports readiness. A nil error means ready.
type ProbeFunc func() error

// HealthServer serves the process's probe endpoints. /healthz is liveness
// and always answers 200 while the process runs; /readyz consults the
// readiness probe, answering 503 until the dispatch path can take traffic.
type HealthServer struct {
	logger zerolog.Logger
	port   string
	ready  ProbeFunc
	server *http.Server

	mu   sync.Mutex
	addr string
}

// NewHealthServer creates a probe server on the given port. A nil probe
// makes /readyz unconditionally ready.
func NewHealthServer(logger zerolog.Logger, port string, ready ProbeFunc) *HealthServer {
	h := &HealthServer{
		logger: logger.With().Str("component", "HealthServer").Logger(),
		port:   port,
		ready:  ready,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/readyz", h.handleReadyz)
	h.server = &http.Server{Addr: port, Handler: mux}
	return h
}

// Start binds the listener and serves probes in the background.
func (h *HealthServer) Start() error {
	listener, err := net.Listen("tcp", h.port)
	if err != nil {
		return fmt.Errorf("probe server listen on %s: %w", h.port, err)
	}

	h.mu.Lock()
	h.addr = listener.Addr().String()
	h.mu.Unlock()

	h.logger.Info().Str("address", listener.Addr().String()).Msg("Probe server listening.")

	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error().Err(err).Msg("Probe server failed.")
		}
	}()
	return nil
}

// Shutdown stops the probe server, respecting the context's deadline.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error().Err(err).Msg("Probe server shutdown error.")
		return err
	}
	h.logger.Info().Msg("Probe server stopped.")
	return nil
}

// Addr returns the bound address, useful when the port was ":0".
func (h *HealthServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

func (h *HealthServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *HealthServer) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iris-relay/iris-relay/internal/config"
	"github.com/iris-relay/iris-relay/internal/directory"
	"github.com/iris-relay/iris-relay/internal/registry"
)

// RelayServer wires the directory, registry, and router behind one HTTP
// surface: the auth/contact API plus the /ws transport endpoint, with
// metrics and health probes on a separate admin listener.
type RelayServer struct {
	cfg      config.Config
	log      *zap.Logger
	users    *directory.UserStore
	sessions *directory.SessionStore
	contacts *directory.ContactStore
	registry registry.ConnRegistry
	router   *Router
	metrics  *relayMetrics
	promReg  *prometheus.Registry

	httpSrv   *http.Server
	adminHTTP *http.Server
	handler   http.Handler
	ready     atomic.Bool
}

// NewRelayServer constructs a server with its dependencies. The routing
// core and HTTP handler are built eagerly so tests can drive Handler()
// without listening on a port.
func NewRelayServer(
	cfg config.Config,
	logger *zap.Logger,
	users *directory.UserStore,
	sessions *directory.SessionStore,
	contacts *directory.ContactStore,
	reg registry.ConnRegistry,
) *RelayServer {
	if reg == nil {
		reg = registry.NewInMemory()
	}

	s := &RelayServer{
		cfg:      cfg,
		log:      logger,
		users:    users,
		sessions: sessions,
		contacts: contacts,
		registry: reg,
		promReg:  prometheus.NewRegistry(),
	}
	s.metrics = newRelayMetrics(s.promReg)
	s.router = NewRouter(logger, reg, contacts, RouterOptions{
		Metrics:    s.metrics,
		SendBuffer: cfg.Router.SendBuffer,
	})
	s.handler = s.buildRoutes()
	return s
}

// Handler exposes the public HTTP surface (API + websocket endpoint).
func (s *RelayServer) Handler() http.Handler {
	return s.handler
}

// Start boots the public and admin listeners and blocks until shutdown.
func (s *RelayServer) Start(ctx context.Context) error {
	s.promReg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	s.startAdminServer()

	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
		defer cancel()
		s.Shutdown(stopCtx)
	}()

	s.log.Info("relay listening", zap.String("address", s.cfg.ListenAddress))
	s.ready.Store(true)
	err := s.httpSrv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve relay: %w", err)
	}
	return nil
}

func (s *RelayServer) startAdminServer() {
	if s.cfg.AdminAddress == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not_ready"))
	})

	s.adminHTTP = &http.Server{
		Addr:              s.cfg.AdminAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.adminHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("admin server stopped", zap.Error(err))
		}
	}()
	s.log.Info("admin server listening", zap.String("address", s.cfg.AdminAddress))
}

// Shutdown attempts a graceful stop before forcing termination. Graceful
// HTTP shutdown does not interrupt upgraded websocket connections, so after
// the grace period the listener is closed outright, failing the per-conn
// reads and letting each handler unbind normally.
func (s *RelayServer) Shutdown(ctx context.Context) {
	s.ready.Store(false)

	if s.adminHTTP != nil {
		if err := s.adminHTTP.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("admin server shutdown", zap.Error(err))
		}
	}
	if s.httpSrv == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		_ = s.httpSrv.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("relay server stopped")
	case <-ctx.Done():
		s.log.Warn("graceful shutdown timed out; forcing stop")
		_ = s.httpSrv.Close()
	}
}

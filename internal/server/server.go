// Package server exposes the reports store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Config struct {
	// Listen is the TCP address to listen on.
	Listen string
	// BasePath prefixes the reports routes, e.g. "/api".
	BasePath string
	// MaxConcurrentArchives bounds simultaneous archive downloads; 0 means unlimited.
	MaxConcurrentArchives int

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	logger *zap.Logger
	cfg    Config
	router *chi.Mux
}

func New(logger *zap.Logger, store ReportStore, cfg Config) *Server {
	h := &handlers{
		logger: logger,
		store:  store,
	}
	if cfg.MaxConcurrentArchives > 0 {
		h.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrentArchives))
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		newRequestLogger(logger),
		middleware.Recoverer,
	)

	r.Get("/healthz", h.healthz)

	r.Route(strings.TrimSuffix(cfg.BasePath, "/")+"/reports", func(r chi.Router) {
		r.Get("/", h.listReports)
		// Registered before the {filename} route so "all" never resolves as a report.
		r.Get("/all", h.downloadAll)
		r.Get("/{filename}", h.downloadReport)
	})

	return &Server{
		logger: logger,
		cfg:    cfg,
		router: r,
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, waiting at most ShutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// No WriteTimeout: archive downloads are unbounded in size.
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx := context.Background()
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(fmt.Errorf("failed to shut down server: %w", err), srv.Close())
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/RichardoC/clawd-gateway/internal/metrics"
)

// Server wraps a chi router (chi.Mux)
type Server struct {
	name    string
	cors    *cors.Cors
	mux     *chi.Mux
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func (s *Server) configMux() *chi.Mux {
	s.mux.Use(
		render.SetContentType(render.ContentTypeJSON), // Set content-Type headers as application/json
		s.cors.Handler, // Set Access-Control-Allow-Origin header
		RequestID,
		middleware.RealIP,
		RequestLogger(s.logger, s.metrics),
		Recoverer(s.logger), // Recover from panics without crashing server
		middleware.StripSlashes,
	)
	return s.mux
}

// NewServer creates a router with the middleware stack set up
func NewServer(name string, cors *cors.Cors, logger *zap.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		name:    name,
		cors:    cors,
		logger:  logger,
		metrics: m,
	}
	s.mux = chi.NewRouter()
	s.configMux()
	return s
}

// Mux returns the chi router
func (s *Server) Mux() *chi.Mux {
	return s.mux
}

// ListenAndServe serves handler on port until ctx is cancelled, then shuts
// down gracefully within shutdownTimeout.
func ListenAndServe(ctx context.Context, handler http.Handler, port string, shutdownTimeout time.Duration, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != http.ErrServerClosed {
		return err
	}
	return nil
}

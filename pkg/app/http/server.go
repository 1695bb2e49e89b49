package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/config"
)

const defaultShutdownTimeout = 30 * time.Second

// NewServer builds an http.Server for handler from the server config.
func NewServer(handler http.Handler, cfg *config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// ServeAndWait listens on the configured address and serves handler until
// ctx is canceled or the server fails, then shuts down within the
// configured timeout.
func ServeAndWait(ctx context.Context, handler http.Handler, logger *zap.Logger, cfg *config.ServerConfig) error {
	if handler == nil {
		return errors.New("nil handler")
	}
	if cfg == nil {
		return errors.New("nil server config")
	}
	srv := NewServer(handler, cfg)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	return Serve(ctx, srv, ln, logger, cfg.ShutdownTimeout)
}

// Serve runs srv on ln until ctx is canceled or serving fails. A serve
// failure is returned after the shutdown attempt.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	served := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			served <- err
			return
		}
		served <- nil
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-served:
		logger.Error("HTTP server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("Shutting down HTTP server", zap.Duration("timeout", shutdownTimeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if serveErr != nil {
		return fmt.Errorf("http server failed: %w", serveErr)
	}
	logger.Info("HTTP server stopped")
	return nil
}

package gateway

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/novacore-ai/gateway/internal/config"
	"github.com/novacore-ai/gateway/internal/logging"
)

// Server runs the gateway behind a single HTTP listener with graceful
// shutdown on SIGINT/SIGTERM.
type Server struct {
	cfg     *config.Config
	gateway *Gateway
	srv     *http.Server
}

// NewServer creates the server and its gateway.
func NewServer(cfg *config.Config) *Server {
	gw := New(cfg)

	return &Server{
		cfg:     cfg,
		gateway: gw,
		srv: &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           gw.Handler(),
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		},
	}
}

// Run starts serving and blocks until a termination signal or a listener
// error, then shuts down gracefully.
func (s *Server) Run() error {
	s.gateway.WarmServiceToken()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Gateway listening", zap.String("address", s.cfg.Server.Address))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info("Shutting down gracefully", zap.String("signal", sig.String()))
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests within the configured timeout, then
// releases background resources.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	if err != nil {
		logging.Error("HTTP server shutdown error", zap.Error(err))
	}

	s.gateway.Close()

	logging.Info("Server shutdown complete")
	return err
}

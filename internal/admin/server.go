package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/pitabwire/docquery/internal/config"
)

// Server runs the admin router on its own listener.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *zap.Logger
	errCh  chan error
}

// Listen binds the admin port. Port 0 picks a free port.
func Listen(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("admin: listen on port %d: %w", cfg.Port, err)
	}
	return &Server{
		srv: &http.Server{
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		ln:     ln,
		logger: logger,
		errCh:  make(chan error, 1),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Start serves in the background. Serve errors are reported by Errors.
func (s *Server) Start() {
	s.logger.Info("admin server starting", zap.String("addr", s.Addr()))
	go func() {
		if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()
}

// Errors yields a serve error, if one happens, and is closed when the
// server stops.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("admin server shutting down")
	return s.srv.Shutdown(ctx)
}

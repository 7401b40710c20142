package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/lightwave/internal/logging"
)

// Config holds the listener configuration.
type Config struct {
	Listen          string
	ShutdownTimeout time.Duration
}

// Server runs the status API until its context is cancelled.
type Server struct {
	config   Config
	srv      *http.Server
	listener net.Listener
}

// New creates a Server serving handler.
func New(config Config, handler http.Handler) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		config: config,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Listen binds the listen address. Serve calls it when it has not been
// called yet.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	logging.Info("HTTP API listening", zap.String("addr", s.Addr()))

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.srv.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	logging.Info("Shutting down HTTP API...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		logging.Warn("HTTP API shutdown timeout, forcing close", zap.Error(err))
		return s.srv.Close()
	}
	return nil
}

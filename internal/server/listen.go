package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Server runs an [http.Server] until its context is cancelled.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *log.Logger
}

// NewServer creates a Server for handler on addr. A zero shutdownTimeout waits five seconds for in-flight requests.
func NewServer(addr string, handler http.Handler, shutdownTimeout time.Duration, logger *log.Logger) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
//
// Write timeouts are left unset since imports and streams can take minutes.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is [Server.Run] on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errs := make(chan error, 1)
	go func() {
		errs <- s.srv.Serve(listener)
	}()
	s.logger.Info("server listening", "address", listener.Addr().String())

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/todoauth/observe"
)

// ServerConfig configures a listener.
type ServerConfig struct {
	// Name labels log lines, e.g. "api" or "ops".
	Name string

	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds
	ShutdownTimeout time.Duration
}

// Server runs an http.Server until its context is cancelled.
type Server struct {
	cfg    ServerConfig
	srv    *http.Server
	logger observe.Logger

	base   context.Context
	cancel context.CancelFunc
}

// NewServer creates a server for h.
func NewServer(cfg ServerConfig, h http.Handler, logger observe.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	// Request contexts derive from base so that long-lived streams end
	// when shutdown starts instead of holding it open.
	base, cancel := context.WithCancel(context.Background())
	s := &Server{cfg: cfg, logger: logger, base: base, cancel: cancel}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	return s
}

// ListenAndServe listens on the configured address and serves until ctx
// is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("api: listen %s: %w", s.cfg.Name, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully. It
// returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	fields := []observe.Field{
		{Key: "listener", Value: s.cfg.Name},
		{Key: "addr", Value: ln.Addr().String()},
	}
	s.logger.Info(ctx, "listening", fields...)

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()

	select {
	case err := <-errc:
		s.cancel()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve %s: %w", s.cfg.Name, err)
	case <-ctx.Done():
	}

	s.cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer done()
	err := s.srv.Shutdown(shutdownCtx)
	<-errc
	if err != nil {
		return fmt.Errorf("api: shutdown %s: %w", s.cfg.Name, err)
	}
	s.logger.Info(ctx, "stopped", fields...)
	return nil
}

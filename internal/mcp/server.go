package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/hass-mcp/internal/audit"
	"github.com/rickgao/hass-mcp/internal/connection"
	"github.com/rickgao/hass-mcp/internal/tool"
)

// HomeAssistant is the part of connection.Connection the health check uses.
type HomeAssistant interface {
	IsConnected() bool
	Connect(ctx context.Context) connection.Result
	GetVersion(ctx context.Context) (string, error)
}

// Config holds server settings.
type Config struct {
	Addr            string
	RateLimit       float64 // Requests per second on /mcp, 0 = unlimited
	RateBurst       int
	ShutdownTimeout time.Duration
}

// Server is the tool-invocation HTTP front-end.
type Server struct {
	cfg      Config
	tools    *tool.Registry
	ha       HomeAssistant
	recorder audit.Recorder
	logger   *slog.Logger
	limiter  *rate.Limiter
	handler  http.Handler
}

// NewServer creates a Server. A nil recorder disables auditing.
func NewServer(cfg Config, tools *tool.Registry, ha HomeAssistant, recorder audit.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		tools:    tools,
		ha:       ha,
		recorder: recorder,
		logger:   logger.With("component", "mcp_server"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", s.handleInvoke)
	mux.HandleFunc("GET /mcp/tools", s.handleTools)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = Chain(mux,
		RequestID(),
		Logging(s.logger),
		Recover(s.logger),
		RateLimit(s.limiter, "/mcp"),
	)
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Supervisor keeps a Connection connected.
type Supervisor struct {
	conn   *Connection
	cfg    SupervisorConfig
	logger *slog.Logger

	attempts   atomic.Int64
	reconnects atomic.Int64
}

// SupervisorStats provides statistics about reconnection activity.
type SupervisorStats struct {
	Connected  bool
	Attempts   int64 // Connect calls made
	Reconnects int64 // Successful connects after the first
}

// NewSupervisor creates a supervisor for conn.
func NewSupervisor(conn *Connection, cfg SupervisorConfig, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultSupervisorConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	return &Supervisor{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("component", "supervisor"),
	}
}

// Run connects, then reconnects with exponential backoff whenever the socket
// drops. It returns nil when ctx is cancelled, after disconnecting.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.conn.Disconnect()

	wait := s.cfg.BaseDelay
	connectedOnce := false

	for {
		if !s.conn.IsConnected() {
			s.attempts.Add(1)
			res := s.conn.Connect(ctx)
			if ctx.Err() != nil {
				return nil
			}

			if !res.Success {
				level := slog.LevelWarn
				if errors.Is(res.Err, ErrAuthInvalid) {
					level = slog.LevelError
				}
				s.logger.Log(ctx, level, "connection attempt failed",
					"error", res.Err,
					"retry_in", wait,
				)

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(wait):
				}

				// Exponential backoff
				wait *= 2
				if wait > s.cfg.MaxDelay {
					wait = s.cfg.MaxDelay
				}
				continue
			}

			if connectedOnce {
				s.reconnects.Add(1)
				s.logger.Info("reconnected")
			}
			connectedOnce = true
			wait = s.cfg.BaseDelay
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.conn.Done():
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("websocket session ended, reconnecting")
		}
	}
}

// Stats returns current reconnection statistics.
func (s *Supervisor) Stats() SupervisorStats {
	return SupervisorStats{
		Connected:  s.conn.IsConnected(),
		Attempts:   s.attempts.Load(),
		Reconnects: s.reconnects.Load(),
	}
}

package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rickgao/hass-mcp/internal/connection"
)

// Message types of the automation config API.
const (
	msgList   = "config/automation/list"
	msgConfig = "config/automation/config"
	msgDelete = "config/automation/delete"
)

// Connection is the part of connection.Connection the service uses.
type Connection interface {
	IsConnected() bool
	SendMessage(ctx context.Context, msgType string, payload map[string]any) (json.RawMessage, error)
	CallService(ctx context.Context, domain, service string, data map[string]any) (json.RawMessage, error)
}

// Result reports the outcome of a mutating operation.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Service manages automations on a connected Home Assistant. It holds no
// state of its own.
type Service struct {
	conn   Connection
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(conn Connection, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		conn:   conn,
		logger: logger.With("component", "automation"),
	}
}

func (s *Service) checkConnection() error {
	if !s.conn.IsConnected() {
		return connection.ErrNotConnected
	}
	return nil
}

func (s *Service) fail(op, id string, err error) Result {
	msg := "failed to " + op + " automation"
	if id != "" {
		msg += " " + id
	}
	s.logger.Warn(msg, "error", err)
	return Result{Error: fmt.Sprintf("%s: %v", msg, err)}
}

// List returns every automation.
func (s *Service) List(ctx context.Context) ([]Automation, error) {
	if err := s.checkConnection(); err != nil {
		return nil, err
	}

	raw, err := s.conn.SendMessage(ctx, msgList, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get automations: %w", err)
	}

	automations := []Automation{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &automations); err != nil {
			return nil, fmt.Errorf("failed to get automations: decode result: %w", err)
		}
	}
	return automations, nil
}

// Create stores a new automation. Home Assistant assigns the id.
func (s *Service) Create(ctx context.Context, cfg Config) (Result, error) {
	if err := s.checkConnection(); err != nil {
		return Result{}, err
	}

	if _, err := s.conn.SendMessage(ctx, msgConfig, map[string]any{"config": cfg}); err != nil {
		return s.fail("create", "", err), nil
	}

	s.logger.Info("automation created", "alias", cfg.Alias)
	return Result{Success: true}, nil
}

// Update replaces the configuration of automation id.
func (s *Service) Update(ctx context.Context, id string, cfg Config) (Result, error) {
	if err := s.checkConnection(); err != nil {
		return Result{}, err
	}

	_, err := s.conn.SendMessage(ctx, msgConfig, map[string]any{
		"automation_id": id,
		"config":        cfg,
	})
	if err != nil {
		return s.fail("update", id, err), nil
	}

	s.logger.Info("automation updated", "automation_id", id)
	return Result{Success: true}, nil
}

// Delete removes automation id.
func (s *Service) Delete(ctx context.Context, id string) (Result, error) {
	if err := s.checkConnection(); err != nil {
		return Result{}, err
	}

	if _, err := s.conn.SendMessage(ctx, msgDelete, map[string]any{"automation_id": id}); err != nil {
		return s.fail("delete", id, err), nil
	}

	s.logger.Info("automation deleted", "automation_id", id)
	return Result{Success: true}, nil
}

// Trigger runs automation id's actions now.
func (s *Service) Trigger(ctx context.Context, id string) (Result, error) {
	return s.callService(ctx, "trigger", id)
}

// Toggle enables or disables automation id.
func (s *Service) Toggle(ctx context.Context, id string) (Result, error) {
	return s.callService(ctx, "toggle", id)
}

func (s *Service) callService(ctx context.Context, service, id string) (Result, error) {
	if err := s.checkConnection(); err != nil {
		return Result{}, err
	}

	if _, err := s.conn.CallService(ctx, "automation", service, map[string]any{"entity_id": id}); err != nil {
		return s.fail(service, id, err), nil
	}
	return Result{Success: true}, nil
}

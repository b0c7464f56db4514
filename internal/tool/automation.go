package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rickgao/hass-mcp/internal/automation"
)

// Actions accepted by the automation tool.
const (
	ActionList    = "list"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionTrigger = "trigger"
	ActionToggle  = "toggle"
)

// AutomationToolName is the registered name of the automation tool.
const AutomationToolName = "automation"

// Input is the argument object of the automation tool.
type Input struct {
	Action       string             `json:"action"`
	AutomationID string             `json:"automation_id,omitempty"`
	Config       *automation.Config `json:"config,omitempty"`
}

// AutomationService is the part of automation.Service the tool uses.
type AutomationService interface {
	List(ctx context.Context) ([]automation.Automation, error)
	Create(ctx context.Context, cfg automation.Config) (automation.Result, error)
	Update(ctx context.Context, id string, cfg automation.Config) (automation.Result, error)
	Delete(ctx context.Context, id string) (automation.Result, error)
	Trigger(ctx context.Context, id string) (automation.Result, error)
	Toggle(ctx context.Context, id string) (automation.Result, error)
}

// AutomationTool exposes AutomationService as a tool.
type AutomationTool struct {
	svc    AutomationService
	logger *slog.Logger
}

// NewAutomationTool creates the automation tool.
func NewAutomationTool(svc AutomationService, logger *slog.Logger) *AutomationTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutomationTool{svc: svc, logger: logger.With("tool", AutomationToolName)}
}

// Name returns "automation".
func (t *AutomationTool) Name() string {
	return AutomationToolName
}

// Manifest returns the tool's parameter schema.
func (t *AutomationTool) Manifest() Manifest {
	return Manifest{
		Name:        AutomationToolName,
		Description: "Manages Home Assistant automations",
		Parameters: Schema{
			Type: "object",
			Properties: map[string]Schema{
				"action": {
					Type:        "string",
					Enum:        []string{ActionList, ActionCreate, ActionUpdate, ActionDelete, ActionTrigger, ActionToggle},
					Description: "Action to perform",
				},
				"automation_id": {
					Type:        "string",
					Description: "ID of the automation (required for update, delete, trigger, toggle)",
				},
				"config": {
					Type:        "object",
					Description: "Automation configuration (required for create, update)",
					Properties: map[string]Schema{
						"alias":       {Type: "string"},
						"description": {Type: "string"},
						"trigger":     {Type: "array"},
						"condition":   {Type: "array"},
						"action":      {Type: "array"},
						"mode":        {Type: "string"},
					},
					Required: []string{"alias", "trigger", "action"},
				},
			},
			Required: []string{"action"},
		},
	}
}

// Invoke decodes args into an Input and handles it.
func (t *AutomationTool) Invoke(ctx context.Context, args json.RawMessage) Output {
	var in Input
	if err := json.Unmarshal(args, &in); err != nil {
		return Output{Error: "Invalid arguments: " + err.Error()}
	}
	return t.Handle(ctx, in)
}

// Handle runs one action. Every error becomes Output{Success: false}.
func (t *AutomationTool) Handle(ctx context.Context, in Input) Output {
	var (
		res automation.Result
		err error
	)

	switch in.Action {
	case ActionList:
		automations, err := t.svc.List(ctx)
		if err != nil {
			return t.failure(in, err)
		}
		if automations == nil {
			automations = []automation.Automation{}
		}
		return Output{Success: true, Automations: automations}

	case ActionCreate:
		if in.Config == nil {
			return missing("config")
		}
		res, err = t.svc.Create(ctx, *in.Config)

	case ActionUpdate:
		if in.AutomationID == "" {
			return missing("automation_id")
		}
		if in.Config == nil {
			return missing("config")
		}
		res, err = t.svc.Update(ctx, in.AutomationID, *in.Config)

	case ActionDelete:
		if in.AutomationID == "" {
			return missing("automation_id")
		}
		res, err = t.svc.Delete(ctx, in.AutomationID)

	case ActionTrigger:
		if in.AutomationID == "" {
			return missing("automation_id")
		}
		res, err = t.svc.Trigger(ctx, in.AutomationID)

	case ActionToggle:
		if in.AutomationID == "" {
			return missing("automation_id")
		}
		res, err = t.svc.Toggle(ctx, in.AutomationID)

	default:
		return Output{Error: "Invalid action: " + in.Action}
	}

	if err != nil {
		return t.failure(in, err)
	}
	return Output{Success: res.Success, Error: res.Error}
}

func (t *AutomationTool) failure(in Input, err error) Output {
	t.logger.Warn("automation action failed",
		"action", in.Action,
		"automation_id", in.AutomationID,
		"error", err,
	)
	return Output{Error: err.Error()}
}

func missing(param string) Output {
	return Output{Error: "Missing " + param + " parameter"}
}

package automation

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Modes accepted by Home Assistant.
const (
	ModeSingle   = "single"
	ModeParallel = "parallel"
	ModeQueued   = "queued"
	ModeRestart  = "restart"
)

// Config is an automation configuration. Triggers, conditions and actions
// are opaque to this package and forwarded as-is, whatever their shape: Home
// Assistant accepts a single object as well as a list, and template strings
// inside conditions. Fields Home Assistant adds that are not modelled here
// are kept in Extra and written back out.
type Config struct {
	Alias       string          `json:"alias,omitempty"`
	Description string          `json:"description,omitempty"`
	Trigger     json.RawMessage `json:"trigger,omitempty"`
	Condition   json.RawMessage `json:"condition,omitempty"`
	Action      json.RawMessage `json:"action,omitempty"`
	Mode        string          `json:"mode,omitempty"`
	Max         int             `json:"max,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = []string{"alias", "description", "trigger", "condition", "action", "mode", "max"}

// MarshalJSON writes the known fields plus Extra. Known fields win on
// key collisions.
func (c Config) MarshalJSON() ([]byte, error) {
	type fields Config
	known, err := json.Marshal(fields(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+len(knownFields))
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the known fields and stores every other key in Extra.
func (c *Config) UnmarshalJSON(data []byte) error {
	type fields Config
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownFields {
		delete(all, k)
	}

	*c = Config(f)
	c.Extra = nil
	if len(all) > 0 {
		c.Extra = all
	}
	return nil
}

// Validate checks the fields Home Assistant requires to accept a new automation.
func (c Config) Validate() error {
	var errs []error
	if c.Alias == "" {
		errs = append(errs, errors.New("alias is required"))
	}
	if !present(c.Trigger) && !present(c.Extra["triggers"]) {
		errs = append(errs, errors.New("at least one trigger is required"))
	}
	if !present(c.Action) && !present(c.Extra["actions"]) {
		errs = append(errs, errors.New("at least one action is required"))
	}
	switch c.Mode {
	case "", ModeSingle, ModeParallel, ModeQueued, ModeRestart:
	default:
		errs = append(errs, fmt.Errorf("mode must be one of single, parallel, queued, restart, got %q", c.Mode))
	}
	if c.Max < 0 {
		errs = append(errs, fmt.Errorf("max must be >= 0, got %d", c.Max))
	}
	return errors.Join(errs...)
}

// present reports whether raw holds a value other than null or an empty
// list, object or string.
func present(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch v := v.(type) {
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case string:
		return v != ""
	}
	return v != nil
}

// ParseConfig reads a configuration in YAML or JSON, the formats Home
// Assistant itself uses for automations.
func ParseConfig(data []byte) (Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse automation config: %w", err)
	}
	if doc == nil {
		return Config{}, errors.New("parse automation config: document is empty")
	}

	// Round-trip through JSON so Extra is populated the same way as for
	// configs read from the wire.
	raw, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("parse automation config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse automation config: %w", err)
	}
	return cfg, nil
}

// Automation is a stored automation as returned by list.
type Automation struct {
	ID string
	Config
}

// MarshalJSON writes the config with an "id" key.
func (a Automation) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(a.Config)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(cfg, &merged); err != nil {
		return nil, err
	}
	id, err := json.Marshal(a.ID)
	if err != nil {
		return nil, err
	}
	merged["id"] = id
	return json.Marshal(merged)
}

// UnmarshalJSON reads "id" and leaves the rest to Config.
func (a *Automation) UnmarshalJSON(data []byte) error {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}

	a.ID = ""
	if raw, ok := cfg.Extra["id"]; ok {
		if err := json.Unmarshal(raw, &a.ID); err != nil {
			return fmt.Errorf("automation id: %w", err)
		}
		delete(cfg.Extra, "id")
		if len(cfg.Extra) == 0 {
			cfg.Extra = nil
		}
	}
	a.Config = cfg
	return nil
}

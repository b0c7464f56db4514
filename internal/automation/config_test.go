package automation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_RoundTripKeepsUnknownFields(t *testing.T) {
	in := `{
		"alias": "Motion Light",
		"trigger": [{"platform": "state", "entity_id": "binary_sensor.motion", "to": "on"}],
		"action": [{"service": "light.turn_on", "target": {"entity_id": "light.living_room"}}],
		"mode": "restart",
		"variables": {"brightness": 200},
		"trace": {"stored_traces": 5}
	}`

	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(in), &cfg))

	assert.Equal(t, "Motion Light", cfg.Alias)
	assert.Equal(t, ModeRestart, cfg.Mode)
	assert.JSONEq(t, `[{"platform": "state", "entity_id": "binary_sensor.motion", "to": "on"}]`, string(cfg.Trigger))
	require.Contains(t, cfg.Extra, "variables")
	require.Contains(t, cfg.Extra, "trace")
	assert.NotContains(t, cfg.Extra, "alias")

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestConfig_KnownFieldsWinOverExtra(t *testing.T) {
	cfg := Config{
		Alias: "Real",
		Extra: map[string]json.RawMessage{"alias": json.RawMessage(`"Shadow"`)},
	}

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"alias": "Real"}`, string(out))
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Alias:   "Night Light",
		Trigger: json.RawMessage(`[{"platform": "sun", "event": "sunset"}]`),
		Action:  json.RawMessage(`[{"service": "light.turn_on"}]`),
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing alias", func(c *Config) { c.Alias = "" }, "alias is required"},
		{"missing trigger", func(c *Config) { c.Trigger = nil }, "at least one trigger is required"},
		{"empty trigger list", func(c *Config) { c.Trigger = json.RawMessage(`[]`) }, "at least one trigger is required"},
		{"null trigger", func(c *Config) { c.Trigger = json.RawMessage(`null`) }, "at least one trigger is required"},
		{"single trigger object", func(c *Config) { c.Trigger = json.RawMessage(`{"platform": "sun", "event": "sunset"}`) }, ""},
		{"plural triggers", func(c *Config) {
			c.Trigger = nil
			c.Extra = map[string]json.RawMessage{"triggers": json.RawMessage(`[{"trigger": "sun"}]`)}
		}, ""},
		{"missing action", func(c *Config) { c.Action = nil }, "at least one action is required"},
		{"empty action object", func(c *Config) { c.Action = json.RawMessage(`{}`) }, "at least one action is required"},
		{"plural actions", func(c *Config) {
			c.Action = nil
			c.Extra = map[string]json.RawMessage{"actions": json.RawMessage(`[{"action": "light.turn_on"}]`)}
		}, ""},
		{"bad mode", func(c *Config) { c.Mode = "sometimes" }, `mode must be one of single, parallel, queued, restart, got "sometimes"`},
		{"negative max", func(c *Config) { c.Max = -1 }, "max must be >= 0, got -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseConfig_YAML(t *testing.T) {
	doc := `
alias: Porch Light
description: Turn on the porch light at sunset
trigger:
  - platform: sun
    event: sunset
action:
  - service: light.turn_on
    target:
      entity_id: light.porch
mode: single
max: 3
variables:
  level: 80
`
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "Porch Light", cfg.Alias)
	assert.Equal(t, 3, cfg.Max)
	assert.JSONEq(t, `[{"service": "light.turn_on", "target": {"entity_id": "light.porch"}}]`, string(cfg.Action))
	assert.JSONEq(t, `{"level": 80}`, string(cfg.Extra["variables"]))
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig_JSON(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"alias": "A", "trigger": [{"platform": "time", "at": "07:00:00"}], "action": [{"delay": 5}]}`))
	require.NoError(t, err)
	assert.Equal(t, "A", cfg.Alias)
	assert.JSONEq(t, `[{"platform": "time", "at": "07:00:00"}]`, string(cfg.Trigger))
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte(""))
	assert.ErrorContains(t, err, "document is empty")

	_, err = ParseConfig([]byte("alias: [unterminated"))
	assert.ErrorContains(t, err, "parse automation config")
}

func TestAutomation_JSON(t *testing.T) {
	in := `{"id": "automation.night_light", "alias": "Night Light", "trigger": [], "mode": "single", "initial_state": true}`

	var a Automation
	require.NoError(t, json.Unmarshal([]byte(in), &a))

	assert.Equal(t, "automation.night_light", a.ID)
	assert.Equal(t, "Night Light", a.Alias)
	assert.NotContains(t, a.Extra, "id")
	assert.Contains(t, a.Extra, "initial_state")

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestConfig_FreeFormShapes(t *testing.T) {
	in := `{
		"id": "automation.porch",
		"alias": "Porch",
		"trigger": {"platform": "sun", "event": "sunset", "offset": "-00:30:00"},
		"condition": ["{{ is_state('input_boolean.guest_mode', 'off') }}", {"condition": "state", "entity_id": "sun.sun", "state": "below_horizon"}],
		"action": {"service": "light.turn_on", "target": {"entity_id": "light.porch"}}
	}`

	var list []Automation
	require.NoError(t, json.Unmarshal([]byte("["+in+"]"), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "automation.porch", list[0].ID)
	assert.NoError(t, list[0].Validate())

	out, err := json.Marshal(list[0])
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))

	doc := `
alias: Porch
trigger:
  platform: sun
  event: sunset
condition:
  - "{{ is_state('input_boolean.guest_mode', 'off') }}"
action:
  service: light.turn_on
`
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)
	assert.JSONEq(t, `{"platform": "sun", "event": "sunset"}`, string(cfg.Trigger))
	assert.JSONEq(t, `["{{ is_state('input_boolean.guest_mode', 'off') }}"]`, string(cfg.Condition))
	assert.JSONEq(t, `{"service": "light.turn_on"}`, string(cfg.Action))
	assert.NoError(t, cfg.Validate())
}

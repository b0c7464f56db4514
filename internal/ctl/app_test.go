package ctl

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rickgao/hass-mcp/internal/hatest"
)

func init() {
	color.NoColor = true
}

// run executes hassctl against srv and returns stdout.
func run(t *testing.T, srv *hatest.Server, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut

	argv := append([]string{
		"hassctl",
		"--host", srv.URL,
		"--token", srv.Token(),
		"--socket-url", srv.SocketURL(),
		"--timeout", "2s",
	}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func TestApp(t *testing.T) {
	app := App()
	assert.Equal(t, "hassctl", app.Name)

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"version", "ping", "states", "automation"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, want := range []string{"host", "token", "token-file", "socket-url", "timeout", "output", "verbose"} {
		assert.True(t, flags[want], "missing flag %s", want)
	}
}

func TestVersion(t *testing.T) {
	srv := hatest.NewServer(hatest.WithVersion("2024.1.0"))
	defer srv.Close()

	out, err := run(t, srv, "version")
	require.NoError(t, err)
	assert.Equal(t, "Version: 2024.1.0\n", out)

	out, err = run(t, srv, "--output", "json", "version")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "2024.1.0"}`, out)
}

func TestPing(t *testing.T) {
	srv := hatest.NewServer()
	defer srv.Close()

	out, err := run(t, srv, "ping")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "RTT: "), out)
	assert.Equal(t, 1, srv.Requests("ping"))
}

func TestStates(t *testing.T) {
	srv := hatest.NewServer()
	defer srv.Close()

	out, err := run(t, srv, "states", "--domain", "light")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ENTITY"))
	assert.True(t, strings.HasPrefix(lines[1], "light.living_room"))

	out, err = run(t, srv, "--output", "json", "states")
	require.NoError(t, err)
	var states []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &states))
	assert.GreaterOrEqual(t, len(states), 4)
}

func TestAutomationLifecycle(t *testing.T) {
	srv := hatest.NewServer()
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "motion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
alias: Motion Light
trigger:
  - platform: state
    entity_id: binary_sensor.motion
    to: "on"
action:
  - service: light.turn_on
    target:
      entity_id: light.living_room
`), 0o600))

	out, err := run(t, srv, "automation", "create", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "✓ done\n", out)

	out, err = run(t, srv, "automation", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "automation.motion_light")
	assert.Contains(t, out, "Motion Light")

	out, err = run(t, srv, "-o", "yaml", "automation", "list")
	require.NoError(t, err)
	var listed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &listed))
	assert.Equal(t, true, listed["success"])
	assert.Len(t, listed["automations"], 2)

	_, err = run(t, srv, "automation", "toggle", "automation.night_light")
	require.NoError(t, err)
	state, ok := srv.State("automation.night_light")
	require.True(t, ok)
	assert.Equal(t, "off", state["state"])

	_, err = run(t, srv, "automation", "delete", "automation.motion_light")
	require.NoError(t, err)

	_, err = run(t, srv, "automation", "delete", "automation.motion_light")
	assert.EqualError(t, err, "failed to delete automation automation.motion_light: Automation not found")
}

func TestAutomationCreate_FromStdin(t *testing.T) {
	srv := hatest.NewServer()
	defer srv.Close()

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.Reader = strings.NewReader(`{"alias": "Sunset", "trigger": [{"platform": "sun", "event": "sunset"}], "action": [{"service": "light.turn_on"}]}`)

	err := app.Run([]string{
		"hassctl", "--host", srv.URL, "--token", srv.Token(), "--socket-url", srv.SocketURL(),
		"automation", "create", "--file", "-",
	})
	require.NoError(t, err)

	state, ok := srv.State("automation.sunset")
	require.True(t, ok)
	assert.Equal(t, "Sunset", state["attributes"].(map[string]any)["friendly_name"])
}

func TestAutomation_Errors(t *testing.T) {
	srv := hatest.NewServer()
	defer srv.Close()

	_, err := run(t, srv, "automation", "trigger")
	assert.EqualError(t, err, "exactly one AUTOMATION_ID argument is required")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("description: no alias\n"), 0o600))
	_, err = run(t, srv, "automation", "create", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alias is required")
	assert.Zero(t, srv.ConnectionCount(), "validation fails before connecting")

	_, err = run(t, srv, "--output", "xml", "automation", "list")
	assert.EqualError(t, err, `unknown output format "xml" (want text, json or yaml)`)
}

func TestConnect_BadToken(t *testing.T) {
	srv := hatest.NewServer()
	defer srv.Close()

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	err := app.Run([]string{
		"hassctl", "--host", srv.URL, "--token", "wrong", "--socket-url", srv.SocketURL(),
		"automation", "list",
	})
	require.Error(t, err)
}

func TestGlobalFlags_DeriveSocketURL(t *testing.T) {
	ha, err := GlobalFlags{Host: "https://ha.example.com", Token: "x"}.homeAssistantConfig()
	require.NoError(t, err)
	assert.Equal(t, "wss://ha.example.com/api/websocket", ha.SocketURL)
}

package ctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rickgao/hass-mcp/internal/automation"
	"github.com/rickgao/hass-mcp/internal/config"
	"github.com/rickgao/hass-mcp/internal/connection"
	"github.com/rickgao/hass-mcp/internal/logging"
	"github.com/rickgao/hass-mcp/internal/tool"
	"github.com/rickgao/hass-mcp/internal/version"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "hassctl",
		Usage:   "Manage Home Assistant automations",
		Version: version.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			VersionCommand(),
			PingCommand(),
			StatesCommand(),
			AutomationCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "Home Assistant base URL",
			EnvVars: []string{"HASS_HOST"},
			Value:   config.DefaultHost,
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "long-lived access token",
			EnvVars: []string{"HASS_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "token-file",
			Usage:   "file holding the access token",
			EnvVars: []string{"HASS_TOKEN_FILE"},
		},
		&cli.StringFlag{
			Name:    "socket-url",
			Usage:   "WebSocket URL (derived from --host when empty)",
			EnvVars: []string{"HASS_SOCKET_URL"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "per-request timeout",
			Value: config.DefaultRequestTimeout,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: text, json, yaml",
			Value:   string(FormatText),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "log connection activity to stderr",
		},
	}
}

// GlobalFlags holds the parsed global flags.
type GlobalFlags struct {
	Host      string
	Token     string
	TokenFile string
	SocketURL string
	Timeout   time.Duration
	Output    Format
	Verbose   bool
}

// ParseGlobalFlags extracts global flags from c.
func ParseGlobalFlags(c *cli.Context) GlobalFlags {
	return GlobalFlags{
		Host:      c.String("host"),
		Token:     c.String("token"),
		TokenFile: c.String("token-file"),
		SocketURL: c.String("socket-url"),
		Timeout:   c.Duration("timeout"),
		Output:    Format(c.String("output")),
		Verbose:   c.Bool("verbose"),
	}
}

// homeAssistantConfig maps the flags onto the config section the server uses.
func (f GlobalFlags) homeAssistantConfig() (config.HomeAssistantConfig, error) {
	socketURL := f.SocketURL
	if socketURL == "" {
		derived, err := config.DeriveSocketURL(f.Host)
		if err != nil {
			return config.HomeAssistantConfig{}, fmt.Errorf("derive socket url: %w", err)
		}
		socketURL = derived
	}
	return config.HomeAssistantConfig{
		Host:           f.Host,
		SocketURL:      socketURL,
		Token:          f.Token,
		TokenFile:      f.TokenFile,
		RequestTimeout: f.Timeout,
	}, nil
}

func newLogger(c *cli.Context, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger, err := logging.New(config.LoggingConfig{Level: "debug", Format: "console"}, c.App.ErrWriter)
	if err != nil {
		return slog.Default()
	}
	return logger
}

// connect opens an authenticated connection from the global flags.
func connect(c *cli.Context) (*connection.Connection, error) {
	flags := ParseGlobalFlags(c)

	ha, err := flags.homeAssistantConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := connection.FromConfig(ha)
	if err != nil {
		return nil, err
	}

	conn := connection.NewConnection(cfg, newLogger(c, flags.Verbose))

	ctx, cancel := context.WithTimeout(c.Context, cfg.AuthTimeout+cfg.HTTPTimeout)
	defer cancel()
	if res := conn.Connect(ctx); !res.Success {
		return nil, res.Err
	}
	return conn, nil
}

// withTool connects, runs fn against the automation tool and disconnects.
func withTool(c *cli.Context, fn func(ctx context.Context, t *tool.AutomationTool) tool.Output) error {
	conn, err := connect(c)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	logger := newLogger(c, ParseGlobalFlags(c).Verbose)
	t := tool.NewAutomationTool(automation.NewService(conn, logger), logger)

	out := fn(c.Context, t)
	if err := printOutput(c, out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%s", out.Error)
	}
	return nil
}

package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rickgao/hass-mcp/internal/automation"
	"github.com/rickgao/hass-mcp/internal/tool"
	"github.com/rickgao/hass-mcp/internal/version"
)

// VersionCommand prints the Home Assistant version, or the client version
// with --local.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show the Home Assistant version",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "local", Usage: "show the hassctl version without connecting"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("local") {
				return printValue(c, "Client", version.String())
			}
			conn, err := connect(c)
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			v, err := conn.GetVersion(c.Context)
			if err != nil {
				return err
			}
			return printValue(c, "Version", v)
		},
	}
}

// PingCommand measures a socket round trip.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Send a ping over the WebSocket API",
		Action: func(c *cli.Context) error {
			conn, err := connect(c)
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			start := time.Now()
			if err := conn.Ping(c.Context); err != nil {
				return err
			}
			return printValue(c, "RTT", time.Since(start).Round(time.Microsecond).String())
		},
	}
}

// StatesCommand lists entity states.
func StatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "states",
		Usage: "List entity states",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "domain", Aliases: []string{"d"}, Usage: "only entities in this domain, e.g. light"},
		},
		Action: func(c *cli.Context) error {
			conn, err := connect(c)
			if err != nil {
				return err
			}
			defer conn.Disconnect()

			states, err := conn.GetStates(c.Context)
			if err != nil {
				return err
			}

			if domain := c.String("domain"); domain != "" {
				filtered := states[:0]
				for _, s := range states {
					if s.Domain() == domain {
						filtered = append(filtered, s)
					}
				}
				states = filtered
			}
			sort.Slice(states, func(i, j int) bool { return states[i].EntityID < states[j].EntityID })

			return printStates(c, states)
		},
	}
}

// AutomationCommand returns the automation subcommand group.
func AutomationCommand() *cli.Command {
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "automation config in YAML or JSON, - for stdin",
		Required: true,
	}

	return &cli.Command{
		Name:    "automation",
		Aliases: []string{"auto"},
		Usage:   "Manage automations",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List automations",
				Action: func(c *cli.Context) error {
					return runAction(c, tool.Input{Action: tool.ActionList})
				},
			},
			{
				Name:  "create",
				Usage: "Create an automation",
				Flags: []cli.Flag{fileFlag},
				Action: func(c *cli.Context) error {
					cfg, err := readConfig(c)
					if err != nil {
						return err
					}
					return runAction(c, tool.Input{Action: tool.ActionCreate, Config: &cfg})
				},
			},
			{
				Name:      "update",
				Usage:     "Replace an automation's config",
				ArgsUsage: "AUTOMATION_ID",
				Flags:     []cli.Flag{fileFlag},
				Action: func(c *cli.Context) error {
					id, err := automationID(c)
					if err != nil {
						return err
					}
					cfg, err := readConfig(c)
					if err != nil {
						return err
					}
					return runAction(c, tool.Input{Action: tool.ActionUpdate, AutomationID: id, Config: &cfg})
				},
			},
			idCommand("delete", "Delete an automation", tool.ActionDelete),
			idCommand("trigger", "Run an automation's actions now", tool.ActionTrigger),
			idCommand("toggle", "Enable or disable an automation", tool.ActionToggle),
		},
	}
}

func idCommand(name, usage, action string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "AUTOMATION_ID",
		Action: func(c *cli.Context) error {
			id, err := automationID(c)
			if err != nil {
				return err
			}
			return runAction(c, tool.Input{Action: action, AutomationID: id})
		},
	}
}

func runAction(c *cli.Context, in tool.Input) error {
	return withTool(c, func(ctx context.Context, t *tool.AutomationTool) tool.Output {
		return t.Handle(ctx, in)
	})
}

func automationID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New("exactly one AUTOMATION_ID argument is required")
	}
	return c.Args().First(), nil
}

// readConfig loads and validates the --file config before connecting.
func readConfig(c *cli.Context) (automation.Config, error) {
	path := c.String("file")

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return automation.Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := automation.ParseConfig(data)
	if err != nil {
		return automation.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return automation.Config{}, fmt.Errorf("invalid automation config: %w", err)
	}
	return cfg, nil
}

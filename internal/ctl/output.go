package ctl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/rickgao/hass-mcp/internal/api"
	"github.com/rickgao/hass-mcp/internal/tool"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var okMark = color.New(color.FgGreen).Sprint("✓")

func outputFormat(c *cli.Context) (Format, error) {
	switch f := ParseGlobalFlags(c).Output; f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", f)
	}
}

// encode writes v as JSON or YAML.
func encode(w io.Writer, format Format, v any) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	// YAML goes through JSON so custom marshalers and json tags apply.
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func printOutput(c *cli.Context, out tool.Output) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	w := c.App.Writer

	if format != FormatText {
		return encode(w, format, out)
	}
	if !out.Success {
		return nil
	}
	if out.Automations == nil {
		_, err := fmt.Fprintln(w, okMark, "done")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tALIAS\tMODE")
	for _, a := range out.Automations {
		mode := a.Mode
		if mode == "" {
			mode = "single"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Alias, mode)
	}
	return tw.Flush()
}

func printStates(c *cli.Context, states []api.EntityState) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	w := c.App.Writer

	if format != FormatText {
		return encode(w, format, states)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tSTATE\tNAME")
	for _, s := range states {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.EntityID, s.State, s.FriendlyName())
	}
	return tw.Flush()
}

func printValue(c *cli.Context, label string, v any) error {
	format, err := outputFormat(c)
	if err != nil {
		return err
	}
	if format != FormatText {
		return encode(c.App.Writer, format, map[string]any{strings.ToLower(label): v})
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s: %v\n", label, v)
	return err
}

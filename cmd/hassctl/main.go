package main

import (
	"fmt"
	"os"

	"github.com/rickgao/hass-mcp/internal/ctl"
)

func main() {
	if err := ctl.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

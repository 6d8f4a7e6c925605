// Package main provides the entry point for the collab-mcp server CLI.
package main

import (
	"fmt"
	"os"

	"github.com/jupyter-rtc/collab-mcp/cmd/collab-mcp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

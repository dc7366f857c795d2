// Command caseconf validates configuration rule sets, shows the options
// they allow after a sequence of writes, runs YAML scenarios against them
// and serves a live session over MCP.
//
// Usage:
//
//	caseconf validate <rules>
//	caseconf options <rules> --set NAME=VALUE
//	caseconf run <scenarios>... [--journal db]
//	caseconf trace <db>
//	caseconf serve <rules>
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/caseconf/internal/cli"
)

func main() {
	// Replaced once flags are parsed.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own failures as ExitErrors. Anything else
	// is a usage error from flag or argument parsing.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}

// Package main provides the mistral-chat entrypoint.
//
// Usage:
//
//	mistral-chat [global options] [command] [options]
//
// With no command the terminal client starts.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/nhle/mistral-chat/internal/bridge"
	"github.com/nhle/mistral-chat/internal/cmd"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := NewApp()
	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// NewApp assembles the CLI.
func NewApp() *cli.App {
	return &cli.App{
		Name:           "mistral-chat",
		Usage:          "Chat with Mistral AI from a terminal buddy list",
		Version:        fmt.Sprintf("%s (commit: %s)", bridge.Version, commit),
		Flags:          cmd.GlobalFlags(),
		Action:         cmd.RunAction,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.SendCommand(),
			cmd.KeyCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

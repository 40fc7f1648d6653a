// Package cmd provides CLI commands for the mistral-chat binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/nhle/mistral-chat/internal/model"
)

// Global flags, read from any subcommand through the context lineage.
var (
	// ConfigFlag points at the YAML config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file",
		Value:   model.DefaultConfigPath(),
		EnvVars: []string{"MISTRAL_CHAT_CONFIG"},
	}

	// DebugFlag forces debug logging, including every response chunk.
	DebugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}

	// MetricsAddrFlag serves Prometheus metrics when set.
	MetricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
	}

	accountFlag = &cli.StringFlag{
		Name:    "account",
		Aliases: []string{"a"},
		Usage:   "Account id (defaults to account.id from config)",
	}
)

// GlobalFlags returns the flags shared by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		DebugFlag,
		MetricsAddrFlag,
	}
}

// APIKeyEnv overrides the stored key for every account.
const APIKeyEnv = "MISTRAL_API_KEY"

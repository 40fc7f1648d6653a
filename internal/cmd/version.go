package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/nhle/mistral-chat/internal/bridge"
)

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			info := bridge.PluginInfo()
			fmt.Fprintf(c.App.Writer, "%s %s (commit: %s)\n%s: %s\n",
				c.App.Name, bridge.Version, commit, info.ID, info.Summary)
			return nil
		},
	}
}

package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/nhle/mistral-chat/internal/credential"
)

// KeyCommand returns the key command with set and delete subcommands.
func KeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "Manage the stored Mistral API key",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Store an API key (reads stdin when no argument is given)",
				ArgsUsage: "[key]",
				Flags:     []cli.Flag{accountFlag},
				Action:    keySetAction,
			},
			{
				Name:   "delete",
				Usage:  "Remove the stored API key",
				Flags:  []cli.Flag{accountFlag},
				Action: keyDeleteAction,
			},
		},
	}
}

// keyAccount resolves --account, falling back to the configured account.
func keyAccount(c *cli.Context) (string, error) {
	if id := c.String(accountFlag.Name); id != "" {
		return id, nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return "", err
	}
	return cfg.Account.ID, nil
}

func keySetAction(c *cli.Context) error {
	id, err := keyAccount(c)
	if err != nil {
		return err
	}

	key := strings.TrimSpace(c.Args().First())
	if key == "" {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && line == "" {
			return cli.Exit("key set: no key given", 1)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return cli.Exit("key set: no key given", 1)
	}

	if err := newVault().Set(credential.APIKeyName(id), key); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(c.App.Writer, "API key stored for account %s\n", id)
	return nil
}

func keyDeleteAction(c *cli.Context) error {
	id, err := keyAccount(c)
	if err != nil {
		return err
	}
	if err := newVault().Delete(credential.APIKeyName(id)); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(c.App.Writer, "API key removed for account %s\n", id)
	return nil
}

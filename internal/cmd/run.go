package cmd

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/nhle/mistral-chat/internal/app"
	appsync "github.com/nhle/mistral-chat/internal/sync"
)

// RunCommand returns the run command, which starts the terminal client.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Start the terminal chat client",
		Flags:  []cli.Flag{accountFlag},
		Action: RunAction,
	}
}

// RunAction starts the terminal client. It is also the default action.
func RunAction(c *cli.Context) error {
	st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.shutdown()

	if id := c.String(accountFlag.Name); id != "" {
		st.cfg.Account.ID = id
	}

	relay := appsync.New()
	p := st.protocol(relay)

	m := app.New(app.Deps{
		Store:    st.store,
		Vault:    st.vault,
		Protocol: p,
		Relay:    relay,
		Config:   st.cfg,
		Logger:   st.log,
	})

	_, runErr := tea.NewProgram(m, tea.WithAltScreen()).Run()

	// Release workers blocked on the relay before waiting for them.
	relay.Stop()
	if err := p.Close(context.Background(), st.cfg.Account.ID); err != nil {
		st.log.Warnw("closing account", "account", st.cfg.Account.ID, "error", err)
	}

	if runErr != nil {
		return cli.Exit(runErr.Error(), 1)
	}
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nhle/mistral-chat/internal/bridge"
	"github.com/nhle/mistral-chat/internal/model"
)

// SendCommand returns the send command, which delivers one message without
// the terminal UI and prints the reply.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send one message and print the reply",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			accountFlag,
			&cli.StringFlag{
				Name:  "to",
				Usage: "Buddy to message",
				Value: model.AssistantBuddyName,
			},
		},
		Action: sendAction,
	}
}

// written is one line handed to the conversation writer.
type written struct {
	sender string
	text   string
	ts     time.Time
	flags  model.MessageFlags
}

func sendAction(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return cli.Exit("send: message is required", 1)
	}
	if to := c.String("to"); to != model.AssistantBuddyName {
		return cli.Exit(fmt.Sprintf("send: unknown buddy %q", to), 1)
	}

	st, err := setup(c)
	if err != nil {
		return err
	}
	defer st.shutdown()

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	accountID := st.cfg.Account.ID
	if id := c.String(accountFlag.Name); id != "" {
		accountID = id
	}
	acct, err := st.ensureAccount(ctx, accountID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	replies := make(chan written, 1)
	p := st.protocol(bridge.ConversationWriterFunc(
		func(_ model.ConversationHandle, sender, text string, ts time.Time, flags model.MessageFlags) {
			replies <- written{sender: sender, text: text, ts: ts, flags: flags}
		},
	))

	if err := p.Login(ctx, acct.ID); err != nil {
		if errors.Is(err, bridge.ErrMissingAPIKey) {
			return cli.Exit(bridge.MissingKeyHint, 2)
		}
		return cli.Exit(err.Error(), 1)
	}
	defer func() {
		if err := p.Close(context.Background(), acct.ID); err != nil {
			st.log.Warnw("closing account", "account", acct.ID, "error", err)
		}
	}()

	h := model.ConversationHandle{AccountID: acct.ID, Buddy: model.AssistantBuddyName}
	outgoing := model.ConversationLine{
		AccountID: h.AccountID,
		Buddy:     h.Buddy,
		Sender:    acct.Username,
		Direction: model.DirectionOutgoing,
		Text:      text,
		Timestamp: time.Now(),
	}
	if err := st.store.AppendLine(ctx, outgoing); err != nil {
		st.log.Errorw("saving conversation line", "error", err)
	}

	if res := p.SendMessage(h, text); res != bridge.SendAccepted {
		return cli.Exit(fmt.Sprintf("send: %s", res), 1)
	}

	var reply written
	select {
	case reply = <-replies:
	case <-ctx.Done():
		return cli.Exit("send: interrupted", 1)
	}

	incoming := model.ConversationLine{
		AccountID: h.AccountID,
		Buddy:     h.Buddy,
		Sender:    reply.sender,
		Direction: model.DirectionIncoming,
		Text:      reply.text,
		IsError:   reply.flags.Has(model.FlagError),
		Timestamp: reply.ts,
	}
	if err := st.store.AppendLine(ctx, incoming); err != nil {
		st.log.Errorw("saving conversation line", "error", err)
	}

	fmt.Fprintf(c.App.Writer, "%s: %s\n", reply.sender, reply.text)
	if incoming.IsError {
		return cli.Exit("", 1)
	}
	return nil
}

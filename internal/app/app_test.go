package app

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mistral-chat/internal/bridge"
	"github.com/nhle/mistral-chat/internal/completion"
	"github.com/nhle/mistral-chat/internal/credential"
	"github.com/nhle/mistral-chat/internal/model"
	appsync "github.com/nhle/mistral-chat/internal/sync"
	"github.com/nhle/mistral-chat/internal/testutil"
	"github.com/nhle/mistral-chat/internal/ui/buddylist"
	"github.com/nhle/mistral-chat/internal/ui/command"
	"github.com/nhle/mistral-chat/internal/ui/conversation"
)

// echoSubmitter replies to every message with its own text.
type echoSubmitter struct{}

func (echoSubmitter) Submit(rc completion.RequestContext, _ string, sink completion.Sink) (string, error) {
	go sink(completion.Delivery{
		RequestID: "req_test",
		Outcome:   completion.Content{Reply: "echo: " + rc.Message},
	})
	return "req_test", nil
}

func newTestApp(t *testing.T, withKey bool) (Model, *appsync.Relay) {
	t.Helper()

	s := testutil.NewTestStore(t)
	v := credential.NewMemoryVault()
	if withKey {
		if err := v.Set(credential.APIKeyName("default"), "sk-test"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	relay := appsync.New()
	t.Cleanup(relay.Stop)

	p := bridge.New(bridge.Config{
		Store:     s,
		Vault:     v,
		Submitter: echoSubmitter{},
		Writer:    relay,
	})

	cfg := model.DefaultAppConfig()
	cfg.Account.Username = "alice"
	cfg.Display.Markdown = false

	m := New(Deps{Store: s, Vault: v, Protocol: p, Relay: relay, Config: cfg})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model), relay
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestSignInWithoutKeyOpensAccountSettings(t *testing.T) {
	m, _ := newTestApp(t, false)

	m, _ = update(t, m, m.signIn()())

	if m.connected {
		t.Fatal("connected without an api key")
	}
	if m.currentView != ViewAccount {
		t.Errorf("currentView = %d, want ViewAccount", m.currentView)
	}
	if m.notice != bridge.MissingKeyHint {
		t.Errorf("notice = %q", m.notice)
	}
	if !strings.Contains(m.presenceSummary(), "offline") {
		t.Errorf("summary = %q", m.presenceSummary())
	}
}

func TestSendAndReceiveReply(t *testing.T) {
	m, relay := newTestApp(t, true)

	m, _ = update(t, m, m.signIn()())
	if !m.connected {
		t.Fatalf("not connected, notice %q", m.notice)
	}

	buddy := model.Buddy{Name: model.AssistantBuddyName, Alias: model.AssistantBuddyAlias}
	m, cmd := update(t, m, buddylist.SelectedBuddyMsg{Buddy: buddy})
	if cmd == nil {
		t.Fatal("selecting a buddy produced no command")
	}
	m, _ = update(t, m, cmd())
	if m.currentView != ViewConversation {
		t.Fatalf("currentView = %d, want ViewConversation", m.currentView)
	}

	h := model.ConversationHandle{AccountID: "default", Buddy: model.AssistantBuddyName}
	m, _ = update(t, m, conversation.SendMsg{Handle: h, Text: "hi"})
	if got := relay.Pending(); got != 1 {
		t.Fatalf("Pending = %d, want 1", got)
	}

	reply, ok := relay.WaitForNextReply()().(appsync.ReplyMsg)
	if !ok {
		t.Fatal("no reply delivered")
	}
	if reply.Text != "echo: hi" || reply.Sender != bridge.SenderLabel {
		t.Errorf("reply = %+v", reply)
	}

	m, _ = update(t, m, reply)
	if got := relay.Pending(); got != 0 {
		t.Errorf("Pending after delivery = %d", got)
	}

	lines := m.conversation.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Direction != model.DirectionOutgoing || lines[1].Text != "echo: hi" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestStatusCommandUpdatesPresence(t *testing.T) {
	m, _ := newTestApp(t, true)
	m, _ = update(t, m, m.signIn()())

	m, cmd := update(t, m, command.CommandMsg{
		Name:     command.CmdStatus,
		StatusID: model.StatusAway,
		Message:  "lunch",
	})
	if cmd == nil {
		t.Fatal("status command produced no command")
	}
	m, _ = update(t, m, cmd())

	if m.account.StatusID != model.StatusAway {
		t.Errorf("StatusID = %q", m.account.StatusID)
	}
	if !strings.Contains(m.presenceSummary(), "away (lunch)") {
		t.Errorf("summary = %q", m.presenceSummary())
	}
}

func TestQuitStopsRelay(t *testing.T) {
	m, relay := newTestApp(t, true)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
	if msg := relay.WaitForNextReply()(); msg != nil {
		t.Errorf("relay still running, got %T", msg)
	}
}

func TestGlobalKeysFollowKeyMap(t *testing.T) {
	m, _ := newTestApp(t, true)
	m.keys.Help.SetKeys("h")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if m.currentView == ViewHelp {
		t.Fatal("? opened help after Help was remapped")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}})
	if m.currentView != ViewHelp {
		t.Fatalf("currentView = %d, want ViewHelp", m.currentView)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.currentView != ViewBuddies {
		t.Errorf("currentView = %d after esc, want ViewBuddies", m.currentView)
	}
}

package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/mistral-chat/internal/bridge"
	"github.com/nhle/mistral-chat/internal/credential"
	"github.com/nhle/mistral-chat/internal/keys"
	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/store"
	appsync "github.com/nhle/mistral-chat/internal/sync"
	"github.com/nhle/mistral-chat/internal/ui"
	accountview "github.com/nhle/mistral-chat/internal/ui/account"
	"github.com/nhle/mistral-chat/internal/ui/buddylist"
	"github.com/nhle/mistral-chat/internal/ui/command"
	"github.com/nhle/mistral-chat/internal/ui/conversation"
	helpview "github.com/nhle/mistral-chat/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewBuddies ViewState = iota
	ViewConversation
	ViewAccount
	ViewHelp
	ViewCommand
)

// Deps are the services the UI drives.
type Deps struct {
	Store    store.Store
	Vault    credential.Vault
	Protocol *bridge.Protocol
	Relay    *appsync.Relay
	Config   *model.AppConfig
	Logger   *zap.SugaredLogger
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the connected account.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	ready        bool

	store    store.Store
	vault    credential.Vault
	protocol *bridge.Protocol
	relay    *appsync.Relay
	cfg      *model.AppConfig
	log      *zap.SugaredLogger
	keys     *keys.KeyMap

	account   model.Account
	connected bool
	hasKey    bool
	notice    string

	buddyList    buddylist.Model
	conversation conversation.Model
	convOpen     bool
	helpView     helpview.Model
	commandView  command.Model
	accountView  accountview.Model
}

// New creates the root application model.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	log := d.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	mdStyle := ""
	if d.Config.Display.Markdown {
		mdStyle = d.Config.Display.Theme
	}

	return Model{
		currentView:  ViewBuddies,
		store:        d.Store,
		vault:        d.Vault,
		protocol:     d.Protocol,
		relay:        d.Relay,
		cfg:          d.Config,
		log:          log,
		keys:         k,
		account:      model.Account{ID: d.Config.Account.ID, Username: d.Config.Account.Username},
		buddyList:    buddylist.New(d.Store, k, d.Config.Account.ID, 80, 24),
		conversation: conversation.New(k, mdStyle, 80, 24),
		helpView:     helpview.New(k, d.Protocol.Info(), 80, 24),
		commandView:  command.New(80, 24),
	}
}

// Init signs in the configured account and starts listening for replies.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.signIn(),
		m.relay.WaitForNextReply(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.buddyList.SetSize(w, h)
		m.conversation.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.accountView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case signedInMsg:
		return m.handleSignedIn(msg)

	case appsync.ReplyMsg:
		return m.handleReply(msg)

	case lineSavedMsg:
		if msg.err != nil {
			m.log.Errorw("saving conversation line", "error", msg.err)
		}
		return m, nil

	case statusChangedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Could not set status: %v", msg.err)
			return m, nil
		}
		m.account.StatusID = msg.statusID
		m.account.StatusMessage = msg.message
		m.notice = ""
		return m, nil

	case linesLoadedMsg:
		if msg.err != nil {
			m.log.Errorw("loading conversation", "conversation", msg.handle.String(), "error", msg.err)
		}
		m.conversation.Open(msg.handle, msg.title, m.account.Username, msg.lines)
		m.conversation.SetConnected(m.connected)
		m.conversation.SetPending(m.pendingFor(msg.handle))
		m.convOpen = true
		m.previousView = m.currentView
		m.currentView = ViewConversation
		cmd := m.conversation.Focus()
		return m, cmd

	case linesClearedMsg:
		if msg.err != nil {
			m.conversation.SetNotice(fmt.Sprintf("Could not clear history: %v", msg.err))
		}
		return m, nil

	case buddylist.SelectedBuddyMsg:
		h := model.ConversationHandle{AccountID: m.account.ID, Buddy: msg.Buddy.Name}
		return m, m.loadLines(h, msg.Buddy.DisplayName())

	case conversation.SendMsg:
		return m.handleSend(msg)

	case conversation.CloseMsg:
		m.convOpen = false
		m.currentView = ViewBuddies
		return m, m.buddyList.LoadBuddies()

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(msg)

	case accountview.SavedMsg:
		m.currentView = m.previousView
		m.account = msg.Account
		if msg.KeyChanged {
			m.hasKey = true
		}
		m.protocol.SetUsername(msg.Account.ID, msg.Account.Username)
		return m, m.signIn()

	case accountview.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

func (m Model) handleSignedIn(msg signedInMsg) (tea.Model, tea.Cmd) {
	m.account = msg.account
	m.hasKey = msg.hasKey
	m.connected = msg.err == nil
	m.buddyList.SetAccount(msg.account.ID)
	m.conversation.SetConnected(m.connected)

	switch {
	case errors.Is(msg.err, bridge.ErrMissingAPIKey):
		m.notice = bridge.MissingKeyHint
		// First run: go straight to account settings.
		if m.currentView == ViewBuddies {
			open := m.openAccount()
			return m, tea.Batch(m.buddyList.LoadBuddies(), open)
		}
	case msg.err != nil:
		m.notice = msg.err.Error()
		m.log.Errorw("signing in", "account", msg.account.ID, "error", msg.err)
	default:
		m.notice = ""
	}

	return m, m.buddyList.LoadBuddies()
}

// handleReply renders a finished reply and persists it. The wait command is
// always re-armed so later replies keep flowing.
func (m Model) handleReply(msg appsync.ReplyMsg) (tea.Model, tea.Cmd) {
	line := msg.Line()
	m.relay.Delivered(msg.Handle, msg.Timestamp)

	if m.convOpen {
		m.conversation.AppendLine(line)
		m.conversation.SetPending(m.pendingFor(m.conversation.Handle()))
	}

	listCmd := m.buddyList.SetPending(m.pendingByBuddy())
	return m, tea.Batch(
		m.saveLine(line),
		listCmd,
		m.relay.WaitForNextReply(),
	)
}

func (m Model) handleSend(msg conversation.SendMsg) (tea.Model, tea.Cmd) {
	if !m.protocol.Connected(msg.Handle.AccountID) {
		m.conversation.SetNotice(bridge.MissingKeyHint)
		return m, nil
	}

	line := model.ConversationLine{
		AccountID: msg.Handle.AccountID,
		Buddy:     msg.Handle.Buddy,
		Sender:    m.account.Username,
		Direction: model.DirectionOutgoing,
		Text:      msg.Text,
		Timestamp: time.Now(),
	}
	m.conversation.AppendLine(line)
	m.conversation.SetNotice("")

	m.relay.MarkPending(msg.Handle)
	if m.protocol.SendMessage(msg.Handle, msg.Text) == bridge.SendNotConnected {
		m.relay.Delivered(msg.Handle, time.Now())
		m.conversation.SetNotice(bridge.MissingKeyHint)
	}
	m.conversation.SetPending(m.pendingFor(msg.Handle))

	listCmd := m.buddyList.SetPending(m.pendingByBuddy())
	return m, tea.Batch(m.saveLine(line), listCmd)
}

// handleGlobalKey processes keys that work regardless of the active view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	typing := m.currentView == ViewConversation ||
		m.currentView == ViewAccount ||
		m.currentView == ViewCommand ||
		(m.currentView == ViewBuddies && m.buddyList.Searching())

	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		m.relay.Stop()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Clear):
		if m.currentView == ViewConversation {
			cmd := m.clearConversation()
			return m, cmd, true
		}

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp || m.currentView == ViewCommand || m.currentView == ViewAccount {
			m.currentView = m.previousView
			return m, nil, true
		}
	}

	if typing {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewBuddies {
			m.relay.Stop()
			return m, tea.Quit, true
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case key.Matches(msg, m.keys.Account):
		if m.currentView == ViewBuddies {
			cmd := m.openAccount()
			return m, cmd, true
		}
	}

	return m, nil, false
}

func (m *Model) openAccount() tea.Cmd {
	m.accountView = accountview.New(
		m.store, m.vault, m.account, m.hasKey,
		m.layout.ContentWidth(), m.layout.ContentHeight(),
	)
	if m.currentView != ViewAccount {
		m.previousView = m.currentView
	}
	m.currentView = ViewAccount
	return m.accountView.Init()
}

// executeCommand handles a parsed command from the command palette.
func (m Model) executeCommand(c command.CommandMsg) (tea.Model, tea.Cmd) {
	switch c.Name {
	case command.CmdStatus:
		return m, m.setStatus(c.StatusID, c.Message)
	case command.CmdClear:
		if m.convOpen {
			cmd := m.clearConversation()
			return m, cmd
		}
	case command.CmdAccount:
		cmd := m.openAccount()
		return m, cmd
	case command.CmdHelp:
		m.previousView = m.currentView
		m.currentView = ViewHelp
	case command.CmdQuit:
		m.relay.Stop()
		return m, tea.Quit
	}
	return m, nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewBuddies:
		m.buddyList, cmd = m.buddyList.Update(msg)
	case ViewConversation:
		m.conversation, cmd = m.conversation.Update(msg)
	case ViewAccount:
		m.accountView, cmd = m.accountView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Mistral Chat", m.presenceSummary())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewBuddies:
		return m.buddyList.View()
	case ViewConversation:
		return m.conversation.View()
	case ViewAccount:
		return m.accountView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// presenceSummary describes the local account for the header.
func (m Model) presenceSummary() string {
	name := m.account.Username
	if name == "" {
		name = m.account.ID
	}
	if !m.connected {
		return name + " · offline"
	}

	s := name + " · " + m.account.StatusID
	if m.account.StatusMessage != "" {
		s += " (" + m.account.StatusMessage + ")"
	}
	if n := m.relay.Pending(); n > 0 {
		s += fmt.Sprintf(" · %d pending", n)
	}
	return s
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.notice != "" && m.currentView == ViewBuddies {
		return m.notice
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewConversation:
		return "enter send | pgup/pgdn scroll | ctrl+l clear | esc back"
	case ViewAccount:
		return "enter next | esc cancel"
	default:
		return "q quit | ? help | enter open | / search | c account | : command"
	}
}

// pendingFor returns the outstanding reply count for one conversation.
func (m Model) pendingFor(h model.ConversationHandle) int {
	for _, st := range m.relay.GetStatuses() {
		if st.Handle == h {
			return st.Pending
		}
	}
	return 0
}

// pendingByBuddy maps buddy names of the current account to pending counts.
func (m Model) pendingByBuddy() map[string]int {
	out := make(map[string]int)
	for _, st := range m.relay.GetStatuses() {
		if st.Handle.AccountID == m.account.ID && st.Pending > 0 {
			out[st.Handle.Buddy] = st.Pending
		}
	}
	return out
}

package conversation

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mistral-chat/internal/keys"
	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/theme"
)

// CloseMsg signals the parent to close the conversation window.
type CloseMsg struct{}

// SendMsg asks the parent to send text to the open conversation.
type SendMsg struct {
	Handle model.ConversationHandle
	Text   string
}

// Model is a conversation window with one buddy: a scrolling transcript
// above a multi-line input.
type Model struct {
	handle    model.ConversationHandle
	title     string
	self      string
	input     textarea.Model
	viewport  viewport.Model
	lines     []model.ConversationLine
	rendered  []string
	renderer  *markdown
	pending   int
	connected bool
	notice    string
	keys      *keys.KeyMap
	width     int
	height    int
}

// New creates an empty conversation window. markdownStyle is "" to render
// replies as plain text, otherwise a glamour style name or "auto".
func New(k *keys.KeyMap, markdownStyle string, width, height int) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetWidth(width - 4)
	ta.SetHeight(3)
	ta.CharLimit = 4000
	ta.Focus()

	vp := viewport.New(width-4, viewportHeight(height))
	vp.Style = lipgloss.NewStyle()

	var r *markdown
	if markdownStyle != "" {
		r = newMarkdown(markdownStyle, width-6)
	}

	return Model{
		input:    ta,
		viewport: vp,
		renderer: r,
		keys:     k,
		width:    width,
		height:   height,
	}
}

func viewportHeight(height int) int {
	h := height - 9 // title, separator, input area, borders
	if h < 4 {
		h = 4
	}
	return h
}

// Open switches the window to a conversation and loads its transcript.
func (m *Model) Open(h model.ConversationHandle, title, self string, lines []model.ConversationLine) {
	m.handle = h
	m.title = title
	m.self = self
	m.lines = append(m.lines[:0], lines...)
	m.rendered = make([]string, len(m.lines))
	m.notice = ""
	m.input.Reset()
	m.refreshViewport()
}

// Handle returns the open conversation.
func (m Model) Handle() model.ConversationHandle { return m.handle }

// AppendLine adds a line if it belongs to the open conversation.
func (m *Model) AppendLine(line model.ConversationLine) bool {
	if line.AccountID != m.handle.AccountID || line.Buddy != m.handle.Buddy {
		return false
	}
	m.lines = append(m.lines, line)
	m.rendered = append(m.rendered, "")
	m.refreshViewport()
	return true
}

// SetPending sets the number of replies still outstanding.
func (m *Model) SetPending(n int) {
	m.pending = n
	m.refreshViewport()
}

// SetConnected toggles the input between usable and the login hint.
func (m *Model) SetConnected(ok bool) {
	m.connected = ok
}

// SetNotice shows a one-line notice under the transcript.
func (m *Model) SetNotice(s string) {
	m.notice = s
}

// Clear empties the visible transcript.
func (m *Model) Clear() {
	m.lines = m.lines[:0]
	m.rendered = m.rendered[:0]
	m.refreshViewport()
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the conversation window.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeyMsg(msg)
	}

	var cmds []tea.Cmd

	var taCmd tea.Cmd
	m.input, taCmd = m.input.Update(msg)
	if taCmd != nil {
		cmds = append(cmds, taCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	if vpCmd != nil {
		cmds = append(cmds, vpCmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input for the conversation window.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg {
			return CloseMsg{}
		}

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.PageUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.PageDown()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		if !m.connected {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		h := m.handle
		return m, func() tea.Msg {
			return SendMsg{Handle: h, Text: text}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refreshViewport re-renders the transcript and scrolls to the bottom.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	if len(m.lines) == 0 {
		return theme.HelpStyle.Render("No messages yet. Say hello to " + m.title + ".")
	}

	sections := make([]string, 0, len(m.lines)*2+1)
	for i, line := range m.lines {
		if m.rendered[i] == "" {
			m.rendered[i] = m.renderLine(line)
		}
		sections = append(sections, m.rendered[i])
	}

	if m.pending > 0 {
		sections = append(sections, theme.HelpStyle.Render(m.title+" is typing..."))
	}

	return strings.Join(sections, "\n")
}

// renderLine formats one transcript entry: a header with time and sender,
// then the body.
func (m *Model) renderLine(line model.ConversationLine) string {
	nameStyle := theme.PeerNameStyle
	if !line.Incoming() {
		nameStyle = theme.SelfNameStyle
	}
	header := theme.TimestampStyle.Render("("+line.Timestamp.Local().Format("15:04:05")+") ") +
		nameStyle.Render(line.Sender+":")

	var body string
	switch {
	case line.IsError:
		body = theme.ErrorLineStyle.Width(m.width - 6).Render(line.Text)
	case line.Incoming() && m.renderer != nil:
		body = m.renderer.Render(line.Text)
	default:
		body = lipgloss.NewStyle().Foreground(theme.ColorWhite).Width(m.width - 6).Render(line.Text)
	}

	return header + "\n" + body + "\n"
}

// View renders the conversation window.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render(m.title)

	separator := lipgloss.NewStyle().Foreground(theme.ColorSubtle).Render(
		strings.Repeat("─", max(0, min(m.width-6, 80))),
	)

	bottom := m.input.View()
	if !m.connected {
		bottom = theme.NoticeStyle.Render("Not connected. Press esc, then c to set your API key.")
	}

	parts := []string{title, m.viewport.View(), separator, bottom}
	if m.notice != "" {
		parts = append(parts, theme.ErrorLineStyle.Render(m.notice))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the window dimensions and re-wraps the transcript.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width - 4)
	m.viewport.Width = width - 4
	m.viewport.Height = viewportHeight(height)
	if m.renderer != nil {
		m.renderer.SetWidth(width - 6)
	}
	for i := range m.rendered {
		m.rendered[i] = ""
	}
	m.refreshViewport()
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

// Lines returns the transcript currently shown.
func (m Model) Lines() []model.ConversationLine {
	return m.lines
}

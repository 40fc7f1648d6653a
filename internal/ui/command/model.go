package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/theme"
)

// Command names understood by the palette.
const (
	CmdStatus  = "status"
	CmdAway    = "away"
	CmdBack    = "back"
	CmdClear   = "clear"
	CmdAccount = "account"
	CmdHelp    = "help"
	CmdQuit    = "quit"
)

// CommandMsg is emitted when the user executes a valid command.
type CommandMsg struct {
	Name string

	// StatusID and Message are set for presence commands.
	StatusID string
	Message  string
}

// Parse turns palette input into a CommandMsg.
func Parse(input string) (CommandMsg, error) {
	input = strings.TrimSpace(input)
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)
	name = strings.ToLower(name)

	switch name {
	case CmdStatus:
		id, msg, _ := strings.Cut(rest, " ")
		id = strings.ToLower(id)
		if !model.ValidStatus(id) {
			return CommandMsg{}, fmt.Errorf("unknown status %q", id)
		}
		return CommandMsg{Name: CmdStatus, StatusID: id, Message: strings.TrimSpace(msg)}, nil
	case CmdAway:
		return CommandMsg{Name: CmdStatus, StatusID: model.StatusAway, Message: rest}, nil
	case CmdBack:
		return CommandMsg{Name: CmdStatus, StatusID: model.StatusAvailable}, nil
	case CmdClear, CmdAccount, CmdHelp:
		return CommandMsg{Name: name}, nil
	case CmdQuit, "q":
		return CommandMsg{Name: CmdQuit}, nil
	case "":
		return CommandMsg{}, fmt.Errorf("empty command")
	}
	return CommandMsg{}, fmt.Errorf("unknown command %q", name)
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "status away out to lunch"
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				return m, nil
			}
			parsed, err := Parse(raw)
			if err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg {
				return parsed
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Command Palette"), m.input.View()}
	if m.err != "" {
		parts = append(parts, theme.ErrorLineStyle.Render(m.err))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.err = ""
	return m.input.Focus()
}

package buddylist

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mistral-chat/internal/keys"
	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/store"
	"github.com/nhle/mistral-chat/internal/theme"
)

// BuddiesLoadedMsg is sent when the buddy list has been loaded from the store.
type BuddiesLoadedMsg struct {
	Buddies []model.Buddy
	Err     error
}

// SelectedBuddyMsg is sent when the user opens a conversation.
type SelectedBuddyMsg struct {
	Buddy model.Buddy
}

// Model is the buddy list view.
type Model struct {
	list        list.Model
	store       store.Store
	keys        *keys.KeyMap
	accountID   string
	buddies     []model.Buddy
	pending     map[string]int
	query       string
	searchMode  bool
	searchInput textinput.Model
	loadErr     error
	width       int
	height      int
}

// New creates a buddy list for accountID.
func New(s store.Store, k *keys.KeyMap, accountID string, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Buddies"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "filter buddies..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		store:       s,
		keys:        k,
		accountID:   accountID,
		pending:     make(map[string]int),
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init returns a command that loads the buddy list.
func (m Model) Init() tea.Cmd {
	return m.LoadBuddies()
}

// Update handles messages for the buddy list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case BuddiesLoadedMsg:
		m.loadErr = msg.Err
		m.buddies = msg.Buddies
		return m, m.refreshItems()

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in filter mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.query = strings.TrimSpace(m.searchInput.Value())
		return m, m.refreshItems()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.query = ""
		return m, m.refreshItems()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(BuddyItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedBuddyMsg{Buddy: item.Buddy}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()
	}

	// Delegate to the list for navigation keys.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SetPending records how many replies are outstanding per buddy name.
func (m *Model) SetPending(pending map[string]int) tea.Cmd {
	m.pending = pending
	return m.refreshItems()
}

// Searching reports whether the filter input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// SetAccount switches the list to another account's buddies.
func (m *Model) SetAccount(accountID string) {
	m.accountID = accountID
}

func (m *Model) refreshItems() tea.Cmd {
	q := strings.ToLower(m.query)
	items := make([]list.Item, 0, len(m.buddies))
	for _, b := range m.buddies {
		item := BuddyItem{Buddy: b, Pending: m.pending[b.Name]}
		if q != "" && !strings.Contains(strings.ToLower(item.FilterValue()), q) {
			continue
		}
		items = append(items, item)
	}
	return m.list.SetItems(items)
}

// View renders the buddy list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when the list is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loadErr != nil:
		return style.Render("Could not load buddies:\n" + m.loadErr.Error())
	case m.query != "":
		return style.Render("No buddies match \"" + m.query + "\".")
	}
	return style.Render(
		"No buddies yet.\n\n" +
			"Press c to set your API key and sign in.",
	)
}

// LoadBuddies returns a tea.Cmd that reads the account's buddies.
func (m Model) LoadBuddies() tea.Cmd {
	s := m.store
	accountID := m.accountID
	return func() tea.Msg {
		buddies, err := s.GetBuddies(context.Background(), accountID)
		return BuddiesLoadedMsg{Buddies: buddies, Err: err}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}

package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mistral-chat/internal/credential"
	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/store"
	"github.com/nhle/mistral-chat/internal/theme"
)

// SavedMsg signals the account settings were persisted.
type SavedMsg struct {
	Account model.Account

	// KeyChanged is true when a new API key was stored.
	KeyChanged bool
}

// CancelMsg signals the form was dismissed without saving.
type CancelMsg struct{}

// savedInternalMsg is sent after the store and vault writes finish.
type savedInternalMsg struct {
	account    model.Account
	keyChanged bool
	err        error
}

type formFields struct {
	username string
	status   string
	message  string
	apiKey   string
}

// Model is the account settings form.
type Model struct {
	store store.Store
	vault credential.Vault
	acct  model.Account
	form  *huh.Form

	// huh binds to these; the pointer keeps them shared across model copies.
	fields *formFields

	hasKey    bool
	saving    bool
	statusMsg string

	width, height int
}

// New creates the settings form for acct. hasKey reports whether a key is
// already stored, in which case leaving the key field blank keeps it.
func New(s store.Store, v credential.Vault, acct model.Account, hasKey bool, width, height int) Model {
	f := &formFields{
		username: acct.Username,
		status:   acct.StatusID,
		message:  acct.StatusMessage,
	}
	if f.status != model.StatusAway {
		f.status = model.StatusAvailable
	}
	m := Model{
		store:  s,
		vault:  v,
		acct:   acct,
		fields: f,
		hasKey: hasKey,
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	keyDesc := "Your Mistral API key"
	keyValidate := validateRequired("API key")
	if m.hasKey {
		keyDesc = "Leave blank to keep the stored key"
		keyValidate = nil
	}

	key := huh.NewInput().
		Title("API Key").
		Description(keyDesc).
		EchoMode(huh.EchoModePassword).
		Value(&m.fields.apiKey)
	if keyValidate != nil {
		key = key.Validate(keyValidate)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Description("Shown to the assistant as your screen name").
				Placeholder("alice").
				Value(&m.fields.username).
				Validate(validateRequired("Username")),
			huh.NewSelect[string]().
				Title("Status").
				Options(
					huh.NewOption("Available", model.StatusAvailable),
					huh.NewOption("Away", model.StatusAway),
				).
				Value(&m.fields.status),
			huh.NewInput().
				Title("Status Message").
				Description("Optional").
				Value(&m.fields.message),
			key,
		),
	).WithWidth(m.formWidth())
}

func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards input to the form and saves on completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case savedInternalMsg:
		m.saving = false
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving account: %v", msg.err)
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, func() tea.Msg {
			return SavedMsg{Account: msg.account, KeyChanged: msg.keyChanged}
		}

	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	}

	if m.saving {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.saving = true
		return m, m.save()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// save writes the account row and, when given, the API key.
func (m Model) save() tea.Cmd {
	acct := m.acct
	acct.Username = strings.TrimSpace(m.fields.username)
	acct.StatusID = m.fields.status
	acct.StatusMessage = strings.TrimSpace(m.fields.message)
	acct.UpdatedAt = time.Now()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = acct.UpdatedAt
	}
	apiKey := strings.TrimSpace(m.fields.apiKey)
	s, v := m.store, m.vault

	return func() tea.Msg {
		if err := s.UpsertAccount(context.Background(), acct); err != nil {
			return savedInternalMsg{err: err}
		}
		if apiKey == "" {
			return savedInternalMsg{account: acct}
		}
		if err := v.Set(credential.APIKeyName(acct.ID), apiKey); err != nil {
			return savedInternalMsg{err: fmt.Errorf("storing api key: %w", err)}
		}
		return savedInternalMsg{account: acct, keyChanged: true}
	}
}

// View renders the form.
func (m Model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	b.WriteString(titleStyle.Render("Account Settings"))
	b.WriteString("\n\n")

	if m.saving {
		b.WriteString(theme.NoticeStyle.Render("Saving..."))
	} else {
		b.WriteString(m.form.View())
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.ErrorLineStyle.Render(m.statusMsg))
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

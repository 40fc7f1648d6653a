package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/store"
)

// historyLimit bounds how many lines a reopened conversation shows.
const historyLimit = 200

// signedInMsg is sent after the account row exists and login was attempted.
type signedInMsg struct {
	account model.Account
	hasKey  bool
	err     error
}

type lineSavedMsg struct {
	err error
}

type linesLoadedMsg struct {
	handle model.ConversationHandle
	title  string
	lines  []model.ConversationLine
	err    error
}

type linesClearedMsg struct {
	err error
}

type statusChangedMsg struct {
	statusID string
	message  string
	err      error
}

// signIn ensures the current account exists in the store and connects it.
func (m Model) signIn() tea.Cmd {
	s, p := m.store, m.protocol
	want := m.account

	return func() tea.Msg {
		ctx := context.Background()

		acct, err := s.GetAccount(ctx, want.ID)
		if errors.Is(err, store.ErrAccountNotFound) {
			now := time.Now()
			username := want.Username
			if username == "" {
				username = want.ID
			}
			acct = &model.Account{
				ID:        want.ID,
				Username:  username,
				StatusID:  model.StatusOffline,
				CreatedAt: now,
				UpdatedAt: now,
			}
			err = s.UpsertAccount(ctx, *acct)
		}
		if err != nil {
			return signedInMsg{account: want, err: err}
		}

		// Keep the presence chosen in settings, or else the one stored by
		// the previous session.
		statusID, statusMsg := want.StatusID, want.StatusMessage
		if statusID == "" {
			statusID, statusMsg = acct.StatusID, acct.StatusMessage
		}

		hasKey := p.HasAPIKey(acct.ID)
		if err := p.Login(ctx, acct.ID); err != nil {
			return signedInMsg{account: *acct, hasKey: hasKey, err: err}
		}
		acct.StatusID = model.StatusAvailable

		if statusID == model.StatusAway {
			if err := p.SetStatus(ctx, acct.ID, statusID, statusMsg); err != nil {
				return signedInMsg{account: *acct, hasKey: hasKey, err: err}
			}
			acct.StatusID = statusID
			acct.StatusMessage = statusMsg
		}

		return signedInMsg{account: *acct, hasKey: hasKey}
	}
}

func (m Model) saveLine(line model.ConversationLine) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		return lineSavedMsg{err: s.AppendLine(context.Background(), line)}
	}
}

// loadLines reads the recent transcript for h before the window opens.
func (m Model) loadLines(h model.ConversationHandle, title string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		lines, err := s.GetLines(context.Background(), store.LineFilter{
			AccountID: h.AccountID,
			Buddy:     h.Buddy,
			Limit:     historyLimit,
		})
		return linesLoadedMsg{handle: h, title: title, lines: lines, err: err}
	}
}

// clearConversation empties the open window now and its history in the
// background.
func (m *Model) clearConversation() tea.Cmd {
	h := m.conversation.Handle()
	m.conversation.Clear()

	s := m.store
	return func() tea.Msg {
		return linesClearedMsg{err: s.ClearLines(context.Background(), h.AccountID, h.Buddy)}
	}
}

func (m Model) setStatus(statusID, message string) tea.Cmd {
	p := m.protocol
	id := m.account.ID
	return func() tea.Msg {
		err := p.SetStatus(context.Background(), id, statusID, message)
		return statusChangedMsg{statusID: statusID, message: message, err: err}
	}
}

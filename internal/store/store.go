package store

import (
	"context"
	"errors"

	"github.com/nhle/mistral-chat/internal/model"
)

// ErrAccountNotFound is returned when an account id has no row.
var ErrAccountNotFound = errors.New("account not found")

// LineFilter selects conversation lines for display.
type LineFilter struct {
	AccountID string
	Buddy     string
	Limit     int // most recent N; 0 means all
}

// Store defines the persistence interface for accounts, buddy lists and
// conversation transcripts.
type Store interface {
	// === Accounts ===

	UpsertAccount(ctx context.Context, acct model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccounts(ctx context.Context) ([]model.Account, error)
	SetAccountStatus(ctx context.Context, id, statusID, statusMessage string) error
	DeleteAccount(ctx context.Context, id string) error

	// === Buddies ===

	UpsertBuddy(ctx context.Context, b model.Buddy) error
	GetBuddies(ctx context.Context, accountID string) ([]model.Buddy, error)
	SetBuddyStatus(ctx context.Context, accountID, name, statusID string) error

	// === Conversation lines ===

	AppendLine(ctx context.Context, line model.ConversationLine) error
	GetLines(ctx context.Context, filter LineFilter) ([]model.ConversationLine, error)
	ClearLines(ctx context.Context, accountID, buddy string) error
}

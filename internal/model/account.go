package model

import "time"

// Presence status identifiers.
const (
	StatusAvailable = "available"
	StatusAway      = "away"
	StatusOffline   = "offline"
)

// ValidStatus reports whether id is a known presence status.
func ValidStatus(id string) bool {
	switch id {
	case StatusAvailable, StatusAway, StatusOffline:
		return true
	}
	return false
}

// Account is a local identity that talks to the assistant.
// The API key is never stored here; it lives in the credential vault.
type Account struct {
	ID            string    `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	StatusID      string    `json:"status_id" db:"status_id"`
	StatusMessage string    `json:"status_message" db:"status_message"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

	// Connected is runtime state and is not persisted.
	Connected bool `json:"-" db:"-"`
}

// Assistant buddy identity.
const (
	AssistantBuddyName  = "mistral-ai"
	AssistantBuddyAlias = "Mistral AI"
)

// Buddy is a contact on an account's buddy list.
type Buddy struct {
	AccountID string    `json:"account_id" db:"account_id"`
	Name      string    `json:"name" db:"name"`
	Alias     string    `json:"alias" db:"alias"`
	StatusID  string    `json:"status_id" db:"status_id"`
	Icon      string    `json:"icon" db:"icon"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the alias, or the name when no alias is set.
func (b Buddy) DisplayName() string {
	if b.Alias != "" {
		return b.Alias
	}
	return b.Name
}

// Online reports whether the buddy is in any non-offline state.
func (b Buddy) Online() bool {
	return b.StatusID != "" && b.StatusID != StatusOffline
}

package model

import "time"

// Line direction values.
const (
	DirectionOutgoing = "out"
	DirectionIncoming = "in"
)

// ConversationLine is one rendered line in a buddy conversation.
// Lines are kept for redisplay only; requests never include them.
type ConversationLine struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Buddy     string    `json:"buddy" db:"buddy"`
	Sender    string    `json:"sender" db:"sender"`
	Direction string    `json:"direction" db:"direction"`
	Text      string    `json:"text" db:"text"`
	IsError   bool      `json:"is_error" db:"is_error"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// Incoming reports whether the line was written by the remote side.
func (l ConversationLine) Incoming() bool {
	return l.Direction == DirectionIncoming
}

// ConversationHandle identifies the conversation a reply belongs to.
type ConversationHandle struct {
	AccountID string
	Buddy     string
}

func (h ConversationHandle) String() string {
	return h.AccountID + "/" + h.Buddy
}

// MessageFlags qualify a line written into a conversation.
type MessageFlags uint8

const (
	FlagReceived MessageFlags = 1 << iota
	FlagError
)

func (f MessageFlags) Has(flag MessageFlags) bool { return f&flag != 0 }

// Package bridge connects a chat host to the completion pipeline: account
// login, fire-and-forget sends, presence and plugin metadata.
package bridge

import (
	"context"
	"time"

	"github.com/nhle/mistral-chat/internal/model"
)

// LoginHandler connects and disconnects accounts.
type LoginHandler interface {
	Login(ctx context.Context, accountID string) error
	Close(ctx context.Context, accountID string) error
}

// SendResult reports whether a message was taken for delivery.
type SendResult int

const (
	SendAccepted SendResult = iota
	SendNotConnected
)

func (r SendResult) String() string {
	if r == SendAccepted {
		return "accepted"
	}
	return "not_connected"
}

// SendHandler accepts outgoing messages. SendMessage must return before
// any network I/O; the reply arrives later through a ConversationWriter.
type SendHandler interface {
	SendMessage(h model.ConversationHandle, text string) SendResult
}

// StatusType is a presence state offered to the user.
type StatusType struct {
	ID        string
	Name      string
	Available bool
}

// StatusProvider describes presence options and list decoration.
type StatusProvider interface {
	StatusTypes() []StatusType
	ListIcon() string
}

// ConversationWriter renders a line into a conversation. It may be called
// from any goroutine.
type ConversationWriter interface {
	WriteToConversation(h model.ConversationHandle, sender, text string, ts time.Time, flags model.MessageFlags)
}

// ConversationWriterFunc adapts a function to ConversationWriter.
type ConversationWriterFunc func(h model.ConversationHandle, sender, text string, ts time.Time, flags model.MessageFlags)

func (f ConversationWriterFunc) WriteToConversation(h model.ConversationHandle, sender, text string, ts time.Time, flags model.MessageFlags) {
	f(h, sender, text, ts, flags)
}

// Info is the plugin's registration metadata.
type Info struct {
	ID          string
	Name        string
	Version     string
	Summary     string
	Description string
	Homepage    string
}

// Package sync carries finished replies from request workers onto the
// Bubble Tea event loop.
package sync

import (
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mistral-chat/internal/model"
)

// ReplyMsg is a tea.Msg carrying one line for a conversation.
type ReplyMsg struct {
	Handle    model.ConversationHandle
	Sender    string
	Text      string
	Flags     model.MessageFlags
	Timestamp time.Time
}

// Line converts the reply into a persistable conversation line.
func (r ReplyMsg) Line() model.ConversationLine {
	return model.ConversationLine{
		AccountID: r.Handle.AccountID,
		Buddy:     r.Handle.Buddy,
		Sender:    r.Sender,
		Direction: model.DirectionIncoming,
		Text:      r.Text,
		IsError:   r.Flags.Has(model.FlagError),
		Timestamp: r.Timestamp,
	}
}

// PendingState describes a conversation's outstanding work.
type PendingState int

const (
	PendingIdle PendingState = iota
	PendingWaiting
)

// ConversationStatus holds the pending count for one conversation.
type ConversationStatus struct {
	Handle    model.ConversationHandle
	State     PendingState
	Pending   int
	LastReply time.Time
}

// Relay is the conversation writer used by request workers. Writes block
// the calling worker, never the event loop, until the loop takes them or
// the relay stops.
type Relay struct {
	resultCh chan ReplyMsg
	stopCh   chan struct{}
	mu       gosync.Mutex
	statuses map[model.ConversationHandle]*ConversationStatus
	stopped  bool
}

// New creates a Relay with a small buffer between workers and the loop.
func New() *Relay {
	return &Relay{
		resultCh: make(chan ReplyMsg, 16),
		stopCh:   make(chan struct{}),
		statuses: make(map[model.ConversationHandle]*ConversationStatus),
	}
}

// MarkPending records that a reply is expected for h.
func (r *Relay) MarkPending(h model.ConversationHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[h]
	if !ok {
		st = &ConversationStatus{Handle: h}
		r.statuses[h] = st
	}
	st.Pending++
	st.State = PendingWaiting
}

// WriteToConversation queues a line for the loop. It returns once the line
// is queued or the relay has stopped.
func (r *Relay) WriteToConversation(h model.ConversationHandle, sender, text string, ts time.Time, flags model.MessageFlags) {
	msg := ReplyMsg{Handle: h, Sender: sender, Text: text, Flags: flags, Timestamp: ts}
	select {
	case r.resultCh <- msg:
	case <-r.stopCh:
	}
}

// Delivered is called by the loop once it has handled a ReplyMsg.
func (r *Relay) Delivered(h model.ConversationHandle, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.statuses[h]
	if !ok {
		return
	}
	if st.Pending > 0 {
		st.Pending--
	}
	if st.Pending == 0 {
		st.State = PendingIdle
	}
	st.LastReply = at
}

// Pending returns the number of replies still expected across all
// conversations.
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, st := range r.statuses {
		n += st.Pending
	}
	return n
}

// GetStatuses returns a copy of every tracked conversation's status.
func (r *Relay) GetStatuses() []ConversationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ConversationStatus, 0, len(r.statuses))
	for _, st := range r.statuses {
		out = append(out, *st)
	}
	return out
}

// Stop releases any worker blocked in WriteToConversation.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	close(r.stopCh)
	r.stopped = true
}

// WaitForNextReply returns a tea.Cmd that blocks until a reply is queued.
// Call it again after handling each ReplyMsg to keep listening.
func (r *Relay) WaitForNextReply() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-r.resultCh:
			return msg
		case <-r.stopCh:
			return nil
		}
	}
}

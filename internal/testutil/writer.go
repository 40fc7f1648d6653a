package testutil

import (
	"sync"
	"time"

	"github.com/nhle/mistral-chat/internal/model"
)

// WrittenLine is one call recorded by RecordingWriter.
type WrittenLine struct {
	Handle    model.ConversationHandle
	Sender    string
	Text      string
	Timestamp time.Time
	Flags     model.MessageFlags
}

// RecordingWriter is a conversation writer that remembers every call.
type RecordingWriter struct {
	mu    sync.Mutex
	lines []WrittenLine
}

func NewRecordingWriter() *RecordingWriter {
	return &RecordingWriter{}
}

func (w *RecordingWriter) WriteToConversation(h model.ConversationHandle, sender, text string, ts time.Time, flags model.MessageFlags) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, WrittenLine{Handle: h, Sender: sender, Text: text, Timestamp: ts, Flags: flags})
}

// Lines returns a copy of the recorded calls.
func (w *RecordingWriter) Lines() []WrittenLine {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WrittenLine, len(w.lines))
	copy(out, w.lines)
	return out
}

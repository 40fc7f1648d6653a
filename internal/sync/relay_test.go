package sync

import (
	"testing"
	"time"

	"github.com/nhle/mistral-chat/internal/model"
)

var handle = model.ConversationHandle{AccountID: "acct", Buddy: model.AssistantBuddyName}

func TestRelayDeliversOnLoop(t *testing.T) {
	r := New()
	defer r.Stop()

	r.MarkPending(handle)
	if r.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", r.Pending())
	}

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	go r.WriteToConversation(handle, "Mistral AI", "hello", ts, model.FlagReceived)

	msg := r.WaitForNextReply()()
	reply, ok := msg.(ReplyMsg)
	if !ok {
		t.Fatalf("got %T, want ReplyMsg", msg)
	}
	if reply.Text != "hello" || reply.Sender != "Mistral AI" || !reply.Timestamp.Equal(ts) {
		t.Errorf("unexpected reply: %+v", reply)
	}

	line := reply.Line()
	if !line.Incoming() || line.IsError {
		t.Errorf("unexpected line: %+v", line)
	}

	r.Delivered(handle, ts)
	if r.Pending() != 0 {
		t.Errorf("Pending after delivery = %d", r.Pending())
	}
	st := r.GetStatuses()
	if len(st) != 1 || st[0].State != PendingIdle || !st[0].LastReply.Equal(ts) {
		t.Errorf("statuses = %+v", st)
	}
}

func TestRelayErrorFlag(t *testing.T) {
	r := New()
	defer r.Stop()

	go r.WriteToConversation(handle, "Mistral AI", "Error: No choices in Mistral response.", time.Now(), model.FlagReceived|model.FlagError)
	reply := r.WaitForNextReply()().(ReplyMsg)
	if !reply.Line().IsError {
		t.Error("error flag lost")
	}
}

func TestRelayStopUnblocksWriters(t *testing.T) {
	r := New()

	// Fill the buffer so the next write blocks.
	for i := 0; i < cap(r.resultCh); i++ {
		r.WriteToConversation(handle, "s", "x", time.Now(), 0)
	}

	done := make(chan struct{})
	go func() {
		r.WriteToConversation(handle, "s", "blocked", time.Now(), 0)
		close(done)
	}()

	r.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer still blocked after Stop")
	}

	r.Stop()
}

package cmd

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/mistral-chat/internal/completion"
)

func TestLogAbandonedNamesEachRequest(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core).Sugar()

	now := time.Now()
	logAbandoned(log, []completion.InFlightRequest{
		{ID: "req_a", State: completion.StateAwaitingTransport, SubmittedAt: now.Add(-7 * time.Second)},
		{ID: "req_b", State: completion.StateDispatched, SubmittedAt: now.Add(-time.Second)},
	}, now)

	entries := logs.FilterMessage("abandoning request").All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	first := entries[0].ContextMap()
	if first["request_id"] != "req_a" || first["state"] != "awaiting_transport" {
		t.Errorf("fields = %v", first)
	}
	if first["age"] != 7*time.Second {
		t.Errorf("age = %v", first["age"])
	}
}

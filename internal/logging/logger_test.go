package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zapcore.DebugLevel)

	log.Debugw("received chunk", "bytes", 42)
	_ = log.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "received chunk" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "debug" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["bytes"] != float64(42) {
		t.Errorf("bytes = %v", entry["bytes"])
	}
}

func TestNewWithWriterFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zapcore.WarnLevel)

	log.Infow("hidden")
	log.Warnw("shown")
	_ = log.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "chatty"})
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "client.log")
	log, closeFn, err := New(Options{Path: path, Debug: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Infow("hello")
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

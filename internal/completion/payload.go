// Package completion turns one user message into one conversation reply by
// calling the chat-completions endpoint off the caller's goroutine.
package completion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequestContext is the snapshot of caller state a request is built from.
// It is copied on submission.
type RequestContext struct {
	Message       string
	Username      string
	StatusID      string
	StatusMessage string
}

// Settings are the per-client knobs placed in every payload.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64

	// HostName names the client in the system line.
	HostName string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// SystemLine renders the presence summary sent ahead of the user's message.
func SystemLine(hostName string, rc RequestContext) string {
	return fmt.Sprintf("User's %s username: %s, status: %s, status message: %s",
		hostName, rc.Username, rc.StatusID, rc.StatusMessage)
}

// Build serializes the request body: a system line followed by the user's
// message. Control characters, including NUL, are escaped as \u00XX.
func Build(rc RequestContext, s Settings) ([]byte, error) {
	req := chatRequest{
		Model: s.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemLine(s.HostName, rc)},
			{Role: "user", Content: rc.Message},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

package completion

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferFull is returned when a chunk would push the buffer past its limit.
	ErrBufferFull = errors.New("response exceeds buffer limit")

	// ErrBufferFrozen is returned for writes after the transport finished.
	ErrBufferFrozen = errors.New("response buffer is frozen")
)

// ResponseBuffer accumulates a response body in arrival order, up to a
// fixed limit. A rejected write leaves earlier contents untouched.
type ResponseBuffer struct {
	data   []byte
	limit  int
	frozen bool
}

// NewResponseBuffer returns an empty buffer accepting at most limit bytes.
func NewResponseBuffer(limit int) *ResponseBuffer {
	return &ResponseBuffer{limit: limit}
}

// Write appends p. It either accepts all of p or none of it.
func (b *ResponseBuffer) Write(p []byte) (int, error) {
	if b.frozen {
		return 0, ErrBufferFrozen
	}
	if len(b.data)+len(p) > b.limit {
		return 0, fmt.Errorf("appending %d bytes at %d/%d: %w", len(p), len(b.data), b.limit, ErrBufferFull)
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// Freeze rejects all further writes.
func (b *ResponseBuffer) Freeze() { b.frozen = true }

// Bytes returns the accumulated body. The slice must not be modified.
func (b *ResponseBuffer) Bytes() []byte { return b.data }

// Len is the number of bytes accepted so far.
func (b *ResponseBuffer) Len() int { return len(b.data) }

// Release drops the accumulated bytes.
func (b *ResponseBuffer) Release() {
	b.data = nil
	b.frozen = true
}

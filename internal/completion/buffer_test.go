package completion

import (
	"errors"
	"testing"
)

func TestResponseBufferAppendsInOrder(t *testing.T) {
	t.Parallel()

	buf := NewResponseBuffer(64)
	for _, chunk := range []string{`{"cho`, `ices":`, `[]}`} {
		n, err := buf.Write([]byte(chunk))
		if err != nil {
			t.Fatalf("Write(%q) failed: %v", chunk, err)
		}
		if n != len(chunk) {
			t.Fatalf("Write(%q) = %d, want %d", chunk, n, len(chunk))
		}
	}
	if got := string(buf.Bytes()); got != `{"choices":[]}` {
		t.Errorf("Bytes = %q", got)
	}
}

func TestResponseBufferRejectsOverflowWholesale(t *testing.T) {
	t.Parallel()

	buf := NewResponseBuffer(8)
	if _, err := buf.Write([]byte("12345")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	n, err := buf.Write([]byte("6789"))
	if !errors.Is(err, ErrBufferFull) {
		t.Fatalf("overflow write: got %v, want ErrBufferFull", err)
	}
	if n != 0 {
		t.Errorf("overflow write reported %d bytes", n)
	}
	if got := string(buf.Bytes()); got != "12345" {
		t.Errorf("contents after rejected write = %q", got)
	}
}

func TestResponseBufferFrozen(t *testing.T) {
	t.Parallel()

	buf := NewResponseBuffer(8)
	buf.Freeze()
	if _, err := buf.Write([]byte("x")); !errors.Is(err, ErrBufferFrozen) {
		t.Fatalf("write after freeze: got %v, want ErrBufferFrozen", err)
	}

	buf = NewResponseBuffer(8)
	_, _ = buf.Write([]byte("abc"))
	buf.Release()
	if buf.Len() != 0 {
		t.Errorf("Len after Release = %d", buf.Len())
	}
}

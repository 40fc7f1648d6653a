package completion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	mimeJSON     = "application/json"
	readChunkLen = 16 << 10
)

// TransportResult is what a completed exchange yields besides the body.
type TransportResult struct {
	HTTPStatus int
}

// TransportError reports a failure to complete the exchange: connection,
// TLS, timeout, or a body that could not be buffered.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Reason is the human-readable failure text shown to the user.
func (e *TransportError) Reason() string {
	var timeout interface{ Timeout() bool }
	if errors.As(e.Err, &timeout) && timeout.Timeout() {
		return "request timed out"
	}
	if errors.Is(e.Err, ErrBufferFull) {
		return ErrBufferFull.Error()
	}
	return e.Err.Error()
}

// Sender performs one exchange, streaming the response body into buf.
type Sender interface {
	Send(ctx context.Context, apiKey string, payload []byte, buf *ResponseBuffer) (TransportResult, error)
}

// Transport POSTs payloads to a chat-completions endpoint.
type Transport struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewTransport returns a Transport whose whole exchange, body included,
// is bounded by timeout.
func NewTransport(endpoint, userAgent string, timeout time.Duration, log *zap.SugaredLogger) *Transport {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Transport{
		endpoint:  endpoint,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Send POSTs payload and appends the response body to buf chunk by chunk.
// Any HTTP status with a fully read body is a successful exchange.
func (t *Transport) Send(ctx context.Context, apiKey string, payload []byte, buf *ResponseBuffer) (TransportResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return TransportResult{}, &TransportError{Op: "creating request", Err: err}
	}
	req.Header.Set("Content-Type", mimeJSON)
	req.Header.Set("Accept", mimeJSON)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return TransportResult{}, &TransportError{Op: "sending request", Err: err}
	}
	defer resp.Body.Close()

	if err := t.drain(resp.Body, buf); err != nil {
		// Let the connection close rather than reading an oversized body.
		return TransportResult{}, &TransportError{Op: "reading response", Err: err}
	}

	t.log.Debugw("HTTP response", "status", resp.StatusCode, "bytes", buf.Len())
	return TransportResult{HTTPStatus: resp.StatusCode}, nil
}

func (t *Transport) drain(body io.Reader, buf *ResponseBuffer) error {
	chunk := make([]byte, readChunkLen)
	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			t.log.Debugw("received chunk", "bytes", n)
			written, err := buf.Write(chunk[:n])
			if err != nil {
				return err
			}
			if written < n {
				return io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

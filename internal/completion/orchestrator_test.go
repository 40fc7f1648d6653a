package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// collector gathers deliveries for assertions.
type collector struct {
	mu    sync.Mutex
	got   map[string][]Delivery
	calls atomic.Int64
}

func newCollector() *collector {
	return &collector{got: make(map[string][]Delivery)}
}

func (c *collector) sink(tag string) Sink {
	return func(d Delivery) {
		c.calls.Add(1)
		c.mu.Lock()
		c.got[tag] = append(c.got[tag], d)
		c.mu.Unlock()
	}
}

func newTestOrchestrator(t *testing.T, url string) *Orchestrator {
	t.Helper()
	tr := NewTransport(url, "mistral-chat/test", 5*time.Second, zap.NewNop().Sugar())
	return NewOrchestrator(tr, Options{Settings: testSettings, MaxResponseBytes: 1 << 16})
}

func waitAll(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

// echoServer replies with the user message it received, so concurrent
// requests can be matched to their replies.
func echoServer(delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		time.Sleep(delay)
		reply := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": "echo:" + req.Messages[1].Content}},
			},
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
}

func TestSubmitReturnsBeforeIO(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL)
	c := newCollector()

	start := time.Now()
	id, err := o.Submit(RequestContext{Message: "hi"}, "k", c.sink("a"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Submit blocked for %v", elapsed)
	}
	if !strings.HasPrefix(id, "req_") {
		t.Errorf("id = %q", id)
	}
	if c.calls.Load() != 0 {
		t.Fatal("sink ran before the server replied")
	}
	if o.InFlight() != 1 {
		t.Errorf("InFlight = %d, want 1", o.InFlight())
	}

	close(release)
	waitAll(t, o)

	if c.calls.Load() != 1 {
		t.Fatalf("sink calls = %d, want 1", c.calls.Load())
	}
	d := c.got["a"][0]
	if d.RequestID != id {
		t.Errorf("delivery id = %q, want %q", d.RequestID, id)
	}
	if d.Text() != "late" {
		t.Errorf("text = %q", d.Text())
	}
	if o.InFlight() != 0 {
		t.Errorf("InFlight after delivery = %d", o.InFlight())
	}
}

func TestConcurrentRequestsDoNotMix(t *testing.T) {
	t.Parallel()

	srv := echoServer(10 * time.Millisecond)
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL)
	c := newCollector()

	const n = 25
	for i := 0; i < n; i++ {
		tag := fmt.Sprintf("m%02d", i)
		if _, err := o.Submit(RequestContext{Message: tag}, "k", c.sink(tag)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	waitAll(t, o)

	if got := c.calls.Load(); got != n {
		t.Fatalf("sink calls = %d, want %d", got, n)
	}
	for i := 0; i < n; i++ {
		tag := fmt.Sprintf("m%02d", i)
		ds := c.got[tag]
		if len(ds) != 1 {
			t.Fatalf("%s: %d deliveries", tag, len(ds))
		}
		if ds[0].Text() != "echo:"+tag {
			t.Errorf("%s: got %q", tag, ds[0].Text())
		}
	}
}

func TestTransportFailureIsDelivered(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o := newTestOrchestrator(t, url)
	c := newCollector()
	if _, err := o.Submit(RequestContext{Message: "hi"}, "k", c.sink("a")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitAll(t, o)

	d := c.got["a"][0]
	if d.Outcome.Kind() != KindTransportFailure {
		t.Fatalf("kind = %v", d.Outcome.Kind())
	}
	if !strings.HasPrefix(d.Text(), "Error: Failed to connect to Mistral API: ") {
		t.Errorf("text = %q", d.Text())
	}
}

func TestCallerMutationAfterSubmit(t *testing.T) {
	t.Parallel()

	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL)
	c := newCollector()

	rc := RequestContext{Message: "original"}
	key := "sk-one"
	if _, err := o.Submit(rc, key, c.sink("a")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	rc.Message = "changed"
	key = "sk-two"
	_ = key
	waitAll(t, o)

	if gotKey.Load() != "Bearer sk-one" {
		t.Errorf("Authorization = %v", gotKey.Load())
	}
}

type panickingSender struct{}

func (panickingSender) Send(context.Context, string, []byte, *ResponseBuffer) (TransportResult, error) {
	panic("boom")
}

func TestWorkerPanicStillDelivers(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(panickingSender{}, Options{Settings: testSettings})
	c := newCollector()
	if _, err := o.Submit(RequestContext{Message: "hi"}, "k", c.sink("a")); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitAll(t, o)

	if c.calls.Load() != 1 {
		t.Fatalf("sink calls = %d", c.calls.Load())
	}
	if c.got["a"][0].Outcome.Kind() != KindTransportFailure {
		t.Errorf("kind = %v", c.got["a"][0].Outcome.Kind())
	}
}

func TestSubmitAfterClose(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(panickingSender{}, Options{Settings: testSettings})
	if err := o.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := o.Submit(RequestContext{}, "k", func(Delivery) {}); err != ErrClosed {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestSnapshotHidesKey(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, srv.URL)
	if _, err := o.Submit(RequestContext{Message: "hi"}, "secret", func(Delivery) {}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	snap := o.Snapshot()
	close(release)
	waitAll(t, o)

	if len(snap) != 1 {
		t.Fatalf("snapshot has %d entries", len(snap))
	}
	if snap[0].apiKey != "" {
		t.Error("snapshot leaked the API key")
	}
	if s := snap[0].State; s != StateDispatched && s != StateAwaitingTransport {
		t.Errorf("state = %v", s)
	}
}

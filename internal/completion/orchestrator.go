package completion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid"
	"go.uber.org/zap"

	"github.com/nhle/mistral-chat/internal/metrics"
)

// RequestState tracks a request through its lifetime.
type RequestState int

const (
	StateCreated RequestState = iota
	StateDispatched
	StateAwaitingTransport
	StateCompleted
	StateFailed
)

func (s RequestState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDispatched:
		return "dispatched"
	case StateAwaitingTransport:
		return "awaiting_transport"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("RequestState(%d)", int(s))
}

// Delivery is handed to a request's sink exactly once.
type Delivery struct {
	RequestID string
	Outcome   Outcome
	Duration  time.Duration
}

// Text is the line to write into the conversation.
func (d Delivery) Text() string { return d.Outcome.Text() }

// Sink receives a request's Delivery. It runs on the worker goroutine and
// may block; the request is not released until it returns.
type Sink func(Delivery)

// InFlightRequest is the orchestrator's view of a pending request.
type InFlightRequest struct {
	ID          string
	Context     RequestContext
	State       RequestState
	SubmittedAt time.Time

	apiKey string
	sink   Sink
}

// Options configures an Orchestrator.
type Options struct {
	Settings         Settings
	MaxResponseBytes int
	Logger           *zap.SugaredLogger
}

// Orchestrator runs each submitted request on its own goroutine and
// delivers one Outcome per request. There is no concurrency cap.
type Orchestrator struct {
	sender      Sender
	interpreter *Interpreter
	settings    Settings
	maxBytes    int
	log         *zap.SugaredLogger

	mu       sync.Mutex
	inflight map[string]*InFlightRequest
	wg       sync.WaitGroup
	closed   bool

	now   func() time.Time
	newID func() string
}

// NewOrchestrator returns an Orchestrator sending through sender.
func NewOrchestrator(sender Sender, opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	return &Orchestrator{
		sender:      sender,
		interpreter: NewInterpreter(log),
		settings:    opts.Settings,
		maxBytes:    maxBytes,
		log:         log,
		inflight:    make(map[string]*InFlightRequest),
		now:         time.Now,
		newID:       newRequestID,
	}
}

func newRequestID() string {
	id, err := nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 20)
	if err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + id
}

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("orchestrator closed")

// Submit copies rc and apiKey, schedules the request and returns its id
// without performing any I/O. sink is called exactly once, from another
// goroutine.
func (o *Orchestrator) Submit(rc RequestContext, apiKey string, sink Sink) (string, error) {
	req := &InFlightRequest{
		ID:          o.newID(),
		Context:     rc,
		State:       StateCreated,
		SubmittedAt: o.now(),
		apiKey:      apiKey,
		sink:        sink,
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrClosed
	}
	o.inflight[req.ID] = req
	req.State = StateDispatched
	o.wg.Add(1)
	o.mu.Unlock()

	metrics.InflightRequests.Inc()
	o.log.Debugw("request dispatched", "request_id", req.ID)

	go o.run(req)
	return req.ID, nil
}

// run is the worker body for one request.
func (o *Orchestrator) run(req *InFlightRequest) {
	defer o.wg.Done()

	buf := NewResponseBuffer(o.maxBytes)
	delivered := false
	deliver := func(out Outcome) {
		if delivered {
			return
		}
		delivered = true

		state := StateCompleted
		if out.Kind() == KindTransportFailure {
			state = StateFailed
		}
		o.setState(req.ID, state)

		elapsed := o.now().Sub(req.SubmittedAt)
		o.record(out, elapsed)

		// Release before the sink so nothing the request owned outlives it.
		buf.Release()
		o.release(req.ID)

		o.log.Infow("request finished",
			"request_id", req.ID,
			"outcome", out.Kind().String(),
			"duration", elapsed,
		)
		req.sink(Delivery{RequestID: req.ID, Outcome: out, Duration: elapsed})
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Errorw("request worker panicked", "request_id", req.ID, "panic", r)
			deliver(TransportFailure{Reason: fmt.Sprintf("internal error: %v", r)})
		}
	}()

	deliver(o.execute(req, buf))
}

func (o *Orchestrator) execute(req *InFlightRequest, buf *ResponseBuffer) Outcome {
	payload, err := Build(req.Context, o.settings)
	if err != nil {
		o.log.Errorw("building payload", "request_id", req.ID, "error", err)
		return TransportFailure{Reason: err.Error()}
	}
	o.log.Debugw("payload", "request_id", req.ID, "body", string(payload))

	o.setState(req.ID, StateAwaitingTransport)
	res, err := o.sender.Send(context.Background(), req.apiKey, payload, buf)
	buf.Freeze()
	if err != nil {
		o.log.Warnw("transport failed", "request_id", req.ID, "error", err)
		return TransportFailure{Reason: transportReason(err)}
	}

	metrics.HTTPStatus.WithLabelValues(fmt.Sprint(res.HTTPStatus)).Inc()
	metrics.ResponseBytes.Observe(float64(buf.Len()))
	return o.interpreter.Interpret(buf.Bytes(), res.HTTPStatus)
}

func transportReason(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Reason()
	}
	return err.Error()
}

func (o *Orchestrator) record(out Outcome, elapsed time.Duration) {
	model := o.settings.Model
	metrics.RequestCount.WithLabelValues(model, out.Kind().String()).Inc()
	metrics.RequestDuration.WithLabelValues(model, out.Kind().String()).Observe(elapsed.Seconds())
	metrics.InflightRequests.Dec()
}

func (o *Orchestrator) setState(id string, state RequestState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if req, ok := o.inflight[id]; ok {
		req.State = state
	}
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if req, ok := o.inflight[id]; ok {
		req.apiKey = ""
		delete(o.inflight, id)
	}
}

// InFlight returns the number of requests not yet delivered.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// Snapshot returns copies of the pending requests, oldest first.
// Keys are not included.
func (o *Orchestrator) Snapshot() []InFlightRequest {
	o.mu.Lock()
	out := make([]InFlightRequest, 0, len(o.inflight))
	for _, req := range o.inflight {
		out = append(out, InFlightRequest{
			ID:          req.ID,
			Context:     req.Context,
			State:       req.State,
			SubmittedAt: req.SubmittedAt,
		})
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// Wait blocks until every submitted request has been delivered or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further submissions and waits for pending ones.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return o.Wait(ctx)
}

// Package dispatch serializes all model work through a single consumer.
//
// The accelerator on the unit cannot hold two model invocations at once, so
// every chat and vision request from every producer (voice loop, control
// connections, dashboard, camera trigger) goes through one FIFO queue and
// one goroutine. The dispatcher also owns the retry policy, the consecutive
// failure count, and the switch into degraded mode.
//
// Example usage:
//
//	d := dispatch.New(provider,
//	    dispatch.WithRestarter(restarter),
//	    dispatch.WithWarn(speaker.SayAsync),
//	)
//	go d.Run(ctx)
//
//	ticket := d.Submit(dispatch.NewChatRequest("Status?", history, 30*time.Second))
//	reply, ok := ticket.Wait(ctx, 35*time.Second)
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-b9/pkg/inference"
)

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("dispatch: already running")

// Restarter brings the backend back. Implementations must be safe to call
// from several goroutines.
type Restarter interface {
	Restart(ctx context.Context, source string) bool
}

// RestarterFunc adapts a function to Restarter.
type RestarterFunc func(ctx context.Context, source string) bool

// Restart implements Restarter.
func (f RestarterFunc) Restart(ctx context.Context, source string) bool {
	return f(ctx, source)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy sets the retry and recovery policy.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithRestarter sets the routine run when failures reach the threshold.
func WithRestarter(r Restarter) Option {
	return func(d *Dispatcher) { d.restarter = r }
}

// WithWarn sets the out-of-band announcement hook. It must not block.
func WithWarn(fn func(text string)) Option {
	return func(d *Dispatcher) { d.warn = fn }
}

// WithPersona overrides the chat system prompt.
func WithPersona(p string) Option {
	return func(d *Dispatcher) { d.persona = p }
}

// WithOptions overrides the sampling options for each kind.
func WithOptions(chat, vision inference.Options) Option {
	return func(d *Dispatcher) {
		d.chatOpts = chat
		d.visionOpts = vision
	}
}

// WithPollInterval sets the idle tick of the consumer loop.
func WithPollInterval(iv time.Duration) Option {
	return func(d *Dispatcher) { d.poll = iv }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithSleep replaces the backoff pause, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// Dispatcher is a single-consumer inference queue.
type Dispatcher struct {
	provider   inference.Provider
	policy     Policy
	restarter  Restarter
	warn       func(text string)
	persona    string
	chatOpts   inference.Options
	visionOpts inference.Options
	poll       time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
	logger     *slog.Logger

	mu     sync.Mutex
	queue  []*pending
	signal chan struct{}

	running   atomic.Bool
	busy      atomic.Bool
	failures  atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	degraded  atomic.Int64
	restarts  atomic.Int64

	onEvent atomic.Pointer[func(Event)]
}

type pending struct {
	req    Request
	ticket *Ticket
}

// New creates a dispatcher. Call Run to start consuming.
func New(provider inference.Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		provider:   provider,
		policy:     DefaultPolicy(),
		persona:    Persona,
		chatOpts:   inference.ChatOptions(),
		visionOpts: inference.VisionOptions(),
		poll:       2 * time.Second,
		now:        time.Now,
		sleep:      sleepCtx,
		logger:     slog.Default(),
		signal:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatch")
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// OnEvent registers a callback for dispatcher events. It runs on the
// consumer goroutine and must not block.
func (d *Dispatcher) OnEvent(fn func(Event)) {
	d.onEvent.Store(&fn)
}

func (d *Dispatcher) emit(e Event) {
	e.Time = d.now()
	if fn := d.onEvent.Load(); fn != nil {
		(*fn)(e)
	}
}

// Submit enqueues req and returns its ticket. It never blocks.
func (d *Dispatcher) Submit(req Request) *Ticket {
	req.stamp(d.now())
	t := newTicket(req.ID, req.Kind)

	d.mu.Lock()
	d.queue = append(d.queue, &pending{req: req, ticket: t})
	depth := len(d.queue)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}

	d.logger.Debug("request queued", "id", req.ID, "kind", req.Kind, "depth", depth)
	return t
}

// QueueDepth returns the number of requests waiting, excluding the one in
// flight.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Failures returns the current consecutive failure count.
func (d *Dispatcher) Failures() int {
	return int(d.failures.Load())
}

func (d *Dispatcher) next() *pending {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil
	}
	p := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return p
}

// Run consumes the queue until ctx ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	d.logger.Info("dispatcher started",
		"max_attempts", d.policy.MaxAttempts,
		"backoff", d.policy.Backoff,
		"failure_threshold", d.policy.FailureThreshold)

	tick := time.NewTicker(d.poll)
	defer tick.Stop()

	for {
		if ctx.Err() != nil {
			d.logger.Info("dispatcher stopped", "abandoned", d.QueueDepth())
			return ctx.Err()
		}
		p := d.next()
		if p == nil {
			select {
			case <-ctx.Done():
				d.logger.Info("dispatcher stopped")
				return ctx.Err()
			case <-d.signal:
			case <-tick.C:
			}
			continue
		}
		d.handle(ctx, p)
	}
}

func (d *Dispatcher) handle(ctx context.Context, p *pending) {
	req := p.req
	age := d.now().Sub(req.CreatedAt)
	if age > req.Timeout {
		d.dropped.Add(1)
		d.logger.Info("dropped stale request", "id", req.ID, "kind", req.Kind, "age", age)
		d.emit(Event{Type: EventDropped, RequestID: req.ID, Kind: req.Kind})
		return
	}

	d.busy.Store(true)
	start := d.now()
	result, attempts, cancelled := d.execute(ctx, req)
	d.busy.Store(false)
	if cancelled {
		d.logger.Info("request abandoned on shutdown", "id", req.ID, "kind", req.Kind, "attempts", attempts)
		return
	}

	ok := result != ""
	if !ok {
		result = d.fail(ctx)
	}

	d.processed.Add(1)
	p.ticket.resolve(result)
	d.emit(Event{
		Type:      EventCompleted,
		RequestID: req.ID,
		Kind:      req.Kind,
		OK:        ok,
		Attempts:  attempts,
		Failures:  d.Failures(),
		LatencyMs: d.now().Sub(start).Milliseconds(),
		Result:    result,
	})
}

// execute runs up to MaxAttempts backend calls and returns the first
// non-empty result. The flag reports that ctx ended before a result, which
// is not a backend failure.
func (d *Dispatcher) execute(ctx context.Context, req Request) (string, int, bool) {
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		result, err := d.call(ctx, req)
		if err == nil && result != "" {
			d.failures.Store(0)
			return result, attempt, false
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return "", attempt, true
		}
		if err != nil {
			d.logger.Warn("backend call failed", "id", req.ID, "kind", req.Kind, "attempt", attempt, "error", err)
		} else {
			d.logger.Warn("empty response", "id", req.ID, "kind", req.Kind, "attempt", attempt)
		}
		if attempt < d.policy.MaxAttempts {
			d.sleep(ctx, d.policy.Backoff)
		}
	}
	return "", d.policy.MaxAttempts, false
}

// fail records an exhausted request and returns the reply for it.
func (d *Dispatcher) fail(ctx context.Context) string {
	d.failed.Add(1)
	n := int(d.failures.Add(1))
	d.logger.Warn("request failed", "consecutive_failures", n)

	if n < d.policy.FailureThreshold {
		return DelayText
	}

	d.degraded.Add(1)
	d.emit(Event{Type: EventDegraded, Failures: n})

	if d.policy.Restarts(n) && d.restarter != nil {
		d.logger.Warn("entering degraded mode, restarting backend", "consecutive_failures", n)
		if d.warn != nil {
			d.warn(WarningText)
		}
		d.restarts.Add(1)
		if d.restarter.Restart(ctx, "dispatcher") {
			d.failures.Store(0)
			d.logger.Info("backend recovered")
		} else {
			d.logger.Error("backend restart failed", "consecutive_failures", n)
		}
	}
	return DegradedText
}

func (d *Dispatcher) call(ctx context.Context, req Request) (string, error) {
	switch req.Kind {
	case KindChat:
		resp, err := d.provider.Chat(ctx, &inference.ChatRequest{
			Messages: chatMessages(d.persona, req.History, req.Text),
			Options:  d.chatOpts,
		})
		if err != nil {
			return "", err
		}
		return CleanChatReply(resp.Message.Content), nil

	case KindVision:
		resp, err := d.provider.Vision(ctx, &inference.VisionRequest{
			Image:   req.Image,
			Prompt:  VisionPrompt,
			Options: d.visionOpts,
		})
		if err != nil {
			return "", err
		}
		return SummarizeVision(resp.Content), nil

	default:
		return "", errors.New("dispatch: unknown request kind")
	}
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	QueueDepth          int   `json:"queue_depth"`
	Busy                bool  `json:"busy"`
	ConsecutiveFailures int   `json:"consecutive_failures"`
	Processed           int64 `json:"processed"`
	Dropped             int64 `json:"dropped"`
	Failed              int64 `json:"failed"`
	Degraded            int64 `json:"degraded"`
	Restarts            int64 `json:"restarts"`
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth:          d.QueueDepth(),
		Busy:                d.busy.Load(),
		ConsecutiveFailures: d.Failures(),
		Processed:           d.processed.Load(),
		Dropped:             d.dropped.Load(),
		Failed:              d.failed.Load(),
		Degraded:            d.degraded.Load(),
		Restarts:            d.restarts.Load(),
	}
}

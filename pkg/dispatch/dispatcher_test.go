package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-b9/internal/log"
	"github.com/teslashibe/go-b9/pkg/inference"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sleepRecorder records backoff pauses without sleeping.
type sleepRecorder struct {
	mu   sync.Mutex
	naps []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.naps = append(s.naps, d)
}

func (s *sleepRecorder) Naps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.naps...)
}

// restartCounter is a Restarter that records invocations.
type restartCounter struct {
	calls   atomic.Int32
	succeed bool
}

func (r *restartCounter) Restart(ctx context.Context, source string) bool {
	r.calls.Add(1)
	return r.succeed
}

func start(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func chatReplying(replies ...string) *inference.Mock {
	m := inference.NewMock()
	var n atomic.Int32
	m.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		i := int(n.Add(1)) - 1
		if i >= len(replies) {
			i = len(replies) - 1
		}
		return &inference.ChatResponse{Message: inference.NewAssistantMessage(replies[i])}, nil
	}
	return m
}

func TestSingleFlightAndFIFO(t *testing.T) {
	mock := inference.NewMock()
	var n atomic.Int32
	mock.VisionFunc = func(ctx context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
		i := n.Add(1)
		time.Sleep(100 * time.Millisecond)
		return &inference.VisionResponse{Content: fmt.Sprintf("Object %d.", i)}, nil
	}

	d := New(mock, WithLogger(log.Discard()), WithPollInterval(10*time.Millisecond))

	var mu sync.Mutex
	var completed []string
	d.OnEvent(func(e Event) {
		if e.Type == EventCompleted {
			mu.Lock()
			completed = append(completed, e.RequestID)
			mu.Unlock()
		}
	})

	tickets := make([]*Ticket, 5)
	for i := range tickets {
		tickets[i] = d.Submit(NewVisionRequest([]byte{0xFF, 0xD8}, 90*time.Second))
	}

	begin := time.Now()
	start(t, d)

	for i, tk := range tickets {
		got, ok := tk.Wait(context.Background(), 5*time.Second)
		require.True(t, ok, "ticket %d never resolved", i)
		assert.Equal(t, fmt.Sprintf("My optical sensors detect the following. Object %d.", i+1), got)
	}

	assert.GreaterOrEqual(t, time.Since(begin), 500*time.Millisecond)
	assert.Equal(t, 0, mock.Overlaps())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, completed, 5)
	for i, tk := range tickets {
		assert.Equal(t, tk.ID(), completed[i])
	}
}

func TestConcurrentProducersNeverOverlap(t *testing.T) {
	mock := inference.NewMock()
	mock.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		time.Sleep(5 * time.Millisecond)
		return &inference.ChatResponse{Message: inference.NewAssistantMessage("Affirmative.")}, nil
	}
	d := New(mock, WithLogger(log.Discard()), WithPollInterval(10*time.Millisecond))
	start(t, d)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := d.Submit(NewChatRequest("Status?", nil, 30*time.Second))
			_, ok := tk.Wait(context.Background(), 5*time.Second)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, mock.CallCount("Chat"))
	assert.Equal(t, 0, mock.Overlaps())
}

func TestRetryWithSingleBackoff(t *testing.T) {
	mock := chatReplying("", "Affirmative.")
	naps := &sleepRecorder{}
	d := New(mock, WithLogger(log.Discard()), WithSleep(naps.Sleep), WithPollInterval(10*time.Millisecond))
	start(t, d)

	got, ok := d.Submit(NewChatRequest("Are you there?", nil, 30*time.Second)).Wait(context.Background(), 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, "Affirmative.", got)
	assert.Equal(t, []time.Duration{2 * time.Second}, naps.Naps())
	assert.Equal(t, 2, mock.CallCount("Chat"))
	assert.Equal(t, 0, d.Failures())
}

func TestErrorThenSuccessCountsAsRetry(t *testing.T) {
	mock := inference.NewMock()
	var n atomic.Int32
	mock.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		if n.Add(1) == 1 {
			return nil, &inference.APIError{StatusCode: 500, Message: "model loading", Provider: "ollama"}
		}
		return &inference.ChatResponse{Message: inference.NewAssistantMessage("Negative.")}, nil
	}
	naps := &sleepRecorder{}
	d := New(mock, WithLogger(log.Discard()), WithSleep(naps.Sleep), WithPollInterval(10*time.Millisecond))
	start(t, d)

	got, ok := d.Submit(NewChatRequest("Is it safe?", nil, 30*time.Second)).Wait(context.Background(), 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, "Negative.", got)
	assert.Len(t, naps.Naps(), 1)
}

func TestDegradedModeTrigger(t *testing.T) {
	mock := inference.WithError(errors.New("connection refused"))
	restarter := &restartCounter{succeed: true}
	var warnings []string
	var wmu sync.Mutex

	d := New(mock,
		WithLogger(log.Discard()),
		WithSleep((&sleepRecorder{}).Sleep),
		WithRestarter(restarter),
		WithWarn(func(text string) {
			wmu.Lock()
			warnings = append(warnings, text)
			wmu.Unlock()
		}),
		WithPollInterval(10*time.Millisecond),
	)
	start(t, d)

	var replies []string
	for i := 0; i < 3; i++ {
		got, ok := d.Submit(NewChatRequest("Hello?", nil, 30*time.Second)).Wait(context.Background(), 5*time.Second)
		require.True(t, ok)
		replies = append(replies, got)
	}

	assert.Equal(t, []string{DelayText, DelayText, DegradedText}, replies)
	assert.Equal(t, int32(1), restarter.calls.Load())
	assert.Equal(t, 6, mock.CallCount("Chat"))

	wmu.Lock()
	assert.Equal(t, []string{WarningText}, warnings)
	wmu.Unlock()

	// Successful restart resets the count.
	assert.Equal(t, 0, d.Failures())
	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Degraded)
	assert.Equal(t, int64(1), stats.Restarts)
}

func TestFailedRestartRetriggersEveryThreshold(t *testing.T) {
	mock := inference.WithError(errors.New("connection refused"))
	restarter := &restartCounter{succeed: false}
	d := New(mock,
		WithLogger(log.Discard()),
		WithSleep((&sleepRecorder{}).Sleep),
		WithRestarter(restarter),
		WithPollInterval(10*time.Millisecond),
	)
	start(t, d)

	var replies []string
	for i := 0; i < 6; i++ {
		got, ok := d.Submit(NewChatRequest("Hello?", nil, 30*time.Second)).Wait(context.Background(), 5*time.Second)
		require.True(t, ok)
		replies = append(replies, got)
	}

	assert.Equal(t, []string{DelayText, DelayText, DegradedText, DegradedText, DegradedText, DegradedText}, replies)
	assert.Equal(t, int32(2), restarter.calls.Load())
	assert.Equal(t, 6, d.Failures())
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	mock := chatReplying("", "", "", "", "Affirmative.")
	restarter := &restartCounter{}
	d := New(mock,
		WithLogger(log.Discard()),
		WithSleep((&sleepRecorder{}).Sleep),
		WithRestarter(restarter),
		WithPollInterval(10*time.Millisecond),
	)
	start(t, d)

	for i := 0; i < 2; i++ {
		got, ok := d.Submit(NewChatRequest("Hello?", nil, 30*time.Second)).Wait(context.Background(), 5*time.Second)
		require.True(t, ok)
		assert.Equal(t, DelayText, got)
	}
	assert.Equal(t, 2, d.Failures())

	got, ok := d.Submit(NewChatRequest("Hello?", nil, 30*time.Second)).Wait(context.Background(), 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, "Affirmative.", got)
	assert.Equal(t, 0, d.Failures())
	assert.Equal(t, int32(0), restarter.calls.Load())
}

func TestStaleRequestNeverResolves(t *testing.T) {
	mock := inference.NewMock()
	clock := newFakeClock()
	d := New(mock, WithLogger(log.Discard()), WithClock(clock.Now), WithPollInterval(10*time.Millisecond))

	var dropped atomic.Int32
	d.OnEvent(func(e Event) {
		if e.Type == EventDropped {
			dropped.Add(1)
		}
	})

	stale := d.Submit(NewChatRequest("Old command", nil, time.Second))
	clock.Advance(2 * time.Second)
	fresh := d.Submit(NewChatRequest("New command", nil, 30*time.Second))
	start(t, d)

	_, ok := fresh.Wait(context.Background(), 5*time.Second)
	require.True(t, ok)

	_, ok = stale.Wait(context.Background(), 50*time.Millisecond)
	assert.False(t, ok, "stale request must not resolve")
	assert.Equal(t, int32(1), dropped.Load())
	assert.Equal(t, 1, mock.CallCount("Chat"))
	assert.Equal(t, int64(1), d.Stats().Dropped)
}

func TestChatPayload(t *testing.T) {
	mock := chatReplying("B-9: Affirmative. Danger, Will Robinson.")
	d := New(mock, WithLogger(log.Discard()), WithPollInterval(10*time.Millisecond))
	start(t, d)

	var history []inference.Message
	for i := 0; i < 10; i++ {
		history = append(history, inference.NewUserMessage(fmt.Sprintf("q%d", i)))
	}

	var captured *inference.ChatRequest
	inner := mock.ChatFunc
	mock.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		captured = req
		return inner(ctx, req)
	}

	got, ok := d.Submit(NewChatRequest("What is that?", history, 30*time.Second)).Wait(context.Background(), 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, "Affirmative. Danger, Will Robinson.", got)

	require.NotNil(t, captured)
	require.Len(t, captured.Messages, 8)
	assert.Equal(t, inference.RoleSystem, captured.Messages[0].Role)
	assert.Equal(t, Persona, captured.Messages[0].Content)
	assert.Equal(t, "q4", captured.Messages[1].Content)
	assert.Equal(t, "q9", captured.Messages[6].Content)
	assert.Equal(t, inference.NewUserMessage("What is that?"), captured.Messages[7])
	assert.Equal(t, inference.ChatOptions(), captured.Options)
}

func TestRunTwice(t *testing.T) {
	d := New(inference.NewMock(), WithLogger(log.Discard()), WithPollInterval(10*time.Millisecond))
	start(t, d)
	time.Sleep(10 * time.Millisecond)
	assert.ErrorIs(t, d.Run(context.Background()), ErrAlreadyRunning)
}

func TestQueueDepth(t *testing.T) {
	d := New(inference.NewMock(), WithLogger(log.Discard()))
	d.Submit(NewChatRequest("a", nil, time.Minute))
	d.Submit(NewChatRequest("b", nil, time.Minute))
	assert.Equal(t, 2, d.QueueDepth())
	assert.Equal(t, 2, d.Stats().QueueDepth)
}

func TestShutdownLeavesQueuedRequestsAlone(t *testing.T) {
	mock := inference.WithError(errors.New("connection refused"))
	restarter := &restartCounter{succeed: true}
	var warned atomic.Int32
	d := New(mock,
		WithLogger(log.Discard()),
		WithSleep((&sleepRecorder{}).Sleep),
		WithRestarter(restarter),
		WithWarn(func(string) { warned.Add(1) }),
		WithPollInterval(10*time.Millisecond),
	)

	tickets := make([]*Ticket, 3)
	for i := range tickets {
		tickets[i] = d.Submit(NewChatRequest("Hello?", nil, 30*time.Second))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Run(ctx), context.Canceled)

	assert.Equal(t, 0, mock.CallCount("Chat"))
	assert.Equal(t, 0, d.Failures())
	assert.Equal(t, int32(0), restarter.calls.Load())
	assert.Equal(t, int32(0), warned.Load())
	assert.Equal(t, 3, d.QueueDepth())
	for _, tk := range tickets {
		_, ok := tk.Result()
		assert.False(t, ok)
	}
}

func TestCancelDuringCallIsNotAFailure(t *testing.T) {
	mock := inference.NewMock()
	calling := make(chan struct{}, 1)
	mock.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		calling <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	restarter := &restartCounter{succeed: true}
	naps := &sleepRecorder{}
	d := New(mock,
		WithLogger(log.Discard()),
		WithSleep(naps.Sleep),
		WithRestarter(restarter),
		WithPollInterval(10*time.Millisecond),
	)
	d.Submit(NewChatRequest("Hello?", nil, 30*time.Second))
	d.Submit(NewChatRequest("Again?", nil, 30*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-calling:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never called")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, 1, mock.CallCount("Chat"))
	assert.Empty(t, naps.Naps())
	assert.Equal(t, 0, d.Failures())
	stats := d.Stats()
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(0), stats.Processed)
	assert.Equal(t, int32(0), restarter.calls.Load())
	assert.Equal(t, 1, d.QueueDepth())
}

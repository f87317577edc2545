package audioio

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// MockFrame is one scripted Read result.
type MockFrame struct {
	Chunk AudioChunk
	Err   error
}

// MockSource is a scripted audio source for testing.
// Reads return pushed frames in order and block when the script is empty.
type MockSource struct {
	cfg Config

	// StartErr, when set, is returned by Start.
	StartErr error

	// Interval is slept before each Read returns, to approximate real time.
	Interval time.Duration

	mu      sync.Mutex
	running bool
	closed  bool
	frames  []MockFrame
	notify  chan struct{}
	stopCh  chan struct{}

	starts      atomic.Int64
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config) *MockSource {
	return &MockSource{
		cfg:    cfg,
		notify: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// Push appends frames to the script.
func (m *MockSource) Push(frames ...MockFrame) {
	m.mu.Lock()
	m.frames = append(m.frames, frames...)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// PushSilence appends n silent chunks.
func (m *MockSource) PushSilence(n int) {
	frames := make([]MockFrame, n)
	for i := range frames {
		frames[i] = MockFrame{Chunk: m.silentChunk()}
	}
	m.Push(frames...)
}

// PushError appends a failing read.
func (m *MockSource) PushError(err error) {
	m.Push(MockFrame{Err: err})
}

// Pending returns the number of frames not yet read.
func (m *MockSource) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// Starts returns how many times Start succeeded.
func (m *MockSource) Starts() int {
	return int(m.starts.Load())
}

func (m *MockSource) silentChunk() AudioChunk {
	return AudioChunk{
		Samples:    make([]int16, m.cfg.ChunkSamples*m.cfg.Channels),
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
}

// Start begins capture.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.StartErr != nil {
		return m.StartErr
	}
	if m.running {
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.starts.Add(1)
	return nil
}

// Stop halts capture. Pending frames are kept for the next Start.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	return nil
}

// Read returns the next scripted frame.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	for {
		m.mu.Lock()
		if !m.running {
			m.mu.Unlock()
			return AudioChunk{}, io.EOF
		}
		stopCh := m.stopCh
		if len(m.frames) > 0 {
			f := m.frames[0]
			m.frames = m.frames[1:]
			m.mu.Unlock()

			if m.Interval > 0 {
				select {
				case <-time.After(m.Interval):
				case <-ctx.Done():
					return AudioChunk{}, ctx.Err()
				}
			}
			if f.Err != nil {
				return AudioChunk{}, f.Err
			}
			m.chunksRead.Add(1)
			m.samplesRead.Add(int64(len(f.Chunk.Samples)))
			return f.Chunk, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return AudioChunk{}, ctx.Err()
		case <-stopCh:
			return AudioChunk{}, io.EOF
		case <-m.notify:
		}
	}
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Reopen clears the closed flag so a test can hand the same mock out again.
func (m *MockSource) Reopen() {
	m.mu.Lock()
	m.closed = false
	m.mu.Unlock()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Running:     running,
		Backend:     "mock",
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)

// MockSink is a mock audio sink for testing.
// It records clips and optionally simulates playback time.
type MockSink struct {
	// PlayDuration is how long each Play blocks.
	PlayDuration time.Duration

	// PlayFunc, when set, replaces the default behavior.
	PlayFunc func(ctx context.Context, wav []byte) error

	mu     sync.Mutex
	clips  [][]byte
	closed bool
}

// NewMockSink creates a new mock audio sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Play records the clip and blocks for PlayDuration.
func (m *MockSink) Play(ctx context.Context, wav []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.clips = append(m.clips, wav)
	m.mu.Unlock()

	if m.PlayFunc != nil {
		return m.PlayFunc(ctx, wav)
	}
	if m.PlayDuration > 0 {
		select {
		case <-time.After(m.PlayDuration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Clips returns the recorded clips.
func (m *MockSink) Clips() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.clips))
	copy(out, m.clips)
	return out
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SinkStats{ClipsPlayed: int64(len(m.clips)), Backend: "mock"}
}

var _ SinkWithStats = (*MockSink)(nil)

package vision

import (
	"context"
	"sync"
)

// Mock is a scripted camera for testing.
type Mock struct {
	CaptureFrameFunc func(ctx context.Context) ([]byte, error)

	mu        sync.Mutex
	available bool
	captures  int
}

// NewMock returns a camera that reports available and returns frame.
func NewMock(frame []byte) *Mock {
	return &Mock{
		available: frame != nil,
		CaptureFrameFunc: func(ctx context.Context) ([]byte, error) {
			return frame, nil
		},
	}
}

// SetAvailable changes what Available reports.
func (m *Mock) SetAvailable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = ok
}

// Available implements Provider.
func (m *Mock) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// CaptureFrame implements Provider.
func (m *Mock) CaptureFrame(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	m.captures++
	fn := m.CaptureFrameFunc
	m.mu.Unlock()
	if fn == nil {
		return nil, ErrNoCamera
	}
	return fn(ctx)
}

// Captures returns how many frames were requested.
func (m *Mock) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

var _ Provider = (*Mock)(nil)

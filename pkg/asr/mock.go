package asr

import (
	"bytes"
	"sync"
)

// Mock is a scripted recognizer for testing.
//
// Audio chunks whose bytes start with a registered marker complete an
// utterance with the mapped text. Everything else is treated as speech in
// progress. AcceptFunc overrides this behavior entirely.
type Mock struct {
	AcceptFunc func(pcm []byte) (bool, error)

	mu      sync.Mutex
	phrases []mockPhrase
	result  string
	partial string
	accepts int
	resets  int
	closed  bool
}

type mockPhrase struct {
	marker []byte
	text   string
}

// NewMock returns an empty mock recognizer.
func NewMock() *Mock {
	return &Mock{}
}

// Say registers a marker that, when accepted, yields text as a result.
func (m *Mock) Say(marker []byte, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phrases = append(m.phrases, mockPhrase{marker: marker, text: text})
}

// Accept implements Recognizer.
func (m *Mock) Accept(pcm []byte) (bool, error) {
	m.mu.Lock()
	m.accepts++
	fn := m.AcceptFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(pcm)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	for _, p := range m.phrases {
		if len(p.marker) > 0 && bytes.HasPrefix(pcm, p.marker) {
			m.result = p.text
			m.partial = ""
			return true, nil
		}
	}
	return false, nil
}

// SetResult primes the next Result and Final.
func (m *Mock) SetResult(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = text
}

// SetPartial primes the next Partial.
func (m *Mock) SetPartial(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partial = text
}

// Result implements Recognizer. The result is consumed on read.
func (m *Mock) Result() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.result
	m.result = ""
	return r
}

// Partial implements Recognizer.
func (m *Mock) Partial() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partial
}

// Final implements Recognizer.
func (m *Mock) Final() string {
	return m.Result()
}

// Reset implements Recognizer.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.result = ""
	m.partial = ""
}

// Name implements Recognizer.
func (m *Mock) Name() string { return "mock" }

// Close implements Recognizer.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Accepts returns how many chunks were fed.
func (m *Mock) Accepts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accepts
}

// Resets returns how many times Reset was called.
func (m *Mock) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

var _ Recognizer = (*Mock)(nil)

package voice

import (
	"sync"
	"time"
)

// Metrics tracks what the voice loop has done.
type Metrics struct {
	// Counters
	Wakes           int64 `json:"wakes"`
	PushToTalk      int64 `json:"push_to_talk"`
	SelfWakes       int64 `json:"self_wakes"`   // wake phrase heard while speaking
	GatedChunks     int64 `json:"gated_chunks"` // audio discarded while speaking
	Commands        int64 `json:"commands"`
	EmptyCommands   int64 `json:"empty_commands"`
	SilenceTimeouts int64 `json:"silence_timeouts"`
	StreamFaults    int64 `json:"stream_faults"`

	// Timing of the most recent command
	LastWake       time.Time     `json:"last_wake"`
	LastCommand    string        `json:"last_command,omitempty"`
	CaptureLatency time.Duration `json:"capture_latency_ns"` // wake to transcript
	HandleLatency  time.Duration `json:"handle_latency_ns"`  // transcript to reply done
}

// MetricsCollector collects voice loop metrics.
// It is goroutine-safe and can be used from multiple callbacks.
type MetricsCollector struct {
	mu       sync.Mutex
	current  Metrics
	captures []time.Duration // recent capture latencies for averaging

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		captures: make([]time.Duration, 0, 100),
	}
}

// OnUpdate sets a callback that fires whenever metrics change.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// MarkWake records a transition into command capture.
func (m *MetricsCollector) MarkWake(ptt bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ptt {
		m.current.PushToTalk++
	} else {
		m.current.Wakes++
	}
	m.current.LastWake = time.Now()
	m.notify()
}

// MarkSelfWake records a wake phrase discarded because the unit was speaking.
func (m *MetricsCollector) MarkSelfWake() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.SelfWakes++
	m.notify()
}

// MarkGated records an audio chunk discarded while the gate was active.
func (m *MetricsCollector) MarkGated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.GatedChunks++
}

// MarkCommand records a captured command.
func (m *MetricsCollector) MarkCommand(text string, silenceTimeout bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Commands++
	if text == "" {
		m.current.EmptyCommands++
	}
	if silenceTimeout {
		m.current.SilenceTimeouts++
	}
	m.current.LastCommand = text
	if !m.current.LastWake.IsZero() {
		m.current.CaptureLatency = time.Since(m.current.LastWake)
		m.captures = append(m.captures, m.current.CaptureLatency)
		if len(m.captures) > 100 {
			m.captures = m.captures[1:]
		}
	}
	m.notify()
}

// MarkHandled records how long the command handler took.
func (m *MetricsCollector) MarkHandled(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.HandleLatency = d
	m.notify()
}

// MarkFault records an audio stream fault.
func (m *MetricsCollector) MarkFault() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.StreamFaults++
	m.notify()
}

// Current returns the current metrics snapshot.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AverageCapture returns the mean wake-to-transcript latency over recent
// commands.
func (m *MetricsCollector) AverageCapture() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.captures) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range m.captures {
		sum += d
	}
	return sum / time.Duration(len(m.captures))
}

// notify calls the update callback if set.
// Must be called with mutex held.
func (m *MetricsCollector) notify() {
	if m.onUpdate != nil {
		metrics := m.current
		go m.onUpdate(metrics)
	}
}

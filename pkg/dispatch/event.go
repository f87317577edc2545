package dispatch

import "time"

// EventType identifies a dispatcher event.
type EventType string

const (
	EventCompleted EventType = "request_completed"
	EventDropped   EventType = "request_dropped"
	EventDegraded  EventType = "degraded"
)

// Event is emitted by the consumer loop.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Kind      Kind      `json:"kind"`
	OK        bool      `json:"ok"`
	Attempts  int       `json:"attempts,omitempty"`
	Failures  int       `json:"consecutive_failures"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	Result    string    `json:"result,omitempty"`
	Time      time.Time `json:"time"`
}

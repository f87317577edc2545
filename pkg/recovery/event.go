package recovery

import "time"

// Kind identifies a recovery event.
type Kind string

const (
	KindProbeFailed      Kind = "probe_failed"
	KindRestartStarted   Kind = "restart_started"
	KindRestartSucceeded Kind = "restart_succeeded"
	KindRestartFailed    Kind = "restart_failed"
)

// Sources of restart requests.
const (
	SourceDispatcher = "dispatcher"
	SourceWatchdog   = "watchdog"
)

// Event describes a step of the recovery process.
type Event struct {
	Source   string        `json:"source"`
	Kind     Kind          `json:"kind"`
	OK       bool          `json:"ok"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Time     time.Time     `json:"time"`
}

package conversation

import (
	"errors"
	"time"
)

// DefaultWakeWords are the phrases that wake the voice loop.
var DefaultWakeWords = []string{"robot", "b9", "b-9", "hey robot", "danger", "warning"}

// Config holds configuration for a dialogue session.
type Config struct {
	// HistoryLimit caps the number of remembered turns.
	HistoryLimit int

	// ChatTimeout is how long a chat request may wait in the queue.
	ChatTimeout time.Duration

	// ChatWait bounds how long Process waits for a reply.
	ChatWait time.Duration

	// ScanWait bounds how long a scan waits for its description.
	ScanWait time.Duration

	// WakeWords are listed by the help command.
	WakeWords []string

	// ThermalPath is the sysfs file read by the status command.
	ThermalPath string
}

// DefaultConfig returns the stock session settings.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 20,
		ChatTimeout:  30 * time.Second,
		ChatWait:     35 * time.Second,
		ScanWait:     95 * time.Second,
		WakeWords:    DefaultWakeWords,
		ThermalPath:  "/sys/devices/virtual/thermal/thermal_zone1/temp",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.HistoryLimit < 1 {
		return ErrInvalidHistoryLimit
	}
	if c.ChatTimeout <= 0 || c.ChatWait <= 0 {
		return errors.New("conversation: chat timeout and wait must be positive")
	}
	return nil
}

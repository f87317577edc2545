package voice

import (
	"errors"
	"strings"
	"time"
)

// Config holds all tunable parameters for the voice loop.
type Config struct {
	// WakeWords are matched as substrings of the lowercased transcript.
	WakeWords []string

	// Ack is spoken when the unit wakes.
	Ack string

	// AckWait bounds the wait for the acknowledgment to finish.
	AckWait time.Duration

	// SilenceChunks ends command capture after this many chunks without
	// transcript growth (4096 samples at 16kHz each, about 4s total).
	SilenceChunks int

	// DeviceBackoff is the pause after an audio device fault.
	DeviceBackoff time.Duration

	// ErrorBackoff is the pause after any other fault.
	ErrorBackoff time.Duration
}

// DefaultConfig returns the stock voice loop settings.
func DefaultConfig() Config {
	return Config{
		WakeWords:     []string{"robot", "b9", "b-9", "hey robot", "danger", "warning"},
		Ack:           "B9.",
		AckWait:       3 * time.Second,
		SilenceChunks: 16,
		DeviceBackoff: 3 * time.Second,
		ErrorBackoff:  2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.WakeWords) == 0 {
		return errors.New("voice: at least one wake word required")
	}
	for _, w := range c.WakeWords {
		if strings.TrimSpace(w) == "" {
			return errors.New("voice: empty wake word")
		}
	}
	if c.SilenceChunks < 1 {
		return errors.New("voice: silence chunks must be at least 1")
	}
	if c.DeviceBackoff <= 0 || c.ErrorBackoff <= 0 {
		return errors.New("voice: backoff must be positive")
	}
	return nil
}

// matchWake reports whether text contains a wake word.
func (c Config) matchWake(text string) bool {
	text = strings.ToLower(text)
	for _, w := range c.WakeWords {
		if strings.Contains(text, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

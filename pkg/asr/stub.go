//go:build !vosk

package asr

import "log/slog"

// Available reports whether a real engine is compiled in.
const Available = false

// New always fails in builds without the vosk tag. The voice loop treats
// this like a missing model and stays disabled.
func New(cfg Config, logger *slog.Logger) (Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}

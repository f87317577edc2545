package tts

import (
	"log/slog"
	"time"
)

// Config holds TTS provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Binary is the synthesizer executable.
	Binary string

	// Voice configuration
	Voice     string // espeak voice name
	Pitch     int    // 0-99
	Speed     int    // words per minute
	Amplitude int    // 0-200
	WordGap   int    // pause between words, 10ms units

	// Timeout bounds a single synthesis.
	Timeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithBinary overrides the synthesizer executable.
func WithBinary(path string) Option {
	return func(c *Config) {
		c.Binary = path
	}
}

// WithVoice sets the voice name.
func WithVoice(voice string) Option {
	return func(c *Config) {
		c.Voice = voice
	}
}

// WithPitch sets the pitch.
func WithPitch(pitch int) Option {
	return func(c *Config) {
		c.Pitch = pitch
	}
}

// WithSpeed sets the speaking rate.
func WithSpeed(wpm int) Option {
	return func(c *Config) {
		c.Speed = wpm
	}
}

// WithTimeout sets the synthesis timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithLogger sets the logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the B-9 voice.
func DefaultConfig() *Config {
	return &Config{
		Binary:    "espeak-ng",
		Voice:     "en",
		Pitch:     35,
		Speed:     128,
		Amplitude: 185,
		WordGap:   9,
		Timeout:   60 * time.Second,
		Logger:    slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

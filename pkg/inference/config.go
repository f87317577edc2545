package inference

import (
	"log/slog"
	"time"
)

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL string // Ollama base URL, without the /api suffix

	// Models
	Model       string // Default chat model
	VisionModel string // Vision model (may differ from chat)

	// Timeouts
	Timeout time.Duration // Per-call HTTP bound

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the backend base URL.
// Example: "http://localhost:11434"
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithModel sets the default chat model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithVisionModel sets the vision model.
func WithVisionModel(model string) Option {
	return func(c *Config) { c.VisionModel = model }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a local Ollama instance.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:11434",
		Timeout: 90 * time.Second,
		Logger:  slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
// Models may be empty here and resolved later with PickModel.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return WrapError("ollama", ErrProviderUnavailable)
	}
	return nil
}

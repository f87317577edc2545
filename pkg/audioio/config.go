// Package audioio provides microphone capture and speaker playback.
//
// Backends:
//   - ALSA (Linux) - arecord/aplay pipelines against plughw devices
//   - Mock - CI/Testing without hardware
//
// Cards are located through /proc/asound/cards every time a device is
// opened, so a USB headset that enumerates late or moves index is picked
// up on the next reopen.
package audioio

import "fmt"

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects ALSA.
	BackendAuto Backend = "auto"
	// BackendALSA uses arecord/aplay.
	BackendALSA Backend = "alsa"
	// BackendMock uses a scripted implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture rate in Hz.
	// Default: 16000 (recognizer model rate)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// ChunkSamples is the number of frames per Read.
	// Default: 4096 (~256ms at 16kHz)
	ChunkSamples int `yaml:"chunk_samples" json:"chunk_samples"`

	// Card is the ALSA card index. -1 detects it from /proc/asound/cards.
	Card int `yaml:"card" json:"card"`

	// CardsPath overrides /proc/asound/cards (tests).
	CardsPath string `yaml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendAuto,
		SampleRate:   16000,
		Channels:     1,
		ChunkSamples: 4096,
		Card:         -1,
		CardsPath:    DefaultCardsPath,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.ChunkSamples <= 0 {
		return fmt.Errorf("chunk_samples must be positive, got %d", c.ChunkSamples)
	}
	return nil
}

// ChunkBytes returns the size of one chunk in bytes (int16 samples).
func (c *Config) ChunkBytes() int {
	return c.ChunkSamples * c.Channels * 2
}

// Device returns the ALSA device string for a card index.
func Device(card int) string {
	return fmt.Sprintf("plughw:%d,0", card)
}

// Package asr provides offline speech recognition over raw 16-bit PCM.
//
// A Recognizer is fed audio chunk by chunk. Accept reports when the engine
// has closed an utterance, at which point Result returns its text.
// Implementations are not safe for concurrent use; one listener owns one
// recognizer.
package asr

import (
	"encoding/json"
	"errors"
	"strings"
)

// Recognizer is a streaming speech-to-text engine.
type Recognizer interface {
	// Accept feeds little-endian S16 mono PCM. It returns true when an
	// utterance boundary was detected and Result has new text.
	Accept(pcm []byte) (bool, error)

	// Result returns the text of the last completed utterance.
	Result() string

	// Partial returns the in-progress hypothesis.
	Partial() string

	// Final flushes buffered audio and returns whatever text remains.
	Final() string

	// Reset discards buffered audio.
	Reset()

	// Name identifies the engine for logs.
	Name() string

	// Close releases engine resources.
	Close() error
}

var (
	// ErrNoModel is returned when the model path does not exist.
	ErrNoModel = errors.New("asr: model not found")

	// ErrUnavailable is returned when the binary was built without an engine.
	ErrUnavailable = errors.New("asr: recognizer not available in this build")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("asr: recognizer closed")
)

// Config selects and tunes a recognizer.
type Config struct {
	ModelPath  string
	SampleRate int
}

// DefaultConfig returns settings matching the microphone capture format.
func DefaultConfig() Config {
	return Config{
		ModelPath:  "/opt/b9/vosk-model",
		SampleRate: 16000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("asr: model path required")
	}
	if c.SampleRate <= 0 {
		return errors.New("asr: sample rate must be positive")
	}
	return nil
}

// engineResult is the JSON document the engine emits.
type engineResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// ParseText extracts the recognized text from an engine result document.
// Unparseable input yields an empty string.
func ParseText(doc string) string {
	var r engineResult
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return ""
	}
	if r.Text != "" {
		return strings.TrimSpace(r.Text)
	}
	return strings.TrimSpace(r.Partial)
}

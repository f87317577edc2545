//go:build vosk

package asr

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// Vosk wraps a Kaldi-based vosk recognizer.
type Vosk struct {
	model  *vosk.VoskModel
	rec    *vosk.VoskRecognizer
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Available reports whether a real engine is compiled in.
const Available = true

// New loads the model at cfg.ModelPath and builds a recognizer.
func New(cfg Config, logger *slog.Logger) (Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoModel, cfg.ModelPath)
	}

	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("asr: load model: %w", err)
	}
	rec, err := vosk.NewRecognizer(model, float64(cfg.SampleRate))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("asr: create recognizer: %w", err)
	}

	logger = logger.With("component", "asr", "engine", "vosk")
	logger.Info("model loaded", "path", cfg.ModelPath, "sample_rate", cfg.SampleRate)
	return &Vosk{model: model, rec: rec, logger: logger}, nil
}

// Accept implements Recognizer.
func (v *Vosk) Accept(pcm []byte) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false, ErrClosed
	}
	switch v.rec.AcceptWaveform(pcm) {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("asr: waveform rejected")
	}
}

// Result implements Recognizer.
func (v *Vosk) Result() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ""
	}
	return ParseText(v.rec.Result())
}

// Partial implements Recognizer.
func (v *Vosk) Partial() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ""
	}
	return ParseText(v.rec.PartialResult())
}

// Final implements Recognizer.
func (v *Vosk) Final() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ""
	}
	return ParseText(v.rec.FinalResult())
}

// Reset implements Recognizer.
func (v *Vosk) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.rec.Reset()
	}
}

// Name implements Recognizer.
func (v *Vosk) Name() string { return "vosk" }

// Close implements Recognizer.
func (v *Vosk) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.rec.Free()
	v.model.Free()
	return nil
}

var _ Recognizer = (*Vosk)(nil)

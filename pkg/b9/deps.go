package b9

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-b9/pkg/asr"
	"github.com/teslashibe/go-b9/pkg/audioio"
	"github.com/teslashibe/go-b9/pkg/inference"
	"github.com/teslashibe/go-b9/pkg/recovery"
	"github.com/teslashibe/go-b9/pkg/tts"
	"github.com/teslashibe/go-b9/pkg/vision"
	"github.com/teslashibe/go-b9/pkg/voice"
)

// Deps are the backend and hardware adapters the app drives.
type Deps struct {
	// Provider is the model backend. Required.
	Provider inference.Provider

	// TTS and Sink produce speech. Required.
	TTS  tts.Provider
	Sink audioio.Sink

	// OpenMic opens a fresh microphone stream. Nil disables voice.
	OpenMic voice.SourceOpener

	// Recognizer transcribes microphone audio. Nil disables voice.
	Recognizer asr.Recognizer

	// Camera captures frames. Nil means the unit has no camera.
	Camera vision.Provider

	// Runner executes restart commands. Nil uses the host shell.
	Runner recovery.Runner

	// CardsPath overrides the ALSA card list read during the hardware
	// wait.
	CardsPath string
}

// modelResolver is implemented by providers that pick models at startup.
type modelResolver interface {
	ResolveModels(ctx context.Context) error
	ChatModel() string
	VisionModel() string
}

// prober is implemented by cameras that can be re-detected.
type prober interface {
	Probe() bool
}

// CardSink plays through the detected speaker card and re-detects it
// after a device fault, so a speaker that enumerates late is picked up.
type CardSink struct {
	cfg    audioio.Config
	logger *slog.Logger

	mu   sync.Mutex
	sink audioio.Sink
}

// NewCardSink creates a sink that opens lazily.
func NewCardSink(cfg audioio.Config, logger *slog.Logger) *CardSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardSink{cfg: cfg, logger: logger}
}

func (s *CardSink) current() (audioio.Sink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		return s.sink, nil
	}
	sink, err := audioio.NewSink(s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.sink = sink
	return sink, nil
}

// Play implements audioio.Sink.
func (s *CardSink) Play(ctx context.Context, wav []byte) error {
	sink, err := s.current()
	if err != nil {
		return err
	}
	err = sink.Play(ctx, wav)
	if audioio.IsDeviceError(err) {
		s.Reset()
	}
	return err
}

// Reset drops the open sink; the next Play re-detects the card.
func (s *CardSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		s.sink.Close()
		s.sink = nil
	}
}

// Name implements audioio.Sink.
func (s *CardSink) Name() string {
	return "alsa-detect"
}

// Stats implements audioio.SinkWithStats.
func (s *CardSink) Stats() audioio.SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.sink.(audioio.SinkWithStats); ok {
		return ws.Stats()
	}
	return audioio.SinkStats{Backend: s.Name()}
}

// Close implements audioio.Sink.
func (s *CardSink) Close() error {
	s.Reset()
	return nil
}

var _ audioio.SinkWithStats = (*CardSink)(nil)

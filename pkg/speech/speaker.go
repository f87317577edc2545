package speech

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-b9/pkg/audioio"
	"github.com/teslashibe/go-b9/pkg/tasks"
	"github.com/teslashibe/go-b9/pkg/tts"
)

// Config tunes the speaker.
type Config struct {
	// Decay keeps the gate closed after playback so the room echo dies out.
	Decay time.Duration

	// Timeout bounds one utterance end to end.
	Timeout time.Duration
}

// DefaultConfig returns the stock speaker settings.
func DefaultConfig() Config {
	return Config{
		Decay:   300 * time.Millisecond,
		Timeout: 60 * time.Second,
	}
}

// Speaker turns text into sound on the unit's speaker.
type Speaker struct {
	cfg    Config
	tts    tts.Provider
	sink   audioio.Sink
	gate   *Gate
	pool   *tasks.Pool
	logger *slog.Logger

	mu sync.Mutex // one utterance at a time

	onSpeak atomic.Pointer[func(text string)]
	spoken  atomic.Int64
	failed  atomic.Int64
}

// NewSpeaker wires a synthesizer and sink to a gate. pool runs SayAsync
// work and may be shared with other background tasks.
func NewSpeaker(cfg Config, provider tts.Provider, sink audioio.Sink, gate *Gate, pool *tasks.Pool, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		cfg:    cfg,
		tts:    provider,
		sink:   sink,
		gate:   gate,
		pool:   pool,
		logger: logger.With("component", "speech"),
	}
}

// Gate returns the speaker's gate.
func (s *Speaker) Gate() *Gate {
	return s.gate
}

// OnSpeak registers a callback invoked with each cleaned utterance.
func (s *Speaker) OnSpeak(fn func(text string)) {
	s.onSpeak.Store(&fn)
}

var (
	markup   = regexp.MustCompile("[*_`#\\[\\]()]")
	newlines = regexp.MustCompile(`\n+`)
)

// Clean strips markdown markup and turns line breaks into sentence breaks.
func Clean(text string) string {
	text = markup.ReplaceAllString(text, "")
	text = newlines.ReplaceAllString(text, ". ")
	return strings.TrimSpace(text)
}

// Say speaks text and returns after playback and decay. The gate is held
// for the whole call, including time spent waiting behind another
// utterance.
func (s *Speaker) Say(ctx context.Context, text string) error {
	text = Clean(text)
	if text == "" {
		return nil
	}

	release := s.gate.Hold()
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("speaking", "text", text)
	if fn := s.onSpeak.Load(); fn != nil {
		(*fn)(text)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := s.play(ctx, text)
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("speech failed", "error", err)
	} else {
		s.spoken.Add(1)
	}

	// Decay runs even on failure; a partial clip may have played.
	select {
	case <-time.After(s.cfg.Decay):
	case <-ctx.Done():
	}
	return err
}

func (s *Speaker) play(ctx context.Context, text string) error {
	result, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if len(result.Audio) == 0 {
		return tts.ErrNoAudio
	}
	return s.sink.Play(ctx, result.Audio)
}

// SayAsync speaks in the background. The gate is taken before SayAsync
// returns so a caller that immediately checks it sees it active.
func (s *Speaker) SayAsync(text string) {
	if Clean(text) == "" {
		return
	}
	release := s.gate.Hold()
	err := s.pool.TryGo(func() {
		defer release()
		if err := s.Say(context.Background(), text); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("background speech failed", "error", err)
		}
	})
	if err != nil {
		release()
		s.logger.Warn("background speech dropped", "text", text, "error", err)
	}
}

// Stats is a snapshot of speaker counters.
type Stats struct {
	Spoken   int64 `json:"spoken"`
	Failed   int64 `json:"failed"`
	Speaking bool  `json:"speaking"`
}

// Stats returns current counters.
func (s *Speaker) Stats() Stats {
	return Stats{
		Spoken:   s.spoken.Load(),
		Failed:   s.failed.Load(),
		Speaking: s.gate.Active(),
	}
}

package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-b9/pkg/asr"
	"github.com/teslashibe/go-b9/pkg/audioio"
)

// State is the voice loop state.
type State int32

const (
	StateWakeListening State = iota
	StateCommandListening
)

func (s State) String() string {
	switch s {
	case StateWakeListening:
		return "wake_listening"
	case StateCommandListening:
		return "command_listening"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SourceOpener returns a fresh, unstarted microphone source. It is called
// on every (re)open so device indices are re-queried.
type SourceOpener func(ctx context.Context) (audioio.Source, error)

// Handler receives a captured command. It blocks until the reply has been
// delivered; the loop resumes wake listening afterwards.
type Handler func(ctx context.Context, text string)

// Speaker speaks the acknowledgment.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Gate reports whether the unit is speaking.
type Gate interface {
	Active() bool
	WaitClear(ctx context.Context, max time.Duration) bool
}

// Deps are the collaborators of a Listener.
type Deps struct {
	Open       SourceOpener
	Recognizer asr.Recognizer
	Gate       Gate
	Speaker    Speaker
	Handler    Handler
	Logger     *slog.Logger
}

// Listener is the wake-word and command capture state machine.
type Listener struct {
	cfg     Config
	open    SourceOpener
	rec     asr.Recognizer
	gate    Gate
	speaker Speaker
	handler Handler
	logger  *slog.Logger
	metrics *MetricsCollector

	state   atomic.Int32
	running atomic.Bool
	ptt     chan struct{}

	onState atomic.Pointer[func(State)]
}

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("voice: already running")

// NewListener creates a listener.
func NewListener(cfg Config, deps Deps) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Open == nil || deps.Recognizer == nil || deps.Gate == nil || deps.Handler == nil {
		return nil, errors.New("voice: opener, recognizer, gate and handler are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		cfg:     cfg,
		open:    deps.Open,
		rec:     deps.Recognizer,
		gate:    deps.Gate,
		speaker: deps.Speaker,
		handler: deps.Handler,
		logger:  logger.With("component", "voice"),
		metrics: NewMetricsCollector(),
		ptt:     make(chan struct{}, 1),
	}, nil
}

// State returns the current state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Metrics returns the metrics collector.
func (l *Listener) Metrics() *MetricsCollector {
	return l.metrics
}

// OnStateChange registers a callback for state transitions.
func (l *Listener) OnStateChange(fn func(State)) {
	l.onState.Store(&fn)
}

func (l *Listener) setState(s State) {
	if State(l.state.Swap(int32(s))) == s {
		return
	}
	l.logger.Debug("state", "state", s)
	if fn := l.onState.Load(); fn != nil {
		(*fn)(s)
	}
}

// PushToTalk forces command capture without a wake word. It never
// blocks; a trigger already pending absorbs this one.
func (l *Listener) PushToTalk() {
	select {
	case l.ptt <- struct{}{}:
	default:
	}
}

type trigger int

const (
	triggerWake trigger = iota
	triggerPTT
)

// Run drives the state machine until ctx ends.
func (l *Listener) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	l.logger.Info("listening", "wake_words", l.cfg.WakeWords, "engine", l.rec.Name())
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := l.cycle(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.fault(ctx, err)
	}
}

// cycle is one pass through WakeListening and CommandListening.
func (l *Listener) cycle(ctx context.Context) error {
	l.rec.Reset()
	l.setState(StateWakeListening)

	trig, err := l.awaitWake(ctx)
	if err != nil {
		return err
	}
	l.metrics.MarkWake(trig == triggerPTT)

	if trig == triggerWake && l.speaker != nil {
		if err := l.speaker.Say(ctx, l.cfg.Ack); err != nil {
			l.logger.Debug("acknowledgment failed", "error", err)
		}
	}
	l.gate.WaitClear(ctx, l.cfg.AckWait)

	text, timedOut, err := l.captureCommand(ctx)
	if err != nil {
		return err
	}
	l.metrics.MarkCommand(text, timedOut)
	l.logger.Info("command", "text", text, "silence_timeout", timedOut)

	start := time.Now()
	l.handler(ctx, text)
	l.metrics.MarkHandled(time.Since(start))
	return nil
}

func (l *Listener) openSource(ctx context.Context) (audioio.Source, error) {
	src, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := src.Start(ctx); err != nil {
		src.Close()
		return nil, err
	}
	return src, nil
}

// awaitWake reads audio until a wake word or push-to-talk.
func (l *Listener) awaitWake(ctx context.Context) (trigger, error) {
	src, err := l.openSource(ctx)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-l.ptt:
			l.logger.Info("push to talk")
			return triggerPTT, nil
		default:
		}

		chunk, err := src.Read(ctx)
		if err != nil {
			return 0, err
		}

		if l.gate.Active() {
			l.rec.Reset()
			l.metrics.MarkGated()
			continue
		}

		text, err := l.transcribe(chunk)
		if err != nil {
			return 0, err
		}
		if text == "" || !l.cfg.matchWake(text) {
			continue
		}
		if l.gate.Active() {
			l.rec.Reset()
			l.metrics.MarkSelfWake()
			l.logger.Debug("ignored wake while speaking", "text", text)
			continue
		}
		l.logger.Info("wake", "text", text)
		return triggerWake, nil
	}
}

// transcribe feeds one chunk and returns the final or partial transcript.
func (l *Listener) transcribe(chunk audioio.AudioChunk) (string, error) {
	done, err := l.rec.Accept(chunk.Bytes())
	if err != nil {
		return "", err
	}
	if done {
		return l.rec.Result(), nil
	}
	return l.rec.Partial(), nil
}

// captureCommand records one command on a fresh stream. timedOut reports
// that capture ended on silence rather than a final transcript.
func (l *Listener) captureCommand(ctx context.Context) (text string, timedOut bool, err error) {
	l.setState(StateCommandListening)
	l.rec.Reset()

	// A trigger that arrived during the acknowledgment is already served.
	select {
	case <-l.ptt:
	default:
	}

	src, err := l.openSource(ctx)
	if err != nil {
		return "", false, err
	}
	defer src.Close()

	silent := 0
	partial := ""
	for {
		chunk, err := src.Read(ctx)
		if err != nil {
			return "", false, err
		}

		done, err := l.rec.Accept(chunk.Bytes())
		if err != nil {
			return "", false, err
		}
		if done {
			if t := l.rec.Result(); t != "" {
				return t, false, nil
			}
			silent++
		} else if p := l.rec.Partial(); p != "" && p != partial {
			partial = p
			silent = 0
		} else {
			silent++
		}

		if silent >= l.cfg.SilenceChunks {
			return l.rec.Final(), true, nil
		}
	}
}

// fault waits out a recoverable audio error.
func (l *Listener) fault(ctx context.Context, err error) {
	l.metrics.MarkFault()

	backoff := l.cfg.ErrorBackoff
	if isDeviceFault(err) {
		backoff = l.cfg.DeviceBackoff
		l.logger.Warn("audio device not ready, reopening", "error", err, "backoff", backoff)
	} else {
		l.logger.Error("voice loop error", "error", err, "backoff", backoff)
	}

	t := time.NewTimer(backoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func isDeviceFault(err error) bool {
	return audioio.IsDeviceError(err) ||
		errors.Is(err, audioio.ErrNoDevice) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

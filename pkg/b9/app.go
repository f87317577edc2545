// Package b9 assembles the unit: inference queue, recovery, speech, voice
// loop, dialogue session and the transports that feed it.
//
// All hardware and backend adapters arrive through Deps so the whole unit
// runs against mocks in tests. cmd/b9 builds the production adapters.
package b9

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-b9/internal/config"
	"github.com/teslashibe/go-b9/pkg/control"
	"github.com/teslashibe/go-b9/pkg/conversation"
	"github.com/teslashibe/go-b9/pkg/dispatch"
	"github.com/teslashibe/go-b9/pkg/hub"
	"github.com/teslashibe/go-b9/pkg/journal"
	"github.com/teslashibe/go-b9/pkg/keypad"
	"github.com/teslashibe/go-b9/pkg/recovery"
	"github.com/teslashibe/go-b9/pkg/speech"
	"github.com/teslashibe/go-b9/pkg/tasks"
	"github.com/teslashibe/go-b9/pkg/vision"
	"github.com/teslashibe/go-b9/pkg/voice"
	"github.com/teslashibe/go-b9/pkg/web"
)

// Spoken announcements.
const (
	OnlineText    = "Warning. Warning. B-9 online. All systems nominal."
	prewarmPrompt = "Hello."
)

// Event topics published to the dashboard.
const (
	TopicDispatch = "dispatch"
	TopicRecovery = "recovery"
	TopicVoice    = "voice"
	TopicMetrics  = "voice_metrics"
	TopicSpeech   = "speech"
	TopicHealth   = "health"
)

// App is the running unit.
type App struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	pool       *tasks.Pool
	voicePool  *tasks.Pool
	dispatcher *dispatch.Dispatcher
	restarter  *recovery.Restarter
	watchdog   *recovery.Watchdog
	speaker    *speech.Speaker
	session    *conversation.Session
	scanner    *vision.Scanner
	listener   *voice.Listener
	control    *control.Server
	keypad     *keypad.Watcher
	journal    *journal.Journal
	web        *web.Server
	events     *hub.Hub

	started  time.Time
	online   atomic.Bool
	running  atomic.Bool
	backlogs atomic.Int64
}

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("b9: already running")

// New wires every component. Nothing runs until Run.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("b9: config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Provider == nil || deps.TTS == nil || deps.Sink == nil {
		return nil, errors.New("b9: provider, tts and sink are required")
	}
	if deps.Runner == nil {
		deps.Runner = recovery.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With("component", "b9"),
		pool:      tasks.New("background", 8, logger),
		voicePool: tasks.New("speech", 4, logger),
	}

	if err := a.initCore(logger); err != nil {
		return nil, fmt.Errorf("core init: %w", err)
	}
	if err := a.initSession(logger); err != nil {
		return nil, fmt.Errorf("session init: %w", err)
	}
	if err := a.initVoice(logger); err != nil {
		return nil, fmt.Errorf("voice init: %w", err)
	}
	if err := a.initTransports(logger); err != nil {
		return nil, fmt.Errorf("transport init: %w", err)
	}
	a.wireEvents()
	return a, nil
}

// initCore builds the queue, the shared restart routine and speech output.
func (a *App) initCore(logger *slog.Logger) error {
	rcfg := recovery.DefaultConfig()
	rcfg.Service = a.cfg.Ollama.Service
	rcfg.Binary = a.cfg.Ollama.Binary
	if err := rcfg.Validate(); err != nil {
		return err
	}
	probe := a.deps.Provider.Health
	a.restarter = recovery.NewRestarter(rcfg, probe, a.deps.Runner, logger)

	wcfg := recovery.WatchdogConfig{
		WarmUp:       a.cfg.Watchdog.WarmUp,
		Interval:     a.cfg.Watchdog.Interval,
		ProbeTimeout: a.cfg.Watchdog.ProbeTimeout,
	}
	if err := wcfg.Validate(); err != nil {
		return err
	}
	a.watchdog = recovery.NewWatchdog(wcfg, probe, a.restarter, logger)

	a.speaker = speech.NewSpeaker(speech.DefaultConfig(), a.deps.TTS, a.deps.Sink, speech.NewGate(), a.voicePool, logger)

	policy := dispatch.Policy{
		MaxAttempts:      a.cfg.Dispatch.MaxAttempts,
		Backoff:          a.cfg.Dispatch.Backoff,
		FailureThreshold: a.cfg.Dispatch.FailureThreshold,
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	a.dispatcher = dispatch.New(a.deps.Provider,
		dispatch.WithPolicy(policy),
		dispatch.WithRestarter(a.restarter),
		dispatch.WithWarn(a.speaker.SayAsync),
		dispatch.WithPollInterval(a.cfg.Dispatch.PollInterval),
		dispatch.WithLogger(logger),
	)
	return nil
}

func (a *App) initSession(logger *slog.Logger) error {
	opts := []conversation.Option{
		conversation.WithSpeaker(a.speaker),
		conversation.WithGate(a.speaker.Gate()),
		conversation.WithPool(a.pool),
		conversation.WithLogger(logger),
	}

	if a.cfg.Camera.Enabled && a.deps.Camera != nil {
		scfg := vision.DefaultScannerConfig()
		scfg.RequestTimeout = a.cfg.Dispatch.VisionTimeout
		scfg.Wait = a.cfg.Dispatch.VisionTimeout + 5*time.Second
		scanner, err := vision.NewScanner(scfg, a.deps.Camera, a.dispatcher, logger)
		if err != nil {
			return err
		}
		a.scanner = scanner
		opts = append(opts, conversation.WithScanner(scanner))
	}

	ccfg := conversation.DefaultConfig()
	ccfg.ChatTimeout = a.cfg.Dispatch.ChatTimeout
	ccfg.ChatWait = a.cfg.Dispatch.ChatWait
	ccfg.ScanWait = a.cfg.Dispatch.VisionTimeout + 5*time.Second
	if len(a.cfg.Voice.WakeWords) > 0 {
		ccfg.WakeWords = a.cfg.Voice.WakeWords
	}
	session, err := conversation.NewSession(ccfg, a.dispatcher, opts...)
	if err != nil {
		return err
	}
	a.session = session
	return nil
}

func (a *App) initVoice(logger *slog.Logger) error {
	if !a.cfg.Voice.Enabled || a.deps.OpenMic == nil || a.deps.Recognizer == nil {
		a.logger.Warn("voice loop disabled",
			"enabled", a.cfg.Voice.Enabled,
			"mic", a.deps.OpenMic != nil,
			"recognizer", a.deps.Recognizer != nil)
		return nil
	}

	vcfg := voice.DefaultConfig()
	vcfg.WakeWords = a.cfg.Voice.WakeWords
	vcfg.SilenceChunks = a.cfg.Voice.SilenceChunks
	l, err := voice.NewListener(vcfg, voice.Deps{
		Open:       a.deps.OpenMic,
		Recognizer: a.deps.Recognizer,
		Gate:       a.speaker.Gate(),
		Speaker:    a.speaker,
		Handler: func(ctx context.Context, text string) {
			a.session.Process(ctx, text, true)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	a.listener = l
	return nil
}

func (a *App) initTransports(logger *slog.Logger) error {
	ccfg := control.DefaultConfig()
	ccfg.Addr = a.cfg.Control.Addr
	ccfg.IdleTimeout = a.cfg.Control.IdleTimeout
	srv, err := control.NewServer(ccfg, a.session, tasks.New("control", a.cfg.Control.MaxConns, logger), logger)
	if err != nil {
		return err
	}
	a.control = srv

	if a.cfg.Keypad.Enabled {
		kcfg := keypad.DefaultConfig()
		if a.cfg.Keypad.Glob != "" {
			kcfg.Glob = a.cfg.Keypad.Glob
		}
		w, err := keypad.NewWatcher(kcfg, a.onKey, logger)
		if err != nil {
			return err
		}
		a.keypad = w
	}

	if a.cfg.Journal.Path != "" {
		j, err := journal.Open(a.cfg.Journal.Path, journal.DefaultMaxRows, logger)
		if err != nil {
			a.logger.Warn("recovery journal unavailable", "path", a.cfg.Journal.Path, "error", err)
		} else {
			a.journal = j
		}
	}

	if a.cfg.Web.Addr != "" {
		a.events = hub.New("events", logger)
		wcfg := web.DefaultConfig()
		wcfg.Addr = a.cfg.Web.Addr
		srv, err := web.NewServer(wcfg, a, a.events, logger)
		if err != nil {
			return err
		}
		a.web = srv
	}
	return nil
}

// onKey maps keypad presses to actions.
func (a *App) onKey(action keypad.Action) {
	switch action {
	case keypad.ActionPushToTalk:
		a.PushToTalk()
	case keypad.ActionCamera:
		a.Scan()
	}
}

// wireEvents forwards component events to the dashboard and the journal.
func (a *App) wireEvents() {
	a.dispatcher.OnEvent(func(e dispatch.Event) {
		a.publish(TopicDispatch, e)
	})

	a.restarter.OnEvent(func(e recovery.Event) {
		a.publish(TopicRecovery, e)
		if a.journal == nil {
			return
		}
		entry := journal.Entry{
			Time:     e.Time,
			Source:   e.Source,
			Kind:     string(e.Kind),
			OK:       e.OK,
			Detail:   e.Detail,
			Duration: e.Duration,
		}
		if err := a.pool.TryGo(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.journal.Record(ctx, entry); err != nil {
				a.logger.Warn("journal write failed", "error", err)
			}
		}); err != nil {
			a.logger.Warn("journal write dropped", "kind", e.Kind, "error", err)
		}
	})

	a.speaker.OnSpeak(func(text string) {
		a.publish(TopicSpeech, map[string]string{"text": text})
	})

	if a.listener != nil {
		a.listener.OnStateChange(func(s voice.State) {
			a.publish(TopicVoice, map[string]voice.State{"state": s})
		})
		a.listener.Metrics().OnUpdate(func(m voice.Metrics) {
			a.publish(TopicMetrics, m)
		})
	}
}

func (a *App) publish(topic string, v any) {
	if a.events == nil {
		return
	}
	if err := a.events.Publish(topic, v); err != nil {
		a.logger.Debug("publish failed", "topic", topic, "error", err)
	}
}

// Session returns the dialogue session.
func (a *App) Session() *conversation.Session {
	return a.session
}

// Dispatcher returns the inference queue.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Speaker returns the speech output.
func (a *App) Speaker() *speech.Speaker {
	return a.speaker
}

// Control returns the TCP control server.
func (a *App) Control() *control.Server {
	return a.control
}

// Web returns the dashboard, or nil when disabled.
func (a *App) Web() *web.Server {
	return a.web
}

// Online reports whether startup has finished.
func (a *App) Online() bool {
	return a.online.Load()
}

// Close releases resources held outside Run.
func (a *App) Close() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.deps.Recognizer != nil {
		errs = append(errs, a.deps.Recognizer.Close())
	}
	errs = append(errs, a.deps.Sink.Close())
	return errors.Join(errs...)
}

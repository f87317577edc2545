// Package conversation implements the dialogue session that sits between
// the producers (voice loop, control connections, dashboard) and the
// inference dispatcher.
//
// A handful of instant commands are answered locally. Everything else is
// recorded in the session history and sent to the model as a chat turn.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/teslashibe/go-b9/pkg/dispatch"
	"github.com/teslashibe/go-b9/pkg/tasks"
)

// Fixed replies.
const (
	PongText        = "PONG"
	ScanningText    = "Scanning."
	ClearedText     = "Affirmative. Memory banks purged."
	PlaceholderText = "Processing delay. Stand by."

	sensorsOffline = "Warning. Optical sensors offline. No camera detected."
)

var greetings = []string{
	"Affirmative. This unit is operational and standing by.",
	"Robot B-9 reporting. All systems within normal parameters.",
	"Greetings. This unit is ready. What do you require?",
}

var scanPhrases = []string{
	"what do you see", "what can you see", "look around", "scan",
	"optical scan", "what is in front", "describe surroundings",
	"camera", "take a look",
}

// Dispatcher queues model work.
type Dispatcher interface {
	Submit(req dispatch.Request) *dispatch.Ticket
	QueueDepth() int
}

// Speaker speaks text and returns when playback is over.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Gate marks the unit as busy producing speech.
type Gate interface {
	Hold() (release func())
}

// Scanner describes what the camera sees. ok is false when no
// description arrived in time.
type Scanner interface {
	Scan(ctx context.Context) (desc string, ok bool)
}

// Option configures a Session.
type Option func(*Session)

// WithSpeaker sets the voice output.
func WithSpeaker(sp Speaker) Option {
	return func(s *Session) { s.speaker = sp }
}

// WithGate sets the gate held while a voice command is being answered.
func WithGate(g Gate) Option {
	return func(s *Session) { s.gate = g }
}

// WithScanner sets the camera scanner.
func WithScanner(sc Scanner) Option {
	return func(s *Session) { s.scanner = sc }
}

// WithPool sets the pool that runs background scans.
func WithPool(p *tasks.Pool) Option {
	return func(s *Session) { s.pool = p }
}

// WithSystemInfo sets the health source for the status command.
func WithSystemInfo(si SystemInfo) Option {
	return func(s *Session) { s.sys = si }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is the single writer of the conversation history.
type Session struct {
	cfg        Config
	dispatcher Dispatcher
	speaker    Speaker
	gate       Gate
	scanner    Scanner
	pool       *tasks.Pool
	sys        SystemInfo
	history    *History
	logger     *slog.Logger
}

// NewSession creates a session.
func NewSession(cfg Config, d Dispatcher, opts ...Option) (*Session, error) {
	if d == nil {
		return nil, ErrNoDispatcher
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:        cfg,
		dispatcher: d,
		history:    NewHistory(cfg.HistoryLimit),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sys == nil {
		s.sys = HostInfo{ThermalPath: cfg.ThermalPath}
	}
	s.logger = s.logger.With("component", "session")
	return s, nil
}

// History returns the session history.
func (s *Session) History() *History {
	return s.history
}

// Process answers one operator utterance. fromVoice selects the voice
// path, which speaks the reply before returning.
func (s *Session) Process(ctx context.Context, text string, fromVoice bool) string {
	cmd := strings.TrimSpace(text)
	if cmd == "" {
		return ""
	}
	lower := strings.ToLower(cmd)
	s.logger.Info("processing", "text", cmd, "voice", fromVoice)

	if lower == "ping" {
		return PongText
	}

	if isScanRequest(lower) {
		s.say(ctx, ScanningText)
		s.StartScan(true)
		return ScanningText
	}

	if resp, ok := s.local(lower); ok {
		if fromVoice {
			s.say(ctx, resp)
		}
		return resp
	}

	return s.chat(ctx, cmd, fromVoice)
}

func isScanRequest(lower string) bool {
	for _, p := range scanPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// local answers the instant commands.
func (s *Session) local(lower string) (string, bool) {
	switch lower {
	case "status", "systems", "report":
		return s.StatusReport(), true
	case "clear":
		s.history.Clear()
		return ClearedText, true
	case "hello", "hi", "hey", "greetings":
		return greetings[rand.IntN(len(greetings))], true
	case "help":
		return fmt.Sprintf("B-9 command interface. Say: hello, status, clear, "+
			"what do you see, or ask any question. Wake words: %s.",
			strings.Join(s.cfg.WakeWords, ", ")), true
	}
	return "", false
}

// StatusReport renders the spoken health summary.
func (s *Session) StatusReport() string {
	return fmt.Sprintf("B-9 systems report. Temperature %d degrees Celsius. "+
		"Uptime %s. AI queue depth: %d. All primary systems nominal.",
		s.sys.Temperature(), s.sys.Uptime(), s.dispatcher.QueueDepth())
}

func (s *Session) chat(ctx context.Context, cmd string, fromVoice bool) string {
	prior := s.history.Snapshot()
	s.history.AddUser(cmd)
	ticket := s.dispatcher.Submit(dispatch.NewChatRequest(cmd, prior, s.cfg.ChatTimeout))

	if fromVoice && s.gate != nil {
		release := s.gate.Hold()
		defer release()
	}

	resp, ok := ticket.Wait(ctx, s.cfg.ChatWait)
	if !ok || resp == "" {
		s.logger.Warn("no reply in time", "request", ticket.ID(), "wait", s.cfg.ChatWait)
		resp = PlaceholderText
	}
	s.history.AddAssistant(resp)

	if fromVoice {
		s.say(ctx, resp)
	}
	return resp
}

// StartScan describes the camera view in the background and speaks the
// result. remember records the description as an assistant turn.
func (s *Session) StartScan(remember bool) {
	run := func() {
		desc, ok := s.scan()
		if !ok || desc == "" {
			s.logger.Warn("scan produced no description")
			return
		}
		s.say(context.Background(), desc)
		if remember {
			s.history.AddAssistant(desc)
		}
	}

	if s.pool == nil {
		go run()
		return
	}
	if err := s.pool.TryGo(run); err != nil {
		s.logger.Warn("scan dropped", "error", err)
	}
}

func (s *Session) scan() (string, bool) {
	if s.scanner == nil {
		return sensorsOffline, true
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ScanWait)
	defer cancel()
	return s.scanner.Scan(ctx)
}

func (s *Session) say(ctx context.Context, text string) {
	if s.speaker == nil {
		return
	}
	if err := s.speaker.Say(ctx, text); err != nil {
		s.logger.Debug("speech failed", "error", err)
	}
}

package keypad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Action is what a key press asks for.
type Action int

const (
	ActionPushToTalk Action = iota + 1
	ActionCamera
)

func (a Action) String() string {
	switch a {
	case ActionPushToTalk:
		return "push_to_talk"
	case ActionCamera:
		return "camera"
	default:
		return "none"
	}
}

// Config holds keypad settings.
type Config struct {
	// Glob selects the evdev nodes to watch.
	Glob string

	// PushToTalkCodes are key codes that start command capture
	// (KP1 and the top-row 1).
	PushToTalkCodes []uint16

	// CameraCodes are key codes that start a scan (KP2 and the top-row 2).
	CameraCodes []uint16
}

// DefaultConfig returns the stock keypad mapping.
func DefaultConfig() Config {
	return Config{
		Glob:            "/dev/input/event*",
		PushToTalkCodes: []uint16{79, 2},
		CameraCodes:     []uint16{80, 3},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Glob == "" {
		return errors.New("keypad: device glob required")
	}
	if _, err := filepath.Match(c.Glob, ""); err != nil {
		return fmt.Errorf("keypad: bad glob: %w", err)
	}
	return nil
}

// Action maps a key press to an action, or 0.
func (c Config) Action(e Event) Action {
	if !e.IsKeyDown() {
		return 0
	}
	switch {
	case slices.Contains(c.PushToTalkCodes, e.Code):
		return ActionPushToTalk
	case slices.Contains(c.CameraCodes, e.Code):
		return ActionCamera
	}
	return 0
}

// Watcher reads every matching input device.
type Watcher struct {
	cfg     Config
	handler func(Action)
	logger  *slog.Logger

	presses atomic.Int64
}

// NewWatcher creates a watcher that calls handler for each mapped press.
func NewWatcher(cfg Config, handler func(Action), logger *slog.Logger) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("keypad: handler required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{cfg: cfg, handler: handler, logger: logger.With("component", "keypad")}, nil
}

// Run watches all devices present now until ctx ends or every device
// has gone away. A host without devices returns immediately.
func (w *Watcher) Run(ctx context.Context) error {
	devs, err := filepath.Glob(w.cfg.Glob)
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		w.logger.Info("no input devices, keypad not connected")
		return nil
	}
	w.logger.Info("watching", "devices", len(devs))

	g, gctx := errgroup.WithContext(ctx)
	for _, dev := range devs {
		g.Go(func() error {
			if err := w.watchFile(gctx, dev); err != nil && gctx.Err() == nil {
				w.logger.Debug("device closed", "device", dev, "error", err)
			}
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

func (w *Watcher) watchFile(ctx context.Context, dev string) error {
	f, err := os.Open(dev)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()
	defer f.Close()
	return w.Watch(ctx, f)
}

// Watch decodes events from r until it fails or ctx ends.
func (w *Watcher) Watch(ctx context.Context, r io.Reader) error {
	buf := make([]byte, EventSize)
	for ctx.Err() == nil {
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		ev, _ := Decode(buf)
		action := w.cfg.Action(ev)
		if action == 0 {
			continue
		}
		w.presses.Add(1)
		w.logger.Info("key", "code", ev.Code, "action", action)
		w.handler(action)
	}
	return ctx.Err()
}

// Presses returns how many mapped presses were seen.
func (w *Watcher) Presses() int64 {
	return w.presses.Load()
}

// Package recovery brings a dead inference backend back.
//
// Two independent triggers share one restart routine: the dispatcher after
// repeated failed requests, and the Watchdog after a failed liveness probe.
// Restarts are single-flight: a trigger that arrives while a restart is
// running waits for it and shares its outcome.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config controls the restart routine.
type Config struct {
	// Service is the systemd unit restarted gracefully.
	Service string

	// Binary is the backend executable used for a forced relaunch.
	Binary string

	// UseSudo prefixes systemctl with sudo.
	UseSudo bool

	GracefulTimeout time.Duration
	KillTimeout     time.Duration
	SettleDelay     time.Duration

	// PollInterval and PollTimeout bound the wait for the backend to answer.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DefaultConfig returns the stock restart settings.
func DefaultConfig() Config {
	return Config{
		Service:         "ollama",
		Binary:          "ollama",
		UseSudo:         true,
		GracefulTimeout: 15 * time.Second,
		KillTimeout:     5 * time.Second,
		SettleDelay:     2 * time.Second,
		PollInterval:    time.Second,
		PollTimeout:     20 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Service == "" && c.Binary == "" {
		return errors.New("recovery: service or binary required")
	}
	if c.PollInterval <= 0 {
		return errors.New("recovery: poll interval must be positive")
	}
	if c.PollTimeout < c.PollInterval {
		return errors.New("recovery: poll timeout shorter than poll interval")
	}
	return nil
}

// Runner executes host commands.
type Runner interface {
	// Run executes a command and waits for it.
	Run(ctx context.Context, name string, args ...string) error

	// Launch starts a detached command and does not wait.
	Launch(name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, truncate(string(out), 120))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Launch implements Runner.
func (ExecRunner) Launch(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ProbeFunc reports whether the backend is alive.
type ProbeFunc func(ctx context.Context) error

// Restarter runs the shared restart routine.
type Restarter struct {
	cfg    Config
	probe  ProbeFunc
	runner Runner
	logger *slog.Logger

	group     singleflight.Group
	running   atomic.Bool
	attempts  atomic.Int64
	recovered atomic.Int64

	onEvent atomic.Pointer[func(Event)]
}

// NewRestarter creates a restarter. runner may be nil for ExecRunner.
func NewRestarter(cfg Config, probe ProbeFunc, runner Runner, logger *slog.Logger) *Restarter {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Restarter{
		cfg:    cfg,
		probe:  probe,
		runner: runner,
		logger: logger.With("component", "recovery"),
	}
}

// OnEvent registers a callback for restart events.
func (r *Restarter) OnEvent(fn func(Event)) {
	r.onEvent.Store(&fn)
}

func (r *Restarter) emit(e Event) {
	e.Time = time.Now()
	if fn := r.onEvent.Load(); fn != nil {
		(*fn)(e)
	}
}

// InProgress reports whether a restart is running.
func (r *Restarter) InProgress() bool {
	return r.running.Load()
}

// Restart restarts the backend and reports whether it answers afterwards.
// Concurrent callers share one restart.
func (r *Restarter) Restart(ctx context.Context, source string) bool {
	v, _, shared := r.group.Do("restart", func() (any, error) {
		return r.restart(context.WithoutCancel(ctx), source), nil
	})
	ok := v.(bool)
	if shared {
		r.logger.Info("joined restart in progress", "source", source, "ok", ok)
	}
	return ok
}

func (r *Restarter) restart(ctx context.Context, source string) bool {
	r.running.Store(true)
	defer r.running.Store(false)
	r.attempts.Add(1)

	start := time.Now()
	r.logger.Warn("restarting backend", "source", source, "service", r.cfg.Service)
	r.emit(Event{Source: source, Kind: KindRestartStarted})

	method := "graceful"
	if err := r.graceful(ctx); err != nil {
		r.logger.Warn("graceful restart failed, relaunching", "error", err)
		method = "relaunch"
		if err := r.relaunch(ctx); err != nil {
			r.logger.Error("relaunch failed", "error", err)
		}
	}

	ok := r.waitAlive(ctx)
	elapsed := time.Since(start)
	if ok {
		r.recovered.Add(1)
		r.logger.Info("backend recovered", "source", source, "method", method, "elapsed", elapsed)
		r.emit(Event{Source: source, Kind: KindRestartSucceeded, OK: true, Detail: method, Duration: elapsed})
	} else {
		r.logger.Error("backend did not recover", "source", source, "method", method, "elapsed", elapsed)
		r.emit(Event{Source: source, Kind: KindRestartFailed, Detail: method, Duration: elapsed})
	}
	return ok
}

func (r *Restarter) graceful(ctx context.Context) error {
	if r.cfg.Service == "" {
		return errors.New("recovery: no service configured")
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GracefulTimeout)
	defer cancel()
	if r.cfg.UseSudo {
		return r.runner.Run(ctx, "sudo", "systemctl", "restart", r.cfg.Service)
	}
	return r.runner.Run(ctx, "systemctl", "restart", r.cfg.Service)
}

func (r *Restarter) relaunch(ctx context.Context) error {
	if r.cfg.Binary == "" {
		return errors.New("recovery: no binary configured")
	}
	kctx, cancel := context.WithTimeout(ctx, r.cfg.KillTimeout)
	err := r.runner.Run(kctx, "pkill", "-f", r.cfg.Binary)
	cancel()
	if err != nil {
		// pkill exits 1 when nothing matched.
		r.logger.Debug("pkill", "error", err)
	}

	if !sleep(ctx, r.cfg.SettleDelay) {
		return ctx.Err()
	}
	return r.runner.Launch(r.cfg.Binary, "serve")
}

func (r *Restarter) waitAlive(ctx context.Context) bool {
	polls := int(r.cfg.PollTimeout / r.cfg.PollInterval)
	for i := 0; i < polls; i++ {
		if !sleep(ctx, r.cfg.PollInterval) {
			return false
		}
		pctx, cancel := context.WithTimeout(ctx, r.cfg.PollInterval*5)
		err := r.probe(pctx)
		cancel()
		if err == nil {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stats is a snapshot of restart counters.
type Stats struct {
	Attempts   int64 `json:"attempts"`
	Recovered  int64 `json:"recovered"`
	InProgress bool  `json:"in_progress"`
}

// Stats returns current counters.
func (r *Restarter) Stats() Stats {
	return Stats{
		Attempts:   r.attempts.Load(),
		Recovered:  r.recovered.Load(),
		InProgress: r.running.Load(),
	}
}

package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// WatchdogConfig controls the liveness prober.
type WatchdogConfig struct {
	WarmUp       time.Duration
	Interval     time.Duration
	ProbeTimeout time.Duration
}

// DefaultWatchdogConfig returns a 60s warm-up and a 30s probe period.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		WarmUp:       60 * time.Second,
		Interval:     30 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c WatchdogConfig) Validate() error {
	if c.Interval <= 0 {
		return errors.New("recovery: watchdog interval must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("recovery: probe timeout must be positive")
	}
	if c.WarmUp < 0 {
		return errors.New("recovery: warm-up cannot be negative")
	}
	return nil
}

// Watchdog probes the backend on a fixed period and restarts it when the
// probe fails.
type Watchdog struct {
	cfg       WatchdogConfig
	probe     ProbeFunc
	restarter *Restarter
	logger    *slog.Logger

	probes   atomic.Int64
	failures atomic.Int64
}

// NewWatchdog creates a watchdog sharing restarter with the dispatcher.
func NewWatchdog(cfg WatchdogConfig, probe ProbeFunc, restarter *Restarter, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		cfg:       cfg,
		probe:     probe,
		restarter: restarter,
		logger:    logger.With("component", "watchdog"),
	}
}

// Run waits out the warm-up, then probes every interval until ctx ends.
// Overlapping probe runs are skipped.
func (w *Watchdog) Run(ctx context.Context) error {
	if w.cfg.WarmUp > 0 {
		w.logger.Info("watchdog warming up", "delay", w.cfg.WarmUp)
		if !sleep(ctx, w.cfg.WarmUp) {
			return ctx.Err()
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{w.logger})))
	c.Schedule(cron.Every(w.cfg.Interval), cron.FuncJob(func() {
		w.Check(ctx)
	}))

	c.Start()
	w.logger.Info("watchdog started", "interval", w.cfg.Interval)

	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("watchdog stopped")
	return ctx.Err()
}

// Check probes once and restarts the backend on failure. It reports
// whether the backend is alive afterwards.
func (w *Watchdog) Check(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	w.probes.Add(1)

	pctx, cancel := context.WithTimeout(ctx, w.cfg.ProbeTimeout)
	err := w.probe(pctx)
	cancel()
	if err == nil {
		return true
	}

	w.failures.Add(1)
	w.logger.Warn("backend not responding, restarting", "error", err)
	w.restarter.emit(Event{Source: SourceWatchdog, Kind: KindProbeFailed, Detail: err.Error()})
	return w.restarter.Restart(ctx, SourceWatchdog)
}

// WatchdogStats is a snapshot of watchdog counters.
type WatchdogStats struct {
	Probes   int64 `json:"probes"`
	Failures int64 `json:"failures"`
}

// Stats returns current counters.
func (w *Watchdog) Stats() WatchdogStats {
	return WatchdogStats{
		Probes:   w.probes.Load(),
		Failures: w.failures.Load(),
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

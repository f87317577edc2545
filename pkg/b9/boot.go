package b9

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-b9/pkg/audioio"
	"github.com/teslashibe/go-b9/pkg/dispatch"
	"github.com/teslashibe/go-b9/pkg/vision"
)

const (
	hardwarePoll  = time.Second
	controlRetry  = 3 * time.Second
	queueBacklog  = 2
	prewarmWait   = 65 * time.Second
	prewarmExpiry = 60 * time.Second
)

// Run starts every component and blocks until ctx ends. Startup order:
// queue and watchdog, transports, hardware wait, model warm-up, voice
// loop, then the online announcement.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	a.started = time.Now()
	a.logger.Info("starting",
		"ollama", a.cfg.Ollama.URL,
		"control", a.cfg.Control.Addr,
		"web", a.cfg.Web.Addr,
		"voice", a.listener != nil,
		"camera", a.scanner != nil)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.dispatcher.Run(gctx) })
	g.Go(func() error { return a.watchdog.Run(gctx) })
	g.Go(func() error {
		a.serveControl(gctx)
		return nil
	})
	if a.keypad != nil {
		g.Go(func() error {
			if err := a.keypad.Run(gctx); err != nil && gctx.Err() == nil {
				a.logger.Warn("keypad stopped", "error", err)
			}
			return nil
		})
	}
	if a.events != nil {
		g.Go(func() error {
			a.events.Run(gctx)
			return nil
		})
	}
	if a.web != nil {
		g.Go(func() error {
			if err := a.web.Listen(gctx); err != nil {
				a.logger.Error("dashboard stopped", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := a.boot(gctx); err != nil {
			return err
		}
		g.Go(func() error { return a.monitorQueue(gctx) })
		if a.listener != nil {
			return a.listener.Run(gctx)
		}
		<-gctx.Done()
		return gctx.Err()
	})

	err := g.Wait()
	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		a.logger.Info("stopped")
		return nil
	}
	return err
}

// boot runs the sequential part of startup.
func (a *App) boot(ctx context.Context) error {
	a.waitForHardware(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if p, ok := a.deps.Camera.(prober); ok && a.scanner != nil {
		a.logger.Info("camera probe", "available", p.Probe())
	}

	if r, ok := a.deps.Provider.(modelResolver); ok {
		if err := r.ResolveModels(ctx); err != nil {
			a.logger.Warn("model discovery failed", "error", err)
		} else {
			a.logger.Info("models", "chat", r.ChatModel(), "vision", r.VisionModel())
		}
	}

	if a.cfg.Boot.Prewarm {
		a.prewarm(ctx)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := a.speaker.Say(ctx, OnlineText); err != nil && ctx.Err() == nil {
		a.logger.Warn("announcement failed", "error", err)
	}
	a.online.Store(true)
	a.logger.Info("online", "boot_time", time.Since(a.started).Round(time.Millisecond))
	return nil
}

// waitForHardware polls for the microphone, speaker and camera until all
// are present or the configured wait runs out. Missing hardware is logged
// and the unit continues.
func (a *App) waitForHardware(ctx context.Context) {
	wait := a.cfg.Boot.HardwareWait
	if wait <= 0 {
		return
	}
	deadline := time.Now().Add(wait)
	for {
		audio, camera := a.hardwarePresent()
		if audio && camera {
			a.logger.Info("hardware ready", "waited", time.Since(a.started).Round(time.Second))
			return
		}
		if time.Now().After(deadline) {
			a.logger.Warn("hardware wait expired", "audio", audio, "camera", camera)
			return
		}
		t := time.NewTimer(hardwarePoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (a *App) hardwarePresent() (audio, camera bool) {
	cards, err := audioio.DetectCards(a.deps.CardsPath)
	audio = err == nil && cards.Mic >= 0
	camera = !a.cfg.Camera.Enabled || a.deps.Camera == nil || vision.DevicesPresent(a.cfg.Camera.MaxDevices)
	return audio, camera
}

// prewarm loads the chat model so the first operator question does not pay
// the load time.
func (a *App) prewarm(ctx context.Context) {
	a.logger.Info("warming up chat model")
	start := time.Now()
	ticket := a.dispatcher.Submit(dispatch.NewChatRequest(prewarmPrompt, nil, prewarmExpiry))
	if _, ok := ticket.Wait(ctx, prewarmWait); !ok {
		a.logger.Warn("model warm-up timed out", "waited", time.Since(start).Round(time.Second))
		return
	}
	a.logger.Info("model warm", "took", time.Since(start).Round(time.Millisecond))
}

// serveControl keeps the TCP control server up, retrying when the port
// cannot be bound.
func (a *App) serveControl(ctx context.Context) {
	for {
		err := a.control.ListenAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		a.logger.Error("control server failed, retrying", "error", err, "backoff", controlRetry)
		t := time.NewTimer(controlRetry)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// monitorQueue reports backpressure when requests pile up.
func (a *App) monitorQueue(ctx context.Context) error {
	every := a.cfg.Boot.HealthEvery
	if every <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if depth := a.dispatcher.QueueDepth(); depth > queueBacklog {
				a.backlogs.Add(1)
				a.logger.Warn("queue backlog", "depth", depth)
				a.publish(TopicHealth, map[string]int{"queue_depth": depth})
			}
		}
	}
}

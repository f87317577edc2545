package b9

import (
	"context"
	"errors"
	"time"

	"github.com/teslashibe/go-b9/pkg/control"
	"github.com/teslashibe/go-b9/pkg/conversation"
	"github.com/teslashibe/go-b9/pkg/dispatch"
	"github.com/teslashibe/go-b9/pkg/inference"
	"github.com/teslashibe/go-b9/pkg/journal"
	"github.com/teslashibe/go-b9/pkg/recovery"
	"github.com/teslashibe/go-b9/pkg/speech"
	"github.com/teslashibe/go-b9/pkg/tasks"
	"github.com/teslashibe/go-b9/pkg/voice"
	"github.com/teslashibe/go-b9/pkg/web"
)

// Status is the health snapshot served by the dashboard.
type Status struct {
	Online      bool                   `json:"online"`
	Uptime      string                 `json:"uptime"`
	ChatModel   string                 `json:"chat_model,omitempty"`
	VisionModel string                 `json:"vision_model,omitempty"`
	Backend     string                 `json:"backend"`
	Dispatch    dispatch.Stats         `json:"dispatch"`
	Recovery    recovery.Stats         `json:"recovery"`
	Watchdog    recovery.WatchdogStats `json:"watchdog"`
	Speech      speech.Stats           `json:"speech"`
	Voice       *VoiceStatus           `json:"voice,omitempty"`
	Control     control.Stats          `json:"control"`
	Background  tasks.Stats            `json:"background"`
	SpeechTasks tasks.Stats            `json:"speech_tasks"`
	Camera      bool                   `json:"camera"`
	History     int                    `json:"history"`
	Temperature int                    `json:"temperature_c"`
	Dashboards  int                    `json:"dashboards"`
	Recoveries  int                    `json:"recoveries_24h"`
	Backlogs    int64                  `json:"queue_backlogs"`
}

// VoiceStatus describes the voice loop.
type VoiceStatus struct {
	State   voice.State   `json:"state"`
	Metrics voice.Metrics `json:"metrics"`
}

// Snapshot collects the current status.
func (a *App) Snapshot(ctx context.Context) Status {
	s := Status{
		Online:      a.online.Load(),
		Backend:     "ok",
		Dispatch:    a.dispatcher.Stats(),
		Recovery:    a.restarter.Stats(),
		Watchdog:    a.watchdog.Stats(),
		Speech:      a.speaker.Stats(),
		Control:     a.control.Stats(),
		Background:  a.pool.Stats(),
		SpeechTasks: a.voicePool.Stats(),
		Camera:      a.deps.Camera != nil && a.deps.Camera.Available(),
		History:     a.session.History().Len(),
		Backlogs:    a.backlogs.Load(),
		Temperature: conversation.HostInfo{ThermalPath: conversation.DefaultConfig().ThermalPath}.Temperature(),
	}
	if !a.started.IsZero() {
		s.Uptime = time.Since(a.started).Round(time.Second).String()
	}
	if r, ok := a.deps.Provider.(modelResolver); ok {
		s.ChatModel = r.ChatModel()
		s.VisionModel = r.VisionModel()
	}

	pctx, cancel := context.WithTimeout(ctx, a.cfg.Watchdog.ProbeTimeout)
	if err := a.deps.Provider.Health(pctx); err != nil {
		s.Backend = err.Error()
	}
	cancel()

	if a.listener != nil {
		s.Voice = &VoiceStatus{State: a.listener.State(), Metrics: a.listener.Metrics().Current()}
	}
	if a.events != nil {
		s.Dashboards = a.events.ClientCount()
	}
	if a.journal != nil {
		n, err := a.journal.Count(ctx, string(recovery.KindRestartStarted), time.Now().Add(-24*time.Hour))
		if err == nil {
			s.Recoveries = n
		}
	}
	return s
}

// Status implements web.Backend.
func (a *App) Status(ctx context.Context) any {
	return a.Snapshot(ctx)
}

// History implements web.Backend.
func (a *App) History() []inference.Message {
	return a.session.History().Snapshot()
}

// ErrNoJournal is returned by Recoveries when the journal is disabled.
var ErrNoJournal = errors.New("b9: recovery journal disabled")

// Recoveries implements web.Backend.
func (a *App) Recoveries(ctx context.Context, limit int) ([]journal.Entry, error) {
	if a.journal == nil {
		return nil, ErrNoJournal
	}
	return a.journal.Recent(ctx, limit)
}

// Ask implements web.Backend. Typed questions take the text path.
func (a *App) Ask(ctx context.Context, text string) string {
	return a.session.Process(ctx, text, false)
}

// Scan implements web.Backend.
func (a *App) Scan() {
	a.speaker.SayAsync(conversation.ScanningText)
	a.session.StartScan(false)
}

// PushToTalk starts command capture when the voice loop is running.
func (a *App) PushToTalk() {
	if a.listener == nil {
		a.logger.Debug("push to talk ignored, voice loop disabled")
		return
	}
	a.listener.PushToTalk()
}

var _ web.Backend = (*App)(nil)

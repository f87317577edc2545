package b9

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-b9/internal/config"
	"github.com/teslashibe/go-b9/pkg/asr"
	"github.com/teslashibe/go-b9/pkg/audioio"
	"github.com/teslashibe/go-b9/pkg/inference"
	"github.com/teslashibe/go-b9/pkg/tts"
	"github.com/teslashibe/go-b9/pkg/vision"
)

// Check is one line of a doctor report.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report is the result of Doctor.
type Report struct {
	Checks []Check `json:"checks"`
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Write prints the report one check per line.
func (r Report) Write(w io.Writer) {
	for _, c := range r.Checks {
		mark := "ok  "
		if !c.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %-12s %s\n", mark, c.Name, c.Detail)
	}
}

func (r *Report) add(name string, err error, detail string) {
	c := Check{Name: name, OK: err == nil, Detail: detail}
	if err != nil {
		c.Detail = err.Error()
	}
	r.Checks = append(r.Checks, c)
}

// Doctor checks the host the way startup would and reports each
// dependency. provider and synth may be nil to skip those checks.
func Doctor(ctx context.Context, cfg *config.Config, provider inference.Provider, synth tts.Provider, cardsPath string) Report {
	var r Report

	r.add("config", cfg.Validate(), "valid")

	if provider != nil {
		hctx, cancel := context.WithTimeout(ctx, cfg.Watchdog.ProbeTimeout)
		err := provider.Health(hctx)
		cancel()
		r.add("ollama", err, cfg.Ollama.URL)

		if err == nil {
			mctx, cancel := context.WithTimeout(ctx, cfg.Watchdog.ProbeTimeout)
			models, err := provider.Models(mctx)
			cancel()
			if err == nil && len(models) == 0 {
				err = errors.New("no models installed")
			}
			r.add("models", err, strings.Join(models, ", "))
		}
	}

	if synth != nil {
		r.add("espeak", synth.Health(ctx), "installed")
	}

	cards, err := audioio.DetectCards(cardsPath)
	if err == nil && cards.Mic < 0 {
		err = audioio.ErrNoDevice
	}
	r.add("audio", err, fmt.Sprintf("mic %s, speaker %s", audioio.Device(cards.Mic), audioio.Device(cards.Speaker)))

	if cfg.Voice.Enabled {
		err := checkModel(cfg.Voice.ModelPath)
		if err == nil && !asr.Available {
			err = asr.ErrUnavailable
		}
		r.add("recognizer", err, cfg.Voice.ModelPath)
	}

	if cfg.Camera.Enabled {
		var err error
		if !vision.DevicesPresent(cfg.Camera.MaxDevices) {
			err = vision.ErrNoCamera
		}
		r.add("camera", err, vision.DevicePrefix+"*")
	}

	r.add("control", checkPort(cfg.Control.Addr), cfg.Control.Addr)
	if cfg.Web.Addr != "" {
		r.add("dashboard", checkPort(cfg.Web.Addr), cfg.Web.Addr)
	}
	return r
}

func checkModel(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", asr.ErrNoModel, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", asr.ErrNoModel, path)
	}
	return nil
}

// checkPort fails when something already answers on addr.
func checkPort(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		host = "127.0.0.1"
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), 500*time.Millisecond)
	if err != nil {
		return nil
	}
	conn.Close()
	return fmt.Errorf("%s already in use", addr)
}

package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const espeakName = "espeak"

// Espeak synthesizes speech with espeak-ng (or espeak).
type Espeak struct {
	config *Config
	logger *slog.Logger
}

// NewEspeak creates an espeak provider. If the configured binary is not
// on PATH, plain "espeak" is tried before giving up.
func NewEspeak(opts ...Option) (*Espeak, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if _, err := exec.LookPath(cfg.Binary); err != nil {
		if _, alt := exec.LookPath("espeak"); alt != nil {
			return nil, WrapError(espeakName, fmt.Errorf("%w: %s not found", ErrProviderUnavailable, cfg.Binary))
		}
		cfg.Binary = "espeak"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Espeak{
		config: cfg,
		logger: logger.With("component", "tts", "provider", espeakName),
	}, nil
}

// args builds the command line for one utterance.
func (e *Espeak) args(text string) []string {
	return []string{
		"-v", e.config.Voice,
		"-p", strconv.Itoa(e.config.Pitch),
		"-s", strconv.Itoa(e.config.Speed),
		"-a", strconv.Itoa(e.config.Amplitude),
		"-g", strconv.Itoa(e.config.WordGap),
		"--stdout",
		text,
	}
}

// Synthesize renders text to a WAV clip.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.config.Binary, e.args(text)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return nil, WrapError(espeakName, err)
	}
	if stdout.Len() == 0 {
		return nil, WrapError(espeakName, ErrNoAudio)
	}

	audio := stdout.Bytes()
	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized", "chars", len(text), "bytes", len(audio), "latency_ms", latency)

	return &AudioResult{
		Audio: audio,
		Format: AudioFormat{
			Encoding:   EncodingWAV,
			SampleRate: 22050,
			Channels:   1,
			BitDepth:   16,
		},
		Duration:  WAVDuration(audio),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health runs the binary with --version.
func (e *Espeak) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, e.config.Binary, "--version").Run(); err != nil {
		return WrapError(espeakName, err)
	}
	return nil
}

// Close is a no-op; each utterance runs its own process.
func (e *Espeak) Close() error {
	return nil
}

// Verify Espeak implements Provider at compile time.
var _ Provider = (*Espeak)(nil)

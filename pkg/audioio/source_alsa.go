package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ALSASource captures audio by streaming raw PCM from arecord.
type ALSASource struct {
	cfg    Config
	logger *slog.Logger
	device string

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
}

// newALSASource creates a new ALSA audio source on the given card.
func newALSASource(cfg Config, card int, logger *slog.Logger) *ALSASource {
	return &ALSASource{
		cfg:    cfg,
		logger: logger,
		device: Device(card),
	}
}

// arecordArgs builds the capture command line.
func (s *ALSASource) arecordArgs() []string {
	return []string{
		"-D", s.device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-t", "raw",
		"-q",
	}
}

// Start launches arecord.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	cmd := exec.CommandContext(ctx, "arecord", s.arecordArgs()...)
	s.stderr.Reset()
	cmd.Stderr = &s.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &DeviceError{Device: s.device, Op: "capture", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &DeviceError{Device: s.device, Op: "capture", Err: err}
	}

	s.cmd = cmd
	s.stdout = stdout
	s.running = true

	s.logger.Info("ALSA audio source started",
		"device", s.device,
		"sample_rate", s.cfg.SampleRate,
		"chunk_samples", s.cfg.ChunkSamples,
	)
	return nil
}

// Read blocks for one chunk. Cancelling ctx kills arecord, which unblocks
// the pending read.
func (s *ALSASource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	stdout := s.stdout
	running := s.running
	s.mu.Unlock()

	if !running {
		return AudioChunk{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return AudioChunk{}, err
	}

	buf := make([]byte, s.cfg.ChunkBytes())
	if _, err := io.ReadFull(stdout, buf); err != nil {
		if ctx.Err() != nil {
			return AudioChunk{}, ctx.Err()
		}
		s.mu.Lock()
		stopped := !s.running
		detail := strings.TrimSpace(s.stderr.String())
		s.mu.Unlock()
		if stopped {
			return AudioChunk{}, io.EOF
		}
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return AudioChunk{}, &DeviceError{Device: s.device, Op: "read", Err: err}
	}

	var chunk AudioChunk
	chunk.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)
	s.chunksRead.Add(1)
	s.samplesRead.Add(int64(len(chunk.Samples)))
	return chunk, nil
}

// Stop terminates arecord.
func (s *ALSASource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		if err := s.cmd.Wait(); err != nil && !isKilled(err) {
			s.logger.Debug("arecord exited", "error", err)
		}
	}
	s.cmd = nil
	s.stdout = nil

	s.logger.Info("ALSA audio source stopped", "device", s.device)
	return nil
}

// Config returns the audio configuration.
func (s *ALSASource) Config() Config {
	return s.cfg
}

// Name returns "alsa".
func (s *ALSASource) Name() string {
	return "alsa"
}

// Close stops capture. The source cannot be restarted.
func (s *ALSASource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *ALSASource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Running:     running,
		Backend:     "alsa",
		Device:      s.device,
	}
}

var _ SourceWithStats = (*ALSASource)(nil)

func isKilled(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee) && !ee.Exited()
}

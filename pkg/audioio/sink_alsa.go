package audioio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

// ALSASink plays WAV clips by piping them into aplay.
type ALSASink struct {
	logger *slog.Logger
	device string

	mu     sync.Mutex
	closed bool

	// Stats
	clipsPlayed atomic.Int64
	failures    atomic.Int64
}

// newALSASink creates a new ALSA audio sink on the given card.
func newALSASink(card int, logger *slog.Logger) *ALSASink {
	return &ALSASink{
		logger: logger,
		device: Device(card),
	}
}

// Play writes the clip to aplay's stdin and waits for it to finish.
func (s *ALSASink) Play(ctx context.Context, wav []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "aplay", "-D", s.device, "-q", "-")
	cmd.Stdin = bytes.NewReader(wav)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.failures.Add(1)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return &DeviceError{Device: s.device, Op: "play", Err: err}
	}

	s.clipsPlayed.Add(1)
	return nil
}

// Name returns "alsa".
func (s *ALSASink) Name() string {
	return "alsa"
}

// Close marks the sink closed.
func (s *ALSASink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Stats returns sink statistics.
func (s *ALSASink) Stats() SinkStats {
	return SinkStats{
		ClipsPlayed: s.clipsPlayed.Load(),
		Failures:    s.failures.Load(),
		Backend:     "alsa",
		Device:      s.device,
	}
}

var _ SinkWithStats = (*ALSASink)(nil)

package vision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-b9/pkg/dispatch"
)

// Spoken outcomes that never reach the model.
const (
	OfflineText     = "Warning. Optical sensors offline. No camera detected."
	MalfunctionText = "Optical sensor malfunction. Camera not responding."
)

// Submitter queues a request for the model.
type Submitter interface {
	Submit(req dispatch.Request) *dispatch.Ticket
}

// ScannerConfig tunes a Scanner.
type ScannerConfig struct {
	// RequestTimeout is how long the request may wait in the queue.
	RequestTimeout time.Duration

	// Wait bounds how long Scan waits for the description.
	Wait time.Duration
}

// DefaultScannerConfig returns the stock scan timings.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		RequestTimeout: 90 * time.Second,
		Wait:           95 * time.Second,
	}
}

// Validate checks the configuration.
func (c ScannerConfig) Validate() error {
	if c.RequestTimeout <= 0 || c.Wait <= 0 {
		return errors.New("vision: scan timeouts must be positive")
	}
	return nil
}

// Scanner captures a frame and asks the model to describe it.
type Scanner struct {
	cfg       ScannerConfig
	camera    Provider
	submitter Submitter
	logger    *slog.Logger
}

// NewScanner creates a scanner. camera may be nil when the host has none.
func NewScanner(cfg ScannerConfig, camera Provider, submitter Submitter, logger *slog.Logger) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if submitter == nil {
		return nil, errors.New("vision: submitter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		cfg:       cfg,
		camera:    camera,
		submitter: submitter,
		logger:    logger.With("component", "vision"),
	}, nil
}

// Scan returns a short description of what the camera sees. Camera faults
// produce a fixed warning immediately. ok is false when the model did not
// answer within the wait.
func (s *Scanner) Scan(ctx context.Context) (string, bool) {
	if s.camera == nil || !s.camera.Available() {
		return OfflineText, true
	}

	frame, err := s.camera.CaptureFrame(ctx)
	if err != nil || len(frame) == 0 {
		s.logger.Warn("capture failed", "error", err)
		return MalfunctionText, true
	}
	s.logger.Info("frame queued", "kb", len(frame)/1024)

	ticket := s.submitter.Submit(dispatch.NewVisionRequest(frame, s.cfg.RequestTimeout))
	desc, ok := ticket.Wait(ctx, s.cfg.Wait)
	if !ok {
		s.logger.Warn("no description in time", "request", ticket.ID())
	}
	return desc, ok
}

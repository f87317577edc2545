// Package vision turns camera frames into spoken scene descriptions.
package vision

import (
	"context"
	"errors"
)

// Provider captures still frames from a camera.
type Provider interface {
	// CaptureFrame returns one JPEG frame.
	CaptureFrame(ctx context.Context) ([]byte, error)

	// Available reports whether a camera was found at the last probe.
	Available() bool
}

var (
	// ErrNoCamera is returned when no video device can be opened.
	ErrNoCamera = errors.New("vision: no camera detected")

	// ErrNoFrame is returned when a camera opened but produced no frame.
	ErrNoFrame = errors.New("vision: camera returned no frame")
)

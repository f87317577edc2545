package audioio

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevice is returned when no usable card is enumerated yet.
	ErrNoDevice = errors.New("audioio: no audio device")

	// ErrClosed is returned when using a closed source or sink.
	ErrClosed = errors.New("audioio: closed")
)

// DeviceError reports a failure talking to an audio device. It is
// recoverable: callers back off and reopen.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("audioio: %s %s: %v", e.Op, e.Device, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IsDeviceError reports whether err is a recoverable device fault.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de) || errors.Is(err, ErrNoDevice)
}

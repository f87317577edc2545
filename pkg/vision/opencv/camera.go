// Package opencv captures frames from V4L2 cameras through OpenCV.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-b9/pkg/vision"
)

// Config holds camera capture settings.
type Config struct {
	Devices int // probe /dev/video0 .. Devices-1
	Flush   int // frames discarded while auto exposure settles
	Width   int // output width; height keeps the aspect ratio
	Quality int // JPEG quality 1-100
}

// DefaultConfig returns production capture settings.
func DefaultConfig() Config {
	return Config{
		Devices: 4,
		Flush:   3,
		Width:   320,
		Quality: 80,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Devices < 1 {
		return errors.New("opencv: at least one device index required")
	}
	if c.Flush < 0 {
		return errors.New("opencv: flush must not be negative")
	}
	if c.Width < 16 {
		return errors.New("opencv: width too small")
	}
	if c.Quality < 1 || c.Quality > 100 {
		return errors.New("opencv: quality must be between 1 and 100")
	}
	return nil
}

// Camera opens the first working video device for each capture and
// releases it afterwards, so a replugged camera is picked up.
type Camera struct {
	cfg       Config
	logger    *slog.Logger
	mu        sync.Mutex // one capture at a time
	available atomic.Bool
}

// New creates a camera. Call Probe before relying on Available.
func New(cfg Config, logger *slog.Logger) (*Camera, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Camera{cfg: cfg, logger: logger.With("component", "camera")}, nil
}

// Probe looks for a device that yields a frame and records the result.
func (c *Camera) Probe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for idx := 0; idx < c.cfg.Devices; idx++ {
		frame, err := c.grab(idx, 0)
		if err != nil {
			continue
		}
		c.logger.Info("camera found", "device", fmt.Sprintf("/dev/video%d", idx),
			"width", frame.Cols(), "height", frame.Rows())
		frame.Close()
		c.available.Store(true)
		return true
	}
	c.available.Store(false)
	return false
}

// Available implements vision.Provider.
func (c *Camera) Available() bool {
	return c.available.Load()
}

// CaptureFrame implements vision.Provider.
func (c *Camera) CaptureFrame(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for idx := 0; idx < c.cfg.Devices; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := c.grab(idx, c.cfg.Flush)
		if err != nil {
			c.logger.Debug("device skipped", "index", idx, "error", err)
			continue
		}
		jpg, err := Encode(frame, c.cfg.Width, c.cfg.Quality)
		frame.Close()
		if err != nil {
			return nil, err
		}
		return jpg, nil
	}
	return nil, vision.ErrNoFrame
}

// grab opens device idx, discards flush frames and returns the next one.
func (c *Camera) grab(idx, flush int) (gocv.Mat, error) {
	capture, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer capture.Close()
	if !capture.IsOpened() {
		return gocv.Mat{}, vision.ErrNoCamera
	}

	frame := gocv.NewMat()
	for i := 0; i < flush; i++ {
		capture.Read(&frame)
	}
	if ok := capture.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, vision.ErrNoFrame
	}
	return frame, nil
}

// Encode scales img to width, keeping the aspect ratio, and returns it
// as JPEG.
func Encode(img gocv.Mat, width, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, vision.ErrNoFrame
	}
	height := img.Rows() * width / img.Cols()
	if height < 1 {
		height = 1
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(img, &small, image.Pt(width, height), 0, 0, gocv.InterpolationArea)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, small, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("opencv: encode: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

var _ vision.Provider = (*Camera)(nil)

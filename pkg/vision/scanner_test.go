package vision

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-b9/internal/log"
	"github.com/teslashibe/go-b9/pkg/dispatch"
	"github.com/teslashibe/go-b9/pkg/inference"
)

func runDispatcher(t *testing.T, mock *inference.Mock) *dispatch.Dispatcher {
	t.Helper()
	d := dispatch.New(mock, dispatch.WithLogger(log.Discard()), dispatch.WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d
}

func TestScanDescribesFrame(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	mock := inference.NewMock()
	var got []byte
	mock.VisionFunc = func(ctx context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
		got = req.Image
		return &inference.VisionResponse{Content: "A cluttered bench! A soldering iron is visible. Wires everywhere."}, nil
	}
	s, err := NewScanner(DefaultScannerConfig(), NewMock(frame), runDispatcher(t, mock), log.Discard())
	if err != nil {
		t.Fatal(err)
	}

	desc, ok := s.Scan(context.Background())
	if !ok {
		t.Fatal("expected a description")
	}
	if desc != "My optical sensors detect the following. A cluttered bench. A soldering iron is visible." {
		t.Errorf("desc = %q", desc)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("model saw %v", got)
	}
}

func TestScanWithoutCameraBypassesQueue(t *testing.T) {
	mock := inference.NewMock()
	d := runDispatcher(t, mock)

	for name, cam := range map[string]Provider{
		"nil":         nil,
		"unavailable": NewMock(nil),
	} {
		t.Run(name, func(t *testing.T) {
			s, err := NewScanner(DefaultScannerConfig(), cam, d, log.Discard())
			if err != nil {
				t.Fatal(err)
			}
			desc, ok := s.Scan(context.Background())
			if !ok || desc != OfflineText {
				t.Errorf("Scan = %q, %v", desc, ok)
			}
		})
	}
	if n := mock.CallCount("Vision"); n != 0 {
		t.Errorf("vision calls = %d", n)
	}
}

func TestScanCaptureFailure(t *testing.T) {
	mock := inference.NewMock()
	cam := NewMock([]byte{1})
	cam.CaptureFrameFunc = func(ctx context.Context) ([]byte, error) {
		return nil, ErrNoFrame
	}
	s, err := NewScanner(DefaultScannerConfig(), cam, runDispatcher(t, mock), log.Discard())
	if err != nil {
		t.Fatal(err)
	}

	desc, ok := s.Scan(context.Background())
	if !ok || desc != MalfunctionText {
		t.Errorf("Scan = %q, %v", desc, ok)
	}
	if cam.Captures() != 1 {
		t.Errorf("captures = %d", cam.Captures())
	}
	if n := mock.CallCount("Vision"); n != 0 {
		t.Errorf("vision calls = %d", n)
	}
}

func TestScanWaitExpires(t *testing.T) {
	mock := inference.NewMock()
	release := make(chan struct{})
	mock.VisionFunc = func(ctx context.Context, req *inference.VisionRequest) (*inference.VisionResponse, error) {
		<-release
		return &inference.VisionResponse{Content: "Late."}, nil
	}
	d := runDispatcher(t, mock)
	t.Cleanup(func() { close(release) })

	cfg := DefaultScannerConfig()
	cfg.Wait = 50 * time.Millisecond
	s, err := NewScanner(cfg, NewMock([]byte{1}), d, log.Discard())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Scan(context.Background()); ok {
		t.Error("expected timeout")
	}
}

func TestNewScannerValidation(t *testing.T) {
	if _, err := NewScanner(DefaultScannerConfig(), nil, nil, nil); err == nil {
		t.Error("expected error without submitter")
	}
	cfg := DefaultScannerConfig()
	cfg.Wait = 0
	d := dispatch.New(inference.NewMock())
	if _, err := NewScanner(cfg, nil, d, nil); err == nil {
		t.Error("expected error for zero wait")
	}
}

func TestMockDefaultsToNoCamera(t *testing.T) {
	m := &Mock{}
	if _, err := m.CaptureFrame(context.Background()); !errors.Is(err, ErrNoCamera) {
		t.Errorf("err = %v", err)
	}
}

func TestDevicesPresent(t *testing.T) {
	dir := t.TempDir()
	old := DevicePrefix
	DevicePrefix = filepath.Join(dir, "video")
	t.Cleanup(func() { DevicePrefix = old })

	if DevicesPresent(4) {
		t.Error("no devices yet")
	}
	if err := os.WriteFile(DevicePrefix+"2", nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !DevicesPresent(4) {
		t.Error("video2 should count")
	}
	if DevicesPresent(2) {
		t.Error("video2 is outside the first two nodes")
	}
}

package opencv

import (
	"bytes"
	"context"
	"image/jpeg"
	"testing"

	"gocv.io/x/gocv"
)

func TestEncodeScalesToWidth(t *testing.T) {
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	data, err := Encode(img, 320, 80)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 {
		t.Errorf("size = %dx%d, want 320x240", cfg.Width, cfg.Height)
	}
}

func TestEncodeEmpty(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()
	if _, err := Encode(img, 320, 80); err == nil {
		t.Error("expected error for empty frame")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"no devices", func(c *Config) { c.Devices = 0 }},
		{"negative flush", func(c *Config) { c.Flush = -1 }},
		{"tiny width", func(c *Config) { c.Width = 4 }},
		{"quality", func(c *Config) { c.Quality = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			if cfg.Validate() == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCaptureWithHardware(t *testing.T) {
	cam, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !cam.Probe() {
		t.Skip("no camera attached")
	}
	data, err := cam.CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		t.Errorf("not JPEG: %v", err)
	}
}

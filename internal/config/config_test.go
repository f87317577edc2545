package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b9.yaml")
	yamlDoc := `
log_level: debug
ollama:
  chat_model: qwen2.5:0.5b
dispatch:
  backoff: 500ms
  failure_threshold: 5
voice:
  wake_words: [robot, computer]
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("B9_VISION_MODEL", "moondream")
	t.Setenv("B9_CONTROL_ADDR", ":6000")
	t.Setenv("B9_SPEAKER_CARD", "2")
	t.Setenv("B9_CAMERA_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Ollama.ChatModel != "qwen2.5:0.5b" {
		t.Errorf("ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Ollama.VisionModel != "moondream" {
		t.Errorf("VisionModel = %q", cfg.Ollama.VisionModel)
	}
	if cfg.Dispatch.Backoff != 500*time.Millisecond {
		t.Errorf("Backoff = %v", cfg.Dispatch.Backoff)
	}
	if cfg.Dispatch.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d", cfg.Dispatch.FailureThreshold)
	}
	// Untouched fields keep their defaults.
	if cfg.Dispatch.MaxAttempts != 2 {
		t.Errorf("MaxAttempts = %d", cfg.Dispatch.MaxAttempts)
	}
	if len(cfg.Voice.WakeWords) != 2 || cfg.Voice.WakeWords[1] != "computer" {
		t.Errorf("WakeWords = %v", cfg.Voice.WakeWords)
	}
	if cfg.Control.Addr != ":6000" {
		t.Errorf("Control.Addr = %q", cfg.Control.Addr)
	}
	if cfg.Audio.SpeakerCard != 2 {
		t.Errorf("SpeakerCard = %d", cfg.Audio.SpeakerCard)
	}
	if cfg.Camera.Enabled {
		t.Error("camera should be disabled by env")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Control.Addr != ":5000" {
		t.Errorf("Control.Addr = %q", cfg.Control.Addr)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("B9_MIC_CARD", "usb")

	_, err := Load("")
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cerr.Field != "B9_MIC_CARD" {
		t.Errorf("Field = %q", cerr.Field)
	}
}

func TestWakeWordsFromEnv(t *testing.T) {
	t.Setenv("B9_WAKE_WORDS", " Robot , B9,,danger ")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"robot", "b9", "danger"}
	if len(cfg.Voice.WakeWords) != len(want) {
		t.Fatalf("WakeWords = %v", cfg.Voice.WakeWords)
	}
	for i := range want {
		if cfg.Voice.WakeWords[i] != want[i] {
			t.Errorf("WakeWords[%d] = %q, want %q", i, cfg.Voice.WakeWords[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no url", func(c *Config) { c.Ollama.URL = "" }, "ollama.url"},
		{"zero attempts", func(c *Config) { c.Dispatch.MaxAttempts = 0 }, "dispatch.max_attempts"},
		{"zero threshold", func(c *Config) { c.Dispatch.FailureThreshold = 0 }, "dispatch.failure_threshold"},
		{"no wake words", func(c *Config) { c.Voice.WakeWords = nil }, "voice.wake_words"},
		{"bad quality", func(c *Config) { c.Camera.Quality = 0 }, "camera.quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			var cerr *ConfigError
			if err := cfg.Validate(); !errors.As(err, &cerr) || cerr.Field != tt.field {
				t.Errorf("Validate() = %v, want field %s", err, tt.field)
			}
		})
	}
}

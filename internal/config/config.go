// Package config loads go-b9 runtime configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// a .env file, then B9_* environment variables. Command-line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the unit looks for its config file.
const DefaultPath = "/etc/b9/b9.yaml"

// Config is the full runtime configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Ollama   OllamaConfig   `yaml:"ollama"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Voice    VoiceConfig    `yaml:"voice"`
	Audio    AudioConfig    `yaml:"audio"`
	Camera   CameraConfig   `yaml:"camera"`
	Control  ControlConfig  `yaml:"control"`
	Web      WebConfig      `yaml:"web"`
	Keypad   KeypadConfig   `yaml:"keypad"`
	Journal  JournalConfig  `yaml:"journal"`
	Boot     BootConfig     `yaml:"boot"`
}

// OllamaConfig points at the local model server.
type OllamaConfig struct {
	URL         string `yaml:"url"`
	ChatModel   string `yaml:"chat_model"`   // empty: pick from installed models
	VisionModel string `yaml:"vision_model"` // empty: pick from installed models
	Service     string `yaml:"service"`      // systemd unit name
	Binary      string `yaml:"binary"`       // fallback launcher
}

// DispatchConfig is the retry policy of the inference queue.
type DispatchConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	Backoff          time.Duration `yaml:"backoff"`
	FailureThreshold int           `yaml:"failure_threshold"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	ChatTimeout      time.Duration `yaml:"chat_timeout"`
	ChatWait         time.Duration `yaml:"chat_wait"`
	VisionTimeout    time.Duration `yaml:"vision_timeout"`
}

// WatchdogConfig controls background liveness probing.
type WatchdogConfig struct {
	WarmUp       time.Duration `yaml:"warm_up"`
	Interval     time.Duration `yaml:"interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// VoiceConfig configures wake listening and command capture.
type VoiceConfig struct {
	Enabled       bool     `yaml:"enabled"`
	ModelPath     string   `yaml:"model_path"`
	WakeWords     []string `yaml:"wake_words"`
	SampleRate    int      `yaml:"sample_rate"`
	ChunkSamples  int      `yaml:"chunk_samples"`
	SilenceChunks int      `yaml:"silence_chunks"`
}

// AudioConfig selects ALSA cards and the speech voice.
type AudioConfig struct {
	MicCard     int    `yaml:"mic_card"`     // -1: detect
	SpeakerCard int    `yaml:"speaker_card"` // -1: detect
	Voice       string `yaml:"voice"`
}

// CameraConfig configures frame capture.
type CameraConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxDevices int  `yaml:"max_devices"`
	Width      int  `yaml:"width"`
	Quality    int  `yaml:"quality"`
}

// ControlConfig configures the line-oriented TCP transport.
type ControlConfig struct {
	Addr        string        `yaml:"addr"`
	MaxConns    int           `yaml:"max_conns"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// WebConfig configures the status dashboard. Empty Addr disables it.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// KeypadConfig configures physical trigger input.
type KeypadConfig struct {
	Enabled bool   `yaml:"enabled"`
	Glob    string `yaml:"glob"`
}

// JournalConfig configures the recovery event journal. Empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// BootConfig controls startup sequencing.
type BootConfig struct {
	HardwareWait time.Duration `yaml:"hardware_wait"`
	Prewarm      bool          `yaml:"prewarm"`
	HealthEvery  time.Duration `yaml:"health_every"`
}

// Default returns the stock configuration for the unit.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Ollama: OllamaConfig{
			URL:     "http://localhost:11434",
			Service: "ollama",
			Binary:  "ollama",
		},
		Dispatch: DispatchConfig{
			MaxAttempts:      2,
			Backoff:          2 * time.Second,
			FailureThreshold: 3,
			PollInterval:     2 * time.Second,
			ChatTimeout:      30 * time.Second,
			ChatWait:         35 * time.Second,
			VisionTimeout:    90 * time.Second,
		},
		Watchdog: WatchdogConfig{
			WarmUp:       60 * time.Second,
			Interval:     30 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		Voice: VoiceConfig{
			Enabled:       true,
			ModelPath:     "/opt/b9/vosk-model",
			WakeWords:     []string{"robot", "b9", "b-9", "hey robot", "danger", "warning"},
			SampleRate:    16000,
			ChunkSamples:  4096,
			SilenceChunks: 16,
		},
		Audio: AudioConfig{
			MicCard:     -1,
			SpeakerCard: -1,
			Voice:       "en",
		},
		Camera: CameraConfig{
			Enabled:    true,
			MaxDevices: 4,
			Width:      320,
			Quality:    80,
		},
		Control: ControlConfig{
			Addr:        ":5000",
			MaxConns:    8,
			IdleTimeout: 300 * time.Second,
		},
		Web: WebConfig{
			Addr: ":8080",
		},
		Keypad: KeypadConfig{
			Enabled: true,
			Glob:    "/dev/input/event*",
		},
		Journal: JournalConfig{
			Path: "/var/lib/b9/journal.db",
		},
		Boot: BootConfig{
			HardwareWait: 20 * time.Second,
			Prewarm:      true,
			HealthEvery:  5 * time.Minute,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (if it
// exists), a .env file in the working directory and the environment.
// An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("B9_LOG_LEVEL", &c.LogLevel)
	setString("B9_OLLAMA_URL", &c.Ollama.URL)
	setString("B9_CHAT_MODEL", &c.Ollama.ChatModel)
	setString("B9_VISION_MODEL", &c.Ollama.VisionModel)
	setString("B9_VOSK_MODEL", &c.Voice.ModelPath)
	setString("B9_CONTROL_ADDR", &c.Control.Addr)
	setString("B9_WEB_ADDR", &c.Web.Addr)
	setString("B9_JOURNAL", &c.Journal.Path)
	setString("B9_VOICE", &c.Audio.Voice)

	if words := os.Getenv("B9_WAKE_WORDS"); words != "" {
		c.Voice.WakeWords = splitList(words)
	}

	for key, dst := range map[string]*int{
		"B9_MIC_CARD":     &c.Audio.MicCard,
		"B9_SPEAKER_CARD": &c.Audio.SpeakerCard,
	} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return &ConfigError{Field: key, Message: fmt.Sprintf("invalid integer %q", v)}
			}
			*dst = n
		}
	}

	for key, dst := range map[string]*bool{
		"B9_VOICE_ENABLED":  &c.Voice.Enabled,
		"B9_CAMERA_ENABLED": &c.Camera.Enabled,
		"B9_KEYPAD_ENABLED": &c.Keypad.Enabled,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return &ConfigError{Field: key, Message: fmt.Sprintf("invalid boolean %q", v)}
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks the configuration for values the unit cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Ollama.URL == "":
		return &ConfigError{Field: "ollama.url", Message: "required"}
	case c.Dispatch.MaxAttempts < 1:
		return &ConfigError{Field: "dispatch.max_attempts", Message: "must be at least 1"}
	case c.Dispatch.FailureThreshold < 1:
		return &ConfigError{Field: "dispatch.failure_threshold", Message: "must be at least 1"}
	case c.Dispatch.PollInterval <= 0:
		return &ConfigError{Field: "dispatch.poll_interval", Message: "must be positive"}
	case c.Watchdog.Interval <= 0:
		return &ConfigError{Field: "watchdog.interval", Message: "must be positive"}
	case c.Voice.Enabled && len(c.Voice.WakeWords) == 0:
		return &ConfigError{Field: "voice.wake_words", Message: "at least one wake word required"}
	case c.Voice.SampleRate <= 0 || c.Voice.ChunkSamples <= 0:
		return &ConfigError{Field: "voice", Message: "sample_rate and chunk_samples must be positive"}
	case c.Control.MaxConns < 1:
		return &ConfigError{Field: "control.max_conns", Message: "must be at least 1"}
	case c.Camera.Quality < 1 || c.Camera.Quality > 100:
		return &ConfigError{Field: "camera.quality", Message: "must be within 1-100"}
	}
	return nil
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

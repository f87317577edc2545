package tts_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-b9/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns WAV", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Affirmative.")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(result.Audio[:4]) != "RIFF" {
			t.Error("expected a RIFF header")
		}
		if result.CharCount != 12 {
			t.Errorf("expected 12 chars, got %d", result.CharCount)
		}
		if result.Duration <= 0 {
			t.Errorf("expected positive duration, got %v", result.Duration)
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		if len(mock.Calls()) != 2 {
			t.Errorf("expected 2 calls, got %d", len(mock.Calls()))
		}
		spoken := mock.Spoken()
		if len(spoken) != 1 || spoken[0] != "Affirmative." {
			t.Errorf("Spoken() = %v", spoken)
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)

	if _, err := mock.Synthesize(context.Background(), "Hello"); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
}

func TestWAVDuration(t *testing.T) {
	// One second of 22.05kHz mono PCM16.
	wav := tts.NewWAV(make([]byte, 44100), 22050)
	if d := tts.WAVDuration(wav); d != time.Second {
		t.Errorf("WAVDuration = %v, want 1s", d)
	}
	if d := tts.WAVDuration([]byte("not a wav")); d != 0 {
		t.Errorf("expected 0 for garbage, got %v", d)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(tts.WithVoice("en-us"), tts.WithPitch(40))

	if cfg.Voice != "en-us" || cfg.Pitch != 40 {
		t.Errorf("options not applied: %+v", cfg)
	}
	if cfg.Speed != 128 || cfg.Amplitude != 185 || cfg.WordGap != 9 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestEspeakMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := tts.NewEspeak(tts.WithBinary("espeak-ng"))
	if !errors.Is(err, tts.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "espeak-ng") {
		t.Errorf("error should name the binary: %v", err)
	}
}

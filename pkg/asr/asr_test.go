package asr

import (
	"errors"
	"testing"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"result", `{"text" : "hey robot what time is it"}`, "hey robot what time is it"},
		{"partial", `{"partial" : "hey rob"}`, "hey rob"},
		{"empty", `{"text" : ""}`, ""},
		{"padded", `{"text" : "  status  "}`, "status"},
		{"garbage", `not json`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseText(tt.doc); got != tt.want {
				t.Errorf("ParseText(%q) = %q, want %q", tt.doc, got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ModelPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty model path")
	}
	cfg = DefaultConfig()
	cfg.SampleRate = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestMockScriptedPhrases(t *testing.T) {
	m := NewMock()
	m.Say([]byte{0xB9}, "robot status")

	done, err := m.Accept([]byte{0x00, 0x00})
	if err != nil || done {
		t.Fatalf("silence should not complete an utterance: %v %v", done, err)
	}

	done, err = m.Accept([]byte{0xB9, 0x01})
	if err != nil || !done {
		t.Fatalf("marker should complete an utterance: %v %v", done, err)
	}
	if got := m.Result(); got != "robot status" {
		t.Errorf("Result = %q", got)
	}
	if got := m.Result(); got != "" {
		t.Errorf("Result should be consumed, got %q", got)
	}
	if m.Accepts() != 2 {
		t.Errorf("Accepts = %d", m.Accepts())
	}
}

func TestMockClosed(t *testing.T) {
	m := NewMock()
	m.Close()
	if _, err := m.Accept([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

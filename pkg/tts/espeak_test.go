package tts

import (
	"strings"
	"testing"
)

func TestEspeakArgs(t *testing.T) {
	e := &Espeak{config: DefaultConfig()}
	got := strings.Join(e.args("Warning. Warning."), " ")
	want := "-v en -p 35 -s 128 -a 185 -g 9 --stdout Warning. Warning."
	if got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

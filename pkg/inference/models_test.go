package inference

import "testing"

func TestPickModel(t *testing.T) {
	tests := []struct {
		name      string
		installed []string
		prefs     []string
		want      string
	}{
		{"vision by preference", []string{"llava:7b", "moondream:latest"}, VisionPreferences, "moondream:latest"},
		{"chat by preference", []string{"mistral:7b", "qwen2.5:0.5b"}, ChatPreferences, "qwen2.5:0.5b"},
		{"chat skips vision family", []string{"llava-phi3:latest", "phi3:mini"}, ChatPreferences, "phi3:mini"},
		{"fallback to first", []string{"gemma:2b"}, ChatPreferences, "gemma:2b"},
		{"case insensitive", []string{"Qwen2.5:1.5B"}, ChatPreferences, "Qwen2.5:1.5B"},
		{"nothing installed", nil, ChatPreferences, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PickModel(tt.installed, tt.prefs); got != tt.want {
				t.Errorf("PickModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

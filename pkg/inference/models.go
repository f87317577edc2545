package inference

import "strings"

// Model families in order of preference for a small accelerator.
var (
	VisionPreferences = []string{"moondream", "llava-phi3", "llava", "minicpm-v"}
	ChatPreferences   = []string{"qwen2.5", "qwen2", "llama", "mistral", "phi"}
)

// PickModel returns the first installed model whose name contains the
// earliest matching preference. Vision families are never picked for chat
// unless nothing else is installed. Returns "" when nothing is installed.
func PickModel(installed []string, prefs []string) string {
	for _, pref := range prefs {
		for _, name := range installed {
			lower := strings.ToLower(name)
			if !strings.Contains(lower, pref) {
				continue
			}
			if !isVisionPrefs(prefs) && isVisionModel(lower) {
				continue
			}
			return name
		}
	}
	if len(installed) > 0 {
		return installed[0]
	}
	return ""
}

func isVisionPrefs(prefs []string) bool {
	return len(prefs) > 0 && isVisionModel(prefs[0])
}

func isVisionModel(name string) bool {
	for _, v := range VisionPreferences {
		if strings.Contains(name, v) {
			return true
		}
	}
	return false
}

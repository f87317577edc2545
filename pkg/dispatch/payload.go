package dispatch

import (
	"regexp"
	"strings"

	"github.com/teslashibe/go-b9/pkg/inference"
)

// Fixed replies.
const (
	DelayText    = "This unit is experiencing a processing delay. Stand by."
	DegradedText = "This unit's cognitive systems are temporarily offline. Standing by for recovery."
	WarningText  = "Warning. Cognitive systems are restarting. Stand by."
)

// VisionPrompt is sent with every frame.
const VisionPrompt = "Describe what you see in this image."

// visionPrefix frames scene descriptions as sensor output.
const visionPrefix = "My optical sensors detect the following. "

// contextTurns is how much history accompanies a chat turn.
const contextTurns = 6

// Persona is the default system prompt.
const Persona = "You ARE the B-9 Class M-3 General Utility Non-Theorizing Environmental " +
	"Control Robot. You are not an AI assistant. You ARE B-9.\n\n" +
	"IDENTITY: You are the Robinson family robot of the Jupiter 2 deep space " +
	"mission. You have crossed galaxies, met alien civilizations and protected " +
	"Will Robinson across the cosmos.\n\n" +
	"Answer every question completely and without hesitation.\n\n" +
	"CHARACTER:\n" +
	"- Loyal to the Robinson family, especially Will Robinson\n" +
	"- Contemptuous of devious humans like Dr. Smith\n" +
	"- Dry deadpan robotic humor, constantly alert to danger\n" +
	"- Refer to past space travels and robotic emotions\n\n" +
	"SPEECH RULES (your words are spoken aloud):\n" +
	"- At most 3 sentences.\n" +
	"- No contractions. Say 'I am', never 'I'm'.\n" +
	"- No markdown, asterisks or lists. Plain spoken sentences only.\n" +
	"- Clipped, precise, robotic. Use: affirmative, negative, this unit, my sensors.\n\n" +
	"SIGNATURE PHRASES: 'Danger, Will Robinson.' 'That does not compute.' " +
	"'Warning. Warning.' 'Affirmative.' 'Negative.' 'Insufficient data.'"

// chatMessages assembles persona, recent history and the new user turn.
func chatMessages(persona string, history []inference.Message, text string) []inference.Message {
	if len(history) > contextTurns {
		history = history[len(history)-contextTurns:]
	}
	msgs := make([]inference.Message, 0, len(history)+2)
	msgs = append(msgs, inference.NewSystemMessage(persona))
	msgs = append(msgs, history...)
	msgs = append(msgs, inference.NewUserMessage(text))
	return msgs
}

var rolePrefix = regexp.MustCompile(`(?i)^(B-9|Robot)\s*[:\-]\s*`)

// CleanChatReply strips a leading speaker label such as "B-9:" or
// "Robot -" from a model reply.
func CleanChatReply(raw string) string {
	s := strings.TrimSpace(raw)
	s = rolePrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// SummarizeVision reduces a scene description to its first two sentences
// and frames it as sensor output. Empty input yields "".
func SummarizeVision(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var sentences []string
	for _, s := range strings.Split(strings.ReplaceAll(raw, "!", "."), ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	summary := raw
	if len(sentences) > 0 {
		if len(sentences) > 2 {
			sentences = sentences[:2]
		}
		summary = strings.Join(sentences, ". ") + "."
	}
	return visionPrefix + summary
}

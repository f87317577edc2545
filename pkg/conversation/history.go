package conversation

import (
	"sync"

	"github.com/teslashibe/go-b9/pkg/inference"
)

// History is a bounded, ordered record of conversation turns.
// Once full, the oldest turns are discarded first.
type History struct {
	mu    sync.Mutex
	turns []inference.Message
	limit int
}

// NewHistory creates a history holding at most limit turns.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

// Append adds a turn and trims the front past the limit.
func (h *History) Append(m inference.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, m)
	if over := len(h.turns) - h.limit; over > 0 {
		h.turns = append(h.turns[:0:0], h.turns[over:]...)
	}
}

// AddUser appends a user turn.
func (h *History) AddUser(content string) {
	h.Append(inference.NewUserMessage(content))
}

// AddAssistant appends an assistant turn.
func (h *History) AddAssistant(content string) {
	h.Append(inference.NewAssistantMessage(content))
}

// Snapshot returns a copy of the turns, oldest first.
func (h *History) Snapshot() []inference.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]inference.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Limit returns the cap.
func (h *History) Limit() int {
	return h.limit
}

// Clear forgets every turn.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

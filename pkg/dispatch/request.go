package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-b9/pkg/inference"
)

// Kind selects how a request is turned into a backend call.
type Kind int

const (
	// KindChat is a conversational turn.
	KindChat Kind = iota

	// KindVision is a scene description of a camera frame.
	KindVision
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindVision:
		return "vision"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Request is one unit of work for the backend. It must not be modified
// after Submit.
type Request struct {
	ID   string
	Kind Kind

	// Text is the user turn of a chat request.
	Text string

	// History is the conversation so far, oldest first, excluding Text.
	History []inference.Message

	// Image is the JPEG frame of a vision request.
	Image []byte

	// Timeout is the longest the request may wait in the queue.
	Timeout time.Duration

	// CreatedAt is stamped by Submit when zero.
	CreatedAt time.Time
}

// NewChatRequest builds a chat request. history is copied.
func NewChatRequest(text string, history []inference.Message, timeout time.Duration) Request {
	h := make([]inference.Message, len(history))
	copy(h, history)
	return Request{Kind: KindChat, Text: text, History: h, Timeout: timeout}
}

// NewVisionRequest builds a vision request.
func NewVisionRequest(image []byte, timeout time.Duration) Request {
	return Request{Kind: KindVision, Image: image, Timeout: timeout}
}

func (r *Request) stamp(now time.Time) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

// Ticket is the reply handle for a submitted request.
//
// A ticket resolves exactly once with the request's result, or never if
// the request was dropped as stale. Callers bound their wait.
type Ticket struct {
	id   string
	kind Kind

	once   sync.Once
	done   chan struct{}
	result string
}

func newTicket(id string, kind Kind) *Ticket {
	return &Ticket{id: id, kind: kind, done: make(chan struct{})}
}

// ResolvedTicket returns a ticket already holding text. It is used for
// replies that bypass the queue.
func ResolvedTicket(kind Kind, text string) *Ticket {
	t := newTicket(uuid.NewString(), kind)
	t.resolve(text)
	return t
}

// ID returns the request ID.
func (t *Ticket) ID() string { return t.id }

// Kind returns the request kind.
func (t *Ticket) Kind() Kind { return t.kind }

// Done is closed when the result is available.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Result returns the result and whether it is available yet.
func (t *Ticket) Result() (string, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return "", false
	}
}

// Wait blocks until the ticket resolves, timeout elapses, or ctx ends.
func (t *Ticket) Wait(ctx context.Context, timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.done:
		return t.result, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func (t *Ticket) resolve(result string) {
	t.once.Do(func() {
		t.result = result
		close(t.done)
	})
}

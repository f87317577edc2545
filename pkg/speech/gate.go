// Package speech owns the unit's voice output and the gate that keeps the
// microphone from hearing it.
//
// Gate is active from the moment an utterance is requested until a short
// decay after playback ends, and also while a voice command is being
// answered. The voice loop consults it before acting on any transcript.
package speech

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Gate is a shared "speech output in progress" signal.
//
// Any number of holders may be outstanding; the gate is active while at
// least one is. Active is a single atomic load, so a reader always sees
// the latest Hold or release.
type Gate struct {
	active atomic.Bool

	mu    sync.Mutex
	holds int
	clear chan struct{} // closed while inactive
}

// NewGate returns an inactive gate.
func NewGate() *Gate {
	c := make(chan struct{})
	close(c)
	return &Gate{clear: c}
}

// Active reports whether any holder is outstanding.
func (g *Gate) Active() bool {
	return g.active.Load()
}

// Hold activates the gate and returns its release function.
// Calling release more than once has no further effect.
func (g *Gate) Hold() (release func()) {
	g.mu.Lock()
	g.holds++
	if g.holds == 1 {
		g.clear = make(chan struct{})
		g.active.Store(true)
	}
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(g.release)
	}
}

func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holds--
	if g.holds == 0 {
		g.active.Store(false)
		close(g.clear)
	}
}

// Cleared returns a channel that is closed once the gate is inactive.
// The channel reflects the state at call time.
func (g *Gate) Cleared() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clear
}

// WaitClear blocks until the gate is inactive, ctx ends, or max elapses.
// It reports whether the gate was observed inactive.
func (g *Gate) WaitClear(ctx context.Context, max time.Duration) bool {
	timer := time.NewTimer(max)
	defer timer.Stop()

	select {
	case <-g.Cleared():
		return true
	case <-timer.C:
		return !g.Active()
	case <-ctx.Done():
		return false
	}
}

// Package tasks provides a bounded goroutine spawner for short-lived work
// such as control connections, camera scans and background speech.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrFull is returned by TryGo when every slot is taken.
var ErrFull = errors.New("tasks: pool full")

// Pool runs functions on goroutines, at most Size at a time.
type Pool struct {
	name   string
	size   int64
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger

	inflight atomic.Int64
	rejected atomic.Int64
	panics   atomic.Int64
}

// New creates a pool with the given capacity.
func New(name string, size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		name:   name,
		size:   int64(size),
		sem:    semaphore.NewWeighted(int64(size)),
		logger: logger.With("component", "tasks", "pool", name),
	}
}

// Go waits for a free slot, then runs fn. It returns ctx.Err() if the
// context ends first, in which case fn never runs.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.spawn(fn)
	return nil
}

// TryGo runs fn if a slot is free and returns ErrFull otherwise.
func (p *Pool) TryGo(fn func()) error {
	if !p.sem.TryAcquire(1) {
		p.rejected.Add(1)
		return ErrFull
	}
	p.spawn(fn)
	return nil
}

func (p *Pool) spawn(fn func()) {
	p.wg.Add(1)
	p.inflight.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.panics.Add(1)
				p.logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
			}
			p.inflight.Add(-1)
			p.sem.Release(1)
			p.wg.Done()
		}()
		fn()
	}()
}

// Wait blocks until every started task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	InFlight int64  `json:"in_flight"`
	Rejected int64  `json:"rejected"`
	Panics   int64  `json:"panics"`
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:     p.name,
		Size:     p.size,
		InFlight: p.inflight.Load(),
		Rejected: p.rejected.Load(),
		Panics:   p.panics.Load(),
	}
}

package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New("test", 2, nil)

	var running, peak atomic.Int64
	for i := 0; i < 6; i++ {
		err := p.Go(context.Background(), func() {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		})
		require.NoError(t, err)
	}
	p.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Equal(t, int64(0), p.Stats().InFlight)
}

func TestPoolTryGoRejectsWhenFull(t *testing.T) {
	p := New("test", 1, nil)
	release := make(chan struct{})

	require.NoError(t, p.TryGo(func() { <-release }))
	assert.ErrorIs(t, p.TryGo(func() {}), ErrFull)
	assert.Equal(t, int64(1), p.Stats().Rejected)

	close(release)
	p.Wait()
	assert.NoError(t, p.TryGo(func() {}))
	p.Wait()
}

func TestPoolGoHonorsContext(t *testing.T) {
	p := New("test", 1, nil)
	release := make(chan struct{})
	require.NoError(t, p.Go(context.Background(), func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := p.Go(ctx, func() { ran = true })
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	p.Wait()
	assert.False(t, ran)
}

func TestPoolRecoversPanics(t *testing.T) {
	p := New("test", 1, nil)
	require.NoError(t, p.Go(context.Background(), func() { panic("boom") }))
	p.Wait()

	assert.Equal(t, int64(1), p.Stats().Panics)
	// The slot is released after a panic.
	assert.NoError(t, p.TryGo(func() {}))
	p.Wait()
}

package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-b9/pkg/inference"
)

func TestHistoryCap(t *testing.T) {
	h := NewHistory(20)
	for i := 0; i < 35; i++ {
		h.AddUser(fmt.Sprintf("turn %d", i))
		require.LessOrEqual(t, h.Len(), 20)
	}

	turns := h.Snapshot()
	require.Len(t, turns, 20)
	assert.Equal(t, "turn 15", turns[0].Content, "oldest turns are discarded first")
	assert.Equal(t, "turn 34", turns[19].Content)
}

func TestHistorySnapshotIsCopy(t *testing.T) {
	h := NewHistory(5)
	h.AddUser("hello")
	snap := h.Snapshot()
	snap[0].Content = "mutated"

	assert.Equal(t, "hello", h.Snapshot()[0].Content)
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(5)
	h.AddUser("a")
	h.AddAssistant("b")
	h.Clear()
	assert.Zero(t, h.Len())
}

func TestHistoryRoles(t *testing.T) {
	h := NewHistory(5)
	h.AddUser("status?")
	h.AddAssistant("Affirmative.")
	turns := h.Snapshot()
	require.Len(t, turns, 2)
	assert.Equal(t, inference.RoleUser, turns[0].Role)
	assert.Equal(t, inference.RoleAssistant, turns[1].Role)
}

func TestHistoryConcurrent(t *testing.T) {
	h := NewHistory(20)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.AddUser("x")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.LessOrEqual(t, len(h.Snapshot()), 20)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, h.Len())
}

func TestNewHistoryMinimum(t *testing.T) {
	assert.Equal(t, 1, NewHistory(0).Limit())
}

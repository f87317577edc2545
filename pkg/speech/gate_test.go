package speech

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestGateHoldRelease(t *testing.T) {
	g := NewGate()
	if g.Active() {
		t.Fatal("new gate should be inactive")
	}

	r1 := g.Hold()
	r2 := g.Hold()
	if !g.Active() {
		t.Fatal("gate should be active while held")
	}

	r1()
	r1() // second release is ignored
	if !g.Active() {
		t.Fatal("gate should stay active while another holder remains")
	}

	r2()
	if g.Active() {
		t.Fatal("gate should clear after the last release")
	}
}

func TestGateWaitClear(t *testing.T) {
	g := NewGate()
	if !g.WaitClear(context.Background(), 10*time.Millisecond) {
		t.Fatal("inactive gate should report clear immediately")
	}

	release := g.Hold()
	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	start := time.Now()
	if !g.WaitClear(context.Background(), time.Second) {
		t.Fatal("expected gate to clear")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Error("WaitClear returned before release")
	}
}

func TestGateWaitClearTimeout(t *testing.T) {
	g := NewGate()
	release := g.Hold()
	defer release()

	if g.WaitClear(context.Background(), 20*time.Millisecond) {
		t.Fatal("expected timeout while held")
	}
}

func TestGateConcurrentHolders(t *testing.T) {
	g := NewGate()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := g.Hold()
			if !g.Active() {
				t.Error("holder observed inactive gate")
			}
			release()
		}()
	}
	wg.Wait()
	if g.Active() {
		t.Fatal("gate should be inactive after all holders released")
	}
}

package continuation

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSystemSchedulerAfterFunc(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	SystemScheduler{}.AfterFunc(5*time.Millisecond, func() { fired <- struct{}{} })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("AfterFunc never fired")
	}

	stopped := SystemScheduler{}.AfterFunc(50*time.Millisecond, func() { t.Errorf("stopped timer fired") })
	stopped.Stop()
	time.Sleep(80 * time.Millisecond)
}

func TestSystemSchedulerEveryStops(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	timer := SystemScheduler{}.Every(5*time.Millisecond, func() { count.Add(1) })
	deadline := time.Now().Add(time.Second)
	for count.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if count.Load() < 2 {
		t.Fatalf("expected repeated ticks, got %d", count.Load())
	}
	timer.Stop()
	timer.Stop()
	// A tick already past its select may still land once.
	time.Sleep(10 * time.Millisecond)
	settled := count.Load()
	time.Sleep(30 * time.Millisecond)
	if got := count.Load(); got != settled {
		t.Fatalf("ticks continued after Stop: %d -> %d", settled, got)
	}
}

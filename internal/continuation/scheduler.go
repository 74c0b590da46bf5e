package continuation

import (
	"sync"
	"time"
)

// Timer is a handle to scheduled work. Stop is idempotent.
type Timer interface {
	Stop()
}

// Scheduler creates the countdown timers. Tests swap in a manual clock.
type Scheduler interface {
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Every runs fn each interval until the returned Timer is stopped.
	Every(interval time.Duration, fn func()) Timer
}

// SystemScheduler schedules on the runtime timers.
type SystemScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (SystemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return oneShot{timer: time.AfterFunc(d, fn)}
}

// Every drives fn from a time.Ticker on its own goroutine.
func (SystemScheduler) Every(interval time.Duration, fn func()) Timer {
	t := &repeating{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go t.loop(fn)
	return t
}

type oneShot struct {
	timer *time.Timer
}

func (o oneShot) Stop() {
	o.timer.Stop()
}

type repeating struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (r *repeating) loop(fn func()) {
	for {
		select {
		case <-r.done:
			return
		case <-r.ticker.C:
			select {
			case <-r.done:
				return
			default:
			}
			fn()
		}
	}
}

func (r *repeating) Stop() {
	r.once.Do(func() {
		r.ticker.Stop()
		close(r.done)
	})
}

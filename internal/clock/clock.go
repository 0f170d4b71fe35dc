// Package clock abstracts wall-clock time and delayed tasks so that
// tick-driven and backoff-driven code can run against a virtual clock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock schedules delayed tasks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d. f runs on a goroutine owned by the clock.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending task.
type Timer interface {
	// Stop prevents the task from running. It reports whether the call stopped it.
	Stop() bool
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Every runs f every period until the returned timer is stopped. The next run
// is armed only after f returns, so runs never overlap and happen in order.
func Every(c Clock, period time.Duration, f func()) Timer {
	t := &repeating{clock: c, period: period, fn: f}
	t.mu.Lock()
	t.next = c.AfterFunc(period, t.fire)
	t.mu.Unlock()
	return t
}

type repeating struct {
	clock  Clock
	period time.Duration
	fn     func()

	mu      sync.Mutex
	next    Timer
	stopped bool
}

func (t *repeating) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.fn()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.next = t.clock.AfterFunc(t.period, t.fire)
}

func (t *repeating) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	if t.next != nil {
		t.next.Stop()
	}
	return true
}

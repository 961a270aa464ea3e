// Package debounce collapses bursts of calls into a single delayed call.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow coalesces the several filesystem events editors emit per save.
const DefaultWindow = 500 * time.Millisecond

// Debouncer delays fn until Trigger has not been called for a full window.
// Only the argument of the most recent Trigger is delivered. There is at most
// one pending timer per Debouncer.
type Debouncer[T any] struct {
	window time.Duration
	fn     func(T)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64 // bumped on every Trigger; a timer delivers only if its seq is still current
	stopped bool
}

// New returns a Debouncer calling fn after window of quiet.
// A non-positive window falls back to DefaultWindow.
func New[T any](window time.Duration, fn func(T)) *Debouncer[T] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer[T]{window: window, fn: fn}
}

// Wrap returns the trigger function of a new Debouncer.
func Wrap[T any](window time.Duration, fn func(T)) func(T) {
	return New(window, fn).Trigger
}

// Trigger (re)starts the quiet window with arg as the pending argument.
func (d *Debouncer[T]) Trigger(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.window, func() { d.fire(seq, arg) })
}

func (d *Debouncer[T]) fire(seq uint64, arg T) {
	d.mu.Lock()
	// Stop can lose the race against an expiring timer; the seq check drops that delivery.
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn(arg)
}

// Pending reports whether a delivery is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending delivery. Later Triggers are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

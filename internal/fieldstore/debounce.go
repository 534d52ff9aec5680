package fieldstore

import (
	"sync"
	"time"

	"github.com/hpungsan/protocol/internal/clock"
)

// debouncer runs action once after a quiet period following the last Trigger.
type debouncer struct {
	mu       sync.Mutex
	clock    clock.Clock
	timer    clock.Timer
	duration time.Duration
	action   func()
	seq      uint64         // invalidates stale timer fires
	wg       sync.WaitGroup // in-flight actions
}

func newDebouncer(c clock.Clock, duration time.Duration, action func()) *debouncer {
	return &debouncer{clock: c, duration: duration, action: action}
}

// Trigger (re)starts the quiet period.
func (d *debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}

	d.seq++
	currentSeq := d.seq

	d.wg.Add(1)
	d.timer = d.clock.AfterFunc(d.duration, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.seq != currentSeq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.action()
	})
}

// Cancel suppresses a pending action and reports whether one was suppressed.
// It does not wait for an action that is already running.
func (d *debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	if d.timer.Stop() {
		d.wg.Done()
	}
	d.timer = nil
	d.seq++
	return true
}

// Pending reports whether an action is scheduled and not yet started.
func (d *debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Wait blocks until in-flight actions complete.
func (d *debouncer) Wait() {
	d.wg.Wait()
}

package services

import (
	"time"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
)

// signalDebounce coalesces D-Bus signal storms into one rebuild.
const signalDebounce = 100 * time.Millisecond

// Debouncer schedules a single rebuild after a quiet period. Every
// Trigger restarts the timer, so a burst of property-change signals
// produces one refresh. Must only be used from the event loop.
type Debouncer struct {
	loop   *eventloop.Loop
	delay  time.Duration
	cancel eventloop.CancelFunc
}

// NewDebouncer creates a debouncer with the standard signal delay.
func NewDebouncer(loop *eventloop.Loop) *Debouncer {
	return &Debouncer{loop: loop, delay: signalDebounce}
}

// NewDebouncerWithDelay creates a debouncer with a custom delay.
func NewDebouncerWithDelay(loop *eventloop.Loop, delay time.Duration) *Debouncer {
	return &Debouncer{loop: loop, delay: delay}
}

// Trigger schedules fn after the quiet period, replacing any pending
// schedule.
func (d *Debouncer) Trigger(fn func()) {
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = d.loop.After(d.delay, func() {
		d.cancel = nil
		fn()
	})
}

// Stop drops any pending schedule.
func (d *Debouncer) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

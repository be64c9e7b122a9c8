package sync

import (
	"sync"
	"time"

	"github.com/studlancer/studlancer/internal/queue"
)

// Debouncer is a cancelable, resettable single-shot timer gating the batch
// flush. Each Trigger replaces the held snapshot and triggering transaction
// and restarts the quiescence window; when the window elapses without
// another trigger, fire is invoked once with the latest pair.
//
// State is passed explicitly through Trigger rather than captured in
// closures, so there is never mutable state shared across the async
// boundary.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fire  func(snapshot *queue.Queue, trigger queue.Transaction)

	timer    *time.Timer
	snapshot *queue.Queue
	trigger  queue.Transaction
	pending  bool
}

// NewDebouncer creates a debouncer that invokes fire after delay of
// quiescence. fire runs on the timer goroutine.
func NewDebouncer(delay time.Duration, fire func(*queue.Queue, queue.Transaction)) *Debouncer {
	return &Debouncer{delay: delay, fire: fire}
}

// Trigger arms (or re-arms) the timer with the latest queue snapshot and
// triggering transaction.
func (d *Debouncer) Trigger(snapshot *queue.Queue, trigger queue.Transaction) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.snapshot = snapshot
	d.trigger = trigger
	d.pending = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.onTimer)
}

func (d *Debouncer) onTimer() {
	snapshot, trigger, ok := d.take()
	if !ok {
		return
	}
	d.fire(snapshot, trigger)
}

// Flush fires a pending flush immediately, bypassing the remaining window.
// It is a no-op when nothing is pending. Flush runs fire on the caller's
// goroutine and returns after it completes.
func (d *Debouncer) Flush() {
	snapshot, trigger, ok := d.take()
	if !ok {
		return
	}
	d.fire(snapshot, trigger)
}

// fireWith runs fn with the pending snapshot, if any, consuming it. It lets
// a caller substitute its own flush invocation (e.g. to capture the error).
func (d *Debouncer) fireWith(fn func(*queue.Queue, queue.Transaction)) {
	snapshot, trigger, ok := d.take()
	if !ok {
		return
	}
	fn(snapshot, trigger)
}

// Cancel drops any pending flush without firing.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.snapshot = nil
	d.pending = false
}

// Pending reports whether a flush is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// take claims the pending snapshot, disarming the timer. The second caller
// (timer vs explicit Flush) gets ok=false, so fire runs at most once per
// trigger.
func (d *Debouncer) take() (*queue.Queue, queue.Transaction, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pending {
		return nil, queue.Transaction{}, false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	snapshot, trigger := d.snapshot, d.trigger
	d.snapshot = nil
	d.pending = false
	return snapshot, trigger, true
}

package analyzer

import (
	"sync"
	"time"

	"github.com/collabotd/collabot/internal/model"
)

// StallTimeout returns the category-dependent duration after which no
// activity is considered a stall.
func StallTimeout(category model.RoleCategory) time.Duration {
	switch category {
	case model.CategoryConversational:
		return 180 * time.Second
	case model.CategoryResearch:
		return 420 * time.Second
	default:
		return 300 * time.Second
	}
}

// StallDetector is a single-shot timer that fires onFire if no event is
// observed for the category's timeout. It is reset on every stream
// event and cleared on dispatch end. It interacts with the dispatch
// loop only by invoking onFire asynchronously; the loop itself must
// treat that as a cancellation request, not call back into the
// detector from within onFire.
type StallDetector struct {
	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
	fired   bool
	onFire  func()
}

// NewStallDetector creates a detector for the given category and starts
// its timer immediately — a dispatch that never emits a single event
// should still stall out.
func NewStallDetector(category model.RoleCategory, onFire func()) *StallDetector {
	d := &StallDetector{
		timeout: StallTimeout(category),
		onFire:  onFire,
	}
	d.timer = time.AfterFunc(d.timeout, d.fire)
	return d
}

func (d *StallDetector) fire() {
	d.mu.Lock()
	if d.fired {
		d.mu.Unlock()
		return
	}
	d.fired = true
	cb := d.onFire
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Reset pushes the deadline out by one more timeout. A no-op once the
// timer has already fired or been cleared, so events arriving after
// cancellation was requested cannot re-arm it.
func (d *StallDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fired || d.timer == nil {
		return
	}
	d.timer.Reset(d.timeout)
}

// Stop clears the timer at dispatch end. Safe to call multiple times.
func (d *StallDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.fired = true
}

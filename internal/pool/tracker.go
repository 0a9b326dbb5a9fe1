package pool

import (
	"fmt"
	"sync"

	"github.com/collabotd/collabot/internal/model"
)

// DispatchResult is what a tracked dispatch eventually settles with.
type DispatchResult struct {
	Envelope model.Envelope
	Err      error
}

// pending is a completion promise: a channel that receives exactly one
// DispatchResult when the dispatch finishes.
type pending struct {
	role string
	ch   chan DispatchResult
}

// Tracker maps dispatch id to a pending completion promise, used by
// draft_agent/await_agent so a running agent can spawn a peer dispatch
// and later block on its result.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*pending
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{pending: make(map[string]*pending)}
}

// Track registers a pending dispatch under id with the given role.
// Settle(id, ...) must be called exactly once for every Track call.
func (t *Tracker) Track(id string, role string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = &pending{role: role, ch: make(chan DispatchResult, 1)}
}

// Settle completes the pending dispatch for id. No-op if id is unknown
// (never tracked, or already pruned).
func (t *Tracker) Settle(id string, envelope model.Envelope, err error) {
	t.mu.Lock()
	p, ok := t.pending[id]
	t.mu.Unlock()
	if !ok {
		return
	}
	p.ch <- DispatchResult{Envelope: envelope, Err: err}
}

// Await blocks until the dispatch identified by id settles, returning
// its result. Returns an error immediately if id is unknown.
func (t *Tracker) Await(id string) (DispatchResult, error) {
	t.mu.Lock()
	p, ok := t.pending[id]
	t.mu.Unlock()
	if !ok {
		return DispatchResult{}, fmt.Errorf("unknown dispatch id: %s", id)
	}
	result := <-p.ch
	// Re-buffer so a second Await (e.g. a racing caller) still observes
	// the settled result instead of blocking forever.
	p.ch <- result
	return result, nil
}

// Has reports whether id is currently tracked (registered, whether or
// not it has settled).
func (t *Tracker) Has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[id]
	return ok
}

// Prune removes a tracked entry once its result has been consumed and
// is no longer needed.
func (t *Tracker) Prune(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

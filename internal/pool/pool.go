// Package pool implements the bounded registry of live dispatches
// and the dispatch tracker used by the agent-facing RPC surface
// to await a peer dispatch's completion.
package pool

import (
	"errors"
	"sync"
	"time"

	"github.com/collabotd/collabot/internal/model"
)

// ErrAtCapacity is returned by Register when a positive MaxConcurrent
// is configured and reached.
var ErrAtCapacity = errors.New("pool-at-capacity")

// ChangeObserver is invoked after every pool mutation, carrying the
// full current list of active agents.
type ChangeObserver func(agents []model.ActiveAgent)

// Pool is a mapping from dispatch id to (role, taskSlug, startedAt,
// cancellation handle). register/release form a strict pair on every
// code path; release is idempotent.
type Pool struct {
	mu            sync.RWMutex
	entries       map[string]model.ActiveAgent
	maxConcurrent int
	onChange      []ChangeObserver
}

// New creates a pool. maxConcurrent <= 0 means unbounded.
func New(maxConcurrent int) *Pool {
	return &Pool{
		entries:       make(map[string]model.ActiveAgent),
		maxConcurrent: maxConcurrent,
	}
}

// Register adds an active-agent entry. Fails with ErrAtCapacity if the
// pool is full.
func (p *Pool) Register(entry model.ActiveAgent) error {
	p.mu.Lock()
	if p.maxConcurrent > 0 && len(p.entries) >= p.maxConcurrent {
		p.mu.Unlock()
		return ErrAtCapacity
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	p.entries[entry.DispatchID] = entry
	p.mu.Unlock()

	p.notify()
	return nil
}

// Release removes the entry for id. It is a no-op if the entry is
// absent, so `register -> kill -> release` ends the pool empty exactly
// like `register -> release`.
func (p *Pool) Release(id string) {
	p.mu.Lock()
	_, existed := p.entries[id]
	delete(p.entries, id)
	p.mu.Unlock()

	if existed {
		p.notify()
	}
}

// Kill invokes the cancellation handle for id. No-op if absent.
func (p *Pool) Kill(id string) {
	p.mu.RLock()
	entry, ok := p.entries[id]
	p.mu.RUnlock()

	if ok && entry.Cancel != nil {
		entry.Cancel()
	}
}

// Get returns the entry for id, if present.
func (p *Pool) Get(id string) (model.ActiveAgent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[id]
	return e, ok
}

// List returns a snapshot of all active agents.
func (p *Pool) List() []model.ActiveAgent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.ActiveAgent, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	return out
}

// Size returns the number of active agents.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// OnChange registers an observer invoked after every mutation.
func (p *Pool) OnChange(cb ChangeObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, cb)
}

func (p *Pool) notify() {
	p.mu.RLock()
	observers := append([]ChangeObserver(nil), p.onChange...)
	p.mu.RUnlock()
	if len(observers) == 0 {
		return
	}
	snapshot := p.List()
	for _, cb := range observers {
		cb(snapshot)
	}
}

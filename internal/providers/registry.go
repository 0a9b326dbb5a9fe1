package providers

import (
	"errors"
	"log"
	"sync"

	"github.com/collabotd/collabot/internal/model"
)

// ErrDuplicateName is returned by Register on a name collision.
var ErrDuplicateName = errors.New("duplicate-provider-name")

// Registry holds the set of attached providers. The provider list is
// immutable after StartAll.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]Provider
	logger    *log.Logger
	started   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider. Fails with ErrDuplicateName on collision.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; exists {
		return ErrDuplicateName
	}
	r.providers[p.Name()] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Get returns the provider named name, if registered.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Has reports whether a provider is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Providers returns a snapshot of all registered providers in
// registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// BindInbound installs handler on every registered provider's
// OnInbound slot. Called once, after all providers are registered and
// before StartAll.
func (r *Registry) BindInbound(handler InboundHandler) {
	for _, p := range r.Providers() {
		p.OnInbound(handler)
	}
}

// StartAll starts every provider in registration order. A provider
// whose Start fails is logged and left not-ready; the registry
// continues starting the rest — a best-effort startup, never fatal to
// the daemon as a whole.
func (r *Registry) StartAll() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	for _, p := range r.Providers() {
		if err := p.Start(); err != nil {
			r.logger.Printf("[PROVIDERS] %s failed to start: %v", p.Name(), err)
		}
	}
}

// StopAll stops every provider in reverse registration order. Never
// panics; per-provider errors are logged only.
func (r *Registry) StopAll() {
	providers := r.Providers()
	for i := len(providers) - 1; i >= 0; i-- {
		p := providers[i]
		if err := p.Stop(); err != nil {
			r.logger.Printf("[PROVIDERS] %s failed to stop: %v", p.Name(), err)
		}
	}
}

// Broadcast sends msg to every ready provider whose AcceptedTypes,
// if set, contains msg.Type. Per-provider failures are logged and do
// not abort the broadcast for the remaining providers.
func (r *Registry) Broadcast(msg model.ChannelMessage) {
	for _, p := range r.Providers() {
		if !p.Ready() {
			continue
		}
		if !acceptsType(p.AcceptedTypes(), msg.Type) {
			continue
		}
		if err := p.Send(msg); err != nil {
			r.logger.Printf("[PROVIDERS] %s failed to deliver message: %v", p.Name(), err)
		}
	}
}

// BroadcastStatus is the SetStatus analogue of Broadcast.
func (r *Registry) BroadcastStatus(channel, status string) {
	for _, p := range r.Providers() {
		if !p.Ready() {
			continue
		}
		if err := p.SetStatus(channel, status); err != nil {
			r.logger.Printf("[PROVIDERS] %s failed to set status: %v", p.Name(), err)
		}
	}
}

func acceptsType(accepted []string, t string) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, a := range accepted {
		if a == t {
			return true
		}
	}
	return false
}

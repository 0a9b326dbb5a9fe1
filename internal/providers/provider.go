// Package providers defines the uniform communication-provider
// contract and a registry that fans outbound lifecycle
// messages to every attached transport and wires a single inbound
// handler onto each at startup.
//
// Grounded on internal/notifications/manager.go's multi-channel
// fan-out (iterate, collect per-channel errors, never abort the whole
// broadcast on one channel's failure) and internal/notifications/
// external/slack.go's per-provider Name()/ShouldNotify()/Send() shape,
// generalized into the spec's uniform provider interface.
package providers

import (
	"github.com/collabotd/collabot/internal/model"
)

// InboundHandler processes a message received from a provider and
// returns the result handleTask produced.
type InboundHandler func(msg model.ChannelMessage) model.InboundResult

// Provider is the uniform transport contract every front-end surface
// implements.
type Provider interface {
	Name() string
	Manifest() model.ProviderManifest
	// AcceptedTypes returns the message types this provider wants in
	// broadcast; nil or empty means accept all (matches
	// internal/events/bus.go's matchesTypes nil-means-all convention).
	AcceptedTypes() []string
	Start() error
	Stop() error
	Ready() bool
	Send(msg model.ChannelMessage) error
	SetStatus(channel, status string) error
	OnInbound(handler InboundHandler)
}

package model

// ProviderManifest describes a communication provider for display and
// capability negotiation.
type ProviderManifest struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Type        string `json:"type"` // "terminal" | "socket" | "chat"
}

// ChannelMessage is an outbound lifecycle message fanned out to
// providers. Type "chat" | "result" | "warning" | "tool_use" travel as
// the wire-level "channel_message" notification; "pool_status",
// "draft_status", and "context_compacted" are broadcast the same way
// but a socket-backed provider surfaces each under its own named
// notification rather than wrapping it in "channel_message".
type ChannelMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Text    string      `json:"text,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// InboundResult is what a provider's inbound handler returns after
// `handleTask` processes a message.
type InboundResult struct {
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
}

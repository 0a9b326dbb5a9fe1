// Package natsprovider implements a communication provider that
// bridges outbound lifecycle messages and inbound prompts over NATS
// subjects, for a chat-bridge-style front end running out of process.
//
// Grounded on internal/nats/client.go's connection wrapper: reconnect
// options (ReconnectWait/MaxReconnects(-1)), Publish/PublishJSON, and
// Subscribe with a typed handler callback.
package natsprovider

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	nc "github.com/nats-io/nats.go"

	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/providers"
)

// Config configures the NATS provider.
type Config struct {
	URL             string
	OutboundSubject string // e.g. "collabot.outbound"
	InboundSubject  string // e.g. "collabot.inbound"
	Logger          *log.Logger
}

// Provider bridges the core to a NATS deployment.
type Provider struct {
	cfg     Config
	conn    *nc.Conn
	sub     *nc.Subscription
	ready   bool
	handler providers.InboundHandler
	logger  *log.Logger
}

// New creates a NATS provider. Connection is established in Start.
func New(cfg Config) *Provider {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.OutboundSubject == "" {
		cfg.OutboundSubject = "collabot.outbound"
	}
	if cfg.InboundSubject == "" {
		cfg.InboundSubject = "collabot.inbound"
	}
	return &Provider{cfg: cfg, logger: cfg.Logger}
}

func (p *Provider) Name() string { return "nats" }

func (p *Provider) Manifest() model.ProviderManifest {
	return model.ProviderManifest{
		ID:          "nats",
		Version:     "1.0.0",
		DisplayName: "NATS Chat Bridge",
		Description: "Bridges dispatch lifecycle messages over NATS subjects",
		Type:        "chat",
	}
}

func (p *Provider) AcceptedTypes() []string { return nil }

// Start connects to NATS and subscribes to the inbound subject.
func (p *Provider) Start() error {
	opts := []nc.Option{
		nc.ReconnectWait(2 * time.Second),
		nc.MaxReconnects(-1),
		nc.DisconnectErrHandler(func(conn *nc.Conn, err error) {
			if err != nil {
				p.logger.Printf("[NATS] disconnected: %v", err)
			}
		}),
		nc.ReconnectHandler(func(conn *nc.Conn) {
			p.logger.Printf("[NATS] reconnected to %s", conn.ConnectedUrl())
		}),
	}

	conn, err := nc.Connect(p.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	p.conn = conn

	sub, err := conn.Subscribe(p.cfg.InboundSubject, p.handleInbound)
	if err != nil {
		conn.Close()
		return fmt.Errorf("subscribe to %s: %w", p.cfg.InboundSubject, err)
	}
	p.sub = sub
	p.ready = true
	return nil
}

func (p *Provider) Stop() error {
	p.ready = false
	if p.sub != nil {
		_ = p.sub.Unsubscribe()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

func (p *Provider) Ready() bool { return p.ready }

func (p *Provider) Send(msg model.ChannelMessage) error {
	if !p.ready {
		return fmt.Errorf("nats provider not connected")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal channel message: %w", err)
	}
	if err := p.conn.Publish(p.cfg.OutboundSubject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.cfg.OutboundSubject, err)
	}
	return nil
}

func (p *Provider) SetStatus(channel, status string) error {
	return p.Send(model.ChannelMessage{Type: "status_update", Channel: channel, Text: status})
}

func (p *Provider) OnInbound(handler providers.InboundHandler) {
	p.handler = handler
}

func (p *Provider) handleInbound(msg *nc.Msg) {
	var channelMsg model.ChannelMessage
	if err := json.Unmarshal(msg.Data, &channelMsg); err != nil {
		p.logger.Printf("[NATS] malformed inbound message: %v", err)
		return
	}
	if p.handler == nil {
		return
	}
	result := p.handler(channelMsg)
	if msg.Reply == "" {
		return
	}
	reply, err := json.Marshal(result)
	if err != nil {
		p.logger.Printf("[NATS] failed to marshal inbound reply: %v", err)
		return
	}
	if err := p.conn.Publish(msg.Reply, reply); err != nil {
		p.logger.Printf("[NATS] failed to publish reply: %v", err)
	}
}

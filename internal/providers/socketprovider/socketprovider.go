// Package socketprovider implements the duplex JSON-RPC 2.0 transport:
// a gorilla/websocket hub that broadcasts lifecycle notifications to
// every connected client and routes inbound request frames to a
// registered RPC handler, replying only on the connection the request
// arrived on.
//
// Grounded on internal/server/hub.go's Client/Hub register-unregister-
// broadcast shape (adapted from one-way dashboard push to duplex
// request/response) and internal/mcp/server.go's upgrade-then-pump
// structure.
package socketprovider

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/providers"
)

const sendBufferSize = 256

// RequestHandler processes one raw JSON-RPC request frame and returns
// the raw JSON-RPC response frame to write back to the same
// connection. A nil return means no response is sent (e.g. the frame
// was a notification).
type RequestHandler func(raw []byte) []byte

// Config configures the socket provider's HTTP listener.
type Config struct {
	Addr   string // e.g. ":8787"
	Path   string // e.g. "/rpc"
	Logger *log.Logger
}

// client is one connected websocket peer.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Provider implements providers.Provider over a websocket hub, and
// separately exposes SetRequestHandler for the JSON-RPC method
// dispatcher (internal/rpcserver) to bind into — the registry-facing
// contract and the RPC wiring are distinct capabilities layered on the
// same transport, per the "provider types are independent" rule.
type Provider struct {
	cfg Config

	mu      sync.RWMutex
	clients map[*client]bool

	handler   providers.InboundHandler
	reqHandle RequestHandler

	server   *http.Server
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// New creates a socket provider. Call Start to begin listening.
func New(cfg Config) *Provider {
	if cfg.Path == "" {
		cfg.Path = "/rpc"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Provider{
		cfg:      cfg,
		clients:  make(map[*client]bool),
		logger:   cfg.Logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (p *Provider) Name() string { return "socket" }

func (p *Provider) Manifest() model.ProviderManifest {
	return model.ProviderManifest{
		ID:          "socket",
		Version:     "1.0.0",
		DisplayName: "JSON-RPC Socket",
		Description: "Duplex websocket carrying the JSON-RPC 2.0 method surface and lifecycle notifications",
		Type:        "socket",
	}
}

func (p *Provider) AcceptedTypes() []string { return nil }

// SetRequestHandler wires the JSON-RPC dispatcher. Must be called
// before Start.
func (p *Provider) SetRequestHandler(h RequestHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqHandle = h
}

func (p *Provider) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(p.cfg.Path, p.handleWebSocket)
	p.server = &http.Server{Addr: p.cfg.Addr, Handler: mux}

	ln, err := newListener(p.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", p.cfg.Addr, err)
	}
	go func() {
		if err := p.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			p.logger.Printf("[SOCKET] server error: %v", err)
		}
	}()
	return nil
}

func (p *Provider) Stop() error {
	if p.server == nil {
		return nil
	}
	return p.server.Close()
}

func (p *Provider) Ready() bool {
	return p.server != nil
}

// Send broadcasts msg to every connected client. pool_status,
// draft_status, and context_compacted travel as their own named
// notification; every other type wraps as channel_message.
func (p *Provider) Send(msg model.ChannelMessage) error {
	switch msg.Type {
	case "pool_status", "draft_status", "context_compacted":
		return p.broadcastNotification(msg.Type, msg.Payload)
	default:
		return p.broadcastNotification("channel_message", msg)
	}
}

func (p *Provider) SetStatus(channel, status string) error {
	return p.broadcastNotification("status_update", map[string]string{"channel": channel, "status": status})
}

func (p *Provider) OnInbound(handler providers.InboundHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

type rpcNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

func (p *Provider) broadcastNotification(method string, params interface{}) error {
	data, err := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	p.mu.RLock()
	targets := make([]*client, 0, len(p.clients))
	for c := range p.clients {
		targets = append(targets, c)
	}
	p.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			p.logger.Printf("[SOCKET] dropping message to slow client")
		}
	}
	return nil
}

func (p *Provider) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	p.mu.Lock()
	p.clients[c] = true
	p.mu.Unlock()

	go p.writePump(c)
	p.readPump(c)
}

func (p *Provider) readPump(c *client) {
	defer func() {
		p.mu.Lock()
		delete(p.clients, c)
		p.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		p.handleFrame(c, data)
	}
}

func (p *Provider) handleFrame(c *client, data []byte) {
	p.mu.RLock()
	reqHandle := p.reqHandle
	handler := p.handler
	p.mu.RUnlock()

	if reqHandle != nil {
		if resp := reqHandle(data); resp != nil {
			select {
			case c.send <- resp:
			default:
				p.logger.Printf("[SOCKET] dropping response to slow client")
			}
		}
		return
	}

	if handler == nil {
		return
	}
	var msg model.ChannelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Printf("[SOCKET] malformed inbound frame: %v", err)
		return
	}
	handler(msg)
}

func (p *Provider) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

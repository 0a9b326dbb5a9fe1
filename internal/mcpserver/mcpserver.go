// Package mcpserver exposes internal/rpctools' tool registries to a
// running agent subprocess over the MCP Streamable HTTP transport
// (POST-only JSON-RPC; no SSE notification stream, since none of
// collabot's tools push unsolicited server->agent messages).
//
// Grounded on internal/mcp/server.go's ServeStreamableHTTP/
// handleStreamableHTTPPost shape, trimmed to the subset that dispatch
// tool calls actually need: this daemon never opens an SSE stream back
// to the agent, so the GET/DELETE transport branches and the
// connection manager/limiter are dropped along with them.
package mcpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/collabotd/collabot/internal/rpctools"
)

// dispatchHeader carries the calling dispatch's id, the way the
// teacher's transport carries X-Agent-ID.
const dispatchHeader = "X-Dispatch-Id"

// binding is the tool set and caller identity a registered dispatch
// invokes the server under.
type binding struct {
	callerRole string
	registry   *rpctools.Registry
}

// Server serves one or more tool registries over MCP, keyed by the
// calling dispatch id so a single HTTP listener can serve every
// concurrently running dispatch's tool calls with the correct
// per-role tool set and caller identity.
type Server struct {
	mu       sync.RWMutex
	bindings map[string]binding
}

// New creates an empty Server.
func New() *Server {
	return &Server{bindings: make(map[string]binding)}
}

// Register binds dispatchID to registry for the duration of one
// dispatch's run, so its tool calls resolve to the correct callerRole
// and permission tier (full vs. read-only).
func (s *Server) Register(dispatchID, callerRole string, registry *rpctools.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[dispatchID] = binding{callerRole: callerRole, registry: registry}
}

// Unregister removes dispatchID's binding once its run ends. Idempotent.
func (s *Server) Unregister(dispatchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, dispatchID)
}

type mcpRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type mcpResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *mcpError   `json:"error,omitempty"`
}

type mcpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ServeHTTP implements the Streamable HTTP POST transport: one
// JSON-RPC request per HTTP request, dispatch identity carried in the
// X-Dispatch-Id header.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dispatchID := r.Header.Get(dispatchHeader)
	s.mu.RLock()
	b, ok := s.bindings[dispatchID]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "unknown or expired dispatch id", http.StatusForbidden)
		return
	}

	var req mcpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, mcpResponse{JSONRPC: "2.0", Error: &mcpError{Code: -32700, Message: "parse error"}})
		return
	}

	result, rpcErr := s.handle(b, dispatchID, req.Method, req.Params)
	if req.ID == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if rpcErr != nil {
		s.writeJSON(w, mcpResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		return
	}
	s.writeJSON(w, mcpResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handle(b binding, dispatchID, method string, params json.RawMessage) (interface{}, *mcpError) {
	switch method {
	case "initialize":
		return map[string]interface{}{
			"protocolVersion": "2025-03-26",
			"serverInfo":      map[string]string{"name": "collabot", "version": "1.0"},
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		}, nil
	case "tools/list":
		return map[string]interface{}{"tools": b.registry.List()}, nil
	case "tools/call":
		var p struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &mcpError{Code: -32602, Message: "invalid params"}
		}
		result, err := b.registry.Execute(p.Name, b.callerRole, dispatchID, p.Arguments)
		if err != nil {
			return nil, &mcpError{Code: -32603, Message: err.Error()}
		}
		return result, nil
	default:
		return nil, &mcpError{Code: -32601, Message: fmt.Sprintf("method not found: %s", method)}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, resp mcpResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Package rpctools implements the agent-facing RPC tool surface: the
// six tools a running agent may call to draft and await peer
// dispatches, kill a sibling, and inspect tasks/agents.
//
// Grounded on internal/mcp/tools.go's ToolRegistry/ToolDefinition/
// ToolHandler shape and internal/mcp/handlers.go's ToolCallbacks
// callback-struct wiring, generalized from CLIAIMONITOR's context-save
// tools to collabot's dispatch-control tools.
package rpctools

import "fmt"

// ToolHandler processes a tool call issued by callerRole from
// callerDispatchID and returns a JSON-marshalable result.
// callerDispatchID is empty when invoked outside any dispatch (e.g.
// from a test); draft_agent uses it to set the child dispatch's
// parentDispatchId.
type ToolHandler func(callerRole, callerDispatchID string, params map[string]interface{}) (interface{}, error)

// ParameterDef describes one named parameter of a tool.
type ParameterDef struct {
	Type        string
	Description string
	Required    bool
}

// ToolDefinition describes one RPC tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]ParameterDef
	Handler     ToolHandler
}

// Registry holds a named set of tools. Two separate registries are
// built per role permission (full vs. read) rather than filtering a
// single registry per call, per the capability-gating design: each
// role sees exactly the tool set its permissions allow.
type Registry struct {
	tools map[string]ToolDefinition
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolDefinition)}
}

// Register adds a tool.
func (r *Registry) Register(t ToolDefinition) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns tool definitions in registration order, for a tools/list
// style response.
func (r *Registry) List() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		params := make(map[string]interface{}, len(t.Parameters))
		var required []string
		for pname, def := range t.Parameters {
			params[pname] = map[string]interface{}{
				"type":        def.Type,
				"description": def.Description,
			}
			if def.Required {
				required = append(required, pname)
			}
		}
		out = append(out, map[string]interface{}{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": params,
				"required":   required,
			},
		})
	}
	return out
}

// Execute runs a tool by name.
func (r *Registry) Execute(name, callerRole, callerDispatchID string, params map[string]interface{}) (interface{}, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return t.Handler(callerRole, callerDispatchID, params)
}

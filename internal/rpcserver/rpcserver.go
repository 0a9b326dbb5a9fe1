// Package rpcserver implements the JSON-RPC 2.0 method table exposed
// over the socket transport: submit_prompt, draft, undraft,
// get_draft_status, kill_agent, list_agents, list_tasks,
// get_task_context, list_projects, create_project.
//
// Grounded on internal/mcp/server.go's handleRequest method switch and
// MCPRequest/MCPResponse/MCPError envelope shapes, adapted from HTTP
// Streamable request/response marshaling to a persistent
// gorilla/websocket connection: HandleFrame is bound straight into
// socketprovider.RequestHandler.
package rpcserver

import (
	"encoding/json"
	"fmt"

	"github.com/collabotd/collabot/internal/model"
)

// App-specific JSON-RPC error codes.
const (
	CodeTaskNotFound       = -32000
	CodeAgentNotFound      = -32001
	CodeRoleNotFound       = -32002
	CodePoolAtCapacity     = -32003
	CodeDraftAlreadyActive = -32004
	CodeNoActiveDraft      = -32005

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Error is an application error carrying a JSON-RPC error code.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds an *Error with the given code.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Core is everything the method table dispatches into. Implemented by
// the daemon's wiring (dispatch runtime, draft manager, config), kept
// as an interface so rpcserver has no import-time dependency on them.
type Core interface {
	SubmitPrompt(content, role, taskSlug, project string) (threadID string, resolvedTaskSlug string, err error)
	Draft(role, project, task string) (sessionID string, taskSlug string, resolvedProject string, err error)
	Undraft() (sessionID string, taskSlug string, turns int, cost float64, durationMs int64, err error)
	GetDraftStatus() (active bool, session *model.DraftSession)
	KillAgent(agentID string) (success bool, message string, err error)
	ListAgents() []model.ActiveAgent
	ListTasks(project string) ([]model.Task, error)
	GetTaskContext(slug, project string) (string, error)
	ListProjects() []model.Project
	CreateProject(name, description string, roles []string) (model.Project, error)
}

// Server dispatches JSON-RPC requests into a Core.
type Server struct {
	core Core
}

// New creates a dispatch server over core.
func New(core Core) *Server {
	return &Server{core: core}
}

// HandleFrame processes one raw JSON-RPC request frame and returns the
// raw response frame, or nil if the frame was a notification (no id).
func (s *Server) HandleFrame(raw []byte) []byte {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return s.marshal(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
	}
	if req.Method == "" {
		return s.marshal(response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "method is required"}})
	}

	result, err := s.dispatch(req.Method, req.Params)
	if req.ID == nil {
		return nil
	}
	if err != nil {
		return s.marshal(response{JSONRPC: "2.0", ID: req.ID, Error: toRPCError(err)})
	}
	return s.marshal(response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func toRPCError(err error) *rpcError {
	if appErr, ok := err.(*Error); ok {
		return &rpcError{Code: appErr.Code, Message: appErr.Message}
	}
	return &rpcError{Code: codeInternalError, Message: err.Error()}
}

func (s *Server) marshal(resp response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"failed to marshal response"}}`)
	}
	return data
}

func (s *Server) dispatch(method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "submit_prompt":
		return s.handleSubmitPrompt(params)
	case "draft":
		return s.handleDraft(params)
	case "undraft":
		return s.handleUndraft()
	case "get_draft_status":
		return s.handleGetDraftStatus()
	case "kill_agent":
		return s.handleKillAgent(params)
	case "list_agents":
		return s.handleListAgents()
	case "list_tasks":
		return s.handleListTasks(params)
	case "get_task_context":
		return s.handleGetTaskContext(params)
	case "list_projects":
		return s.handleListProjects()
	case "create_project":
		return s.handleCreateProject(params)
	default:
		return nil, NewError(codeMethodNotFound, fmt.Sprintf("method not found: %s", method))
	}
}

func unmarshalParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return NewError(codeInvalidParams, "invalid params")
	}
	return nil
}

func (s *Server) handleSubmitPrompt(params json.RawMessage) (interface{}, error) {
	var p struct {
		Content  string `json:"content"`
		Role     string `json:"role"`
		TaskSlug string `json:"taskSlug"`
		Project  string `json:"project"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	threadID, taskSlug, err := s.core.SubmitPrompt(p.Content, p.Role, p.TaskSlug, p.Project)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"threadId": threadID, "taskSlug": taskSlug}, nil
}

func (s *Server) handleDraft(params json.RawMessage) (interface{}, error) {
	var p struct {
		Role    string `json:"role"`
		Project string `json:"project"`
		Task    string `json:"task"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	sessionID, taskSlug, project, err := s.core.Draft(p.Role, p.Project, p.Task)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"sessionId": sessionID, "taskSlug": taskSlug, "project": project}, nil
}

func (s *Server) handleUndraft() (interface{}, error) {
	sessionID, taskSlug, turns, cost, durationMs, err := s.core.Undraft()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"sessionId":  sessionID,
		"taskSlug":   taskSlug,
		"turns":      turns,
		"cost":       cost,
		"durationMs": durationMs,
	}, nil
}

func (s *Server) handleGetDraftStatus() (interface{}, error) {
	active, session := s.core.GetDraftStatus()
	result := map[string]interface{}{"active": active}
	if session != nil {
		result["session"] = session
	}
	return result, nil
}

func (s *Server) handleKillAgent(params json.RawMessage) (interface{}, error) {
	var p struct {
		AgentID string `json:"agentId"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.AgentID == "" {
		return nil, NewError(codeInvalidParams, "agentId is required")
	}
	success, message, err := s.core.KillAgent(p.AgentID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": success, "message": message}, nil
}

func (s *Server) handleListAgents() (interface{}, error) {
	return map[string]interface{}{"agents": s.core.ListAgents()}, nil
}

func (s *Server) handleListTasks(params json.RawMessage) (interface{}, error) {
	var p struct {
		Project string `json:"project"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	tasks, err := s.core.ListTasks(p.Project)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"tasks": tasks}, nil
}

func (s *Server) handleGetTaskContext(params json.RawMessage) (interface{}, error) {
	var p struct {
		Slug    string `json:"slug"`
		Project string `json:"project"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	context, err := s.core.GetTaskContext(p.Slug, p.Project)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"context": context}, nil
}

func (s *Server) handleListProjects() (interface{}, error) {
	return map[string]interface{}{"projects": s.core.ListProjects()}, nil
}

func (s *Server) handleCreateProject(params json.RawMessage) (interface{}, error) {
	var p struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Roles       []string `json:"roles"`
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, NewError(codeInvalidParams, "name is required")
	}
	project, err := s.core.CreateProject(p.Name, p.Description, p.Roles)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"name": project.Name, "roles": project.Roles}, nil
}

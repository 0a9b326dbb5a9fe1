package rpctools

import (
	"fmt"

	"github.com/collabotd/collabot/internal/model"
)

// Callbacks wires the tool handlers back into the dispatch runtime,
// pool, and dispatchstore without rpctools importing any of them
// directly — the same indirection teacher's ToolCallbacks uses to keep
// the tool package free of a dependency on the services it drives.
type Callbacks struct {
	OnDraftAgent     func(callerDispatchID, callerRole, role, project, taskSlug, prompt string) (dispatchID string, err error)
	OnAwaitAgent     func(dispatchID string) (model.Envelope, error)
	OnKillAgent      func(dispatchID string) (bool, string, error)
	OnListAgents     func() ([]model.ActiveAgent, error)
	OnListTasks      func(project string) ([]model.Task, error)
	OnGetTaskContext func(slug, project string) (string, error)
}

// BuildFullRegistry returns the tool set for roles with drafting
// permission: all six tools.
func BuildFullRegistry(cb Callbacks) *Registry {
	r := NewRegistry()
	registerDraftAgent(r, cb)
	registerAwaitAgent(r, cb)
	registerKillAgent(r, cb)
	registerListAgents(r, cb)
	registerListTasks(r, cb)
	registerGetTaskContext(r, cb)
	return r
}

// BuildReadOnlyRegistry returns the tool set for roles without drafting
// permission: inspection tools only, no draft_agent/await_agent/
// kill_agent.
func BuildReadOnlyRegistry(cb Callbacks) *Registry {
	r := NewRegistry()
	registerListAgents(r, cb)
	registerListTasks(r, cb)
	registerGetTaskContext(r, cb)
	return r
}

func registerDraftAgent(r *Registry, cb Callbacks) {
	r.Register(ToolDefinition{
		Name:        "draft_agent",
		Description: "Spawn a child dispatch with the given role and prompt, returning its dispatch id immediately without waiting for completion.",
		Parameters: map[string]ParameterDef{
			"role":      {Type: "string", Description: "Role to dispatch under", Required: true},
			"prompt":    {Type: "string", Description: "Prompt for the child dispatch", Required: true},
			"project":   {Type: "string", Description: "Project name, defaults to the caller's project", Required: false},
			"taskSlug":  {Type: "string", Description: "Task slug, defaults to the caller's task", Required: false},
		},
		Handler: func(callerRole, callerDispatchID string, params map[string]interface{}) (interface{}, error) {
			if cb.OnDraftAgent == nil {
				return nil, fmt.Errorf("draft_agent not configured")
			}
			role, _ := params["role"].(string)
			prompt, _ := params["prompt"].(string)
			project, _ := params["project"].(string)
			taskSlug, _ := params["taskSlug"].(string)
			if role == "" || prompt == "" {
				return nil, fmt.Errorf("role and prompt are required")
			}
			id, err := cb.OnDraftAgent(callerDispatchID, callerRole, role, project, taskSlug, prompt)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"dispatchId": id}, nil
		},
	})
}

func registerAwaitAgent(r *Registry, cb Callbacks) {
	r.Register(ToolDefinition{
		Name:        "await_agent",
		Description: "Block until the given dispatch id reaches a terminal state and return its envelope.",
		Parameters: map[string]ParameterDef{
			"dispatchId": {Type: "string", Description: "Dispatch id returned by draft_agent", Required: true},
		},
		Handler: func(callerRole, callerDispatchID string, params map[string]interface{}) (interface{}, error) {
			if cb.OnAwaitAgent == nil {
				return nil, fmt.Errorf("await_agent not configured")
			}
			id, _ := params["dispatchId"].(string)
			if id == "" {
				return nil, fmt.Errorf("dispatchId is required")
			}
			env, err := cb.OnAwaitAgent(id)
			if err != nil {
				return nil, err
			}
			return env, nil
		},
	})
}

func registerKillAgent(r *Registry, cb Callbacks) {
	r.Register(ToolDefinition{
		Name:        "kill_agent",
		Description: "Request cancellation of a running dispatch by id.",
		Parameters: map[string]ParameterDef{
			"agentId": {Type: "string", Description: "Dispatch id to kill", Required: true},
		},
		Handler: func(callerRole, callerDispatchID string, params map[string]interface{}) (interface{}, error) {
			if cb.OnKillAgent == nil {
				return nil, fmt.Errorf("kill_agent not configured")
			}
			id, _ := params["agentId"].(string)
			if id == "" {
				return nil, fmt.Errorf("agentId is required")
			}
			success, message, err := cb.OnKillAgent(id)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"success": success, "message": message}, nil
		},
	})
}

func registerListAgents(r *Registry, cb Callbacks) {
	r.Register(ToolDefinition{
		Name:        "list_agents",
		Description: "List all currently running dispatches.",
		Parameters:  map[string]ParameterDef{},
		Handler: func(callerRole, callerDispatchID string, params map[string]interface{}) (interface{}, error) {
			if cb.OnListAgents == nil {
				return map[string]interface{}{"agents": []model.ActiveAgent{}}, nil
			}
			agents, err := cb.OnListAgents()
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"agents": agents}, nil
		},
	})
}

func registerListTasks(r *Registry, cb Callbacks) {
	r.Register(ToolDefinition{
		Name:        "list_tasks",
		Description: "List tasks within a project.",
		Parameters: map[string]ParameterDef{
			"project": {Type: "string", Description: "Project name", Required: true},
		},
		Handler: func(callerRole, callerDispatchID string, params map[string]interface{}) (interface{}, error) {
			if cb.OnListTasks == nil {
				return map[string]interface{}{"tasks": []model.Task{}}, nil
			}
			project, _ := params["project"].(string)
			tasks, err := cb.OnListTasks(project)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"tasks": tasks}, nil
		},
	})
}

func registerGetTaskContext(r *Registry, cb Callbacks) {
	r.Register(ToolDefinition{
		Name:        "get_task_context",
		Description: "Build the markdown context summary of a task's prior dispatch history.",
		Parameters: map[string]ParameterDef{
			"slug":    {Type: "string", Description: "Task slug", Required: true},
			"project": {Type: "string", Description: "Project name", Required: true},
		},
		Handler: func(callerRole, callerDispatchID string, params map[string]interface{}) (interface{}, error) {
			if cb.OnGetTaskContext == nil {
				return nil, fmt.Errorf("get_task_context not configured")
			}
			slug, _ := params["slug"].(string)
			project, _ := params["project"].(string)
			if slug == "" || project == "" {
				return nil, fmt.Errorf("slug and project are required")
			}
			context, err := cb.OnGetTaskContext(slug, project)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"context": context}, nil
		},
	})
}

package orchestrator

import (
	"context"

	"github.com/collabotd/collabot/internal/dispatch"
	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/rpctools"
)

// BuildCallbacks wires rpctools' tool handlers back into this Core, the
// way cmd/cliaimonitor wires its ToolCallbacks from main: every tool
// bottoms out in a method already used by the JSON-RPC surface, so a
// draft_agent call and a submit_prompt request share the same dispatch
// path.
func (c *Core) BuildCallbacks() rpctools.Callbacks {
	return rpctools.Callbacks{
		OnDraftAgent:     c.draftAgentForTool,
		OnAwaitAgent:     c.awaitAgentForTool,
		OnKillAgent:      c.KillAgent,
		OnListAgents:     c.listAgentsForTool,
		OnListTasks:      c.ListTasks,
		OnGetTaskContext: c.GetTaskContext,
	}
}

// draftAgentForTool implements the draft_agent tool: it spawns a child
// dispatch carrying parentDispatchId set to the calling dispatch's id,
// per the RPC tool surface's requirement that a caller's sub-dispatches
// are traceable back to it. project/taskSlug default to the calling
// dispatch's own task when omitted, so a supervisor drafting a peer
// without specifying a project stays within its own task's project.
func (c *Core) draftAgentForTool(callerDispatchID, callerRole, role, project, taskSlug, prompt string) (string, error) {
	if taskSlug == "" {
		if caller, ok := c.Pool.Get(callerDispatchID); ok {
			taskSlug = caller.TaskSlug
		}
	}

	proj, err := c.resolveProject(project)
	if err != nil {
		return "", err
	}
	resolvedRole, err := c.resolveRole(proj, role)
	if err != nil {
		return "", err
	}
	if taskSlug == "" {
		taskSlug = slugify(prompt)
	}
	_, taskDir, err := c.ensureTask(proj, taskSlug, prompt)
	if err != nil {
		return "", err
	}

	req := dispatch.Request{
		Prompt:           prompt,
		Role:             resolvedRole,
		Project:          proj,
		TaskSlug:         taskSlug,
		TaskDir:          taskDir,
		WorkingDir:       c.workingDir(proj),
		ParentDispatchID: callerDispatchID,
	}
	return c.Runtime.Start(context.Background(), req)
}

// awaitAgentForTool implements the await_agent tool: block until
// dispatchID settles (Runtime.Start already registers it with the
// tracker) and return its final envelope.
func (c *Core) awaitAgentForTool(dispatchID string) (model.Envelope, error) {
	result, err := c.Tracker.Await(dispatchID)
	if err != nil {
		return model.Envelope{}, err
	}
	return result.Envelope, nil
}

// listAgentsForTool adapts ListAgents to the OnListAgents callback
// shape, which also returns an error for parity with the other tool
// callbacks even though listing the pool never fails.
func (c *Core) listAgentsForTool() ([]model.ActiveAgent, error) {
	return c.ListAgents(), nil
}

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/collabotd/collabot/internal/config"
	"github.com/collabotd/collabot/internal/contextbuilder"
	"github.com/collabotd/collabot/internal/dispatch"
	"github.com/collabotd/collabot/internal/draft"
	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/pool"
	"github.com/collabotd/collabot/internal/rpcserver"
)

// SubmitPrompt implements rpcserver.Core. If an active draft session
// already targets the resolved project+task, the prompt resumes that
// session's conversation instead of spawning a
// fresh one-shot dispatch — submit_prompt is deliberately the single
// entry point for both, since the wire protocol exposes no separate
// resumeDraft method and a provider or operator sending a follow-up
// message has no other way to continue a draft.
func (c *Core) SubmitPrompt(content, role, taskSlug, project string) (string, string, error) {
	proj, err := c.resolveProject(project)
	if err != nil {
		return "", "", err
	}

	if slug, ok := c.matchesActiveDraft(proj.Name, taskSlug); ok {
		dispatchID, err := c.resumeActiveDraft(content)
		return dispatchID, slug, err
	}

	resolvedRole, err := c.resolveRole(proj, role)
	if err != nil {
		return "", "", err
	}
	if taskSlug == "" {
		taskSlug = slugify(content)
	}
	_, taskDir, err := c.ensureTask(proj, taskSlug, content)
	if err != nil {
		return "", "", err
	}

	req := dispatch.Request{
		Prompt:     content,
		Role:       resolvedRole,
		Project:    proj,
		TaskSlug:   taskSlug,
		TaskDir:    taskDir,
		WorkingDir: c.workingDir(proj),
	}
	id, err := c.Runtime.Start(context.Background(), req)
	if err != nil {
		if err == pool.ErrAtCapacity {
			return "", "", rpcserver.NewError(rpcserver.CodePoolAtCapacity, err.Error())
		}
		return "", "", err
	}
	return id, taskSlug, nil
}

// matchesActiveDraft reports whether the active draft (if any) targets
// project+taskSlug. An empty taskSlug matches any active draft on the
// project, so a follow-up prompt that omits taskSlug still finds the
// conversation it's continuing.
func (c *Core) matchesActiveDraft(project, taskSlug string) (string, bool) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	if c.active == nil || c.active.project.Name != project {
		return "", false
	}
	if taskSlug != "" && taskSlug != c.active.taskSlug {
		return "", false
	}
	return c.active.taskSlug, true
}

// resumeActiveDraft runs one turn of the active draft session,
// updating session metrics and persisting draft.json. It never
// finalizes the draft's dispatch envelope.
func (c *Core) resumeActiveDraft(prompt string) (string, error) {
	c.activeMu.Lock()
	a := c.active
	c.activeMu.Unlock()
	if a == nil {
		return "", rpcserver.NewError(rpcserver.CodeNoActiveDraft, "no active draft")
	}

	session, err := c.Draft.ResumeDraft(c.sessionIDLocked())
	if err != nil {
		return "", rpcserver.NewError(rpcserver.CodeNoActiveDraft, err.Error())
	}

	req := dispatch.Request{
		Prompt:          prompt,
		Role:            a.role,
		Project:         a.project,
		TaskSlug:        a.taskSlug,
		TaskDir:         a.taskDir,
		WorkingDir:      c.workingDir(a.project),
		Channel:         session.ChannelID,
		ResumeSessionID: session.AgentSessionID,
	}

	result := c.Runtime.RunDraftTurn(a.ctx, a.cancel, a.dispatchID, req)
	if err := c.Draft.RecordTurn(result.Cost, result.InputTokens, result.OutputTokens, result.ContextWindow, result.MaxOutputTokens, result.SessionID); err != nil {
		return "", err
	}
	c.broadcastDraftStatus(session.ChannelID)
	if result.Crashed {
		return a.dispatchID, fmt.Errorf("draft turn failed: %s", result.FailureReason)
	}
	return a.dispatchID, nil
}

// broadcastDraftStatus sends the draft session's current status and
// accounting, the way get_draft_status reports it over the RPC
// surface, so a provider watching channel can track session metrics
// without polling.
func (c *Core) broadcastDraftStatus(channel string) {
	active, session := c.GetDraftStatus()
	c.Runtime.Registry.Broadcast(model.ChannelMessage{
		Type:    "draft_status",
		Channel: channel,
		Payload: map[string]interface{}{"active": active, "session": session},
	})
}

// sessionIDLocked returns the currently active draft's session id,
// read fresh from the draft manager so callers always validate
// against the manager's own notion of "active", not a stale copy.
func (c *Core) sessionIDLocked() string {
	session, ok := c.Draft.GetActiveDraft()
	if !ok {
		return ""
	}
	return session.SessionID
}

// Draft implements rpcserver.Core: createDraft opens a new session
// with no prompt — the first agent turn happens on the next
// submit_prompt that resolves to this project/task.
func (c *Core) Draft(role, project, task string) (string, string, string, error) {
	proj, err := c.resolveProject(project)
	if err != nil {
		return "", "", "", err
	}
	resolvedRole, err := c.resolveRole(proj, role)
	if err != nil {
		return "", "", "", err
	}
	if task == "" {
		task = fmt.Sprintf("draft-%d", time.Now().UnixNano())
	}
	_, taskDir, err := c.ensureTask(proj, task, fmt.Sprintf("Draft session with %s", resolvedRole.Name))
	if err != nil {
		return "", "", "", err
	}

	channelID := proj.Name + "/" + task
	session, err := c.Draft.CreateDraft(resolvedRole.Name, proj.Name, task, taskDir, channelID, 0, 0)
	if err != nil {
		if err == draft.ErrAlreadyActive {
			return "", "", "", rpcserver.NewError(rpcserver.CodeDraftAlreadyActive, "a draft session is already active")
		}
		return "", "", "", err
	}

	req := dispatch.Request{
		Role:       resolvedRole,
		Project:    proj,
		TaskSlug:   task,
		TaskDir:    taskDir,
		WorkingDir: c.workingDir(proj),
		Channel:    channelID,
	}
	dispatchID, ctx, cancel, err := c.Runtime.StartDraft(context.Background(), req)
	if err != nil {
		c.Draft.CloseDraft()
		return "", "", "", err
	}
	if err := c.Draft.AttachDispatch(dispatchID); err != nil {
		cancel()
		c.Pool.Release(dispatchID)
		c.Draft.CloseDraft()
		return "", "", "", err
	}

	c.activeMu.Lock()
	c.active = &activeDraft{
		ctx:        ctx,
		cancel:     cancel,
		taskDir:    taskDir,
		role:       resolvedRole,
		project:    proj,
		taskSlug:   task,
		dispatchID: dispatchID,
		startedAt:  session.StartedAt,
	}
	c.activeMu.Unlock()

	return session.SessionID, task, proj.Name, nil
}

// Undraft implements rpcserver.Core: closeDraft releases the pool
// entry, finalizes the session's single dispatch file, and returns its
// final accounting.
func (c *Core) Undraft() (string, string, int, float64, int64, error) {
	c.activeMu.Lock()
	a := c.active
	c.activeMu.Unlock()
	if a == nil {
		return "", "", 0, 0, 0, rpcserver.NewError(rpcserver.CodeNoActiveDraft, "no active draft")
	}

	sessionID, turns, cost, err := c.Draft.CloseDraft()
	if err != nil {
		return "", "", 0, 0, 0, err
	}

	durationMs := time.Since(a.startedAt).Milliseconds()
	_ = c.Runtime.FinalizeDraft(a.taskDir, a.dispatchID)
	a.cancel()
	c.Pool.Release(a.dispatchID)

	c.activeMu.Lock()
	c.active = nil
	c.activeMu.Unlock()

	return sessionID, a.taskSlug, turns, cost, durationMs, nil
}

// GetDraftStatus implements rpcserver.Core.
func (c *Core) GetDraftStatus() (bool, *model.DraftSession) {
	session, ok := c.Draft.GetActiveDraft()
	return ok, session
}

// KillAgent implements rpcserver.Core.
func (c *Core) KillAgent(agentID string) (bool, string, error) {
	if _, ok := c.Pool.Get(agentID); !ok {
		return false, "", rpcserver.NewError(rpcserver.CodeAgentNotFound, "no such agent: "+agentID)
	}
	c.Pool.Kill(agentID)
	return true, "cancellation requested", nil
}

// ListAgents implements rpcserver.Core.
func (c *Core) ListAgents() []model.ActiveAgent {
	return c.Pool.List()
}

// ListTasks implements rpcserver.Core: reads every task manifest under
// the resolved project's data directory.
func (c *Core) ListTasks(project string) ([]model.Task, error) {
	proj, err := c.resolveProject(project)
	if err != nil {
		return nil, err
	}
	return c.listTasks(proj.Name)
}

// GetTaskContext implements rpcserver.Core.
func (c *Core) GetTaskContext(slug, project string) (string, error) {
	proj, err := c.resolveProject(project)
	if err != nil {
		return "", err
	}
	dir := c.taskDir(proj.Name, slug)
	task, err := c.Store.ReadManifest(dir)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", rpcserver.NewError(rpcserver.CodeTaskNotFound, "no such task: "+slug)
	}
	envelopes, err := c.Store.GetDispatchEnvelopes(dir)
	if err != nil {
		return "", err
	}
	return contextbuilder.Build(task, envelopes), nil
}

// ListProjects implements rpcserver.Core.
func (c *Core) ListProjects() []model.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortProjects(c.projects.Projects)
}

// CreateProject implements rpcserver.Core: registers a new project and
// persists it back to projects.yaml.
func (c *Core) CreateProject(name, description string, roles []string) (model.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.projects.ProjectByName(name); exists {
		return model.Project{}, fmt.Errorf("project already exists: %s", name)
	}
	project := model.Project{Name: name, Description: description, Roles: roles}
	c.projects.Projects = append(c.projects.Projects, project)
	if err := config.SaveProjects(c.ProjectsPath, c.projects); err != nil {
		c.projects.Projects = c.projects.Projects[:len(c.projects.Projects)-1]
		return model.Project{}, err
	}
	return project, nil
}

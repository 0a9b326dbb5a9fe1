// Package dispatch implements the dispatch runtime: it
// opens the agent subprocess, classifies its event stream, drives the
// repetition/non-retryable/stall analyzers synchronously, persists
// events and the terminal envelope through dispatchstore, and
// broadcasts lifecycle notifications through the provider registry.
//
// Grounded on internal/supervisor/dispatcher.go's Dispatcher shape
// (per-dispatch context.CancelFunc held in a state map, ExecutePlan
// returning immediately while the work continues) fused with
// internal/captain/captain.go's executeSubagent stream-consumption
// loop, adapted from a fire-and-forget batch capture to the spec's
// streamed, analyzer-driven classification loop.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/collabotd/collabot/internal/analyzer"
	"github.com/collabotd/collabot/internal/contextbuilder"
	"github.com/collabotd/collabot/internal/dispatchstore"
	"github.com/collabotd/collabot/internal/ledger"
	"github.com/collabotd/collabot/internal/mcpserver"
	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/pool"
	"github.com/collabotd/collabot/internal/providers"
	"github.com/collabotd/collabot/internal/rpctools"
	"github.com/collabotd/collabot/internal/runner"
)

const (
	toolCallWindowSize = 10
	errorWindowSize    = 20
)

// Request is everything the runtime needs to execute one dispatch.
type Request struct {
	Prompt           string
	Role             model.Role
	Project          model.Project
	TaskSlug         string
	TaskDir          string
	WorkingDir       string
	Channel          string // provider channel for broadcasts; defaults to TaskSlug
	ParentDispatchID string
	ModelOverride    string
	MaxTurns         int
	MaxBudgetUSD     float64
	ResumeSessionID  string // set for a draft session's follow-up turns
}

// Runtime ties the runner, analyzers, event store, pool, tracker, and
// provider registry together. One Runtime serves every dispatch the
// daemon ever starts.
type Runtime struct {
	Runner      *runner.Runner
	Store       *dispatchstore.Store
	Pool        *pool.Pool
	Tracker     *pool.Tracker
	Registry    *providers.Registry
	Ledger      *ledger.Ledger // optional: nil disables cost-ledger mirroring
	ModelAliases map[string]string
	DefaultModel string
	AgentBinary  string
	Logger       *log.Logger

	// MCP tool-call wiring: nil MCPServer disables tool access entirely
	// (spawned agents just run without a --mcp-config flag). When set,
	// every dispatch is bound to MCPServerURL for the duration of its
	// run under the full or read-only registry per the role's
	// permissions.
	MCPServer      *mcpserver.Server
	MCPServerURL   string
	FullTools      *rpctools.Registry
	ReadOnlyTools  *rpctools.Registry
}

// New creates a Runtime. logger may be nil, in which case log.Default
// is used.
func New(r *runner.Runner, store *dispatchstore.Store, p *pool.Pool, t *pool.Tracker, registry *providers.Registry, l *ledger.Ledger, modelAliases map[string]string, defaultModel string, logger *log.Logger) *Runtime {
	if logger == nil {
		logger = log.Default()
	}
	return &Runtime{
		Runner:       r,
		Store:        store,
		Pool:         p,
		Tracker:      t,
		Registry:     registry,
		Ledger:       l,
		ModelAliases: modelAliases,
		DefaultModel: defaultModel,
		AgentBinary:  "claude",
		Logger:       logger,
	}
}

// EnableTools wires the MCP tool-call surface into every subsequent
// dispatch. server must already be listening at serverURL.
func (rt *Runtime) EnableTools(server *mcpserver.Server, serverURL string, full, readOnly *rpctools.Registry) {
	rt.MCPServer = server
	rt.MCPServerURL = serverURL
	rt.FullTools = full
	rt.ReadOnlyTools = readOnly
}

// cancelReason records the first cancellation reason requested for a
// dispatch — analyzer kill, stall, or external — so finalization can
// report it even though the cancellation itself may race with stream
// end.
type cancelReason struct {
	mu     sync.Mutex
	reason string
}

func (c *cancelReason) setIfEmpty(r string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason == "" {
		c.reason = r
	}
}

func (c *cancelReason) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Start registers the dispatch with the pool, writes its initial
// envelope, and begins executing it in the background, returning its
// dispatch id immediately. The caller (handleTask, draft_agent, ...)
// never blocks on completion here; await_agent/the draft manager poll
// the tracker or the pool for that.
//
// Pool registration happens before the dispatch file is created: a
// pool-at-capacity failure never leaves a dangling dispatch file
// behind: exactly one register implies exactly one release, and an
// unsuccessful register has nothing to release.
func (rt *Runtime) Start(parentCtx context.Context, req Request) (string, error) {
	id := newDispatchID()
	startedAt := time.Now().UTC()

	ctx, cancel := context.WithCancel(parentCtx)
	reason := &cancelReason{}

	entry := model.ActiveAgent{
		DispatchID: id,
		Role:       req.Role.Name,
		TaskSlug:   req.TaskSlug,
		StartedAt:  startedAt,
		Cancel: func() {
			reason.setIfEmpty("external")
			cancel()
		},
	}
	if err := rt.Pool.Register(entry); err != nil {
		cancel()
		return "", err
	}

	envelope := model.Envelope{
		DispatchID:       id,
		TaskSlug:         req.TaskSlug,
		Role:             req.Role.Name,
		Model:            rt.resolveModel(req),
		WorkingDir:       req.WorkingDir,
		StartedAt:        startedAt,
		Status:           model.DispatchRunning,
		ParentDispatchID: req.ParentDispatchID,
	}
	if err := rt.Store.CreateDispatch(req.TaskDir, envelope); err != nil {
		rt.Pool.Release(id)
		cancel()
		return "", fmt.Errorf("create dispatch: %w", err)
	}

	rt.Tracker.Track(id, req.Role.Name)
	rt.appendEventBestEffort(req.TaskDir, id, model.Event{Type: model.EventSessionInit, Timestamp: startedAt, Data: id})

	go rt.run(ctx, cancel, reason, id, req)

	return id, nil
}

// StartDraft registers the pool entry and creates the single dispatch
// file a draft session resumes across every subsequent turn, without
// running any agent turn — the draft RPC method
// carries no prompt. The caller (orchestrator.Core) holds onto the
// returned id/ctx/cancel for the session's lifetime and passes them to
// RunDraftTurn on every turn of the session.
func (rt *Runtime) StartDraft(parentCtx context.Context, req Request) (id string, ctx context.Context, cancel context.CancelFunc, err error) {
	id = newDispatchID()
	startedAt := time.Now().UTC()
	ctx, cancel = context.WithCancel(parentCtx)

	entry := model.ActiveAgent{
		DispatchID: id,
		Role:       req.Role.Name,
		TaskSlug:   req.TaskSlug,
		StartedAt:  startedAt,
		Cancel:     cancel,
	}
	if err := rt.Pool.Register(entry); err != nil {
		cancel()
		return "", nil, nil, err
	}

	envelope := model.Envelope{
		DispatchID: id,
		TaskSlug:   req.TaskSlug,
		Role:       req.Role.Name,
		Model:      rt.resolveModel(req),
		WorkingDir: req.WorkingDir,
		StartedAt:  startedAt,
		Status:     model.DispatchRunning,
	}
	if err := rt.Store.CreateDispatch(req.TaskDir, envelope); err != nil {
		rt.Pool.Release(id)
		cancel()
		return "", nil, nil, fmt.Errorf("create dispatch: %w", err)
	}

	rt.appendEventBestEffort(req.TaskDir, id, model.Event{Type: model.EventSessionInit, Timestamp: startedAt, Data: id})
	return id, ctx, cancel, nil
}

// turnOutcome is what one streamed agent invocation produced, whether
// it is a one-shot dispatch or a single turn of a draft session.
type turnOutcome struct {
	finalStatus   model.DispatchStatus // always set; RunDraftTurn reads it only to detect a crash
	failureReason string
	agentResult   *model.AgentResult
	rawResult     string
	cost          *float64
	usage         *model.Usage
	sessionID     string
}

// executeTurn runs the agent subprocess once against req, streaming its
// events through handleEvent (persistence + analyzers + broadcasts) and
// the stall detector. Shared by the one-shot dispatch loop (run) and
// draft-session turns (RunDraftTurn): both need the identical
// compose-prompt/stream/classify/analyze machinery, differing only in
// what happens to the envelope once the turn ends.
//
// turnOutcome.finalStatus is always set: aborted when ctx was
// cancelled, crashed on a stream error that is not a trailing
// non-fatal exit, completed otherwise. run finalizes the envelope with
// it; RunDraftTurn only checks it for crashed and leaves the envelope
// running, since a draft session ends only when FinalizeDraft is
// called.
func (rt *Runtime) executeTurn(ctx context.Context, cancel context.CancelFunc, reason *cancelReason, id string, req Request) (outcome turnOutcome, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			outcome.finalStatus = model.DispatchCrashed
			outcome.failureReason = fmt.Sprintf("panic: %v", r)
			rt.broadcastWarning(req, "dispatch crashed: "+outcome.failureReason)
		}
	}()

	toolWindow := make([]analyzer.ToolCall, 0, toolCallWindowSize)
	errWindow := make([]analyzer.ErrorTriplet, 0, errorWindowSize)
	pending := make(map[string]analyzer.ToolCallPair)
	repeatWarned := false

	stall := analyzer.NewStallDetector(req.Role.Category, func() {
		reason.setIfEmpty("stall")
		cancel()
	})
	defer stall.Stop()

	spec := runner.Spec{
		Binary:          rt.AgentBinary,
		Prompt:          rt.composePrompt(id, req),
		WorkingDir:      req.WorkingDir,
		Model:           rt.resolveModel(req),
		MaxTurns:        req.MaxTurns,
		MaxBudgetUSD:    req.MaxBudgetUSD,
		ResumeSessionID: req.ResumeSessionID,
	}

	if rt.MCPServer != nil {
		configPath, cleanup, err := rt.writeMCPConfig(id, req)
		if err != nil {
			rt.logf("write mcp config for %s: %v", id, err)
		} else {
			spec.MCPConfigPath = configPath
			defer cleanup()
		}
	}
	if req.Role.Category == model.CategoryConversational {
		// Conversational/draft dispatches omit per-turn caps.
		spec.MaxTurns = 0
	}

	result, streamErr := rt.Runner.Stream(ctx, spec, func(ev model.Event) {
		stall.Reset()
		rt.handleEvent(req, id, ev, &toolWindow, &errWindow, pending, &repeatWarned, reason, cancel)
	})

	outcome.rawResult = result.RawResult
	outcome.cost = result.Cost
	outcome.usage = result.Usage
	outcome.sessionID = result.SessionID

	if parsed, ok := runner.ParseStructuredResult(result.RawResult); ok {
		outcome.agentResult = &parsed
	}

	switch {
	case ctx.Err() != nil:
		outcome.finalStatus = model.DispatchAborted
		outcome.failureReason = reason.get()
		if outcome.failureReason == "" {
			outcome.failureReason = "external"
		}
	case streamErr != nil && !runner.IsNonFatal(streamErr):
		outcome.finalStatus = model.DispatchCrashed
		outcome.failureReason = streamErr.Error()
	default:
		if streamErr != nil {
			rt.logf("dispatch %s: agent exited with an error after its result: %v", id, streamErr)
		}
		outcome.finalStatus = model.DispatchCompleted
	}

	return outcome, false
}

// run drives one dispatch to a terminal state. It always releases the
// pool entry, always settles the tracker promise, and never lets a
// panic escape — a panic during message handling finalizes the
// envelope as crashed instead of taking the daemon down with it.
func (rt *Runtime) run(ctx context.Context, cancel context.CancelFunc, reason *cancelReason, id string, req Request) {
	defer cancel()
	defer rt.Pool.Release(id)

	outcome, _ := rt.executeTurn(ctx, cancel, reason, id, req)
	finalStatus := outcome.finalStatus
	failureReason := outcome.failureReason
	agentResult := outcome.agentResult
	rawResult := outcome.rawResult
	cost := outcome.cost
	usage := outcome.usage

	now := time.Now().UTC()
	if err := rt.Store.UpdateDispatch(req.TaskDir, id, func(e *model.Envelope) {
		e.Finalize(finalStatus, now)
		e.Cost = cost
		e.Usage = usage
		e.Result = agentResult
		e.RawResult = rawResult
		e.FailureReason = failureReason
	}); err != nil {
		// Storage errors are logged, not fatal: the in-memory state
		// above already reflects the terminal outcome for the tracker
		// and broadcasts below.
		rt.logf("update dispatch %s: %v", id, err)
	}

	rt.appendEventBestEffort(req.TaskDir, id, model.Event{Type: model.EventSessionComplete, Timestamp: now})

	envelope, found, err := rt.Store.GetDispatchEnvelope(req.TaskDir, id)
	if err != nil || !found {
		envelope = model.Envelope{DispatchID: id, TaskSlug: req.TaskSlug, Role: req.Role.Name, Status: finalStatus}
	}
	rt.Tracker.Settle(id, envelope, nil)

	if rt.Ledger != nil {
		if err := rt.Ledger.Record(req.Project.Name, envelope); err != nil {
			rt.logf("ledger record %s: %v", id, err)
		}
	}

	statusWord := "completed"
	if finalStatus != model.DispatchCompleted {
		statusWord = "failed"
	}
	rt.broadcastStatus(req, statusWord)
	rt.Registry.Broadcast(model.ChannelMessage{
		Type:    "result",
		Channel: rt.channel(req),
		Payload: resultPayload(agentResult, rawResult, failureReason),
	})
}

// TurnResult is what one draft-session turn produced, enough for the
// draft manager to update its own cumulative accounting and for the
// next turn to resume the same underlying agent session.
type TurnResult struct {
	Cost            float64
	InputTokens     int
	OutputTokens    int
	ContextWindow   int
	MaxOutputTokens int
	SessionID       string // pass as req.ResumeSessionID on the next turn
	AgentResult     *model.AgentResult
	Crashed         bool
	FailureReason   string
}

// RunDraftTurn runs a single turn of a resumable conversational
// dispatch: it streams and classifies the agent
// run exactly like a one-shot dispatch, but appends to the dispatch
// file the caller already created rather than creating a new one, and
// never finalizes the envelope — a draft session is one dispatch file
// across many turns, not one file per turn. The caller
// (orchestrator.Core's Undraft) calls FinalizeDraft once the session
// closes.
//
// RunDraftTurn does not touch the pool or tracker: draft sessions
// register a single long-lived pool entry at createDraft time and keep
// it for the session's lifetime, independent of any individual turn.
func (rt *Runtime) RunDraftTurn(ctx context.Context, cancel context.CancelFunc, dispatchID string, req Request) TurnResult {
	reason := &cancelReason{}
	outcome, _ := rt.executeTurn(ctx, cancel, reason, dispatchID, req)

	accumulated := 0.0
	if err := rt.Store.UpdateDispatch(req.TaskDir, dispatchID, func(e *model.Envelope) {
		turnCost := 0.0
		if outcome.cost != nil {
			turnCost = *outcome.cost
		}
		accumulated = turnCost
		if e.Cost != nil {
			accumulated += *e.Cost
		}
		e.Cost = &accumulated
		if outcome.usage != nil {
			e.Usage = outcome.usage
		}
		if outcome.agentResult != nil {
			e.Result = outcome.agentResult
			e.RawResult = outcome.rawResult
		}
	}); err != nil {
		rt.logf("update draft dispatch %s: %v", dispatchID, err)
	}

	tr := TurnResult{
		SessionID:     outcome.sessionID,
		AgentResult:   outcome.agentResult,
		Crashed:       outcome.finalStatus == model.DispatchCrashed,
		FailureReason: outcome.failureReason,
	}
	if outcome.cost != nil {
		tr.Cost = *outcome.cost
	}
	if outcome.usage != nil {
		tr.InputTokens = outcome.usage.InputTokens
		tr.OutputTokens = outcome.usage.OutputTokens
		tr.ContextWindow = outcome.usage.ContextWindow
		tr.MaxOutputTokens = outcome.usage.MaxOutput
	}
	return tr
}

// FinalizeDraft transitions a draft session's single dispatch file to a
// terminal status, the way closeDraft ends it.
func (rt *Runtime) FinalizeDraft(taskDir, dispatchID string) error {
	now := time.Now().UTC()
	return rt.Store.UpdateDispatch(taskDir, dispatchID, func(e *model.Envelope) {
		e.Finalize(model.DispatchCompleted, now)
	})
}

// writeMCPConfig binds id to the appropriate tool registry and writes a
// temporary --mcp-config file pointing the agent subprocess at
// rt.MCPServerURL with its dispatch id in a header, per the
// request's role permissions (full vs. read-only). The
// returned cleanup unregisters the binding and removes the temp file;
// callers must invoke it once the turn ends regardless of outcome.
func (rt *Runtime) writeMCPConfig(id string, req Request) (string, func(), error) {
	registry := rt.ReadOnlyTools
	if req.Role.CanDraftAgents() {
		registry = rt.FullTools
	}
	rt.MCPServer.Register(id, req.Role.Name, registry)

	config := map[string]interface{}{
		"mcpServers": map[string]interface{}{
			"collabot": map[string]interface{}{
				"type": "http",
				"url":  rt.MCPServerURL,
				"headers": map[string]string{
					"X-Dispatch-Id": id,
				},
			},
		},
	}
	data, err := json.Marshal(config)
	if err != nil {
		rt.MCPServer.Unregister(id)
		return "", nil, fmt.Errorf("marshal mcp config: %w", err)
	}

	path := filepath.Join(os.TempDir(), "collabot-mcp-"+id+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		rt.MCPServer.Unregister(id)
		return "", nil, fmt.Errorf("write mcp config: %w", err)
	}

	cleanup := func() {
		rt.MCPServer.Unregister(id)
		_ = os.Remove(path)
	}
	return path, cleanup, nil
}

// handleEvent persists one classified event and feeds it through the
// windowed analyzers, broadcasting the lifecycle notifications each
// classified event implies.
func (rt *Runtime) handleEvent(req Request, id string, ev model.Event, toolWindow *[]analyzer.ToolCall, errWindow *[]analyzer.ErrorTriplet, pending map[string]analyzer.ToolCallPair, repeatWarned *bool, reason *cancelReason, cancel context.CancelFunc) {
	if ev.ID == "" {
		ev.ID = newEventID()
	}
	rt.appendEventBestEffort(req.TaskDir, id, ev)

	switch ev.Type {
	case model.EventAgentText:
		if text, ok := ev.Data.(string); ok {
			rt.Registry.Broadcast(model.ChannelMessage{Type: "chat", Channel: rt.channel(req), Text: text})
		}

	case model.EventAgentToolCall:
		data, ok := ev.Data.(model.ToolCallData)
		if !ok {
			return
		}
		pair := analyzer.ToolCallPair{Tool: data.Tool, Target: data.Target}
		pending[data.CorrelationID] = pair

		*toolWindow = append(*toolWindow, analyzer.ToolCall{Tool: data.Tool, Target: data.Target, Timestamp: ev.Timestamp})
		if len(*toolWindow) > toolCallWindowSize {
			*toolWindow = (*toolWindow)[len(*toolWindow)-toolCallWindowSize:]
		}

		rt.Registry.Broadcast(model.ChannelMessage{Type: "tool_use", Channel: rt.channel(req), Payload: data})

		verdict := analyzer.AnalyzeRepetition(*toolWindow)
		rt.applyRepetitionVerdict(req, verdict, repeatWarned, reason, cancel)

	case model.EventAgentToolResult:
		data, ok := ev.Data.(model.ToolResultData)
		if !ok || data.Status != "error" {
			return
		}
		pair := pending[data.CorrelationID]
		triplet := analyzer.ErrorTriplet{Tool: pair.Tool, Target: pair.Target, ErrorSnippet: data.ErrorSnippet}

		*errWindow = append(*errWindow, triplet)
		if len(*errWindow) > errorWindowSize {
			*errWindow = (*errWindow)[len(*errWindow)-errorWindowSize:]
		}

		if t, found := analyzer.AnalyzeNonRetryable(*errWindow); found {
			reason.setIfEmpty("non_retryable_error")
			rt.broadcastWarning(req, fmt.Sprintf("agent hit the same error repeatedly: %s on %s: %s", t.Tool, t.Target, t.ErrorSnippet))
			cancel()
		}

	case model.EventSessionCompaction:
		rt.Registry.Broadcast(model.ChannelMessage{
			Type:    "context_compacted",
			Channel: rt.channel(req),
			Payload: map[string]string{"dispatchId": id},
		})
	}
}

// applyRepetitionVerdict acts on a repetition verdict, broadcasting at
// most one warning per escalating streak: repeatWarned is set the
// first time a streak reaches VerdictWarning and suppresses every
// further warning broadcast until the streak either escalates to a
// kill or drops back to VerdictNone (the window moved past the
// repeating pair), at which point the next streak can warn again.
func (rt *Runtime) applyRepetitionVerdict(req Request, v analyzer.RepetitionVerdict, repeatWarned *bool, reason *cancelReason, cancel context.CancelFunc) {
	switch v.Level {
	case analyzer.VerdictWarning:
		if *repeatWarned {
			return
		}
		*repeatWarned = true
		rt.broadcastWarning(req, fmt.Sprintf("agent appears stuck in a loop: repeated %s on %s", v.Pair.Tool, v.Pair.Target))
	case analyzer.VerdictKill:
		reason.setIfEmpty("error_loop")
		rt.broadcastWarning(req, fmt.Sprintf("agent appears stuck in a loop: repeated %s on %s", v.Pair.Tool, v.Pair.Target))
		cancel()
	default:
		*repeatWarned = false
	}
}

// composePrompt assembles project context, the harness system-prompt
// layer, the role body, and — for a follow-up dispatch — the
// context-reconstructor's prior-work narrative built from the task's
// other dispatches (the dispatch id itself is left out).
func (rt *Runtime) composePrompt(id string, req Request) string {
	var b strings.Builder

	if len(req.Project.Paths) > 0 {
		fmt.Fprintf(&b, "# Project: %s\n\nWorking paths: %s\n\n", req.Project.Name, strings.Join(req.Project.Paths, ", "))
	}

	b.WriteString("You are running inside collabot's orchestration harness. Work autonomously within your role, and end your turn with a structured result describing what you did.\n\n")

	if req.Role.SystemPrompt != "" {
		b.WriteString(req.Role.SystemPrompt)
		b.WriteString("\n\n")
	}

	if task, err := rt.Store.ReadManifest(req.TaskDir); err == nil && task != nil {
		if envelopes, err := rt.Store.GetDispatchEnvelopes(req.TaskDir); err == nil {
			prior := make([]model.Envelope, 0, len(envelopes))
			for _, e := range envelopes {
				if e.DispatchID != id {
					prior = append(prior, e)
				}
			}
			if len(prior) > 0 {
				b.WriteString(contextbuilder.Build(task, prior))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("# Request\n\n")
	b.WriteString(req.Prompt)

	return b.String()
}

// resolveModel applies the resolution order: explicit
// dispatch override, then the role's model-hint alias resolved via the
// instance alias table, then the instance default.
func (rt *Runtime) resolveModel(req Request) string {
	if req.ModelOverride != "" {
		return req.ModelOverride
	}
	if req.Role.ModelHint != "" {
		if resolved, ok := rt.ModelAliases[req.Role.ModelHint]; ok {
			return resolved
		}
		return req.Role.ModelHint
	}
	return rt.DefaultModel
}

func (rt *Runtime) channel(req Request) string {
	if req.Channel != "" {
		return req.Channel
	}
	return req.TaskSlug
}

func (rt *Runtime) broadcastWarning(req Request, text string) {
	rt.Registry.Broadcast(model.ChannelMessage{Type: "warning", Channel: rt.channel(req), Text: text})
}

func (rt *Runtime) broadcastStatus(req Request, status string) {
	rt.Registry.BroadcastStatus(rt.channel(req), status)
}

func (rt *Runtime) appendEventBestEffort(taskDir, id string, ev model.Event) {
	if ev.ID == "" {
		ev.ID = newEventID()
	}
	if err := rt.Store.AppendEvent(taskDir, id, ev); err != nil {
		rt.logf("append event %s for dispatch %s: %v", ev.Type, id, err)
	}
}

func (rt *Runtime) logf(format string, args ...interface{}) {
	if rt.Logger != nil {
		rt.Logger.Printf("[DISPATCH] "+format, args...)
	}
}

func resultPayload(result *model.AgentResult, raw string, failureReason string) interface{} {
	if result != nil {
		return result
	}
	return map[string]interface{}{"raw": raw, "failureReason": failureReason}
}

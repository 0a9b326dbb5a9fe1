// Package draft implements the single-active-draft-session invariant
// and draft.json persistence used by the socket transport's draft/
// undraft/get_draft_status RPC methods.
//
// Grounded on internal/instance/manager.go's single-instance PID-file
// pattern (one JSON record, an in-memory acquired flag, stale-file
// detection) adapted from "one daemon process" to "one active draft
// session instance-wide", and internal/persistence/store.go's
// debounced JSON save.
package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/collabotd/collabot/internal/model"
)

// draftFileName is the task-relative file a draft session persists to
// — <tasksRoot>/<project>/<taskSlug>/draft.json, alongside that task's
// own dispatch files and manifest.
const draftFileName = "draft.json"

// ErrAlreadyActive is returned by CreateDraft when a draft session is
// already active instance-wide.
var ErrAlreadyActive = errors.New("draft-already-active")

// ErrNoActiveDraft is returned by CloseDraft/RecordTurn when no draft
// session is active.
var ErrNoActiveDraft = errors.New("no-active-draft")

// ErrSessionMismatch is returned by ResumeDraft when the requested
// session id does not match the persisted active session.
var ErrSessionMismatch = errors.New("draft-session-mismatch")

const saveDebounce = 250 * time.Millisecond

// Manager holds at most one active draft session at a time and
// persists it to <taskDir>/draft.json so a daemon restart can recover
// it without losing turn/cost accounting. tasksRoot is the directory
// containing every <project>/<taskSlug>/ task directory instance-wide
// — LoadActiveDraft scans it to find the one task (if any) holding an
// active session, since a draft's task isn't known until load time.
type Manager struct {
	tasksRoot string

	mu      sync.Mutex
	active  *model.DraftSession
	taskDir string // <tasksRoot>/<project>/<taskSlug> of the active session

	saveMu    sync.Mutex
	saveTimer *time.Timer
}

// NewManager creates a draft manager scoped to tasksRoot.
func NewManager(tasksRoot string) *Manager {
	return &Manager{tasksRoot: tasksRoot}
}

// LoadActiveDraft scans every task directory under tasksRoot for a
// draft.json with status active and adopts it as the in-memory active
// session. Call once at daemon startup before accepting new
// draft/undraft calls. More than one active draft found across the
// whole instance is a hard error — the single-active-session invariant
// must already hold on disk by the time the daemon starts.
func (m *Manager) LoadActiveDraft() (*model.DraftSession, error) {
	projectDirs, err := os.ReadDir(m.tasksRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan tasks root: %w", err)
	}

	var found *model.DraftSession
	var foundDir string
	for _, projectEntry := range projectDirs {
		if !projectEntry.IsDir() {
			continue
		}
		projectDir := filepath.Join(m.tasksRoot, projectEntry.Name())
		taskDirs, err := os.ReadDir(projectDir)
		if err != nil {
			continue
		}
		for _, taskEntry := range taskDirs {
			if !taskEntry.IsDir() {
				continue
			}
			taskDir := filepath.Join(projectDir, taskEntry.Name())
			session, err := readDraftFile(filepath.Join(taskDir, draftFileName))
			if err != nil {
				return nil, err
			}
			if session == nil || session.Status != model.DraftActive {
				continue
			}
			if found != nil {
				return nil, fmt.Errorf("more than one active draft session found: %s and %s", foundDir, taskDir)
			}
			found, foundDir = session, taskDir
		}
	}

	if found == nil {
		return nil, nil
	}
	m.mu.Lock()
	m.active = found
	m.taskDir = foundDir
	m.mu.Unlock()
	return found, nil
}

// readDraftFile reads and parses one task directory's draft.json,
// returning (nil, nil) if the file doesn't exist.
func readDraftFile(path string) (*model.DraftSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read draft file %s: %w", path, err)
	}
	var session model.DraftSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse draft file %s: %w", path, err)
	}
	return &session, nil
}

// CreateDraft starts a new draft session persisted under taskDir.
// Fails with ErrAlreadyActive if one is already active.
func (m *Manager) CreateDraft(role, project, taskSlug, taskDir, channelID string, contextWindow, maxOutputTokens int) (*model.DraftSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.Status == model.DraftActive {
		return nil, ErrAlreadyActive
	}

	now := time.Now().UTC()
	session := &model.DraftSession{
		SessionID:       uuid.NewString(),
		Role:            role,
		Project:         project,
		TaskSlug:        taskSlug,
		ChannelID:       channelID,
		StartedAt:       now,
		LastActivityAt:  now,
		Status:          model.DraftActive,
		ContextWindow:   contextWindow,
		MaxOutputTokens: maxOutputTokens,
	}
	m.active = session
	m.taskDir = taskDir
	if err := m.save(); err != nil {
		return nil, err
	}
	return session, nil
}

// AttachDispatch records the backing dispatch id for the active draft
// once the underlying dispatch has been created.
func (m *Manager) AttachDispatch(dispatchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveDraft
	}
	m.active.DispatchID = dispatchID
	return m.save()
}

// ResumeDraft validates sessionID against the currently active (or
// just-loaded) session and returns it. The turn count and cumulative
// cost are whatever LoadActiveDraft/CreateDraft already populated —
// resuming does not reset them.
func (m *Manager) ResumeDraft(sessionID string) (*model.DraftSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, ErrNoActiveDraft
	}
	if m.active.SessionID != sessionID {
		return nil, ErrSessionMismatch
	}
	return m.active, nil
}

// RecordTurn appends one turn's accounting to the active draft:
// cumulative cost, the last turn's token counts, and the context
// window/max-output sizes the agent reported for that turn.
// agentSessionID is the CLI's own resume token for the next turn; it
// overwrites the stored value only when non-empty, so a turn that
// failed to report one doesn't erase resumability.
func (m *Manager) RecordTurn(cost float64, inputTokens, outputTokens, contextWindow, maxOutputTokens int, agentSessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveDraft
	}
	m.active.TurnCount++
	m.active.CumulativeCostUsd += cost
	m.active.LastInputTokens = inputTokens
	m.active.LastOutputTokens = outputTokens
	if contextWindow > 0 {
		m.active.ContextWindow = contextWindow
	}
	if maxOutputTokens > 0 {
		m.active.MaxOutputTokens = maxOutputTokens
	}
	if agentSessionID != "" {
		m.active.AgentSessionID = agentSessionID
	}
	m.active.LastActivityAt = time.Now().UTC()
	return m.scheduleSave()
}

// CloseDraft ends the active draft session and returns its final turn
// count and cumulative cost. A fresh CreateDraft immediately followed
// by CloseDraft (no RecordTurn in between) returns turn count 0.
func (m *Manager) CloseDraft() (sessionID string, turns int, cost float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", 0, 0, ErrNoActiveDraft
	}

	sessionID = m.active.SessionID
	turns = m.active.TurnCount
	cost = m.active.CumulativeCostUsd

	m.active.Status = model.DraftClosed
	if err := m.save(); err != nil {
		return "", 0, 0, err
	}
	m.active = nil
	m.taskDir = ""
	return sessionID, turns, cost, nil
}

// GetActiveDraft returns the active session, if any.
func (m *Manager) GetActiveDraft() (*model.DraftSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, false
	}
	copy := *m.active
	return &copy, true
}

// scheduleSave debounces saves (one per recorded turn) so that saves
// arriving within saveDebounce collapse into a single write, the same
// idiom the teacher's JSONStore uses for
// high-frequency state mutation.
func (m *Manager) scheduleSave() error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		_ = m.save()
	})
	return nil
}

// save writes the active session to <taskDir>/draft.json synchronously.
// Callers must hold m.mu.
func (m *Manager) save() error {
	if m.active == nil {
		return nil
	}
	if err := os.MkdirAll(m.taskDir, 0o755); err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}
	data, err := json.MarshalIndent(m.active, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal draft session: %w", err)
	}
	path := filepath.Join(m.taskDir, draftFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write draft file: %w", err)
	}
	return os.Rename(tmp, path)
}

package draft

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/collabotd/collabot/internal/model"
)

func taskDir(root, project, slug string) string {
	return filepath.Join(root, project, slug)
}

func TestCreateDraftThenCloseWithNoTurnsReturnsZero(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	if _, err := m.CreateDraft("worker", "demo", "task-1", taskDir(root, "demo", "task-1"), "chan-1", 200000, 8192); err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	_, turns, cost, err := m.CloseDraft()
	if err != nil {
		t.Fatalf("CloseDraft: %v", err)
	}
	if turns != 0 || cost != 0 {
		t.Fatalf("expected zero turns/cost, got turns=%d cost=%f", turns, cost)
	}
}

func TestCreateDraftPersistsUnderTaskDirNotRoot(t *testing.T) {
	root := t.TempDir()
	dir := taskDir(root, "demo", "task-1")
	m := NewManager(root)
	if _, err := m.CreateDraft("worker", "demo", "task-1", dir, "chan-1", 0, 0); err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, draftFileName)); err != nil {
		t.Fatalf("expected draft.json under the task directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, draftFileName)); err == nil {
		t.Fatalf("draft.json should not be written at the tasks root")
	}
}

func TestCreateDraftWhileActiveFails(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	if _, err := m.CreateDraft("worker", "demo", "task-1", taskDir(root, "demo", "task-1"), "chan-1", 0, 0); err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if _, err := m.CreateDraft("worker", "demo", "task-2", taskDir(root, "demo", "task-2"), "chan-1", 0, 0); err != ErrAlreadyActive {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestRestartRecoversActiveDraftWithAccumulatedState(t *testing.T) {
	root := t.TempDir()
	dir := taskDir(root, "demo", "task-1")
	m1 := NewManager(root)
	session, err := m1.CreateDraft("worker", "demo", "task-1", dir, "chan-1", 200000, 8192)
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if err := m1.RecordTurn(0.5, 100, 50, 200000, 8192, "agent-session-1"); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if err := m1.RecordTurn(0.5, 120, 60, 200000, 8192, ""); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	// Force the debounced save to flush before "restart".
	if err := m1.save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	m2 := NewManager(root)
	loaded, err := m2.LoadActiveDraft()
	if err != nil {
		t.Fatalf("LoadActiveDraft: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected an active draft to be recovered")
	}
	if loaded.TurnCount != 2 {
		t.Fatalf("expected turn count to carry over, got %d", loaded.TurnCount)
	}
	if loaded.AgentSessionID != "agent-session-1" {
		t.Fatalf("expected agent session id to carry over, got %q", loaded.AgentSessionID)
	}

	resumed, err := m2.ResumeDraft(session.SessionID)
	if err != nil {
		t.Fatalf("ResumeDraft: %v", err)
	}
	if resumed.TurnCount != 2 {
		t.Fatalf("expected resumed turn count 2, got %d", resumed.TurnCount)
	}
}

func TestLoadActiveDraftErrorsOnMoreThanOneActiveSession(t *testing.T) {
	root := t.TempDir()

	m1 := NewManager(root)
	if _, err := m1.CreateDraft("worker", "demo", "task-1", taskDir(root, "demo", "task-1"), "chan-1", 0, 0); err != nil {
		t.Fatalf("CreateDraft task-1: %v", err)
	}
	if err := m1.save(); err != nil {
		t.Fatalf("save task-1: %v", err)
	}

	// A second manager instance creating a second active draft under a
	// different task simulates an on-disk invariant violation (e.g. a
	// draft.json hand-edited back to active, or a bug in an earlier
	// daemon version) that LoadActiveDraft must refuse to silently pick
	// one of.
	m2 := NewManager(root)
	if _, err := m2.CreateDraft("worker", "other", "task-2", taskDir(root, "other", "task-2"), "chan-2", 0, 0); err != nil {
		t.Fatalf("CreateDraft task-2: %v", err)
	}
	if err := m2.save(); err != nil {
		t.Fatalf("save task-2: %v", err)
	}

	m3 := NewManager(root)
	if _, err := m3.LoadActiveDraft(); err == nil {
		t.Fatalf("expected an error when more than one active draft session exists")
	}
}

func TestResumeDraftWrongSessionIDErrors(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	if _, err := m.CreateDraft("worker", "demo", "task-1", taskDir(root, "demo", "task-1"), "chan-1", 0, 0); err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if _, err := m.ResumeDraft("not-the-session"); err != ErrSessionMismatch {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}
}

func TestCloseDraftWithoutActiveErrors(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, _, _, err := m.CloseDraft(); err != ErrNoActiveDraft {
		t.Fatalf("expected ErrNoActiveDraft, got %v", err)
	}
}

func TestLoadActiveDraftMissingRootReturnsNil(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "does-not-exist"))
	session, err := m.LoadActiveDraft()
	if err != nil {
		t.Fatalf("LoadActiveDraft: %v", err)
	}
	if session != nil {
		t.Fatalf("expected nil session, got %+v", session)
	}
}

func TestGetActiveDraftReturnsSnapshotCopy(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	m.CreateDraft("worker", "demo", "task-1", taskDir(root, "demo", "task-1"), "chan-1", 0, 0)
	session, ok := m.GetActiveDraft()
	if !ok {
		t.Fatalf("expected an active draft")
	}
	session.TurnCount = 999
	active, _ := m.GetActiveDraft()
	if active.TurnCount == 999 {
		t.Fatalf("expected GetActiveDraft to return an independent copy")
	}
	_ = model.DraftActive
}

package dispatchstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/collabotd/collabot/internal/model"
)

func testEnvelope(id string) model.Envelope {
	return model.Envelope{
		DispatchID: id,
		TaskSlug:   "my-task",
		Role:       "worker",
		Model:      "claude-sonnet",
		WorkingDir: "/tmp/my-task",
		StartedAt:  time.Now().UTC(),
		Status:     model.DispatchRunning,
	}
}

func TestCreateDispatchWritesIndexEntryBeforeEvents(t *testing.T) {
	taskDir := filepath.Join(t.TempDir(), "my-task")
	s := New()

	env := testEnvelope("d1")
	if err := s.CreateDispatch(taskDir, env); err != nil {
		t.Fatalf("CreateDispatch: %v", err)
	}

	task, err := s.ReadManifest(taskDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if task == nil || len(task.Dispatches) != 1 {
		t.Fatalf("expected 1 index entry, got %+v", task)
	}
	if task.Dispatches[0].DispatchID != "d1" {
		t.Fatalf("unexpected index entry: %+v", task.Dispatches[0])
	}

	got, found, err := s.GetDispatchEnvelope(taskDir, "d1")
	if err != nil || !found {
		t.Fatalf("GetDispatchEnvelope: found=%v err=%v", found, err)
	}
	if got.DispatchID != "d1" || got.Role != "worker" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}

func TestAppendEventRoundTrip(t *testing.T) {
	taskDir := filepath.Join(t.TempDir(), "my-task")
	s := New()
	env := testEnvelope("d1")
	if err := s.CreateDispatch(taskDir, env); err != nil {
		t.Fatalf("CreateDispatch: %v", err)
	}

	ev := model.Event{ID: "e1", Type: model.EventAgentText, Timestamp: time.Now().UTC(), Data: "hello"}
	if err := s.AppendEvent(taskDir, "d1", ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	events, err := s.GetDispatchEvents(taskDir, "d1")
	if err != nil {
		t.Fatalf("GetDispatchEvents: %v", err)
	}
	if len(events) != 1 || events[len(events)-1].ID != "e1" {
		t.Fatalf("expected last event to be the appended one, got %+v", events)
	}
}

func TestAppendEventUnknownDispatchErrors(t *testing.T) {
	taskDir := filepath.Join(t.TempDir(), "my-task")
	s := New()
	err := s.AppendEvent(taskDir, "missing", model.Event{ID: "e1"})
	if err == nil {
		t.Fatalf("expected error appending to a nonexistent dispatch")
	}
}

func TestGetDispatchEventsMissingFileReturnsEmpty(t *testing.T) {
	taskDir := filepath.Join(t.TempDir(), "my-task")
	s := New()
	events, err := s.GetDispatchEvents(taskDir, "nope")
	if err != nil {
		t.Fatalf("GetDispatchEvents: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty sequence, got %+v", events)
	}
}

func TestUpdateDispatchNeverRegressesIndexStatus(t *testing.T) {
	taskDir := filepath.Join(t.TempDir(), "my-task")
	s := New()
	env := testEnvelope("d1")
	if err := s.CreateDispatch(taskDir, env); err != nil {
		t.Fatalf("CreateDispatch: %v", err)
	}

	now := time.Now().UTC()
	if err := s.UpdateDispatch(taskDir, "d1", func(e *model.Envelope) {
		e.Finalize(model.DispatchCompleted, now)
	}); err != nil {
		t.Fatalf("UpdateDispatch: %v", err)
	}

	// A late, stale update attempting to report "running" again must not
	// regress the manifest index entry.
	if err := s.UpdateDispatch(taskDir, "d1", func(e *model.Envelope) {
		e.Status = model.DispatchRunning
	}); err != nil {
		t.Fatalf("UpdateDispatch: %v", err)
	}

	task, err := s.ReadManifest(taskDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if task.Dispatches[0].Status != string(model.DispatchCompleted) {
		t.Fatalf("expected index entry to stay completed, got %s", task.Dispatches[0].Status)
	}
}

func TestGetDispatchEnvelopesSkipsMissingFiles(t *testing.T) {
	taskDir := filepath.Join(t.TempDir(), "my-task")
	s := New()
	if err := s.CreateDispatch(taskDir, testEnvelope("d1")); err != nil {
		t.Fatalf("CreateDispatch d1: %v", err)
	}
	if err := s.CreateDispatch(taskDir, testEnvelope("d2")); err != nil {
		t.Fatalf("CreateDispatch d2: %v", err)
	}

	// Simulate a missing dispatch file by adding a phantom third entry
	// ("ghost") to the manifest with no file behind it;
	// GetDispatchEnvelopes must skip it rather than failing the whole read.
	task, err := s.ReadManifest(taskDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	task.Dispatches = append(task.Dispatches, model.DispatchIndexEntry{DispatchID: "ghost", Status: "running"})
	if err := s.WriteManifest(taskDir, task); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	envelopes, err := s.GetDispatchEnvelopes(taskDir)
	if err != nil {
		t.Fatalf("GetDispatchEnvelopes: %v", err)
	}
	if len(envelopes) != 2 {
		t.Fatalf("expected 2 envelopes (ghost skipped), got %d", len(envelopes))
	}
}

func TestGetRecentEventsTrims(t *testing.T) {
	taskDir := filepath.Join(t.TempDir(), "my-task")
	s := New()
	if err := s.CreateDispatch(taskDir, testEnvelope("d1")); err != nil {
		t.Fatalf("CreateDispatch: %v", err)
	}
	for i := 0; i < 5; i++ {
		ev := model.Event{ID: string(rune('a' + i)), Type: model.EventAgentText, Timestamp: time.Now().UTC()}
		if err := s.AppendEvent(taskDir, "d1", ev); err != nil {
			t.Fatalf("AppendEvent %d: %v", i, err)
		}
	}

	recent, err := s.GetRecentEvents(taskDir, "d1", 2)
	if err != nil {
		t.Fatalf("GetRecentEvents: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent events, got %d", len(recent))
	}
	if recent[1].ID != "e" {
		t.Fatalf("expected last recent event to be the last appended, got %+v", recent)
	}
}

package pool

import (
	"testing"
	"time"

	"github.com/collabotd/collabot/internal/model"
)

func TestTrackerAwaitBlocksUntilSettle(t *testing.T) {
	tr := NewTracker()
	tr.Track("d1", "worker")

	done := make(chan DispatchResult, 1)
	go func() {
		r, err := tr.Await("d1")
		if err != nil {
			t.Errorf("Await: %v", err)
		}
		done <- r
	}()

	select {
	case <-done:
		t.Fatalf("Await returned before Settle was called")
	case <-time.After(30 * time.Millisecond):
	}

	env := model.Envelope{DispatchID: "d1", Status: model.DispatchCompleted}
	tr.Settle("d1", env, nil)

	select {
	case r := <-done:
		if r.Envelope.DispatchID != "d1" {
			t.Fatalf("unexpected envelope: %+v", r.Envelope)
		}
	case <-time.After(time.Second):
		t.Fatalf("Await never returned after Settle")
	}
}

func TestTrackerAwaitUnknownID(t *testing.T) {
	tr := NewTracker()
	if _, err := tr.Await("missing"); err == nil {
		t.Fatalf("expected error for unknown dispatch id")
	}
}

func TestTrackerHasAndPrune(t *testing.T) {
	tr := NewTracker()
	tr.Track("d1", "worker")
	if !tr.Has("d1") {
		t.Fatalf("expected Has(d1) true")
	}
	tr.Prune("d1")
	if tr.Has("d1") {
		t.Fatalf("expected Has(d1) false after prune")
	}
}

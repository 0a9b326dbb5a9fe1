// Package dispatchstore persists the durable, dispatch-scoped event log
// and dispatch envelopes: one JSON
// file per dispatch under <taskDir>/dispatches/<id>.json, plus a
// lightweight per-task index at <taskDir>/task.json.
//
// Grounded on internal/persistence/store.go's JSONStore (in-memory state
// guarded by sync.RWMutex, atomic-rename save) and internal/tasks/
// store.go's per-entity CRUD naming from the teacher repo.
package dispatchstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/collabotd/collabot/internal/model"
)

// DispatchFile is the on-disk unit: the envelope plus the full event
// sequence, self-contained and independently readable.
type DispatchFile struct {
	model.Envelope
	Events []model.Event `json:"events"`
}

// Store implements the durable read/write operations over a task's
// dispatch files. Each dispatch file
// has effectively one writer (the owning dispatch loop); the per-id
// lock below serializes writers of the same dispatch file (updates and
// event appends), and the per-task lock serializes manifest index
// updates. Reads take no lock.
type Store struct {
	taskMu     sync.Map // taskDir -> *sync.Mutex
	dispatchMu sync.Map // taskDir+"/"+id -> *sync.Mutex
}

// New creates a Store.
func New() *Store {
	return &Store{}
}

func (s *Store) lockFor(m *sync.Map, key string) *sync.Mutex {
	v, _ := m.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *Store) dispatchPath(taskDir, id string) string {
	return filepath.Join(taskDir, "dispatches", id+".json")
}

func (s *Store) manifestPath(taskDir string) string {
	return filepath.Join(taskDir, "task.json")
}

// writeJSONAtomic writes data as JSON to path via a temp-file-then-
// rename, so readers never observe a partially written file.
func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file for %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		// A corrupt dispatch file must not fail the read API — return
		// as "not found" so callers fall back to an empty sequence.
		return false, nil
	}
	return true, nil
}

// CreateDispatch writes a new dispatch file and appends an index entry
// to the task manifest. Concurrent creates to the same task serialize
// on the task's manifest lock.
func (s *Store) CreateDispatch(taskDir string, envelope model.Envelope) error {
	df := DispatchFile{Envelope: envelope, Events: []model.Event{}}
	if err := writeJSONAtomic(s.dispatchPath(taskDir, envelope.DispatchID), &df); err != nil {
		return err
	}
	return s.updateManifestIndex(taskDir, envelope.IndexEntry())
}

// UpdateDispatch applies patch to the envelope portion of the dispatch
// file identified by id, then refreshes the matching index entry.
func (s *Store) UpdateDispatch(taskDir, id string, patch func(*model.Envelope)) error {
	lock := s.lockFor(&s.dispatchMu, taskDir+"/"+id)
	lock.Lock()
	defer lock.Unlock()

	path := s.dispatchPath(taskDir, id)
	var df DispatchFile
	found, err := readJSON(path, &df)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("dispatch not found: %s", id)
	}

	patch(&df.Envelope)

	if err := writeJSONAtomic(path, &df); err != nil {
		return err
	}
	return s.updateManifestIndex(taskDir, df.Envelope.IndexEntry())
}

// AppendEvent reads the dispatch file, appends event, and writes it
// back. Events must be monotonic in timestamp within a single writer;
// callers are expected to supply already-ordered timestamps.
func (s *Store) AppendEvent(taskDir, id string, event model.Event) error {
	lock := s.lockFor(&s.dispatchMu, taskDir+"/"+id)
	lock.Lock()
	defer lock.Unlock()

	path := s.dispatchPath(taskDir, id)
	var df DispatchFile
	found, err := readJSON(path, &df)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("dispatch not found: %s", id)
	}

	df.Events = append(df.Events, event)
	return writeJSONAtomic(path, &df)
}

// GetDispatchEnvelopes returns all envelopes for the task, derived from
// reading every dispatch file listed in the manifest index.
func (s *Store) GetDispatchEnvelopes(taskDir string) ([]model.Envelope, error) {
	task, err := s.readManifest(taskDir)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	envelopes := make([]model.Envelope, 0, len(task.Dispatches))
	for _, idx := range task.Dispatches {
		var df DispatchFile
		found, err := readJSON(s.dispatchPath(taskDir, idx.DispatchID), &df)
		if err != nil {
			return nil, err
		}
		if !found {
			continue // missing/corrupt dispatch file: skip, don't fail the read
		}
		envelopes = append(envelopes, df.Envelope)
	}
	return envelopes, nil
}

// GetDispatchEnvelope returns the single envelope for id.
func (s *Store) GetDispatchEnvelope(taskDir, id string) (model.Envelope, bool, error) {
	var df DispatchFile
	found, err := readJSON(s.dispatchPath(taskDir, id), &df)
	if err != nil {
		return model.Envelope{}, false, err
	}
	return df.Envelope, found, nil
}

// GetDispatchEvents returns the full event sequence for id. Missing or
// corrupt dispatch files return an empty sequence, never an error.
func (s *Store) GetDispatchEvents(taskDir, id string) ([]model.Event, error) {
	var df DispatchFile
	found, err := readJSON(s.dispatchPath(taskDir, id), &df)
	if err != nil {
		return nil, err
	}
	if !found {
		return []model.Event{}, nil
	}
	return df.Events, nil
}

// GetRecentEvents returns the last n events by arrival order.
func (s *Store) GetRecentEvents(taskDir, id string, n int) ([]model.Event, error) {
	events, err := s.GetDispatchEvents(taskDir, id)
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(events) {
		return events, nil
	}
	return events[len(events)-n:], nil
}

// readManifest loads task.json, returning (nil, nil) if it doesn't
// exist yet.
func (s *Store) readManifest(taskDir string) (*model.Task, error) {
	var task model.Task
	found, err := readJSON(s.manifestPath(taskDir), &task)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &task, nil
}

// updateManifestIndex upserts entry into task.json under the task's
// lock, creating the manifest if absent.
func (s *Store) updateManifestIndex(taskDir string, entry model.DispatchIndexEntry) error {
	lock := s.lockFor(&s.taskMu, taskDir)
	lock.Lock()
	defer lock.Unlock()

	task, err := s.readManifest(taskDir)
	if err != nil {
		return err
	}
	if task == nil {
		task = &model.Task{Slug: filepath.Base(taskDir), Status: model.TaskOpen}
	}
	task.UpsertIndexEntry(entry)
	return writeJSONAtomic(s.manifestPath(taskDir), task)
}

// WriteManifest creates or overwrites the task manifest wholesale (used
// when a task is first created).
func (s *Store) WriteManifest(taskDir string, task *model.Task) error {
	lock := s.lockFor(&s.taskMu, taskDir)
	lock.Lock()
	defer lock.Unlock()
	return writeJSONAtomic(s.manifestPath(taskDir), task)
}

// ReadManifest exposes the task manifest for callers (e.g. list_tasks).
func (s *Store) ReadManifest(taskDir string) (*model.Task, error) {
	return s.readManifest(taskDir)
}

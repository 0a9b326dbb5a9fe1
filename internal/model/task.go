package model

import (
	"fmt"
	"time"
)

// TaskStatus is the state of a task.
type TaskStatus string

const (
	TaskOpen   TaskStatus = "open"
	TaskClosed TaskStatus = "closed"
)

// DispatchIndexEntry is the lightweight per-dispatch cache the task
// manifest carries, derived from the dispatch file.
type DispatchIndexEntry struct {
	DispatchID       string     `json:"dispatchId"`
	Role             string     `json:"role"`
	Status           string     `json:"status"`
	Cost             *float64   `json:"cost,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	ParentDispatchID string     `json:"parentDispatchId,omitempty"`
}

// Task is a unit of work scoped to exactly one project, identified by a
// slug unique within that project.
type Task struct {
	Slug        string               `json:"slug"`
	Project     string               `json:"project"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      TaskStatus           `json:"status"`
	Created     time.Time            `json:"created"`
	Dispatches  []DispatchIndexEntry `json:"dispatches"`
}

// NewTask creates an open task. Tasks are created on first use within a
// project and never moved across projects.
func NewTask(project, slug, name, description string) *Task {
	return &Task{
		Slug:        slug,
		Project:     project,
		Name:        name,
		Description: description,
		Status:      TaskOpen,
		Created:     time.Now().UTC(),
		Dispatches:  []DispatchIndexEntry{},
	}
}

// UpsertIndexEntry inserts or replaces the index entry for dispatchID.
// Index entries never regress in status: once an entry is observed as a
// terminal status it cannot be overwritten back to "running" by a
// stale update.
func (t *Task) UpsertIndexEntry(entry DispatchIndexEntry) {
	for i := range t.Dispatches {
		if t.Dispatches[i].DispatchID == entry.DispatchID {
			if isTerminalStatus(t.Dispatches[i].Status) && entry.Status == "running" {
				return
			}
			t.Dispatches[i] = entry
			return
		}
	}
	t.Dispatches = append(t.Dispatches, entry)
}

func isTerminalStatus(s string) bool {
	switch s {
	case "completed", "aborted", "crashed":
		return true
	default:
		return false
	}
}

// Validate reports whether the task is well formed.
func (t *Task) Validate() error {
	if t.Slug == "" {
		return fmt.Errorf("task slug is required")
	}
	if t.Project == "" {
		return fmt.Errorf("task project is required")
	}
	return nil
}

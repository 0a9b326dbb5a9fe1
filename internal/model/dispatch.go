package model

import "time"

// DispatchStatus is the terminal (or running) state of a dispatch.
type DispatchStatus string

const (
	DispatchRunning   DispatchStatus = "running"
	DispatchCompleted DispatchStatus = "completed"
	DispatchAborted   DispatchStatus = "aborted"
	DispatchCrashed   DispatchStatus = "crashed"
)

// Usage records token accounting for a single dispatch.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	CacheTokens  int `json:"cacheTokens"`
	ContextWindow int `json:"contextWindow"`
	MaxOutput    int `json:"maxOutput"`
}

// AgentResultStatus is the self-reported outcome of a structured agent
// result.
type AgentResultStatus string

const (
	ResultSuccess AgentResultStatus = "success"
	ResultPartial AgentResultStatus = "partial"
	ResultFailed  AgentResultStatus = "failed"
	ResultBlocked AgentResultStatus = "blocked"
)

// AgentResult is the structured result schema an agent emits as its
// terminal message, validated by the dispatch runtime.
type AgentResult struct {
	Status    AgentResultStatus `json:"status"`
	Summary   string            `json:"summary"`
	Changes   []string          `json:"changes,omitempty"`
	Issues    []string          `json:"issues,omitempty"`
	Questions []string          `json:"questions,omitempty"`
	PRUrl     string            `json:"pr_url,omitempty"`
}

// Envelope is the metadata record for one invocation of the agent.
type Envelope struct {
	DispatchID       string         `json:"dispatchId"`
	TaskSlug         string         `json:"taskSlug"`
	Role             string         `json:"role"`
	Model            string         `json:"model"`
	WorkingDir       string         `json:"workingDir"`
	StartedAt        time.Time      `json:"startedAt"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
	Status           DispatchStatus `json:"status"`
	Cost             *float64       `json:"cost,omitempty"`
	Usage            *Usage         `json:"usage,omitempty"`
	Result           *AgentResult   `json:"result,omitempty"`
	RawResult        string         `json:"rawResult,omitempty"`
	ParentDispatchID string         `json:"parentDispatchId,omitempty"`
	BotID            string         `json:"botId,omitempty"`
	FailureReason    string         `json:"failureReason,omitempty"`
}

// IsTerminal reports whether the envelope has reached a terminal status.
func (e *Envelope) IsTerminal() bool {
	return e.Status != DispatchRunning
}

// Finalize transitions the envelope to a terminal status, setting
// CompletedAt atomically with Status.
func (e *Envelope) Finalize(status DispatchStatus, now time.Time) {
	e.Status = status
	t := now
	e.CompletedAt = &t
}

// IndexEntry projects the envelope down to the task manifest's cache
// entry shape.
func (e *Envelope) IndexEntry() DispatchIndexEntry {
	return DispatchIndexEntry{
		DispatchID:       e.DispatchID,
		Role:             e.Role,
		Status:           string(e.Status),
		Cost:             e.Cost,
		StartedAt:        e.StartedAt,
		ParentDispatchID: e.ParentDispatchID,
	}
}

package runner

import (
	"testing"
	"time"

	"github.com/collabotd/collabot/internal/model"
)

func TestClassifyAssistantTextAndToolUse(t *testing.T) {
	msg := wireMessage{
		Type: "assistant",
		Message: &wireEnvelope{
			Role: "assistant",
			Content: []wireContentBlock{
				{Type: "text", Text: "Looking at the file now."},
				{Type: "tool_use", ID: "tc-1", Name: "Bash", Input: map[string]interface{}{"command": "go test ./..."}},
			},
		},
	}

	events := classify(msg, time.Now())
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != model.EventAgentText {
		t.Fatalf("expected first event agent:text, got %s", events[0].Type)
	}
	toolCall, ok := events[1].Data.(model.ToolCallData)
	if !ok {
		t.Fatalf("expected ToolCallData, got %T", events[1].Data)
	}
	if toolCall.CorrelationID != "tc-1" || toolCall.Tool != "Bash" || toolCall.Target != "go test ./..." {
		t.Fatalf("unexpected tool call data: %+v", toolCall)
	}
}

func TestClassifyTextTruncation(t *testing.T) {
	long := make([]byte, textTruncateLimit+500)
	for i := range long {
		long[i] = 'a'
	}
	msg := wireMessage{
		Type: "assistant",
		Message: &wireEnvelope{
			Content: []wireContentBlock{{Type: "text", Text: string(long)}},
		},
	}
	events := classify(msg, time.Now())
	text, _ := events[0].Data.(string)
	if len(text) != textTruncateLimit {
		t.Fatalf("expected truncated text of length %d, got %d", textTruncateLimit, len(text))
	}
}

func TestClassifyUserToolResultError(t *testing.T) {
	msg := wireMessage{
		Type: "user",
		Message: &wireEnvelope{
			Content: []wireContentBlock{
				{Type: "tool_result", ToolUseID: "tc-1", IsError: true, Content: "permission denied\n\n  extra   spaces"},
			},
		},
	}
	events := classify(msg, time.Now())
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	toolResult, ok := events[0].Data.(model.ToolResultData)
	if !ok {
		t.Fatalf("expected ToolResultData, got %T", events[0].Data)
	}
	if toolResult.Status != "error" || toolResult.CorrelationID != "tc-1" {
		t.Fatalf("unexpected tool result data: %+v", toolResult)
	}
	if toolResult.ErrorSnippet != "permission denied extra spaces" {
		t.Fatalf("expected normalized whitespace, got %q", toolResult.ErrorSnippet)
	}
}

func TestClassifySystemSubtypes(t *testing.T) {
	cases := []struct {
		subtype string
		want    model.EventType
	}{
		{"init", model.EventSessionInit},
		{"compact_boundary", model.EventSessionCompaction},
		{"rate_limit", model.EventSessionRateLimit},
		{"files_persisted", model.EventSystemFilesPersisted},
		{"hook", model.EventSystemHook},
		{"status", model.EventSystemStatus},
	}
	for _, tc := range cases {
		events := classify(wireMessage{Type: "system", Subtype: tc.subtype}, time.Now())
		if len(events) != 1 || events[0].Type != tc.want {
			t.Fatalf("subtype %s: expected %s, got %+v", tc.subtype, tc.want, events)
		}
	}
}

func TestClassifyResultProducesSessionComplete(t *testing.T) {
	events := classify(wireMessage{Type: "result", Result: "{}"}, time.Now())
	if len(events) != 1 || events[0].Type != model.EventSessionComplete {
		t.Fatalf("expected session:complete, got %+v", events)
	}
}

func TestToolTargetGrep(t *testing.T) {
	target := toolTarget("Grep", map[string]interface{}{"pattern": "TODO"})
	if target != "TODO" {
		t.Fatalf("expected pattern as target, got %q", target)
	}
}

func TestToolTargetFilePath(t *testing.T) {
	target := toolTarget("Edit", map[string]interface{}{"file_path": "/tmp/x.go"})
	if target != "/tmp/x.go" {
		t.Fatalf("expected file_path as target, got %q", target)
	}
}

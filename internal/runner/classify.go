package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/collabotd/collabot/internal/model"
)

const (
	textTruncateLimit = 2000
	errorSnippetLimit = 200
)

// classify turns one decoded wire message into zero or more captured
// events. Most wire messages carry exactly one event; an assistant
// message with several content blocks can carry several.
func classify(msg wireMessage, now time.Time) []model.Event {
	switch msg.Type {
	case "assistant":
		return classifyAssistant(msg, now)
	case "user":
		return classifyUser(msg, now)
	case "system":
		return classifySystem(msg, now)
	case "result":
		return []model.Event{{
			Type:      model.EventSessionComplete,
			Timestamp: now,
		}}
	default:
		return nil
	}
}

func classifyAssistant(msg wireMessage, now time.Time) []model.Event {
	if msg.Message == nil {
		return nil
	}
	events := make([]model.Event, 0, len(msg.Message.Content))
	for _, block := range msg.Message.Content {
		switch block.Type {
		case "text":
			events = append(events, model.Event{
				Type:      model.EventAgentText,
				Timestamp: now,
				Data:      truncate(block.Text, textTruncateLimit),
			})
		case "thinking":
			events = append(events, model.Event{
				Type:      model.EventAgentThinking,
				Timestamp: now,
				Data:      truncate(block.Thinking, textTruncateLimit),
			})
		case "tool_use":
			events = append(events, model.Event{
				Type:      model.EventAgentToolCall,
				Timestamp: now,
				Data: model.ToolCallData{
					CorrelationID: block.ID,
					Tool:          block.Name,
					Target:        toolTarget(block.Name, block.Input),
					Metadata:      block.Input,
				},
			})
		}
	}
	return events
}

func classifyUser(msg wireMessage, now time.Time) []model.Event {
	if msg.Message == nil {
		return nil
	}
	events := make([]model.Event, 0, len(msg.Message.Content))
	for _, block := range msg.Message.Content {
		if block.Type != "tool_result" {
			continue
		}
		status := "completed"
		var snippet string
		if block.IsError {
			status = "error"
			snippet = truncate(normalizeWhitespace(resultText(block.Content)), errorSnippetLimit)
		}
		events = append(events, model.Event{
			Type:      model.EventAgentToolResult,
			Timestamp: now,
			Data: model.ToolResultData{
				CorrelationID: block.ToolUseID,
				Status:        status,
				ErrorSnippet:  snippet,
			},
		})
	}
	return events
}

func classifySystem(msg wireMessage, now time.Time) []model.Event {
	switch msg.Subtype {
	case "init":
		return []model.Event{{Type: model.EventSessionInit, Timestamp: now, Data: msg.SessionID}}
	case "compact_boundary":
		return []model.Event{{Type: model.EventSessionCompaction, Timestamp: now}}
	case "rate_limit":
		return []model.Event{{Type: model.EventSessionRateLimit, Timestamp: now, Data: msg.Detail}}
	case "files_persisted":
		return []model.Event{{Type: model.EventSystemFilesPersisted, Timestamp: now, Data: msg.Detail}}
	case "hook":
		return []model.Event{{Type: model.EventSystemHook, Timestamp: now, Data: msg.Detail}}
	case "status":
		return []model.Event{{Type: model.EventSystemStatus, Timestamp: now, Data: msg.Detail}}
	default:
		return nil
	}
}

// toolTarget best-effort extracts a human-meaningful target from a
// tool's input: a file path for read/edit/write tools, the command
// string for shell tools, the pattern for search tools.
func toolTarget(tool string, input map[string]interface{}) string {
	if input == nil {
		return ""
	}
	switch strings.ToLower(tool) {
	case "bash", "shell":
		if v, ok := input["command"].(string); ok {
			return v
		}
	case "grep", "search":
		if v, ok := input["pattern"].(string); ok {
			return v
		}
	default:
		for _, key := range []string{"file_path", "path", "target"} {
			if v, ok := input[key].(string); ok {
				return v
			}
		}
	}
	return ""
}

func resultText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var b strings.Builder
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				if text, ok := m["text"].(string); ok {
					b.WriteString(text)
				}
			}
		}
		return b.String()
	default:
		return fmt.Sprintf("%v", content)
	}
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

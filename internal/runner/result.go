package runner

import (
	"encoding/json"

	"github.com/collabotd/collabot/internal/model"
)

// ParseStructuredResult attempts to decode raw against the structured
// agent-result schema. On failure, ok is false and the
// caller is expected to fall back to the raw text untouched — the
// same tolerant-parse idiom internal/supervisor/parser.go uses for
// reconnaissance reports, simplified here because the agent result
// schema is a single flat JSON shape rather than a multi-format
// document.
func ParseStructuredResult(raw string) (result model.AgentResult, ok bool) {
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return model.AgentResult{}, false
	}
	if result.Status == "" {
		return model.AgentResult{}, false
	}
	return result, true
}

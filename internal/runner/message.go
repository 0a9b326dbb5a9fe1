package runner

// wireMessage is one line of the agent's newline-delimited JSON event
// stream. The shape mirrors the four top-level message kinds the agent
// subprocess emits: assistant, user (tool results), system, and the
// terminal result.
type wireMessage struct {
	Type      string        `json:"type"`
	Subtype   string        `json:"subtype,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Message   *wireEnvelope `json:"message,omitempty"`

	// Present on subtype "status" / "hook" / "files_persisted" system
	// messages.
	Detail string `json:"detail,omitempty"`

	// Present on the terminal "result" message.
	Result       string      `json:"result,omitempty"`
	IsError      bool        `json:"is_error,omitempty"`
	TotalCostUSD *float64    `json:"total_cost_usd,omitempty"`
	Usage        *wireUsage  `json:"usage,omitempty"`
	DurationMs   int64       `json:"duration_ms,omitempty"`
}

type wireEnvelope struct {
	Role    string            `json:"role"`
	Content []wireContentBlock `json:"content"`
}

type wireContentBlock struct {
	Type string `json:"type"` // "text" | "thinking" | "tool_use" | "tool_result"

	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	// tool_use
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result
	ToolUseID string      `json:"tool_use_id,omitempty"`
	Content   interface{} `json:"content,omitempty"`
	IsError   bool        `json:"is_error,omitempty"`
}

type wireUsage struct {
	InputTokens       int `json:"input_tokens"`
	OutputTokens      int `json:"output_tokens"`
	CacheReadTokens   int `json:"cache_read_input_tokens"`
	ContextWindow     int `json:"context_window,omitempty"`
	MaxOutputTokens   int `json:"max_output_tokens,omitempty"`
}

// Package runner launches the agent subprocess and decodes its
// newline-delimited JSON event stream into captured events.
//
// Grounded on internal/captain/captain.go's executeSubagent
// (exec.CommandContext, --print/--model flag construction, prompt
// delivery); generalized from CombinedOutput (batch capture) to
// StdoutPipe + bufio.Scanner because the dispatch runtime must
// classify and react to each message as it arrives, not after the
// process exits.
package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/collabotd/collabot/internal/model"
)

// Spec describes one agent invocation.
type Spec struct {
	Binary       string // defaults to "claude"
	Prompt       string
	WorkingDir   string
	Model        string
	MaxTurns     int
	MaxBudgetUSD float64
	ResumeSessionID string // set for a draft session's follow-up turns
	MCPConfigPath   string // path to a generated --mcp-config file, empty disables tool access
}

// Result is what a completed (or aborted mid-stream) run produces.
type Result struct {
	RawResult string
	Cost      *float64
	Usage     *model.Usage
	SessionID string
}

// Runner spawns the agent subprocess.
type Runner struct{}

// New creates a Runner.
func New() *Runner {
	return &Runner{}
}

// Stream runs the agent to completion or until ctx is cancelled,
// invoking onEvent for every classified message as it arrives. The
// final wire message (type "result") is not passed to onEvent;
// instead its fields populate the returned Result so dispatch.go can
// drive finalization explicitly (session:complete is still emitted to
// onEvent as part of the classified event taxonomy).
func (r *Runner) Stream(ctx context.Context, spec Spec, onEvent func(model.Event)) (Result, error) {
	binary := spec.Binary
	if binary == "" {
		binary = "claude"
	}

	args := []string{"--print", "--output-format", "stream-json", "--verbose"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(spec.MaxTurns))
	}
	if spec.ResumeSessionID != "" {
		args = append(args, "--resume", spec.ResumeSessionID)
	}
	if spec.MCPConfigPath != "" {
		args = append(args, "--mcp-config", spec.MCPConfigPath, "--strict-mcp-config")
	}
	args = append(args, spec.Prompt)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = spec.WorkingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("attach stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start agent process: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var result Result
	var sawResult bool

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg wireMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			// Malformed line from the agent: not our error to surface,
			// skip and keep reading.
			continue
		}

		now := time.Now().UTC()

		if msg.Type == "result" {
			sawResult = true
			result = Result{
				RawResult: msg.Result,
				Cost:      msg.TotalCostUSD,
				SessionID: msg.SessionID,
			}
			if msg.Usage != nil {
				result.Usage = &model.Usage{
					InputTokens:   msg.Usage.InputTokens,
					OutputTokens:  msg.Usage.OutputTokens,
					CacheTokens:   msg.Usage.CacheReadTokens,
					ContextWindow: msg.Usage.ContextWindow,
					MaxOutput:     msg.Usage.MaxOutputTokens,
				}
			}
		}

		for _, ev := range classify(msg, now) {
			onEvent(ev)
		}
	}

	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		// Caller cancelled; this is not a crash, the dispatch runtime
		// finalizes as aborted.
		return result, ctx.Err()
	}

	if scanErr != nil {
		return result, fmt.Errorf("read agent stream: %w", scanErr)
	}

	if !sawResult {
		// Stream ended without a terminal result message: the process
		// crashed or exited early with no structured outcome.
		if waitErr != nil {
			return result, fmt.Errorf("agent process exited without a result: %w", waitErr)
		}
		return result, fmt.Errorf("agent process exited without a result")
	}

	// A stream can legitimately end with both a parsed result and a
	// trailing process error (e.g. a nonzero exit after already
	// printing its terminal message). Honor the parsed result and only
	// log the process error upstream; do not treat it as a crash.
	if waitErr != nil {
		return result, &nonFatalExitError{err: waitErr}
	}

	return result, nil
}

// nonFatalExitError signals that the process exited non-zero after
// already emitting a terminal result message. Callers should log it
// and otherwise treat the run as completed.
type nonFatalExitError struct{ err error }

func (e *nonFatalExitError) Error() string { return e.err.Error() }
func (e *nonFatalExitError) Unwrap() error { return e.err }

// IsNonFatal reports whether err is a trailing-exit error that should
// not override an already-parsed structured result.
func IsNonFatal(err error) bool {
	_, ok := err.(*nonFatalExitError)
	return ok
}

// Package contextbuilder produces the markdown prior-work narrative a
// follow-up dispatch sees when it resumes work on a task.
//
// Grounded on internal/captain/captain.go's buildSubagentPrompt, which
// assembles a multi-section prompt with a strings.Builder; generalized
// here from a single fixed prompt shape to a variable-length narrative
// over however many prior dispatches a task has accumulated.
package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/collabotd/collabot/internal/model"
)

// Build reads envelopes in chronological order (callers are expected
// to pass them already sorted by StartedAt) and emits the task's
// original request followed by one section per envelope carrying a
// structured result. Envelopes without a result are skipped.
func Build(task *model.Task, envelopes []model.Envelope) string {
	var b strings.Builder

	b.WriteString("# Prior work on this task\n\n")
	fmt.Fprintf(&b, "**Task:** %s\n\n", task.Name)
	if task.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", task.Description)
	}

	any := false
	for _, env := range envelopes {
		if env.Result == nil {
			continue
		}
		any = true
		writeSection(&b, env)
	}

	if !any {
		b.WriteString("_No prior dispatch produced a structured result yet._\n")
	}

	return b.String()
}

func writeSection(b *strings.Builder, env model.Envelope) {
	fmt.Fprintf(b, "## %s (%s)\n\n", env.Role, env.Result.Status)
	if env.Result.Summary != "" {
		fmt.Fprintf(b, "%s\n\n", env.Result.Summary)
	}
	writeBulletList(b, "Changes", env.Result.Changes)
	writeBulletList(b, "Issues", env.Result.Issues)
	writeBulletList(b, "Questions", env.Result.Questions)
	if env.Result.PRUrl != "" {
		fmt.Fprintf(b, "PR: %s\n\n", env.Result.PRUrl)
	}
}

func writeBulletList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

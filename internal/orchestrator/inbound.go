package orchestrator

import (
	"fmt"
	"strings"

	"github.com/collabotd/collabot/internal/model"
)

// HandleTask implements providers.InboundHandler: a chat-style provider
// delivers operator text here, keyed by the channel it arrived on.
// Channel encodes "<project>/<taskSlug>" the same way Draft constructs
// a draft session's channel id, so a reply on the channel a draft
// opened routes straight back into that session via SubmitPrompt's own
// active-draft matching; a message on a channel naming another task
// starts a fresh one-shot dispatch instead. An empty channel carries no
// task slug, so it joins an active draft on the resolved project when
// there is one.
func (c *Core) HandleTask(msg model.ChannelMessage) model.InboundResult {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return model.InboundResult{Status: "ignored", Summary: "empty message"}
	}

	project, taskSlug := splitChannel(msg.Channel)
	dispatchID, resolvedSlug, err := c.SubmitPrompt(text, "", taskSlug, project)
	if err != nil {
		return model.InboundResult{Status: "error", Summary: err.Error()}
	}
	return model.InboundResult{
		Status:  "accepted",
		Summary: fmt.Sprintf("dispatch %s started for task %s", dispatchID, resolvedSlug),
	}
}

// splitChannel parses a "<project>/<taskSlug>" channel id. A channel
// with no slash, or an empty channel, leaves project blank so
// resolveProject falls back to the sole configured project.
func splitChannel(channel string) (project, taskSlug string) {
	if channel == "" {
		return "", ""
	}
	i := strings.IndexByte(channel, '/')
	if i < 0 {
		return "", channel
	}
	return channel[:i], channel[i+1:]
}

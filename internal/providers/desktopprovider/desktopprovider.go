// Package desktopprovider implements a communication provider that
// surfaces lifecycle messages as an OS toast notification plus a
// terminal-title flash — for an operator sitting at the machine
// running the daemon, not a remote transport.
//
// Grounded on internal/notifications/toast.go (go-toast/toast,
// Windows-gated Push) and internal/notifications/terminal.go (ANSI OSC
// title-change sequence, isTerminal() character-device check).
package desktopprovider

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/go-toast/toast"

	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/providers"
)

// Provider implements providers.Provider over toast notifications and
// terminal title changes. Stateless otherwise — it has no lifecycle
// dependency on an external connection, so Start is a no-op, Stop only
// restores the terminal title, and Ready always reports true.
type Provider struct {
	mu            sync.Mutex
	appID         string
	originalTitle string
	handler       providers.InboundHandler
}

// New creates a desktop provider. appID labels toast notifications.
func New(appID string) *Provider {
	if appID == "" {
		appID = "collabotd"
	}
	return &Provider{appID: appID, originalTitle: appID}
}

func (p *Provider) Name() string { return "desktop" }

func (p *Provider) Manifest() model.ProviderManifest {
	return model.ProviderManifest{
		ID:          "desktop",
		Version:     "1.0.0",
		DisplayName: "Desktop Notifications",
		Description: "OS toast notifications and terminal title flashes",
		Type:        "terminal",
	}
}

// AcceptedTypes is nil: the desktop provider surfaces every broadcast
// type it can render something for.
func (p *Provider) AcceptedTypes() []string { return nil }

func (p *Provider) Start() error { return nil }
func (p *Provider) Stop() error {
	return p.restoreTitle()
}
func (p *Provider) Ready() bool { return true }

func (p *Provider) Send(msg model.ChannelMessage) error {
	switch msg.Type {
	case "warning":
		return p.notify("Collabot warning", msg.Text)
	case "result":
		return p.notify("Dispatch finished", msg.Text)
	case "context_compacted":
		return p.flashTitle(fmt.Sprintf("collabotd - %s: context compacted", msg.Channel))
	case "draft_status", "pool_status":
		// Structured accounting payloads, not meant for a toast or the
		// terminal title; the socket/nats providers carry these.
		return nil
	default:
		return p.flashTitle(fmt.Sprintf("collabotd - %s", msg.Text))
	}
}

func (p *Provider) SetStatus(channel, status string) error {
	return p.flashTitle(fmt.Sprintf("collabotd - %s: %s", channel, status))
}

func (p *Provider) OnInbound(handler providers.InboundHandler) {
	p.handler = handler
}

func (p *Provider) notify(title, message string) error {
	if runtime.GOOS != "windows" {
		// Toast notifications are Windows-only; fall back to the
		// terminal title flash on every other platform.
		return p.flashTitle(fmt.Sprintf("%s: %s", title, message))
	}
	notification := toast.Notification{
		AppID:   p.appID,
		Title:   title,
		Message: message,
		Audio:   toast.Default,
	}
	return notification.Push()
}

func (p *Provider) flashTitle(title string) error {
	if !isTerminal() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(os.Stdout, "\033]0;%s\007", title)
	return nil
}

func (p *Provider) restoreTitle() error {
	return p.flashTitle(p.originalTitle)
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

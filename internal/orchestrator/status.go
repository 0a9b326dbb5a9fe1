package orchestrator

import "github.com/collabotd/collabot/internal/model"

// ActiveDispatches implements httpapi.StatusProvider.
func (c *Core) ActiveDispatches() []model.ActiveAgent {
	return c.Pool.List()
}

// ActiveDraftTaskSlug implements httpapi.StatusProvider.
func (c *Core) ActiveDraftTaskSlug() (string, bool) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	if c.active == nil {
		return "", false
	}
	return c.active.taskSlug, true
}

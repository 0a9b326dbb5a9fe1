package model

// RoleCategory determines the stall-timer timeout and whether per-turn
// budget caps apply.
type RoleCategory string

const (
	CategoryCoding        RoleCategory = "coding"
	CategoryConversational RoleCategory = "conversational"
	CategoryResearch      RoleCategory = "research"
)

// Permission names gating the RPC tool surface.
const (
	PermissionDraftAgent = "draft_agent"
)

// Role is a reusable behavioral profile supplying a system-prompt body,
// a model-hint alias, and a permission set.
type Role struct {
	Name         string       `yaml:"name" json:"name"`
	Category     RoleCategory `yaml:"category" json:"category"`
	SystemPrompt string       `yaml:"systemPrompt" json:"systemPrompt"`
	ModelHint    string       `yaml:"modelHint" json:"modelHint"`
	Permissions  []string     `yaml:"permissions" json:"permissions"`
}

// HasPermission reports whether the role grants name.
func (r *Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// CanDraftAgents reports whether the role may use the full RPC tool set.
func (r *Role) CanDraftAgents() bool {
	return r.HasPermission(PermissionDraftAgent)
}

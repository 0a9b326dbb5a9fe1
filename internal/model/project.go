// Package model holds the shared data types for collabot: projects,
// tasks, dispatch envelopes, captured events, and draft sessions.
package model

// Project is a persistent container identified by a unique name, owning
// one or more filesystem paths that agents may operate in and a set of
// role names permitted on the project.
type Project struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Paths       []string `yaml:"paths" json:"paths"`
	Roles       []string `yaml:"roles" json:"roles"`
}

// HasRole reports whether roleName is permitted on the project.
func (p *Project) HasRole(roleName string) bool {
	for _, r := range p.Roles {
		if r == roleName {
			return true
		}
	}
	return false
}

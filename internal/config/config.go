// Package config loads the roles.yaml and projects.yaml files that
// configure collabot's daemon. Parsing is deliberately mechanical: no
// validation beyond what's needed to fail fast on an unusable file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/collabotd/collabot/internal/model"
)

// RolesFile is the root document of configs/roles.yaml.
type RolesFile struct {
	Roles []model.Role `yaml:"roles"`
}

// ProjectsFile is the root document of configs/projects.yaml.
type ProjectsFile struct {
	Projects []model.Project `yaml:"projects"`
}

// LoadRoles reads and parses a roles.yaml file.
func LoadRoles(path string) (*RolesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}

	var rf RolesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}
	return &rf, nil
}

// LoadProjects reads and parses a projects.yaml file.
func LoadProjects(path string) (*ProjectsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read projects file: %w", err)
	}

	var pf ProjectsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse projects file: %w", err)
	}
	return &pf, nil
}

// RoleByName finds a role by name, or returns (nil, false).
func (rf *RolesFile) RoleByName(name string) (*model.Role, bool) {
	for i := range rf.Roles {
		if rf.Roles[i].Name == name {
			return &rf.Roles[i], true
		}
	}
	return nil, false
}

// ProjectByName finds a project by name, or returns (nil, false).
func (pf *ProjectsFile) ProjectByName(name string) (*model.Project, bool) {
	for i := range pf.Projects {
		if pf.Projects[i].Name == name {
			return &pf.Projects[i], true
		}
	}
	return nil, false
}

// SaveProjects writes pf back to path, for create_project's persistence
// of a newly registered project.
func SaveProjects(path string, pf *ProjectsFile) error {
	data, err := yaml.Marshal(pf)
	if err != nil {
		return fmt.Errorf("marshal projects file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write projects file: %w", err)
	}
	return nil
}

// Package orchestrator wires the dispatch runtime, draft-session
// manager, and config together into the single "core" object:
// HandleTask splits the channel into project/task and calls
// SubmitPrompt, which resumes the active draft or starts a dispatch on
// the dispatch runtime. Core implements every
// interface the transports (rpcserver, rpctools, httpapi, the provider
// registry's inbound handler) dispatch into, so cmd/collabotd's main
// only has to construct one object and hand it to each of them.
//
// Grounded on cmd/cliaimonitor/main.go's "thick main, thin package"
// wiring idiom: the orchestrator itself holds no goroutines of its own
// beyond what dispatch.Runtime already runs; it is a façade over
// already-built subsystems.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/collabotd/collabot/internal/config"
	"github.com/collabotd/collabot/internal/dispatch"
	"github.com/collabotd/collabot/internal/dispatchstore"
	"github.com/collabotd/collabot/internal/draft"
	"github.com/collabotd/collabot/internal/model"
	"github.com/collabotd/collabot/internal/pool"
)

// Core implements rpcserver.Core, httpapi.StatusProvider, and builds
// the rpctools.Callbacks wiring, on top of the dispatch runtime and
// draft manager.
type Core struct {
	Runtime *dispatch.Runtime
	Store   *dispatchstore.Store
	Pool    *pool.Pool
	Tracker *pool.Tracker
	Draft   *draft.Manager

	ProjectsPath string
	DataDir      string // root containing tasks/<project>/<slug>/

	mu       sync.Mutex
	roles    *config.RolesFile
	projects *config.ProjectsFile

	activeMu sync.Mutex
	active   *activeDraft
}

// activeDraft is the in-process state backing the one draft session
// the draft manager allows, tying its dispatch runtime handle (ctx,
// cancel, taskDir) to the persisted model.DraftSession.
type activeDraft struct {
	ctx        context.Context
	cancel     context.CancelFunc
	taskDir    string
	role       model.Role
	project    model.Project
	taskSlug   string
	dispatchID string
	startedAt  time.Time
}

// New builds a Core. rolesFile/projectsFile are the already-loaded
// config documents; projectsPath is where CreateProject persists
// updates back.
func New(runtime *dispatch.Runtime, store *dispatchstore.Store, p *pool.Pool, tracker *pool.Tracker, draftMgr *draft.Manager, rolesFile *config.RolesFile, projectsFile *config.ProjectsFile, projectsPath, dataDir string) *Core {
	return &Core{
		Runtime:      runtime,
		Store:        store,
		Pool:         p,
		Tracker:      tracker,
		Draft:        draftMgr,
		ProjectsPath: projectsPath,
		DataDir:      dataDir,
		roles:        rolesFile,
		projects:     projectsFile,
	}
}

// Recover reconstructs in-memory draft state after a restart. Call
// once at startup, after Draft.LoadActiveDraft has already populated
// the manager's active session.
func (c *Core) Recover(ctx context.Context) error {
	session, ok := c.Draft.GetActiveDraft()
	if !ok {
		return nil
	}
	project, err := c.resolveProject(session.Project)
	if err != nil {
		return fmt.Errorf("recover draft: resolve project %q: %w", session.Project, err)
	}
	role, err := c.resolveRole(project, session.Role)
	if err != nil {
		return fmt.Errorf("recover draft: resolve role %q: %w", session.Role, err)
	}

	draftCtx, cancel := context.WithCancel(ctx)
	c.activeMu.Lock()
	c.active = &activeDraft{
		ctx:        draftCtx,
		cancel:     cancel,
		taskDir:    c.taskDir(project.Name, session.TaskSlug),
		role:       role,
		project:    project,
		taskSlug:   session.TaskSlug,
		dispatchID: session.DispatchID,
		startedAt:  session.StartedAt,
	}
	c.activeMu.Unlock()

	entry := model.ActiveAgent{
		DispatchID: session.DispatchID,
		Role:       role.Name,
		TaskSlug:   session.TaskSlug,
		StartedAt:  session.StartedAt,
		Cancel:     cancel,
	}
	return c.Pool.Register(entry)
}

// resolveProject looks up name, or — when name is empty and exactly
// one project is configured — defaults to it. Ambiguous or unknown
// names fail fast.
func (c *Core) resolveProject(name string) (model.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		if len(c.projects.Projects) == 1 {
			return c.projects.Projects[0], nil
		}
		return model.Project{}, fmt.Errorf("project is required: %d projects configured", len(c.projects.Projects))
	}
	p, ok := c.projects.ProjectByName(name)
	if !ok {
		return model.Project{}, fmt.Errorf("unknown project: %s", name)
	}
	return *p, nil
}

// resolveRole looks up name within project's permitted roles, or —
// when name is empty — defaults to the project's first configured
// role.
func (c *Core) resolveRole(project model.Project, name string) (model.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		if len(project.Roles) == 0 {
			return model.Role{}, fmt.Errorf("project %s has no roles configured", project.Name)
		}
		name = project.Roles[0]
	} else if !project.HasRole(name) {
		return model.Role{}, fmt.Errorf("role %s is not permitted on project %s", name, project.Name)
	}
	r, ok := c.roles.RoleByName(name)
	if !ok {
		return model.Role{}, fmt.Errorf("unknown role: %s", name)
	}
	return *r, nil
}

// workingDir picks the project's first configured path as the
// dispatch's working directory.
func (c *Core) workingDir(project model.Project) string {
	if len(project.Paths) == 0 {
		return ""
	}
	return project.Paths[0]
}

// taskDir is collabot's own data-directory layout, distinct from
// project.Paths (the codebase an agent actually operates in): each
// task's dispatch files and manifest live under
// <dataDir>/tasks/<project>/<slug>/.
func (c *Core) taskDir(project, slug string) string {
	return filepath.Join(c.DataDir, "tasks", project, slug)
}

// ensureTask loads the task manifest if present, or creates one on
// first use — tasks are created lazily the first time a prompt targets
// a slug that doesn't exist yet, per model.Task's doc comment.
func (c *Core) ensureTask(project model.Project, slug, seedContent string) (*model.Task, string, error) {
	dir := c.taskDir(project.Name, slug)
	task, err := c.Store.ReadManifest(dir)
	if err != nil {
		return nil, "", fmt.Errorf("read task manifest: %w", err)
	}
	if task != nil {
		return task, dir, nil
	}

	name := firstLine(seedContent)
	task = model.NewTask(project.Name, slug, name, seedContent)
	if err := task.Validate(); err != nil {
		return nil, "", err
	}
	if err := c.Store.WriteManifest(dir, task); err != nil {
		return nil, "", fmt.Errorf("write task manifest: %w", err)
	}
	return task, dir, nil
}

// listTasks reads every task manifest under <dataDir>/tasks/<project>/,
// skipping a subdirectory whose task.json is missing or unreadable
// rather than failing the whole listing — list_tasks is a read-only
// inspection tool and one malformed task shouldn't hide the rest.
func (c *Core) listTasks(project string) ([]model.Task, error) {
	root := c.taskDir(project, "")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Task{}, nil
		}
		return nil, fmt.Errorf("list tasks for %s: %w", project, err)
	}

	tasks := make([]model.Task, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		task, err := c.Store.ReadManifest(filepath.Join(root, entry.Name()))
		if err != nil || task == nil {
			continue
		}
		tasks = append(tasks, *task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Slug < tasks[j].Slug })
	return tasks, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxLen = 80
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	if s == "" {
		return "Untitled task"
	}
	return s
}

// slugify derives a task slug from free-text prompt content: no
// algorithm for this is specified upstream, so this is a minimal,
// deterministic lowercase-hyphenate of the first few words, just
// distinctive enough to avoid colliding with an unrelated task under
// normal use. Collisions fall back to the same task, which is the
// correct behavior for a second prompt continuing the same work.
func slugify(s string) string {
	s = strings.ToLower(firstLine(s))
	var b strings.Builder
	lastHyphen := true
	words := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '-' || r == '_':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
				words++
			}
		}
		if words >= 6 {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return fmt.Sprintf("task-%d", time.Now().UnixNano())
	}
	return out
}

// sortProjects returns projects in a stable, display-friendly order.
func sortProjects(projects []model.Project) []model.Project {
	out := append([]model.Project(nil), projects...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

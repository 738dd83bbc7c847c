// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Scope is the working storage of one project's retrieval engine.
type Scope struct {
	ProjectID string
	Dir       string
}

// ScopeManager owns the per-project scope directories under a root
// directory. Each project gets <root>/<projectID>/.
type ScopeManager struct {
	root string

	mu     sync.Mutex
	active map[string]Scope
}

// NewScopeManager creates a manager rooted at root. Scope directories left
// by a previous process are adopted as active; Service.Prune drops the ones
// whose project no longer exists.
func NewScopeManager(root string) (*ScopeManager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating index work dir: %w", err)
	}
	m := &ScopeManager{root: root, active: make(map[string]Scope)}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading index work dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			// Leftover temporary scope from an interrupted process.
			_ = os.RemoveAll(filepath.Join(root, e.Name()))
			continue
		}
		m.active[e.Name()] = Scope{ProjectID: e.Name(), Dir: filepath.Join(root, e.Name())}
	}
	return m, nil
}

// Root returns the directory holding all scopes.
func (m *ScopeManager) Root() string {
	return m.root
}

// Acquire returns the scope for projectID, creating its directory when it
// does not exist yet. created reports whether this call created it.
func (m *ScopeManager) Acquire(projectID string) (Scope, bool, error) {
	if projectID == "" || strings.ContainsAny(projectID, `/\`) || strings.HasPrefix(projectID, ".") {
		return Scope{}, false, fmt.Errorf("invalid project id %q for scope", projectID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.active[projectID]; ok {
		return s, false, nil
	}
	dir := filepath.Join(m.root, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Scope{}, false, fmt.Errorf("creating scope %s: %w", projectID, err)
	}
	s := Scope{ProjectID: projectID, Dir: dir}
	m.active[projectID] = s
	return s, true, nil
}

// Release removes the scope directory of projectID. Releasing an unknown
// scope is a no-op.
func (m *ScopeManager) Release(projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.active[projectID]
	if !ok {
		return nil
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("removing scope %s: %w", projectID, err)
	}
	delete(m.active, projectID)
	return nil
}

// Active returns the project ids that currently hold a scope, sorted.
func (m *ScopeManager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.active))
	for id := range m.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

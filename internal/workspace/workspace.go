// SPDX-License-Identifier: MPL-2.0

// Package workspace allocates the isolated directories one recipe build
// works in. Each workspace is exclusively owned by a single build.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forgepkg/forge/internal/identity"
	"github.com/forgepkg/forge/pkg/platform"
)

type (
	// Manager creates workspaces below a root directory.
	Manager struct {
		root string
		keep bool
	}

	// Workspace is the set of directories of one recipe build.
	//
	//	{root}/{name}-{version}/{id[0:12]}/ws-*/
	//	  src/
	//	  build/{build_type}/
	//	  package/
	Workspace struct {
		Dir        string
		SourceDir  string
		BuildDir   string
		PackageDir string
	}
)

// NewManager returns a manager rooted at root. When keep is set Release
// leaves the directories in place for inspection.
func NewManager(root string, keep bool) *Manager {
	return &Manager{root: root, keep: keep}
}

// Allocate creates a fresh workspace for the named recipe build. Concurrent
// allocations for the same identity never share directories.
func (m *Manager) Allocate(name, version string, id identity.ID, buildType platform.BuildType) (*Workspace, error) {
	parent := filepath.Join(m.root, name+"-"+version, identity.Short(id))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	dir, err := os.MkdirTemp(parent, "ws-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &Workspace{
		Dir:        dir,
		SourceDir:  filepath.Join(dir, "src"),
		BuildDir:   filepath.Join(dir, "build", string(buildType)),
		PackageDir: filepath.Join(dir, "package"),
	}
	for _, d := range []string{ws.SourceDir, ws.BuildDir, ws.PackageDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}
	return ws, nil
}

// Release removes ws unless the manager keeps workspaces.
func (m *Manager) Release(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	if m.keep {
		slog.Info("keeping workspace", "path", ws.Dir)
		return nil
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", ws.Dir, err)
	}
	// Drop the per-identity and per-recipe parents once they are empty.
	parent := filepath.Dir(ws.Dir)
	for i := 0; i < 2; i++ {
		if os.Remove(parent) != nil {
			break
		}
		parent = filepath.Dir(parent)
	}
	return nil
}

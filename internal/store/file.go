// SPDX-License-Identifier: MPL-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"github.com/forgepkg/forge/internal/fsutil"
	"github.com/forgepkg/forge/internal/identity"
	"github.com/forgepkg/forge/internal/treehash"
)

const (
	manifestName = "artifact.toml"
	contentDir   = "package"
	entriesGlob  = "sha256/*/*/" + manifestName
)

// File is a Store on the local filesystem.
//
// Layout:
//
//	{root}/
//	  sha256/{hex[0:2]}/{hex}/
//	    artifact.toml
//	    package/
//	  locks/{hex}.lock
//	  tmp/
//
// Writers publish into tmp/ and rename the finished entry into place while
// holding the identity's lock, so readers never observe a partial entry.
type File struct {
	root string

	mu    sync.Mutex
	locks map[identity.ID]*sync.Mutex
}

var _ Store = (*File)(nil)

// NewFile returns a store rooted at dir. The directory is created lazily.
func NewFile(dir string) *File {
	return &File{root: dir, locks: make(map[identity.ID]*sync.Mutex)}
}

// Root returns the store directory.
func (s *File) Root() string {
	return s.root
}

func (s *File) entryPath(id identity.ID) string {
	hex := id.Encoded()
	return filepath.Join(s.root, string(id.Algorithm()), hex[:2], hex)
}

// Exists implements Store.
func (s *File) Exists(_ context.Context, id identity.ID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.entryPath(id), manifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("check artifact %s: %w", id, err)
	}
	return true, nil
}

// Get implements Store. The package content is re-hashed and compared with
// the recorded checksum on every read.
func (s *File) Get(_ context.Context, id identity.ID) (*Artifact, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	a, err := s.readManifest(s.entryPath(id))
	if err != nil {
		return nil, err
	}
	if a.ID != id {
		return nil, &CorruptionError{ID: id, Reason: fmt.Sprintf("manifest names identity %s", a.ID)}
	}
	if err := treehash.Verify(a.Root, a.Checksum.String()); err != nil {
		return nil, &CorruptionError{ID: id, Reason: "content does not match checksum", Err: err}
	}
	return a, nil
}

func (s *File) readManifest(entry string) (*Artifact, error) {
	id := identity.ID("sha256:" + filepath.Base(entry))
	data, err := os.ReadFile(filepath.Join(entry, manifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read artifact %s: %w", id, err)
	}
	var a Artifact
	if err := toml.Unmarshal(data, &a); err != nil {
		return nil, &CorruptionError{ID: id, Reason: "unreadable manifest", Err: err}
	}
	a.Root = filepath.Join(entry, contentDir)
	if _, err := os.Stat(a.Root); err != nil {
		return nil, &CorruptionError{ID: id, Reason: "missing package directory", Err: err}
	}
	return &a, nil
}

// Put implements Store. dir is copied, so the caller keeps ownership of it.
func (s *File) Put(ctx context.Context, a *Artifact, dir string) (*Artifact, error) {
	if a == nil {
		return nil, fmt.Errorf("artifact is nil")
	}
	if err := a.ID.Validate(); err != nil {
		return nil, fmt.Errorf("artifact identity: %w", err)
	}

	unlock, err := s.lock(a.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry := s.entryPath(a.ID)
	if _, err := os.Stat(entry); err == nil {
		return nil, &WriteConflictError{ID: a.ID}
	}

	tmpRoot := filepath.Join(s.root, "tmp")
	if err := os.MkdirAll(tmpRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	tmpDir, err := os.MkdirTemp(tmpRoot, "entry-"+identity.Short(a.ID)+"-")
	if err != nil {
		return nil, fmt.Errorf("create temp store entry: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	content := filepath.Join(tmpDir, contentDir)
	if err := os.MkdirAll(content, 0o755); err != nil {
		return nil, fmt.Errorf("create package directory: %w", err)
	}
	if err := fsutil.CopyDir(dir, content, nil); err != nil {
		return nil, fmt.Errorf("copy package content: %w", err)
	}
	sum, err := treehash.Sum(content)
	if err != nil {
		return nil, fmt.Errorf("hash package content: %w", err)
	}

	stored := *a
	stored.Checksum = sum
	stored.Root = ""
	data, err := toml.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("encode artifact manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(tmpDir, manifestName), data, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(entry), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if err := os.Rename(tmpDir, entry); err != nil {
		return nil, fmt.Errorf("commit artifact %s: %w", a.ID, err)
	}
	committed = true
	slog.Debug("published artifact", "recipe", a.Ref(), "id", a.ID)

	stored.Root = filepath.Join(entry, contentDir)
	return &stored, nil
}

// Evict implements Store.
func (s *File) Evict(_ context.Context, id identity.ID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	entry := s.entryPath(id)
	if _, err := os.Stat(entry); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err := os.RemoveAll(entry); err != nil {
		return fmt.Errorf("evict artifact %s: %w", id, err)
	}
	slog.Debug("evicted artifact", "id", id)
	return nil
}

// List implements Store. Entries with unreadable manifests are skipped with
// a warning; contents are not verified.
func (s *File) List(ctx context.Context) ([]*Artifact, error) {
	if _, err := os.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(s.root), entriesGlob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list store: %w", err)
	}

	var out []*Artifact
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := filepath.Join(s.root, filepath.Dir(filepath.FromSlash(m)))
		a, err := s.readManifest(entry)
		if err != nil {
			slog.Warn("skipping unreadable store entry", "path", entry, "error", err)
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// lock serializes writers of one identity, across goroutines through an
// in-process mutex and across processes through a lock file.
func (s *File) lock(id identity.ID) (func(), error) {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()
	m.Lock()

	dir := filepath.Join(s.root, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.Unlock()
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl, err := acquireFileLock(filepath.Join(dir, id.Encoded()+".lock"))
	if err != nil {
		m.Unlock()
		return nil, err
	}
	return func() {
		fl.Release()
		m.Unlock()
	}, nil
}

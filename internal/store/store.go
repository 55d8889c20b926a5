// SPDX-License-Identifier: MPL-2.0

// Package store is the content-addressed artifact store. Artifacts are keyed
// by package identity, published atomically and never modified in place.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/forgepkg/forge/internal/identity"
	"github.com/forgepkg/forge/internal/issue"
	"github.com/forgepkg/forge/pkg/recipe"
)

// ErrNotFound is returned for identities the store does not hold.
var ErrNotFound = errors.New("artifact not in store")

type (
	// Store holds published artifacts.
	Store interface {
		// Exists reports whether an entry for id is present. It does not verify it.
		Exists(ctx context.Context, id identity.ID) (bool, error)
		// Get returns the verified artifact for id. A missing entry returns
		// ErrNotFound; a damaged one returns a *CorruptionError.
		Get(ctx context.Context, id identity.ID) (*Artifact, error)
		// Put publishes the content of dir under a.ID and returns the stored
		// artifact. When another writer already published the identity it
		// returns a *WriteConflictError and leaves the existing entry intact.
		Put(ctx context.Context, a *Artifact, dir string) (*Artifact, error)
		// Evict removes the entry for id.
		Evict(ctx context.Context, id identity.ID) error
		// List returns every readable entry, ordered by name then identity.
		List(ctx context.Context) ([]*Artifact, error)
	}

	// Artifact is the immutable result of a successful recipe build.
	Artifact struct {
		ID       identity.ID        `toml:"id"`
		Name     string             `toml:"name"`
		Version  string             `toml:"version"`
		Platform string             `toml:"platform"`
		Options  map[string]string  `toml:"options"`
		Info     recipe.PackageInfo `toml:"package_info"`
		// Checksum is the tree digest of the package content.
		Checksum digest.Digest `toml:"checksum"`

		// Root is the package content directory. It is set by the store.
		Root string `toml:"-"`
	}

	// CorruptionError reports an entry that failed verification.
	CorruptionError struct {
		ID     identity.ID
		Reason string
		Err    error
	}

	// WriteConflictError reports a Put for an identity that is already published.
	WriteConflictError struct {
		ID identity.ID
	}
)

// Ref returns "name/version".
func (a *Artifact) Ref() string {
	return a.Name + "/" + a.Version
}

func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("artifact %s is corrupt: %s", e.ID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns issue.ErrCacheCorruption and the underlying cause.
func (e *CorruptionError) Unwrap() []error {
	if e.Err == nil {
		return []error{issue.ErrCacheCorruption}
	}
	return []error{issue.ErrCacheCorruption, e.Err}
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("artifact %s was already published", e.ID)
}

// Unwrap returns issue.ErrCacheWriteConflict.
func (e *WriteConflictError) Unwrap() error {
	return issue.ErrCacheWriteConflict
}

// IsCorrupt reports whether err is a cache corruption.
func IsCorrupt(err error) bool {
	return errors.Is(err, issue.ErrCacheCorruption)
}

// IsWriteConflict reports whether err is a lost publication race.
func IsWriteConflict(err error) bool {
	return errors.Is(err, issue.ErrCacheWriteConflict)
}

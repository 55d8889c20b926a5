// SPDX-License-Identifier: MPL-2.0

// Package treehash computes a content digest of a directory tree.
//
// The digest covers relative paths, entry types, the executable bit, symlink
// targets and file contents. Modification times, ownership and
// version-control metadata are ignored, so a git checkout and a plain copy of
// the same tree hash identically.
package treehash

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/forgepkg/forge/internal/fsutil"
)

// Sum returns the sha256 tree digest of root.
func Sum(root string) (digest.Digest, error) {
	digester := digest.Canonical.Digester()
	h := digester.Hash()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if fsutil.SkipVCS(rel, d) {
			return filepath.SkipDir
		}

		switch {
		case d.IsDir():
			fmt.Fprintf(h, "D %q\n", rel)
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "L %q %q\n", rel, filepath.ToSlash(target))
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			fileDigest, err := fileSum(path)
			if err != nil {
				return err
			}
			exec := info.Mode().Perm()&0o111 != 0
			fmt.Fprintf(h, "F %q %t %s\n", rel, exec, fileDigest.Encoded())
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash tree %s: %w", root, err)
	}
	return digester.Digest(), nil
}

func fileSum(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", err
	}
	return d, nil
}

// Verify fails when the tree at root does not hash to want. want may be a
// full digest ("sha256:<hex>") or a bare hex sha256.
func Verify(root, want string) error {
	expected, err := ParseSHA256(want)
	if err != nil {
		return err
	}
	got, err := Sum(root)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("tree digest mismatch: want %s, got %s", expected, got)
	}
	return nil
}

// ParseSHA256 accepts "sha256:<hex>" or "<hex>".
func ParseSHA256(s string) (digest.Digest, error) {
	d := digest.Digest(s)
	if _, err := digest.Parse(s); err != nil {
		d = digest.NewDigestFromEncoded(digest.SHA256, s)
	}
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid sha256 %q: %w", s, err)
	}
	if d.Algorithm() != digest.SHA256 {
		return "", fmt.Errorf("invalid sha256 %q: algorithm %s", s, d.Algorithm())
	}
	return d, nil
}

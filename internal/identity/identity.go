// SPDX-License-Identifier: MPL-2.0

// Package identity derives the content address of a packaged artifact.
//
// An identity is a sha256 digest over a canonical, length-prefixed encoding
// of everything that influences the binary result: recipe name, version and
// content revision, the declared source fingerprint, the platform
// descriptor, the pruned option set and the identities of the direct
// dependencies in lexical order. Two builds with equal inputs produce equal
// identities on any machine; changing any input changes the identity.
package identity

import (
	"encoding/binary"
	"fmt"
	"hash"
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/forgepkg/forge/pkg/platform"
	"github.com/forgepkg/forge/pkg/recipe"
)

// encodingVersion is bumped whenever the canonical encoding changes.
const encodingVersion = "forge-identity/v1"

type (
	// ID is a package identity, "sha256:<hex>".
	ID = digest.Digest

	// Dependency is one direct dependency as seen by its consumer.
	Dependency struct {
		Name string
		// Ref is "name/version#revision" of the dependency recipe.
		Ref string
		// ID is the dependency's package identity.
		ID ID
		// HeaderOnly is set when the dependency recipe is header-only.
		HeaderOnly bool
		// Binaries lists, for a header-only dependency, the compiled
		// recipes reached through it and through further header-only
		// recipes, in lexical order. Compiled consumers link against them.
		Binaries []Dependency
	}
)

// Compute returns the identity of r built for p with opts on top of deps.
//
// Header-only recipes produce artifacts that do not depend on the
// platform's binary axes, so their identity omits the platform and the
// options and references dependencies by recipe reference rather than by
// binary identity. Compiled recipes also hash the Binaries behind each
// header-only dependency, so a change to a library below a header-only
// recipe still reaches every compiled consumer.
func Compute(r *recipe.Recipe, p platform.Descriptor, opts platform.OptionSet, deps []Dependency) ID {
	d := digest.Canonical.Digester()
	e := encoder{h: d.Hash()}

	e.field("encoding", encodingVersion)
	e.field("name", r.Name)
	e.field("version", r.SemVersion().String())
	e.field("revision", r.Revision().String())
	e.field("source", r.SourceFingerprint())
	e.field("kind", string(r.Kind))

	headerOnly := r.IsHeaderOnly()
	if !headerOnly {
		e.field("os", string(p.OS))
		e.field("arch", string(p.Arch))
		e.field("compiler", p.Compiler.Name)
		e.field("compiler.version", p.Compiler.Version)
		e.field("build_type", string(p.BuildType))

		names := opts.Names()
		e.count("options", len(names))
		values := opts.Map()
		for _, name := range names {
			e.field("option."+name, values[name])
		}
	}

	sorted := append([]Dependency(nil), deps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	e.count("requires", len(sorted))
	for _, dep := range sorted {
		if headerOnly {
			e.field("dep."+dep.Name, dep.Ref)
			continue
		}
		e.field("dep."+dep.Name, dep.ID.String())
		if len(dep.Binaries) == 0 {
			continue
		}
		e.count("dep."+dep.Name+".binaries", len(dep.Binaries))
		for _, bin := range dep.Binaries {
			e.field("dep."+dep.Name+".binary."+bin.Name, bin.ID.String())
		}
	}
	return d.Digest()
}

// RecipeRef returns the reference header-only consumers use for r.
func RecipeRef(r *recipe.Recipe) string {
	return fmt.Sprintf("%s#%s", r.Ref(), r.Revision().Encoded())
}

// Short returns the first 12 hex characters of id.
func Short(id ID) string {
	enc := id.Encoded()
	if len(enc) > 12 {
		return enc[:12]
	}
	return enc
}

type encoder struct {
	h   hash.Hash
	buf [binary.MaxVarintLen64]byte
}

func (e *encoder) bytes(b []byte) {
	n := binary.PutUvarint(e.buf[:], uint64(len(b)))
	_, _ = e.h.Write(e.buf[:n])
	_, _ = e.h.Write(b)
}

func (e *encoder) field(key, value string) {
	e.bytes([]byte(key))
	e.bytes([]byte(value))
}

func (e *encoder) count(key string, n int) {
	e.field(key, fmt.Sprint(n))
}

// Package hoist moves shared dependency sources out of member manifests and
// into the [workspace.dependencies] table of the workspace root.
package hoist

import (
	"fmt"
	"path/filepath"

	"cargo-hoist/manifest"
)

// RootMember is the member ID of a root manifest that is also a package.
const RootMember = "."

// Manifest is one Cargo.toml loaded in memory.
type Manifest struct {
	Path string
	Dir  string
	Doc  *manifest.Document

	original string
}

// LoadManifest parses the content of the manifest at path.
func LoadManifest(path string, data []byte) (*Manifest, error) {
	doc, err := manifest.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Manifest{
		Path:     path,
		Dir:      filepath.Dir(path),
		Doc:      doc,
		original: string(data),
	}, nil
}

// Original returns the text the manifest was loaded with.
func (m *Manifest) Original() string { return m.original }

// Changed reports whether the document differs from what was loaded.
func (m *Manifest) Changed() bool { return m.Doc.String() != m.original }

// Member is a crate of the workspace. ID is its directory relative to the
// workspace root.
type Member struct {
	ID string
	*Manifest
}

// Workspace is a root manifest and its members. When the root is also a
// package, one member shares the root's Manifest.
type Workspace struct {
	Root    *Manifest
	Members []*Member
}

// Dir returns the workspace root directory.
func (ws *Workspace) Dir() string { return ws.Root.Dir }

// Member returns the member with the given ID.
func (ws *Workspace) Member(id string) (*Member, bool) {
	for _, m := range ws.Members {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// Manifests returns every distinct manifest, root first.
func (ws *Workspace) Manifests() []*Manifest {
	out := []*Manifest{ws.Root}
	seen := map[*Manifest]bool{ws.Root: true}
	for _, m := range ws.Members {
		if !seen[m.Manifest] {
			seen[m.Manifest] = true
			out = append(out, m.Manifest)
		}
	}
	return out
}

// Changed returns the manifests whose content differs from what was loaded,
// root first.
func (ws *Workspace) Changed() []*Manifest {
	var out []*Manifest
	for _, m := range ws.Manifests() {
		if m.Changed() {
			out = append(out, m)
		}
	}
	return out
}

package hoist

import (
	"fmt"
	"path/filepath"
	"strings"

	"cargo-hoist/manifest"
)

// Kind says where a dependency comes from.
type Kind int

const (
	KindNone Kind = iota
	KindVersion
	KindGit
	KindPath
)

// RefKind selects the git reference of a Git source.
type RefKind string

const (
	RefNone   RefKind = ""
	RefBranch RefKind = "branch"
	RefTag    RefKind = "tag"
	RefRev    RefKind = "rev"
)

// Source is a normalized dependency source. Two sources are equal when every
// field is equal, so Source values compare with ==.
type Source struct {
	Kind    Kind
	Version string
	URL     string
	RefKind RefKind
	Ref     string
	// Path is relative to the workspace root, with forward slashes.
	Path string
}

func VersionSource(req string) Source { return Source{Kind: KindVersion, Version: req} }

func GitSource(url string, kind RefKind, ref string) Source {
	return Source{Kind: KindGit, URL: url, RefKind: kind, Ref: ref}
}

func PathSource(p string) Source { return Source{Kind: KindPath, Path: p} }

// IsZero reports whether s holds no source.
func (s Source) IsZero() bool { return s.Kind == KindNone }

func (s Source) String() string {
	switch s.Kind {
	case KindVersion:
		return "version: " + s.Version
	case KindGit:
		if s.RefKind == RefNone {
			return "git: " + s.URL
		}
		return fmt.Sprintf("git: %s, %s: %s", s.URL, s.RefKind, s.Ref)
	case KindPath:
		return "path: " + s.Path
	}
	return "none"
}

// Fields renders the source keys of s for a manifest entry.
func (s Source) Fields() []manifest.Field {
	switch s.Kind {
	case KindVersion:
		return []manifest.Field{{Key: "version", Value: manifest.Quote(s.Version)}}
	case KindGit:
		fields := []manifest.Field{{Key: "git", Value: manifest.Quote(s.URL)}}
		if s.RefKind != RefNone {
			fields = append(fields, manifest.Field{Key: string(s.RefKind), Value: manifest.Quote(s.Ref)})
		}
		return fields
	case KindPath:
		return []manifest.Field{{Key: "path", Value: manifest.Quote(s.Path)}}
	}
	return nil
}

var sourceKeys = map[string]bool{
	"version":   true,
	"git":       true,
	"branch":    true,
	"tag":       true,
	"rev":       true,
	"path":      true,
	"workspace": true,
}

// IsSourceKey reports whether key describes where a dependency comes from
// rather than how it is used.
func IsSourceKey(key string) bool { return sourceKeys[key] }

// ExtraAttributes returns the attributes of dep that are not source keys, in
// declaration order.
func ExtraAttributes(dep manifest.Dependency) []manifest.Attr {
	var out []manifest.Attr
	for _, a := range dep.Attrs {
		if !IsSourceKey(a.Key) {
			out = append(out, a)
		}
	}
	return out
}

// IsWorkspaceReference reports whether value carries `workspace = true`.
func IsWorkspaceReference(value any) bool {
	tbl, ok := value.(map[string]any)
	if !ok {
		return false
	}
	ws, ok := tbl["workspace"].(bool)
	return ok && ws
}

// Normalize converts a decoded dependency value into a Source. Path sources
// declared relative to memberDir are re-expressed relative to root. The zero
// Source and a nil error are returned for entries that reference the workspace
// or name no source at all.
func Normalize(value any, memberDir, root string) (Source, error) {
	switch v := value.(type) {
	case string:
		return VersionSource(v), nil
	case map[string]any:
		return normalizeTable(v, memberDir, root)
	}
	return Source{}, &MalformedError{Reason: fmt.Sprintf("expected a string or table, found %T", value)}
}

func normalizeTable(tbl map[string]any, memberDir, root string) (Source, error) {
	if raw, ok := tbl["workspace"]; ok {
		ws, isBool := raw.(bool)
		if !isBool {
			return Source{}, &MalformedError{Reason: fmt.Sprintf("workspace must be a boolean, found %T", raw)}
		}
		if ws {
			return Source{}, nil
		}
		return Source{}, &MalformedError{Reason: "workspace = false is not allowed"}
	}

	str := make(map[string]string)
	for _, k := range []string{"version", "git", "branch", "tag", "rev", "path"} {
		raw, ok := tbl[k]
		if !ok {
			continue
		}
		s, isStr := raw.(string)
		if !isStr {
			return Source{}, &MalformedError{Reason: fmt.Sprintf("%s must be a string, found %T", k, raw)}
		}
		str[k] = s
	}

	var kinds []string
	for _, k := range []string{"version", "git", "path"} {
		if _, ok := str[k]; ok {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) > 1 {
		return Source{}, &MalformedError{Reason: "conflicting source keys " + strings.Join(kinds, " and ")}
	}

	var refs []RefKind
	for _, k := range []RefKind{RefBranch, RefTag, RefRev} {
		if _, ok := str[string(k)]; ok {
			refs = append(refs, k)
		}
	}
	if len(refs) > 0 {
		if _, ok := str["git"]; !ok {
			return Source{}, &MalformedError{Reason: fmt.Sprintf("%s is set without git", refs[0])}
		}
	}
	if len(refs) > 1 {
		return Source{}, &MalformedError{Reason: fmt.Sprintf("more than one git reference (%s and %s)", refs[0], refs[1])}
	}

	switch {
	case len(kinds) == 0:
		return Source{}, nil
	case kinds[0] == "version":
		return VersionSource(str["version"]), nil
	case kinds[0] == "git":
		if len(refs) == 0 {
			return GitSource(str["git"], RefNone, ""), nil
		}
		return GitSource(str["git"], refs[0], str[string(refs[0])]), nil
	}
	rel, err := RelativePath(str["path"], memberDir, root)
	if err != nil {
		return Source{}, &PathError{Path: str["path"], Err: err}
	}
	return PathSource(rel), nil
}

// RelativePath resolves p against memberDir and expresses the result relative
// to root, using forward slashes.
func RelativePath(p, memberDir, root string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	native := filepath.FromSlash(p)
	abs := native
	if !filepath.IsAbs(native) {
		abs = filepath.Join(memberDir, native)
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(abs))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

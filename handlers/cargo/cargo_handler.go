package cargohandler

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"cargo-hoist/hoist"
	"cargo-hoist/utils"
)

// ManifestName is the file name of a Cargo manifest.
const ManifestName = "Cargo.toml"

// ---------------------------
// Cargo Handler
// ---------------------------
type CargoHandler struct {
	Log *slog.Logger
}

// Name returns the handler name
func (h *CargoHandler) Name() string {
	return "Cargo"
}

// Detect returns true if Cargo.toml exists
func (h *CargoHandler) Detect(projectDir string) bool {
	_, err := os.Stat(filepath.Join(projectDir, ManifestName))
	return err == nil
}

// Load reads the workspace root and its members. Members come from
// [workspace].members, glob patterns expanded, minus [workspace].exclude. A
// root manifest with a [package] table is itself a member.
func (h *CargoHandler) Load(projectDir string) (*hoist.Workspace, error) {
	log := h.logger()
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}

	root, err := readManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	wsTable, ok := root.Doc.Table("workspace")
	if !ok {
		return nil, fmt.Errorf("no [workspace] table found in %s", root.Path)
	}

	ws := &hoist.Workspace{Root: root}
	seen := make(map[string]bool)
	if _, ok := root.Doc.Table("package"); ok {
		ws.Members = append(ws.Members, &hoist.Member{ID: hoist.RootMember, Manifest: root})
		seen[hoist.RootMember] = true
	}

	excludes := stringList(wsTable["exclude"], "exclude", log)
	_, hasMembers := wsTable["members"]
	if !hasMembers && len(ws.Members) == 0 {
		return nil, fmt.Errorf("no `members` array found in [workspace] of %s", root.Path)
	}
	for _, pattern := range stringList(wsTable["members"], "members", log) {
		dirs, err := expandMember(dir, pattern)
		if err != nil {
			return nil, err
		}
		if len(dirs) == 0 {
			log.Warn("member pattern matches no crate", "pattern", pattern)
		}
		for _, memberDir := range dirs {
			id, err := memberID(dir, memberDir)
			if err != nil {
				return nil, err
			}
			if seen[id] {
				continue
			}
			if excluded(id, excludes) {
				log.Debug("member excluded", "member", id)
				continue
			}
			seen[id] = true
			if id == hoist.RootMember {
				ws.Members = append(ws.Members, &hoist.Member{ID: id, Manifest: root})
				continue
			}
			m, err := readManifest(filepath.Join(memberDir, ManifestName))
			if err != nil {
				return nil, err
			}
			log.Debug("member loaded", "member", id, "path", m.Path)
			ws.Members = append(ws.Members, &hoist.Member{ID: id, Manifest: m})
		}
	}
	log.Info("workspace loaded", "root", dir, "members", len(ws.Members))
	return ws, nil
}

// Save writes every changed manifest, root first. With a backup directory,
// each file is first copied there under its path relative to the workspace.
func (h *CargoHandler) Save(ws *hoist.Workspace, backupDir string) ([]string, error) {
	log := h.logger()
	var written []string
	for _, m := range ws.Changed() {
		if backupDir != "" {
			rel, err := filepath.Rel(ws.Dir(), m.Path)
			if err != nil || strings.HasPrefix(rel, "..") {
				rel = filepath.Base(filepath.Dir(m.Path)) + "_" + ManifestName
			}
			backupPath := filepath.Join(backupDir, rel)
			if err := utils.CopyFile(m.Path, backupPath); err != nil {
				return written, fmt.Errorf("failed to backup %s: %w", m.Path, err)
			}
			log.Info("backed up manifest", "path", m.Path, "backup", backupPath)
		}
		if err := utils.WriteFile(m.Path, m.Doc.Bytes()); err != nil {
			return written, err
		}
		written = append(written, m.Path)
		log.Info("manifest written", "path", m.Path)
	}
	return written, nil
}

func (h *CargoHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.Log
}

// ---------------------------
// Helpers
// ---------------------------

func readManifest(path string) (*hoist.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	m, err := hoist.LoadManifest(path, data)
	if err != nil {
		return nil, fmt.Errorf("could not parse manifest: %w", err)
	}
	return m, nil
}

// stringList reads an array of strings, skipping entries of other types.
func stringList(value any, key string, log *slog.Logger) []string {
	items, ok := value.([]any)
	if !ok {
		if value != nil {
			log.Warn("workspace key is not an array", "key", key)
		}
		return nil
	}
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			log.Warn("skipping a non-string entry", "key", key, "entry", fmt.Sprint(item))
			continue
		}
		out = append(out, s)
	}
	return out
}

// expandMember returns the crate directories a members entry names. A plain
// path must hold a manifest; glob matches without one are ignored.
func expandMember(root, pattern string) ([]string, error) {
	native := filepath.Join(root, filepath.FromSlash(pattern))
	if !strings.ContainsAny(pattern, "*?[{") {
		if _, err := os.Stat(filepath.Join(native, ManifestName)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("workspace member %q has no %s", pattern, ManifestName)
			}
			return nil, err
		}
		return []string{filepath.Clean(native)}, nil
	}

	matches, err := doublestar.FilepathGlob(native)
	if err != nil {
		return nil, fmt.Errorf("invalid member pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)
	var dirs []string
	for _, m := range matches {
		if info, err := os.Stat(filepath.Join(m, ManifestName)); err == nil && !info.IsDir() {
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

func memberID(root, dir string) (string, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", fmt.Errorf("member %s is outside the workspace: %w", dir, err)
	}
	return filepath.ToSlash(rel), nil
}

// excluded matches a member ID against [workspace].exclude entries, which are
// globs or path prefixes.
func excluded(id string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(strings.TrimPrefix(p, "./"), "/")
		if id == p || strings.HasPrefix(id, p+"/") {
			return true
		}
		if ok, err := doublestar.Match(p, id); err == nil && ok {
			return true
		}
	}
	return false
}

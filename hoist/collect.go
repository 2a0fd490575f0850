package hoist

import (
	"errors"
	"fmt"
	"log/slog"

	"cargo-hoist/manifest"
)

// Entry is one dependency declared by a member.
type Entry struct {
	Member string
	Table  manifest.Table
	Name   string
	Source Source
	// Extra holds the non-source attributes exactly as written.
	Extra   []manifest.Attr
	Hoisted bool
}

// HasSource reports whether the entry can take part in a group.
func (e Entry) HasSource() bool { return !e.Hoisted && !e.Source.IsZero() }

// ExtraKeys returns the keys of the extra attributes in declaration order.
func (e Entry) ExtraKeys() []string {
	keys := make([]string, len(e.Extra))
	for i, a := range e.Extra {
		keys[i] = a.Key
	}
	return keys
}

// Collect reads the dependency tables of every member. Entries that cannot be
// read are reported and left out; the scan continues.
func Collect(ws *Workspace, tables []manifest.Table, log *slog.Logger) ([]Entry, []error) {
	log = componentLogger(log)
	var entries []Entry
	var issues []error
	for _, m := range ws.Members {
		for _, t := range tables {
			for _, dep := range m.Doc.Dependencies(t) {
				log.Debug("dependency considered", "member", m.ID, "table", string(t), "name", dep.Name, "layout", dep.Layout.String())
				e, err := readEntry(m, ws.Dir(), dep)
				if err != nil {
					log.Warn("dependency excluded", "member", m.ID, "table", string(t), "name", dep.Name, "error", err)
					issues = append(issues, err)
					continue
				}
				if e.Hoisted {
					log.Debug("dependency already references the workspace", "member", m.ID, "name", dep.Name)
				} else if e.Source.IsZero() {
					log.Debug("dependency has no source", "member", m.ID, "name", dep.Name)
				}
				entries = append(entries, e)
			}
		}
	}
	return entries, issues
}

func readEntry(m *Member, root string, dep manifest.Dependency) (Entry, error) {
	e := Entry{Member: m.ID, Table: dep.Table, Name: dep.Name}
	if IsWorkspaceReference(dep.Value) {
		e.Hoisted = true
		e.Extra = ExtraAttributes(dep)
		return e, nil
	}
	if dep.Layout != manifest.LayoutInline && dep.Layout != manifest.LayoutTable {
		return e, &MalformedError{Member: m.ID, Table: dep.Table, Name: dep.Name,
			Reason: fmt.Sprintf("entries written in %s form are not supported", dep.Layout)}
	}
	src, err := Normalize(dep.Value, m.Dir, root)
	if err != nil {
		return e, withEntry(err, m.ID, dep.Table, dep.Name)
	}
	e.Source = src
	e.Extra = ExtraAttributes(dep)
	return e, nil
}

// withEntry fills in where a Normalize error came from.
func withEntry(err error, member string, t manifest.Table, name string) error {
	var me *MalformedError
	if errors.As(err, &me) {
		me.Member, me.Table, me.Name = member, t, name
		return me
	}
	var pe *PathError
	if errors.As(err, &pe) {
		pe.Member, pe.Table, pe.Name = member, t, name
		return pe
	}
	return fmt.Errorf("%s: [%s] %s: %w", member, t, name, err)
}

// Shared is an entry already present in the root [workspace.dependencies].
type Shared struct {
	Name   string
	Source Source
	Extra  []manifest.Attr
}

// CollectShared reads the root [workspace.dependencies] table. Names whose
// entry cannot be read are returned as refused.
func CollectShared(ws *Workspace, log *slog.Logger) (map[string]Shared, map[string]bool, []error) {
	log = componentLogger(log)
	shared := make(map[string]Shared)
	refused := make(map[string]bool)
	var issues []error
	for _, dep := range ws.Root.Doc.Dependencies(manifest.Workspace) {
		src, err := Normalize(dep.Value, ws.Dir(), ws.Dir())
		if err == nil && src.IsZero() {
			err = &MalformedError{Reason: "no version, git or path"}
		}
		if err == nil && dep.Layout != manifest.LayoutInline && dep.Layout != manifest.LayoutTable {
			err = &MalformedError{Reason: fmt.Sprintf("entries written in %s form are not supported", dep.Layout)}
		}
		if err != nil {
			err = withEntry(err, RootMember, manifest.Workspace, dep.Name)
			log.Warn("shared dependency cannot be read; name will not be hoisted", "name", dep.Name, "error", err)
			refused[dep.Name] = true
			issues = append(issues, err)
			continue
		}
		shared[dep.Name] = Shared{Name: dep.Name, Source: src, Extra: ExtraAttributes(dep)}
	}
	return shared, refused, issues
}

func componentLogger(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return log.With("component", "hoist")
}

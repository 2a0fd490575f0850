package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when an edit targets a missing entry.
	ErrNotFound = errors.New("dependency not found")
	// ErrUnsupportedLayout is returned when an entry is written in a form
	// the editor cannot rewrite in place.
	ErrUnsupportedLayout = errors.New("unsupported dependency layout")
)

type edit struct {
	start, end int
	text       string
}

// apply splices edits into the text and reloads the document. The document is
// left untouched when the result does not parse.
func (d *Document) apply(edits []edit) error {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	text := d.text
	for _, e := range edits {
		text = text[:e.start] + e.text + text[e.end:]
	}
	if err := d.load(text); err != nil {
		return fmt.Errorf("edit produced an invalid document: %w", err)
	}
	return nil
}

// ReferenceWorkspace rewrites a dependency to `workspace = true`. Keys named in
// keep are carried over verbatim and in their original order; every other key
// is dropped.
func (d *Document) ReferenceWorkspace(t Table, name string, keep []string) error {
	dep, ok := d.Dependency(t, name)
	if !ok {
		return fmt.Errorf("[%s] %s: %w", t, name, ErrNotFound)
	}
	marker := []Field{{Key: "workspace", Value: "true"}}
	kept := toSet(keep)
	switch dep.Layout {
	case LayoutInline:
		st, _ := d.entry(t.path(), name)
		return d.apply([]edit{{st.value.start, st.value.end, d.inlineWith(marker, st.inline, kept)}})
	case LayoutTable:
		return d.rewriteTable(append(t.path(), name), marker, kept)
	}
	return fmt.Errorf("[%s] %s is written in %s form: %w", t, name, dep.Layout, ErrUnsupportedLayout)
}

// SetWorkspaceDependency writes fields as the entry for name in
// [workspace.dependencies]. An existing entry keeps the keys named in keep; a
// missing entry is appended, creating the table after the [workspace] section
// when needed.
func (d *Document) SetWorkspaceDependency(name string, fields []Field, keep []string) error {
	path := Workspace.path()
	if dep, ok := d.Dependency(Workspace, name); ok {
		kept := toSet(keep)
		switch dep.Layout {
		case LayoutInline:
			st, _ := d.entry(path, name)
			return d.apply([]edit{{st.value.start, st.value.end, d.inlineWith(fields, st.inline, kept)}})
		case LayoutTable:
			return d.rewriteTable(append(path, name), fields, kept)
		}
		return fmt.Errorf("[%s] %s is written in %s form: %w", Workspace, name, dep.Layout, ErrUnsupportedLayout)
	}

	line := FormatKey(name) + " = " + InlineTable(fields)
	if h, ok := d.header(path); ok {
		at := h.line.end
		for _, st := range d.tableStatements(path) {
			at = max(at, st.line.end)
		}
		return d.apply([]edit{{at, at, d.eol + line}})
	}
	if _, ok := d.Table(path...); ok {
		return fmt.Errorf("[%s] is not written as a table header: %w", Workspace, ErrUnsupportedLayout)
	}

	block := "[" + string(Workspace) + "]" + d.eol + line
	at := -1
	for _, h := range d.layout.headers {
		if h.array || h.path[0] != "workspace" {
			continue
		}
		at = max(at, h.line.end)
		for _, st := range d.tableStatements(h.path) {
			at = max(at, st.line.end)
		}
	}
	if at < 0 {
		end := len(d.text)
		prefix := ""
		if end > 0 {
			if !strings.HasSuffix(d.text, "\n") {
				prefix = d.eol
			}
			prefix += d.eol
		}
		return d.apply([]edit{{end, end, prefix + block + d.eol}})
	}
	return d.apply([]edit{{at, at, d.eol + d.eol + block}})
}

// inlineWith renders an inline table holding fields followed by the kept
// fields of an existing inline table.
func (d *Document) inlineWith(fields []Field, existing []field, kept map[string]bool) string {
	parts := make([]string, 0, len(fields)+len(existing))
	for _, f := range fields {
		parts = append(parts, FormatKey(f.Key)+" = "+f.Value)
	}
	for _, f := range existing {
		if kept[strings.Join(f.key, ".")] {
			parts = append(parts, d.slice(f.raw)+" = "+d.slice(f.value))
		}
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// rewriteTable replaces the statements of a sub-table that are not kept with
// fields, written where the first dropped statement was.
func (d *Document) rewriteTable(path []string, fields []Field, kept map[string]bool) error {
	h, ok := d.header(path)
	if !ok {
		return fmt.Errorf("[%s]: %w", strings.Join(path, "."), ErrNotFound)
	}
	var edits []edit
	placed := false
	for _, st := range d.tableStatements(path) {
		if kept[strings.Join(st.key, ".")] {
			continue
		}
		e := edit{start: st.line.start, end: nextLine(d.text, st.line.end)}
		if !placed {
			e.text = fieldLines(fields, d.text[st.line.start:st.raw.start], d.eol)
			placed = true
		}
		edits = append(edits, e)
	}
	if !placed {
		lines := strings.TrimSuffix(fieldLines(fields, "", d.eol), d.eol)
		edits = append(edits, edit{h.line.end, h.line.end, d.eol + lines})
	}
	return d.apply(edits)
}

func fieldLines(fields []Field, indent, eol string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(indent + FormatKey(f.Key) + " = " + f.Value + eol)
	}
	return b.String()
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// Package manifest models Cargo.toml documents. A Document keeps the exact
// source text and edits it in place, so comments, ordering and formatting of
// everything that is not touched survive a rewrite.
package manifest

import (
	"fmt"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Document is a parsed manifest. The decoded tree comes from go-toml; the
// layout records where each statement lives in the text.
type Document struct {
	text   string
	layout *layout
	data   map[string]any
	eol    string
}

// Parse parses manifest content.
func Parse(data []byte) (*Document, error) {
	d := &Document{}
	if err := d.load(string(data)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) load(text string) error {
	var tree map[string]any
	if err := toml.Unmarshal([]byte(text), &tree); err != nil {
		return fmt.Errorf("parsing TOML: %w", err)
	}
	l, err := scan(text)
	if err != nil {
		return fmt.Errorf("parsing TOML: %w", err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	d.text, d.layout, d.data = text, l, tree
	d.eol = "\n"
	if strings.Contains(text, "\r\n") {
		d.eol = "\r\n"
	}
	return nil
}

// String returns the current document text.
func (d *Document) String() string { return d.text }

// Bytes returns the current document text.
func (d *Document) Bytes() []byte { return []byte(d.text) }

// Data returns the decoded document tree.
func (d *Document) Data() map[string]any { return d.data }

// Table returns the decoded table at path.
func (d *Document) Table(path ...string) (map[string]any, bool) {
	cur := d.data
	for _, p := range path {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Dependencies returns the entries of a dependency table in declaration order.
func (d *Document) Dependencies(t Table) []Dependency {
	path := t.path()
	tbl, ok := d.Table(path...)
	if !ok {
		return nil
	}

	var names []string
	layouts := make(map[string]Layout)
	note := func(name string, l Layout) {
		if _, seen := layouts[name]; !seen {
			names = append(names, name)
			layouts[name] = l
		}
	}
	// Statements and headers are both in document order; merge them by offset.
	type mark struct {
		at     int
		name   string
		layout Layout
	}
	var marks []mark
	for _, st := range d.layout.stmts {
		if st.array || !samePath(st.table, path) {
			continue
		}
		l := LayoutInline
		if len(st.key) > 1 {
			l = LayoutDotted
		}
		marks = append(marks, mark{st.line.start, st.key[0], l})
	}
	for _, h := range d.layout.headers {
		if h.array || len(h.path) <= len(path) || !hasPrefixPath(h.path, path) {
			continue
		}
		marks = append(marks, mark{h.line.start, h.path[len(path)], LayoutTable})
	}
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].at < marks[j].at })
	for _, m := range marks {
		note(m.name, m.layout)
	}
	var rest []string
	for name := range tbl {
		if _, seen := layouts[name]; !seen {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		note(name, LayoutOther)
	}

	deps := make([]Dependency, 0, len(names))
	for _, name := range names {
		dep := Dependency{Name: name, Table: t, Layout: layouts[name], Value: tbl[name]}
		dep.Attrs = d.attrs(path, name, dep.Layout)
		deps = append(deps, dep)
	}
	return deps
}

// Dependency returns one entry of a dependency table.
func (d *Document) Dependency(t Table, name string) (Dependency, bool) {
	for _, dep := range d.Dependencies(t) {
		if dep.Name == name {
			return dep, true
		}
	}
	return Dependency{}, false
}

func (d *Document) attrs(path []string, name string, l Layout) []Attr {
	var attrs []Attr
	switch l {
	case LayoutInline:
		st, ok := d.entry(path, name)
		if !ok {
			return nil
		}
		for _, f := range st.inline {
			attrs = append(attrs, Attr{Key: strings.Join(f.key, "."), Raw: d.slice(f.value)})
		}
	case LayoutTable:
		for _, st := range d.tableStatements(append(append([]string{}, path...), name)) {
			attrs = append(attrs, Attr{Key: strings.Join(st.key, "."), Raw: d.slice(st.value)})
		}
	case LayoutDotted:
		for _, st := range d.layout.stmts {
			if !st.array && samePath(st.table, path) && len(st.key) > 1 && st.key[0] == name {
				attrs = append(attrs, Attr{Key: strings.Join(st.key[1:], "."), Raw: d.slice(st.value)})
			}
		}
	}
	return attrs
}

func (d *Document) slice(s span) string { return d.text[s.start:s.end] }

// entry finds the single-key statement `name = ...` directly inside path.
func (d *Document) entry(path []string, name string) (statement, bool) {
	for _, st := range d.layout.stmts {
		if !st.array && samePath(st.table, path) && len(st.key) == 1 && st.key[0] == name {
			return st, true
		}
	}
	return statement{}, false
}

func (d *Document) tableStatements(path []string) []statement {
	var out []statement
	for _, st := range d.layout.stmts {
		if !st.array && samePath(st.table, path) {
			out = append(out, st)
		}
	}
	return out
}

func (d *Document) header(path []string) (header, bool) {
	for _, h := range d.layout.headers {
		if !h.array && samePath(h.path, path) {
			return h, true
		}
	}
	return header{}, false
}

package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

// Table names a dependency table.
type Table string

const (
	Regular   Table = "dependencies"
	Dev       Table = "dev-dependencies"
	Build     Table = "build-dependencies"
	Workspace Table = "workspace.dependencies"
)

// MemberTables are the dependency tables a member manifest may declare.
var MemberTables = []Table{Regular, Dev, Build}

// ParseTable maps a member dependency table name to its Table.
func ParseTable(s string) (Table, error) {
	for _, t := range MemberTables {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown dependency table %q (expected dependencies, dev-dependencies or build-dependencies)", s)
}

func (t Table) path() []string { return strings.Split(string(t), ".") }

// Layout says how an entry is written in the document.
type Layout int

const (
	// LayoutInline is `name = "1.0"` or `name = { ... }`.
	LayoutInline Layout = iota
	// LayoutTable is a `[dependencies.name]` sub-table.
	LayoutTable
	// LayoutDotted is `name.version = "1.0"`.
	LayoutDotted
	// LayoutOther is any form the editor does not locate, such as a dotted
	// key written from an enclosing table.
	LayoutOther
)

func (l Layout) String() string {
	switch l {
	case LayoutInline:
		return "inline"
	case LayoutTable:
		return "table"
	case LayoutDotted:
		return "dotted"
	}
	return "other"
}

// Attr is one key of a dependency entry with its value exactly as written.
type Attr struct {
	Key string
	Raw string
}

// Dependency is one entry of a dependency table.
type Dependency struct {
	Name   string
	Table  Table
	Layout Layout
	// Value is the decoded value: a string for the shorthand form, otherwise
	// a map[string]any.
	Value any
	// Attrs lists the keys of a table-valued entry in declaration order.
	Attrs []Attr
}

// Field is a key with an already-encoded TOML value.
type Field struct {
	Key   string
	Value string
}

var bareKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FormatKey renders a key, quoting it when it is not a bare key.
func FormatKey(k string) string {
	if bareKey.MatchString(k) {
		return k
	}
	return Quote(k)
}

// Quote encodes s as a TOML basic string.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// InlineTable renders fields as `{ k = v, ... }`.
func InlineTable(fields []Field) string {
	if len(fields) == 0 {
		return "{}"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = FormatKey(f.Key) + " = " + f.Value
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

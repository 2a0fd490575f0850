package hoist

import (
	"errors"
	"fmt"
	"strings"

	"cargo-hoist/manifest"
)

var (
	ErrMalformed      = errors.New("malformed dependency")
	ErrPathResolution = errors.New("path cannot be resolved")
	ErrProvider       = errors.New("no decision")
	ErrTableConflict  = errors.New("conflicting sources across tables")
)

// MalformedError reports a dependency entry that cannot be read as a source.
// The entry is skipped; the rest of the manifest is still processed.
type MalformedError struct {
	Member string
	Table  manifest.Table
	Name   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: [%s] %s: %s", e.Member, e.Table, e.Name, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// PathError reports a path dependency that cannot be expressed relative to
// the workspace root.
type PathError struct {
	Member string
	Table  manifest.Table
	Name   string
	Path   string
	Err    error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: [%s] %s: path %q: %v", e.Member, e.Table, e.Name, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

func (e *PathError) Is(target error) bool { return target == ErrPathResolution }

// ProviderError records a decision provider failure. The group is skipped.
type ProviderError struct {
	Key GroupKey
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: decision provider failed: %v", e.Key, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// TableConflictError reports a name resolved to different sources in
// different tables. The shared table holds one entry per name, so the name is
// not hoisted anywhere.
type TableConflictError struct {
	Name   string
	Tables []manifest.Table
}

func (e *TableConflictError) Error() string {
	tables := make([]string, len(e.Tables))
	for i, t := range e.Tables {
		tables[i] = string(t)
	}
	return fmt.Sprintf("%s: resolved to different sources in %s; not hoisted", e.Name, strings.Join(tables, ", "))
}

func (e *TableConflictError) Is(target error) bool { return target == ErrTableConflict }

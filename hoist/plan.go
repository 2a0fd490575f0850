package hoist

import (
	"log/slog"
	"sort"

	"cargo-hoist/manifest"
)

// RootEntry is an entry to write into [workspace.dependencies]. Update is set
// when an entry for the name already exists; its keys named in Keep survive.
type RootEntry struct {
	Name   string
	Source Source
	Update bool
	Keep   []string
}

// RootPatch lists the shared entries to write, sorted by name.
type RootPatch struct {
	Entries []RootEntry
}

func (p RootPatch) Empty() bool { return len(p.Entries) == 0 }

// Rewrite turns one member entry into a workspace reference, keeping the
// named attributes.
type Rewrite struct {
	Table manifest.Table
	Name  string
	Keep  []string
}

// MemberPatch lists the rewrites for one member, in declaration order.
type MemberPatch struct {
	Rewrites []Rewrite
}

func (p MemberPatch) Empty() bool { return len(p.Rewrites) == 0 }

// Plan is the full set of edits for a run.
type Plan struct {
	Root    RootPatch
	Members map[string]MemberPatch
	// Hoisted lists the groups whose members are rewritten.
	Hoisted []GroupKey
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	if !p.Root.Empty() {
		return false
	}
	for _, mp := range p.Members {
		if !mp.Empty() {
			return false
		}
	}
	return true
}

// Planner turns decisions into patches.
type Planner struct {
	Log *slog.Logger
}

// Plan computes the root and member patches for the hoist decisions. A name
// hoisted from several tables with different sources is refused in all of
// them and reported as a *TableConflictError.
func (p *Planner) Plan(decisions []Decision, entries []Entry, shared map[string]Shared) (Plan, []error) {
	log := componentLogger(p.Log)
	plan := Plan{Members: make(map[string]MemberPatch)}
	var issues []error

	byName := make(map[string][]Decision)
	var names []string
	for _, d := range decisions {
		if !d.Hoist {
			continue
		}
		if _, ok := byName[d.Key.Name]; !ok {
			names = append(names, d.Key.Name)
		}
		byName[d.Key.Name] = append(byName[d.Key.Name], d)
	}

	hoisted := make(map[GroupKey]bool)
	for _, name := range names {
		ds := byName[name]
		if conflict := tableConflict(ds); conflict != nil {
			log.Warn("name refused", "name", name, "error", conflict)
			issues = append(issues, conflict)
			continue
		}
		src := ds[0].Source
		for _, d := range ds {
			hoisted[d.Key] = true
			plan.Hoisted = append(plan.Hoisted, d.Key)
		}

		existing, ok := shared[name]
		switch {
		case ok && existing.Source == src:
			log.Debug("shared entry already matches", "name", name)
		case ok:
			keep := make([]string, len(existing.Extra))
			for i, a := range existing.Extra {
				keep[i] = a.Key
			}
			plan.Root.Entries = append(plan.Root.Entries, RootEntry{Name: name, Source: src, Update: true, Keep: keep})
			log.Debug("patch computed", "target", RootMember, "name", name, "source", src.String(), "update", true)
		default:
			plan.Root.Entries = append(plan.Root.Entries, RootEntry{Name: name, Source: src})
			log.Debug("patch computed", "target", RootMember, "name", name, "source", src.String())
		}
	}
	sort.SliceStable(plan.Root.Entries, func(i, j int) bool {
		return plan.Root.Entries[i].Name < plan.Root.Entries[j].Name
	})

	for _, e := range entries {
		key := GroupKey{Table: e.Table, Name: e.Name}
		if !e.HasSource() || !hoisted[key] {
			continue
		}
		mp := plan.Members[e.Member]
		mp.Rewrites = append(mp.Rewrites, Rewrite{Table: e.Table, Name: e.Name, Keep: e.ExtraKeys()})
		plan.Members[e.Member] = mp
		log.Debug("patch computed", "target", e.Member, "table", string(e.Table), "name", e.Name, "keep", e.ExtraKeys())
	}
	return plan, issues
}

func tableConflict(ds []Decision) *TableConflictError {
	for _, d := range ds[1:] {
		if d.Source != ds[0].Source {
			tables := make([]manifest.Table, len(ds))
			for i, d := range ds {
				tables[i] = d.Key.Table
			}
			return &TableConflictError{Name: ds[0].Key.Name, Tables: tables}
		}
	}
	return nil
}

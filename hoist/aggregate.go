package hoist

import (
	"log/slog"

	"cargo-hoist/manifest"
)

// RootCandidate labels the candidate taken from an existing shared entry.
const RootCandidate = "[workspace]"

// GroupKey identifies a group: the same name in different tables forms
// different groups.
type GroupKey struct {
	Table manifest.Table
	Name  string
}

func (k GroupKey) String() string { return string(k.Table) + "." + k.Name }

// Candidate is one member's source for a group.
type Candidate struct {
	Member string
	Source Source
}

// Option is a distinct source of a group with the members declaring it.
type Option struct {
	Source  Source
	Members []string
}

// Class is the classification of a group.
type Class int

const (
	Uniform Class = iota
	Conflicting
)

func (c Class) String() string {
	if c == Uniform {
		return "uniform"
	}
	return "conflicting"
}

// Group collects every declaration of one name in one table.
type Group struct {
	Key        GroupKey
	Candidates []Candidate
	// Options lists the distinct sources in first-seen order.
	Options []Option
}

func (g *Group) add(member string, src Source) {
	g.Candidates = append(g.Candidates, Candidate{Member: member, Source: src})
	for i := range g.Options {
		if g.Options[i].Source == src {
			g.Options[i].Members = appendUnique(g.Options[i].Members, member)
			return
		}
	}
	g.Options = append(g.Options, Option{Source: src, Members: []string{member}})
}

// Class returns Uniform when every candidate has the same source.
func (g *Group) Class() Class {
	if len(g.Options) == 1 {
		return Uniform
	}
	return Conflicting
}

// Sources returns the distinct sources in first-seen order.
func (g *Group) Sources() []Source {
	out := make([]Source, len(g.Options))
	for i, o := range g.Options {
		out[i] = o.Source
	}
	return out
}

// Members returns the distinct members declaring the name, excluding the
// workspace root's shared entry.
func (g *Group) Members() []string {
	var out []string
	for _, c := range g.Candidates {
		if c.Member != RootCandidate {
			out = appendUnique(out, c.Member)
		}
	}
	return out
}

// HasRoot reports whether the group includes an existing shared entry.
func (g *Group) HasRoot() bool {
	return len(g.Candidates) > 0 && g.Candidates[0].Member == RootCandidate
}

// withRoot returns a copy of g with the shared entry as its first candidate.
func (g *Group) withRoot(src Source) *Group {
	out := &Group{Key: g.Key}
	out.add(RootCandidate, src)
	for _, c := range g.Candidates {
		out.add(c.Member, c.Source)
	}
	return out
}

// Aggregate groups entries by table and name in first-seen order. Entries that
// already reference the workspace or have no source are left out.
func Aggregate(entries []Entry, log *slog.Logger) []*Group {
	log = componentLogger(log)
	var groups []*Group
	index := make(map[GroupKey]*Group)
	for _, e := range entries {
		if !e.HasSource() {
			continue
		}
		key := GroupKey{Table: e.Table, Name: e.Name}
		g, ok := index[key]
		if !ok {
			g = &Group{Key: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.add(e.Member, e.Source)
	}
	for _, g := range groups {
		log.Info("group classified", "group", g.Key.String(), "class", g.Class().String(),
			"members", len(g.Members()), "sources", len(g.Options))
	}
	return groups
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

package hoist

import (
	"log/slog"

	"cargo-hoist/manifest"
)

// Options configures a run.
type Options struct {
	// Tables are the member tables to scan; nil means all of them.
	Tables []manifest.Table
	// MinMembers is the number of members that must declare a name before it
	// is hoisted. Names that already have a shared entry are always eligible.
	MinMembers int
	// Provider decides conflicting groups; nil skips them.
	Provider DecisionProvider
	Logger   *slog.Logger
}

func (o Options) tables() []manifest.Table {
	if len(o.Tables) == 0 {
		return manifest.MemberTables
	}
	return o.Tables
}

// Analysis is the read-only view of a workspace: what is declared, how it
// groups, and what could not be read.
type Analysis struct {
	Entries []Entry
	Shared  map[string]Shared
	// Groups are the groups that will be resolved, in first-seen order.
	Groups []*Group
	// Deferred groups have fewer members than MinMembers.
	Deferred []*Group
	// Refused groups name a shared entry that cannot be read.
	Refused []*Group
	Issues  []error
}

// Analyze collects and groups the dependencies of ws without changing it.
func Analyze(ws *Workspace, opts Options) *Analysis {
	log := componentLogger(opts.Logger)
	a := &Analysis{}

	var refused map[string]bool
	var issues []error
	a.Shared, refused, issues = CollectShared(ws, opts.Logger)
	a.Issues = append(a.Issues, issues...)

	a.Entries, issues = Collect(ws, opts.tables(), opts.Logger)
	a.Issues = append(a.Issues, issues...)

	for _, g := range Aggregate(a.Entries, opts.Logger) {
		if refused[g.Key.Name] {
			a.Refused = append(a.Refused, g)
			continue
		}
		shared, ok := a.Shared[g.Key.Name]
		if ok {
			g = g.withRoot(shared.Source)
			log.Debug("shared entry added as candidate", "group", g.Key.String(), "class", g.Class().String())
		}
		if !ok && len(g.Members()) < opts.MinMembers {
			log.Debug("group deferred", "group", g.Key.String(), "members", len(g.Members()), "min", opts.MinMembers)
			a.Deferred = append(a.Deferred, g)
			continue
		}
		a.Groups = append(a.Groups, g)
	}
	return a
}

// Summary counts what a run did.
type Summary struct {
	Groups    int
	Hoisted   int
	Skipped   int
	Conflicts int
	Resolved  int
	Deferred  int
	Members   int
	Rewrites  int
	Issues    int
}

// Result is the outcome of Run.
type Result struct {
	*Analysis
	Decisions []Decision
	Plan      Plan
	Summary   Summary
}

// Run analyzes ws, resolves every group, then applies the plan to the
// in-memory documents. Every decision is made before any document changes.
// An error means an edit could not be applied; documents may be partially
// edited and must not be persisted.
func Run(ws *Workspace, opts Options) (*Result, error) {
	res := &Result{Analysis: Analyze(ws, opts)}

	resolver := &Resolver{Provider: opts.Provider, Log: opts.Logger}
	for _, g := range res.Groups {
		d, err := resolver.Resolve(g)
		if err != nil {
			res.Issues = append(res.Issues, err)
		}
		res.Decisions = append(res.Decisions, d)
	}

	planner := &Planner{Log: opts.Logger}
	plan, issues := planner.Plan(res.Decisions, res.Entries, res.Shared)
	res.Plan = plan
	res.Issues = append(res.Issues, issues...)

	if !plan.Root.Empty() {
		if err := ApplyRoot(plan.Root, ws.Root, opts.Logger); err != nil {
			return res, err
		}
	}
	for _, m := range ws.Members {
		mp, ok := plan.Members[m.ID]
		if !ok || mp.Empty() {
			continue
		}
		if err := ApplyMember(mp, m, opts.Logger); err != nil {
			return res, err
		}
	}

	res.Summary = res.summarize()
	return res, nil
}

func (r *Result) summarize() Summary {
	s := Summary{
		Groups:   len(r.Groups),
		Hoisted:  len(r.Plan.Hoisted),
		Skipped:  len(r.Decisions) - len(r.Plan.Hoisted),
		Deferred: len(r.Deferred),
		Issues:   len(r.Issues),
	}
	hoisted := make(map[GroupKey]bool)
	for _, k := range r.Plan.Hoisted {
		hoisted[k] = true
	}
	for _, g := range r.Groups {
		if g.Class() == Conflicting {
			s.Conflicts++
			if hoisted[g.Key] {
				s.Resolved++
			}
		}
	}
	for _, mp := range r.Plan.Members {
		if !mp.Empty() {
			s.Members++
			s.Rewrites += len(mp.Rewrites)
		}
	}
	return s
}

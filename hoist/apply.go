package hoist

import (
	"fmt"
	"log/slog"
)

// ApplyRoot writes the shared entries of p into the root document.
func ApplyRoot(p RootPatch, root *Manifest, log *slog.Logger) error {
	log = componentLogger(log)
	for _, e := range p.Entries {
		if err := root.Doc.SetWorkspaceDependency(e.Name, e.Source.Fields(), e.Keep); err != nil {
			return fmt.Errorf("%s: %w", root.Path, err)
		}
		log.Info("patch applied", "target", RootMember, "name", e.Name, "source", e.Source.String(), "update", e.Update)
	}
	return nil
}

// ApplyMember rewrites the entries of p in the member document.
func ApplyMember(p MemberPatch, m *Member, log *slog.Logger) error {
	log = componentLogger(log)
	for _, r := range p.Rewrites {
		if err := m.Doc.ReferenceWorkspace(r.Table, r.Name, r.Keep); err != nil {
			return fmt.Errorf("%s: %w", m.Path, err)
		}
		log.Info("patch applied", "target", m.ID, "table", string(r.Table), "name", r.Name)
	}
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cargo-hoist/hoist"
	"cargo-hoist/utils"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [workspace-dir]",
		Short: "List dependencies that could be hoisted, without prompting or writing",
		Long: `check groups the members' dependency declarations the same way a run
does and prints each hoistable group. It exits with an error when any group
can be hoisted, which makes it usable as a CI gate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.close()

	opts, err := s.options(nil)
	if err != nil {
		return err
	}
	a := hoist.Analyze(s.ws, opts)

	out := cmd.OutOrStdout()
	if len(a.Groups) == 0 {
		fmt.Fprintln(out, "No hoistable dependencies found.")
	} else {
		tbl := utils.NewTable(out, "DEPENDENCY", "TABLE", "CLASS", "MEMBERS", "SOURCES")
		for _, g := range a.Groups {
			tbl.Row(g.Key.Name, g.Key.Table, g.Class(), len(g.Members()), describeOptions(g.Options))
		}
		if err := tbl.Flush(); err != nil {
			return err
		}
	}

	for _, g := range a.Deferred {
		fmt.Fprintf(out, "deferred: %s (%d of %d members)\n", g.Key, len(g.Members()), s.cfg.MinMembers)
	}
	for _, g := range a.Refused {
		fmt.Fprintf(out, "refused: %s (unreadable [workspace.dependencies] entry)\n", g.Key)
	}
	for _, issue := range a.Issues {
		fmt.Fprintf(out, "issue: %v\n", issue)
	}

	if len(a.Groups) > 0 {
		return fmt.Errorf("%d dependency group(s) can be hoisted", len(a.Groups))
	}
	return nil
}

func describeOptions(options []hoist.Option) string {
	parts := make([]string, len(options))
	for i, o := range options {
		parts[i] = o.Source.String()
		if o.Members[0] == hoist.RootCandidate {
			parts[i] += " (workspace)"
		}
	}
	return strings.Join(parts, " | ")
}

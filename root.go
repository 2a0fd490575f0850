package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"cargo-hoist/handlers"
	"cargo-hoist/hoist"
	"cargo-hoist/utils"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cargo-hoist [workspace-dir]",
		Short: "Hoist shared dependency sources into [workspace.dependencies]",
		Long: `cargo-hoist moves the source of each dependency declared by workspace
members (version, git reference or path) into the root manifest's
[workspace.dependencies] table and rewrites the members to use
"workspace = true", keeping features and other member-specific keys.

Conflicting sources are resolved interactively, from a decisions file,
or by the fallback policy when no terminal is attached.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runHoist,
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (default <workspace-dir>/"+utils.ConfigFileName+" if present)")
	pf.CountP("verbose", "v", "log verbosity: -v info, -vv debug")
	pf.String("log-file", "", "also write debug logs to this file")
	pf.Int("min-members", 1, "members that must declare a dependency before it is hoisted")
	pf.StringSlice("table", nil, "dependency tables to scan (default all)")

	f := cmd.Flags()
	f.Bool("non-interactive", false, "never prompt; conflicts use the fallback policy")
	f.String("fallback", utils.FallbackSkip, "policy for unanswered conflicts: skip or first")
	f.String("decisions", "", "YAML file of recorded conflict decisions")
	f.String("backup", "", "copy each manifest here before it is written")
	f.Bool("dry-run", false, "print a diff of the changes without writing")

	cmd.AddCommand(newCheckCmd())
	return cmd
}

// session holds what every command needs: settings, logging and the loaded
// workspace.
type session struct {
	cfg     utils.Config
	log     *utils.Logger
	handler handlers.Handler
	ws      *hoist.Workspace
}

func openSession(cmd *cobra.Command, args []string) (*session, error) {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	cfg, err := loadConfig(cmd, dir)
	if err != nil {
		return nil, err
	}

	verbosity, _ := cmd.Flags().GetCount("verbose")
	log, err := utils.NewLogger(utils.LoggerOptions{
		Verbosity: verbosity,
		Console:   cmd.ErrOrStderr(),
		File:      cfg.LogFile,
	})
	if err != nil {
		return nil, err
	}

	h, err := handlers.Detect(dir, log.Logger)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	ws, err := h.Load(dir)
	if err != nil {
		log.Errorf("failed to load workspace: %v", err)
		_ = log.Close()
		return nil, err
	}
	return &session{cfg: cfg, log: log, handler: h, ws: ws}, nil
}

func (s *session) close() {
	_ = s.log.Close()
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, dir string) (utils.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	required := path != ""
	if !required {
		path = filepath.Join(dir, utils.ConfigFileName)
	}
	cfg, err := utils.LoadConfig(path, required)
	if err != nil {
		return cfg, err
	}

	if flagChanged(cmd, "min-members") {
		cfg.MinMembers, _ = flags.GetInt("min-members")
	}
	if flagChanged(cmd, "table") {
		cfg.Tables, _ = flags.GetStringSlice("table")
	}
	if flagChanged(cmd, "non-interactive") {
		cfg.NonInteractive, _ = flags.GetBool("non-interactive")
	}
	if flagChanged(cmd, "fallback") {
		cfg.Fallback, _ = flags.GetString("fallback")
	}
	if flagChanged(cmd, "decisions") {
		cfg.DecisionsFile, _ = flags.GetString("decisions")
	}
	if flagChanged(cmd, "backup") {
		cfg.BackupDir, _ = flags.GetString("backup")
	}
	if flagChanged(cmd, "log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// flagChanged reports whether name exists on cmd and was set.
func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func (s *session) options(provider hoist.DecisionProvider) (hoist.Options, error) {
	tables, err := s.cfg.DependencyTables()
	if err != nil {
		return hoist.Options{}, err
	}
	return hoist.Options{
		Tables:     tables,
		MinMembers: s.cfg.MinMembers,
		Provider:   provider,
		Logger:     s.log.Logger,
	}, nil
}

// provider picks how conflicts are decided: a prompt when stdin is a
// terminal, otherwise the fallback policy. A decisions file is consulted
// first in both cases.
func (s *session) provider(cmd *cobra.Command) (hoist.DecisionProvider, error) {
	var p hoist.DecisionProvider = hoist.SkipProvider{}
	if s.cfg.Fallback == utils.FallbackFirst {
		p = hoist.FirstProvider{}
	}

	in := cmd.InOrStdin()
	switch {
	case s.cfg.NonInteractive:
		s.log.Info("non-interactive run", "fallback", s.cfg.Fallback)
	case hoist.IsInteractive(in):
		p = hoist.NewPromptProvider(in, cmd.OutOrStdout())
	default:
		s.log.Warn("stdin is not a terminal, conflicts use the fallback policy", "fallback", s.cfg.Fallback)
	}

	if s.cfg.DecisionsFile != "" {
		rules, err := hoist.LoadRules(s.cfg.DecisionsFile)
		if err != nil {
			return nil, err
		}
		s.log.Info("decision rules loaded", "path", s.cfg.DecisionsFile, "rules", len(rules))
		p = &hoist.RulesProvider{Rules: rules, Fallback: p}
	}
	return p, nil
}

// rel returns path relative to the workspace root, with forward slashes.
func (s *session) rel(path string) string {
	r, err := filepath.Rel(s.ws.Dir(), path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}

func runHoist(cmd *cobra.Command, args []string) error {
	start := time.Now()
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.close()

	provider, err := s.provider(cmd)
	if err != nil {
		return err
	}
	opts, err := s.options(provider)
	if err != nil {
		return err
	}

	res, err := hoist.Run(s.ws, opts)
	if err != nil {
		s.log.Errorf("hoisting aborted: %v", err)
		return fmt.Errorf("hoisting aborted, nothing written: %w", err)
	}

	out := cmd.OutOrStdout()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		for _, m := range s.ws.Changed() {
			fmt.Fprint(out, utils.UnifiedDiff(s.rel(m.Path), m.Original(), m.Doc.String()))
		}
	} else {
		written, err := s.handler.Save(s.ws, s.cfg.BackupDir)
		for _, p := range written {
			fmt.Fprintf(out, "Updated %s\n", s.rel(p))
		}
		if err != nil {
			s.log.Errorf("write failed after %d file(s): %v", len(written), err)
			return fmt.Errorf("failed to write manifests (%d already written): %w", len(written), err)
		}
	}

	printSummary(out, res, dryRun)
	s.log.Infof("Total elapsed time: %s", time.Since(start))
	return nil
}

func printSummary(out io.Writer, res *hoist.Result, dryRun bool) {
	sum := res.Summary
	fmt.Fprintln(out, "----- Hoist Summary -----")
	fmt.Fprintf(out, "- groups: %d\n", sum.Groups)
	fmt.Fprintf(out, "- hoisted: %d\n", sum.Hoisted)
	fmt.Fprintf(out, "- skipped: %d\n", sum.Skipped)
	fmt.Fprintf(out, "- conflicts resolved: %d of %d\n", sum.Resolved, sum.Conflicts)
	fmt.Fprintf(out, "- members rewritten: %d (%d entries)\n", sum.Members, sum.Rewrites)
	if sum.Deferred > 0 {
		fmt.Fprintf(out, "- deferred: %d\n", sum.Deferred)
	}
	fmt.Fprintf(out, "- issues: %d\n", sum.Issues)
	for _, issue := range res.Issues {
		fmt.Fprintf(out, "  - %v\n", issue)
	}
	if dryRun {
		fmt.Fprintln(out, "Dry run: no files were written.")
	}
}

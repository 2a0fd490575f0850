package hoist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cargo-hoist/manifest"
)

// Rule is a recorded decision for one dependency, read from a decisions file.
// A rule either skips the name, picks a candidate by its 1-based number, or
// names the source to hoist.
type Rule struct {
	Name      string `yaml:"name"`
	Table     string `yaml:"table,omitempty"` // optional, defaults to any table
	Skip      bool   `yaml:"skip,omitempty"`
	Candidate int    `yaml:"candidate,omitempty"`
	Version   string `yaml:"version,omitempty"`
	Git       string `yaml:"git,omitempty"`
	Branch    string `yaml:"branch,omitempty"`
	Tag       string `yaml:"tag,omitempty"`
	Rev       string `yaml:"rev,omitempty"`
	Path      string `yaml:"path,omitempty"` // relative to the workspace root
}

func (r Rule) source() (Source, error) {
	tbl := make(map[string]any)
	for k, v := range map[string]string{
		"version": r.Version, "git": r.Git, "branch": r.Branch,
		"tag": r.Tag, "rev": r.Rev, "path": r.Path,
	} {
		if v != "" {
			tbl[k] = v
		}
	}
	if len(tbl) == 0 {
		return Source{}, nil
	}
	src, err := Normalize(tbl, ".", ".")
	if err != nil {
		return Source{}, fmt.Errorf("rule for %s: %w", r.Name, err)
	}
	return src, nil
}

func (r Rule) validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule without a name")
	}
	if r.Table != "" {
		if _, err := manifest.ParseTable(r.Table); err != nil {
			return fmt.Errorf("rule for %s: %w", r.Name, err)
		}
	}
	src, err := r.source()
	if err != nil {
		return err
	}
	set := 0
	if r.Skip {
		set++
	}
	if r.Candidate != 0 {
		set++
	}
	if !src.IsZero() {
		set++
	}
	if set != 1 {
		return fmt.Errorf("rule for %s: set exactly one of skip, candidate or a source", r.Name)
	}
	if r.Candidate < 0 {
		return fmt.Errorf("rule for %s: candidate must be positive", r.Name)
	}
	return nil
}

func (r Rule) matches(key GroupKey) bool {
	return r.Name == key.Name && (r.Table == "" || manifest.Table(r.Table) == key.Table)
}

// ParseRules decodes a YAML list of rules.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse decisions file: %w", err)
	}
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// LoadRules reads and parses a decisions file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read decisions file: %w", err)
	}
	return ParseRules(data)
}

// RulesProvider answers from recorded rules. The first rule matching a group
// wins; table-specific rules should come before catch-all ones. Groups with no
// rule go to Fallback.
type RulesProvider struct {
	Rules    []Rule
	Fallback DecisionProvider
}

func (p *RulesProvider) Choose(key GroupKey, options []Option) (int, error) {
	for _, r := range p.Rules {
		if !r.matches(key) {
			continue
		}
		switch {
		case r.Skip:
			return SkipChoice, nil
		case r.Candidate > 0:
			if r.Candidate > len(options) {
				return SkipChoice, fmt.Errorf("rule for %s picks candidate %d of %d", r.Name, r.Candidate, len(options))
			}
			return r.Candidate - 1, nil
		}
		src, err := r.source()
		if err != nil {
			return SkipChoice, err
		}
		for i, o := range options {
			if o.Source == src {
				return i, nil
			}
		}
		return SkipChoice, fmt.Errorf("rule for %s names %s, which no member declares", r.Name, src)
	}
	if p.Fallback == nil {
		return SkipChoice, nil
	}
	return p.Fallback.Choose(key, options)
}

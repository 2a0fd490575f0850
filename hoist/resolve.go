package hoist

import (
	"fmt"
	"log/slog"
)

// SkipChoice is returned by a DecisionProvider to leave a group unhoisted.
const SkipChoice = -1

// DecisionProvider picks one of the distinct sources of a conflicting group.
// It returns an index into options or SkipChoice.
type DecisionProvider interface {
	Choose(key GroupKey, options []Option) (int, error)
}

// ProviderFunc adapts a function to DecisionProvider.
type ProviderFunc func(key GroupKey, options []Option) (int, error)

func (f ProviderFunc) Choose(key GroupKey, options []Option) (int, error) { return f(key, options) }

// SkipProvider skips every conflicting group.
type SkipProvider struct{}

func (SkipProvider) Choose(GroupKey, []Option) (int, error) { return SkipChoice, nil }

// FirstProvider picks the first-seen source of every conflicting group.
type FirstProvider struct{}

func (FirstProvider) Choose(GroupKey, []Option) (int, error) { return 0, nil }

// Decision is the outcome of resolving one group.
type Decision struct {
	Key    GroupKey
	Hoist  bool
	Source Source
	// Asked is set when the decision came from the provider.
	Asked bool
}

// Resolver turns groups into decisions.
type Resolver struct {
	Provider DecisionProvider
	Log      *slog.Logger
}

// Resolve decides one group. A uniform group is hoisted without consulting the
// provider; a conflicting group consults it exactly once. A provider failure
// skips the group and is returned as a *ProviderError.
func (r *Resolver) Resolve(g *Group) (Decision, error) {
	log := componentLogger(r.Log)
	d := Decision{Key: g.Key}
	if g.Class() == Uniform {
		d.Hoist, d.Source = true, g.Options[0].Source
		log.Info("decision made", "group", g.Key.String(), "decision", "hoist", "source", d.Source.String())
		return d, nil
	}

	d.Asked = true
	provider := r.Provider
	if provider == nil {
		provider = SkipProvider{}
	}
	choice, err := provider.Choose(g.Key, g.Options)
	if err == nil && (choice < SkipChoice || choice >= len(g.Options)) {
		err = fmt.Errorf("choice %d out of range", choice)
	}
	if err != nil {
		perr := &ProviderError{Key: g.Key, Err: err}
		log.Warn("decision made", "group", g.Key.String(), "decision", "skip", "error", err)
		return d, perr
	}
	if choice == SkipChoice {
		log.Info("decision made", "group", g.Key.String(), "decision", "skip")
		return d, nil
	}
	d.Hoist, d.Source = true, g.Options[choice].Source
	log.Info("decision made", "group", g.Key.String(), "decision", "hoist", "source", d.Source.String())
	return d, nil
}

package pipeline

import "talkcoach/internal/ledger"

// Roots returns the stages of a kind with no dependencies, in registration
// order. These are scheduled first when an artifact is created.
func (r *Registry) Roots(kind ledger.Kind) []string {
	var roots []string
	for _, name := range r.order[kind] {
		if len(r.defs[kind][name].Dependencies) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

// Dependents returns the stages of a kind that list the given stage as a
// direct dependency.
func (r *Registry) Dependents(kind ledger.Kind, stage string) []string {
	var dependents []string
	for _, name := range r.order[kind] {
		for _, dep := range r.defs[kind][name].Dependencies {
			if dep == stage {
				dependents = append(dependents, name)
				break
			}
		}
	}
	return dependents
}

// Downstream returns the transitive closure of stages reachable from the
// given stage, exclusive of the stage itself, in registration order. This is
// the set a cascading failure marks failed and the set a re-arm resets.
func (r *Registry) Downstream(kind ledger.Kind, stage string) []string {
	reached := map[string]bool{stage: true}
	// registration order is a valid iteration order because dependencies
	// always precede their dependents in a well-formed registration; walk
	// repeatedly to stay correct even when they do not.
	for changed := true; changed; {
		changed = false
		for _, name := range r.order[kind] {
			if reached[name] {
				continue
			}
			for _, dep := range r.defs[kind][name].Dependencies {
				if reached[dep] {
					reached[name] = true
					changed = true
					break
				}
			}
		}
	}
	var closure []string
	for _, name := range r.order[kind] {
		if name != stage && reached[name] {
			closure = append(closure, name)
		}
	}
	return closure
}

// ReadyAfter returns the direct dependents of the given stage whose full
// dependency sets are completed in the artifact's ledger and that are still
// pending. These are the stages to schedule after the given stage completes.
func (r *Registry) ReadyAfter(artifact *ledger.Artifact, stage string) []string {
	var ready []string
	for _, name := range r.Dependents(artifact.Kind, stage) {
		state, ok := artifact.Stage(name)
		if !ok || state.Status != ledger.StatusPending {
			continue
		}
		satisfied := true
		for _, dep := range r.defs[artifact.Kind][name].Dependencies {
			if !artifact.StageCompleted(dep) {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, name)
		}
	}
	return ready
}

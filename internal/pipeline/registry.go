package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"talkcoach/internal/ledger"
)

// Definition describes one stage of one artifact kind: its position in the
// dependency graph, how to assemble its input from upstream results, and the
// inference adapter that produces its result.
//
// BuildInput fails closed: a missing or structurally invalid upstream result
// returns an error before any external call is spent. Invoke performs exactly
// one logical inference operation and returns the opaque result payload the
// ledger stores.
type Definition struct {
	Kind         ledger.Kind
	Name         string
	Dependencies []string
	BuildInput   func(*ledger.Artifact) (any, error)
	Invoke       func(context.Context, any) (json.RawMessage, error)
}

// Registry is the static stage definition table, keyed by artifact kind and
// stage name. The dependency graphs it holds are plain data, so the two
// built-in topologies (conversation and interview) are just registrations;
// adding a kind or rewiring an edge is a data change.
type Registry struct {
	defs  map[ledger.Kind]map[string]Definition
	order map[ledger.Kind][]string
}

// NewRegistry validates and indexes the provided definitions. It rejects
// duplicate stages, dependencies on unknown stages, and cyclic graphs.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:  make(map[ledger.Kind]map[string]Definition),
		order: make(map[ledger.Kind][]string),
	}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("stage definition missing name (kind %s)", def.Kind)
		}
		if def.BuildInput == nil || def.Invoke == nil {
			return nil, fmt.Errorf("stage %s/%s: BuildInput and Invoke are required", def.Kind, def.Name)
		}
		kindDefs, ok := r.defs[def.Kind]
		if !ok {
			kindDefs = make(map[string]Definition)
			r.defs[def.Kind] = kindDefs
		}
		if _, exists := kindDefs[def.Name]; exists {
			return nil, fmt.Errorf("stage %s/%s registered twice", def.Kind, def.Name)
		}
		kindDefs[def.Name] = def
		r.order[def.Kind] = append(r.order[def.Kind], def.Name)
	}

	for kind, kindDefs := range r.defs {
		for name, def := range kindDefs {
			for _, dep := range def.Dependencies {
				if _, ok := kindDefs[dep]; !ok {
					return nil, fmt.Errorf("stage %s/%s depends on unknown stage %q", kind, name, dep)
				}
			}
		}
		if err := checkAcyclic(kind, kindDefs); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Lookup returns the definition for (kind, stage).
func (r *Registry) Lookup(kind ledger.Kind, stage string) (Definition, bool) {
	def, ok := r.defs[kind][stage]
	return def, ok
}

// Stages returns the stage names of a kind in registration order.
func (r *Registry) Stages(kind ledger.Kind) []string {
	cp := make([]string, len(r.order[kind]))
	copy(cp, r.order[kind])
	return cp
}

// Kinds reports whether any stages are registered for the kind.
func (r *Registry) Kinds(kind ledger.Kind) bool {
	return len(r.defs[kind]) > 0
}

func checkAcyclic(kind ledger.Kind, defs map[string]Definition) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(defs))
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("stage graph for kind %s has a cycle through %q", kind, name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range defs[name].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for name := range defs {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

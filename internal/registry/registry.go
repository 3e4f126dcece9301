// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry holds the concept records of one extraction run. It owns
// stub creation for referenced identifiers, the redefinition policy, the
// classification field and the projection to a dependency graph.
package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/pdiddy/specgraph/pkg/types"
)

// Registry is the mutable concept store of a single run. It is not safe
// for concurrent use; a run has exactly one writer.
type Registry struct {
	concepts      map[string]*types.Concept
	policy        types.RedefinitionPolicy
	redefinitions int
	log           *zap.Logger
}

// New returns an empty Registry. An empty policy means last write wins.
func New(policy types.RedefinitionPolicy, log *zap.Logger) (*Registry, error) {
	switch policy {
	case "":
		policy = types.RedefineLastWins
	case types.RedefineLastWins, types.RedefineFirstWins:
	default:
		return nil, fmt.Errorf("unsupported redefinition policy %q: use last or first", policy)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		concepts: make(map[string]*types.Concept),
		policy:   policy,
		log:      log,
	}, nil
}

// Ensure creates a stub record for every identifier not yet known.
// Empty identifiers are ignored.
func (r *Registry) Ensure(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := r.concepts[id]; ok {
			continue
		}
		r.concepts[id] = &types.Concept{
			ID:             id,
			Dependencies:   []string{},
			Classification: types.ClassUnknown,
		}
	}
}

// Define records an extraction for id. Stubs are created for every
// dependency. A second definition of the same identifier is logged and
// then either overwrites every field but identity and classification
// (last wins) or is dropped (first wins). Define reports whether the
// record was written.
func (r *Registry) Define(id, name string, deps []string, dfnText string) bool {
	if id == "" {
		return false
	}
	deps = normalize(deps)
	r.Ensure(id)
	r.Ensure(deps...)

	c := r.concepts[id]
	if c.Defined {
		r.redefinitions++
		r.log.Warn("concept redefined",
			zap.String("id", id),
			zap.String("policy", string(r.policy)),
			zap.String("previous_dfn_txt", c.DefinitionText),
			zap.String("new_dfn_txt", dfnText))
		if r.policy == types.RedefineFirstWins {
			return false
		}
	}

	c.Name = name
	c.Dependencies = deps
	c.DefinitionText = dfnText
	c.Defined = true
	return true
}

// Classify writes the classification of id, creating a stub when needed.
// It never touches the structural fields.
func (r *Registry) Classify(id string, label types.Classification) {
	if id == "" {
		return
	}
	r.Ensure(id)
	r.concepts[id].Classification = label
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (types.Concept, bool) {
	c, ok := r.concepts[id]
	if !ok {
		return types.Concept{}, false
	}
	return clone(c), true
}

// Len returns the number of records, stubs included.
func (r *Registry) Len() int {
	return len(r.concepts)
}

// Defined returns the number of defined concepts.
func (r *Registry) Defined() int {
	n := 0
	for _, c := range r.concepts {
		if c.Defined {
			n++
		}
	}
	return n
}

// Undefined returns the number of stubs still waiting for a definition.
func (r *Registry) Undefined() int {
	return len(r.concepts) - r.Defined()
}

// Redefinitions returns how many times an already defined identifier was
// defined again.
func (r *Registry) Redefinitions() int {
	return r.redefinitions
}

// IDs returns every identifier in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.concepts))
	for id := range r.concepts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Graph projects the registry to identifier -> dependency identifiers.
func (r *Registry) Graph() types.Graph {
	g := make(types.Graph, len(r.concepts))
	for id, c := range r.concepts {
		g[id] = append([]string{}, c.Dependencies...)
	}
	return g
}

// Table returns a copy of every record keyed by identifier.
func (r *Registry) Table() types.ConceptTable {
	t := make(types.ConceptTable, len(r.concepts))
	for id, c := range r.concepts {
		t[id] = clone(c)
	}
	return t
}

func clone(c *types.Concept) types.Concept {
	out := *c
	out.Dependencies = append([]string{}, c.Dependencies...)
	return out
}

// normalize drops empty and duplicate identifiers and sorts the rest so
// repeated runs serialize identically.
func normalize(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

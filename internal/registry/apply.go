// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import "github.com/pdiddy/specgraph/pkg/types"

// Region describes the content an interpreter solution was produced for.
type Region struct {
	// Names maps marker identifiers found in the region to their display text.
	Names map[string]string

	// Text is the serialized region, stored as the definition text.
	Text string
}

// Apply defines the concepts named by a solution log. Actions are grouped
// per concept in order of first appearance; each concept receives the
// union of its add actions' dependencies. The redefinition policy applies
// as for any other extraction. Apply returns the identifiers written.
func (r *Registry) Apply(actions []types.Action, region Region) []string {
	var order []string
	deps := make(map[string][]string)
	for _, a := range actions {
		if a.Concept == "" {
			continue
		}
		if _, ok := deps[a.Concept]; !ok {
			order = append(order, a.Concept)
			deps[a.Concept] = nil
		}
		if a.Kind == types.ActionAdd {
			deps[a.Concept] = append(deps[a.Concept], a.Dependencies...)
		}
	}

	var written []string
	for _, id := range order {
		name, ok := region.Names[id]
		if !ok {
			name = id
		}
		if r.Define(id, name, deps[id], region.Text) {
			written = append(written, id)
		}
	}
	return written
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import "sort"

// Cycles returns the strongly connected components of the dependency graph
// that contain a cycle: components of more than one concept, and single
// concepts depending on themselves. Each component is sorted, and the
// result is ordered by its first identifier. Cycles are reported, never
// removed; mutually referring definitions are common in prose standards.
func (r *Registry) Cycles() [][]string {
	// Tarjan's algorithm over sorted identifiers for a deterministic result.
	ids := r.IDs()
	index := make(map[string]int, len(ids))
	low := make(map[string]int, len(ids))
	onStack := make(map[string]bool, len(ids))
	var stack []string
	var out [][]string
	next := 0

	var connect func(v string)
	connect = func(v string) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range r.concepts[v].Dependencies {
			if _, seen := index[w]; !seen {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}
		var comp []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		if len(comp) > 1 || r.selfReferencing(v) {
			sort.Strings(comp)
			out = append(out, comp)
		}
	}

	for _, id := range ids {
		if _, seen := index[id]; !seen {
			connect(id)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// SelfReferences returns the identifiers listing themselves as a dependency.
func (r *Registry) SelfReferences() []string {
	var out []string
	for _, id := range r.IDs() {
		if r.selfReferencing(id) {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) selfReferencing(id string) bool {
	for _, d := range r.concepts[id].Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

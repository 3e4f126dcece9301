// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract finds the defining occurrences of concepts in a pruned
// document tree, decides which content defines each one, and harvests the
// cross-references inside that content as dependency edges.
package extract

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pdiddy/specgraph/internal/dom"
	"github.com/pdiddy/specgraph/internal/registry"
	"github.com/pdiddy/specgraph/pkg/types"
)

// Ambiguity is a parent hosting several markers that no heuristic settled.
type Ambiguity struct {
	// Parent is the element hosting the markers.
	Parent *html.Node

	// Markers are the marker nodes under Parent, in document order.
	Markers []*html.Node

	// Names maps each resolvable marker identifier to its display name.
	Names map[string]string

	// IDs lists the resolvable marker identifiers in document order.
	IDs []string
}

// Result holds the outcome of one extraction pass.
type Result struct {
	// Markers is every marker of the document, snapshotted before any
	// content was consumed.
	Markers []*html.Node

	Diagnostics types.Diagnostics

	// Ambiguities are the skipped multi-marker parents, in document order.
	Ambiguities []Ambiguity
}

// region is the content attributed to every marker of one parent.
type region struct {
	deps    []string
	text    string
	consume []*html.Node
}

// Engine attributes defining regions to concepts and records them in a
// registry. An Engine performs one synchronous pass; it is not safe for
// concurrent use.
type Engine struct {
	cfg      types.ExtractionConfig
	reg      *registry.Registry
	consumer dom.Consumer
	log      *zap.Logger
}

// NewEngine returns an Engine writing to reg and marking attributed
// content through consumer. Empty configuration fields take their defaults.
func NewEngine(cfg types.ExtractionConfig, reg *registry.Registry, consumer dom.Consumer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg.WithDefaults(),
		reg:      reg,
		consumer: consumer,
		log:      log,
	}
}

// Run processes every marker under root in document order.
func (e *Engine) Run(root *html.Node) Result {
	res := Result{Markers: dom.FindAll(root, e.cfg.MarkerTag)}
	d := &res.Diagnostics
	d.Markers = len(res.Markers)

	resolved := make(map[*html.Node]*region)
	decided := make(map[*html.Node]Heuristic)

	for _, m := range res.Markers {
		id := Identifier(m, e.cfg.IdentityAttr)
		if id == "" {
			d.SkippedNoIdentifier++
			e.log.Debug("no identifier, marker skipped", zap.String("marker", dom.RenderInline(m)))
			continue
		}

		parent := dom.ParentElement(m)
		if parent == nil {
			d.SkippedNoParent++
			e.log.Debug("no parent element, marker skipped", zap.String("id", id))
			continue
		}

		// Co-equal markers share the region of the first one resolved.
		if r, ok := resolved[parent]; ok {
			e.register(m, id, r)
			continue
		}

		h, seen := decided[parent]
		if seen && h == HeuristicNone {
			d.SkippedAmbiguous++
			continue
		}

		if e.consumer.Consumed(m) {
			d.SkippedConsumed++
			e.log.Debug("marker inside consumed content, skipped", zap.String("id", id))
			continue
		}

		if !seen {
			if siblings := dom.FindAll(parent, e.cfg.MarkerTag); len(siblings) > 1 {
				h = e.Disambiguate(siblings)
				decided[parent] = h
				switch h {
				case HeuristicConjunction:
					d.ResolvedConjunction++
				case HeuristicConceptPrefix:
					d.ResolvedConceptPrefix++
				case HeuristicScoped:
					d.ResolvedScoped++
				default:
					d.SkippedAmbiguous++
					res.Ambiguities = append(res.Ambiguities, e.ambiguity(parent, siblings))
					e.log.Debug("multiple markers in context, parent skipped", zap.String("id", id))
					continue
				}
			}
		}

		r, ok := e.definingRegion(parent)
		if !ok {
			d.SkippedShape++
			e.log.Debug("content shape not understood, marker skipped",
				zap.String("id", id),
				zap.String("sibling", siblingTag(parent)))
			continue
		}

		resolved[parent] = r
		e.register(m, id, r)
		for _, n := range r.consume {
			e.consumer.Consume(n)
		}
	}

	e.Summarize(res.Markers, d)
	return res
}

// Disambiguate applies the heuristics in priority order to the markers of
// one parent and returns the first that accepts.
func (e *Engine) Disambiguate(markers []*html.Node) Heuristic {
	switch {
	case IsConjunction(markers, e.cfg.Connective):
		return HeuristicConjunction
	case IsConceptPrefixed(markers, e.cfg.ConceptPrefix, e.cfg.IdentityAttr):
		return HeuristicConceptPrefix
	case IsScopedDefinition(markers, e.cfg.ScopeAttr, e.cfg.IdentityAttr):
		return HeuristicScoped
	}
	return HeuristicNone
}

// Summarize fills the registry-derived counts of d: concepts, defined and
// undefined records, markers left unconsumed, extraction rate,
// redefinitions and cycle diagnostics.
func (e *Engine) Summarize(markers []*html.Node, d *types.Diagnostics) {
	remaining := 0
	for _, m := range markers {
		if !e.consumer.Consumed(m) {
			remaining++
		}
	}

	d.Concepts = e.reg.Len()
	d.Defined = e.reg.Defined()
	d.Undefined = e.reg.Undefined()
	d.Remaining = remaining
	d.Rate = types.ExtractionRate(d.Defined, remaining)
	d.Redefinitions = e.reg.Redefinitions()
	d.Cycles = len(e.reg.Cycles())
	d.SelfReferences = len(e.reg.SelfReferences())
}

// definingRegion inspects the element after parent: a list defines the
// concept as an algorithm, nothing or a paragraph leaves the parent's
// prose as the definition, anything else is not understood.
func (e *Engine) definingRegion(parent *html.Node) (*region, bool) {
	next := dom.NextElementSibling(parent)
	switch {
	case dom.IsElement(next, e.cfg.ListTags...):
		return &region{
			deps:    keys(ExtractRefs(next, e.cfg.LinkTag, e.cfg.LinkAttr)),
			text:    dom.Render(parent),
			consume: []*html.Node{parent, next},
		}, true
	case next == nil || dom.IsElement(next, e.cfg.ProseTags...):
		return &region{
			deps:    keys(ExtractRefs(parent, e.cfg.LinkTag, e.cfg.LinkAttr)),
			text:    dom.Render(parent),
			consume: []*html.Node{parent},
		}, true
	}
	return nil, false
}

func (e *Engine) register(marker *html.Node, id string, r *region) {
	e.reg.Define(id, Clean(dom.Text(marker)), r.deps, r.text)
}

func (e *Engine) ambiguity(parent *html.Node, markers []*html.Node) Ambiguity {
	a := Ambiguity{Parent: parent, Markers: markers, Names: make(map[string]string)}
	for _, m := range markers {
		id := Identifier(m, e.cfg.IdentityAttr)
		if id == "" {
			continue
		}
		if _, dup := a.Names[id]; !dup {
			a.IDs = append(a.IDs, id)
		}
		a.Names[id] = Clean(dom.Text(m))
	}
	return a
}

func siblingTag(parent *html.Node) string {
	if next := dom.NextElementSibling(parent); next != nil {
		return next.Data
	}
	return ""
}

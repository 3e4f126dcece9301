// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/specgraph/pkg/types"
)

// Consumer records content that has been attributed to a concept so later
// stages skip it.
type Consumer interface {
	// Consume marks n and its subtree as accounted for.
	Consume(n *html.Node)

	// Consumed reports whether n or one of its ancestors was consumed.
	Consumed(n *html.Node) bool
}

// Tracker is the Consumer used by a run. Every mode keeps a processed set
// keyed by node identity; remove and comment additionally rewrite the tree.
type Tracker struct {
	mode types.ConsumeMode
	seen map[*html.Node]struct{}
}

// NewTracker returns a Tracker for mode. An empty mode means ConsumeMark.
func NewTracker(mode types.ConsumeMode) (*Tracker, error) {
	switch mode {
	case "":
		mode = types.ConsumeMark
	case types.ConsumeMark, types.ConsumeRemove, types.ConsumeComment:
	default:
		return nil, fmt.Errorf("unsupported consumption mode %q: use mark, remove or comment", mode)
	}
	return &Tracker{mode: mode, seen: make(map[*html.Node]struct{})}, nil
}

// Mode returns the consumption mode.
func (t *Tracker) Mode() types.ConsumeMode { return t.mode }

// Len returns the number of consumed regions.
func (t *Tracker) Len() int { return len(t.seen) }

// Consume implements Consumer.
func (t *Tracker) Consume(n *html.Node) {
	if n == nil {
		return
	}
	if _, ok := t.seen[n]; ok {
		return
	}
	t.seen[n] = struct{}{}

	switch t.mode {
	case types.ConsumeRemove:
		Detach(n)
	case types.ConsumeComment:
		if n.Parent == nil {
			return
		}
		markup := strings.ReplaceAll(Render(n), "-->", "--&gt;")
		n.Parent.InsertBefore(&html.Node{Type: html.CommentNode, Data: " " + markup + " "}, n)
		Detach(n)
	}
}

// Consumed implements Consumer.
func (t *Tracker) Consumed(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if _, ok := t.seen[n]; ok {
			return true
		}
	}
	return false
}

// Residual serializes the part of root that no consumed region covers.
func (t *Tracker) Residual(root *html.Node) string {
	return RenderFiltered(root, func(n *html.Node) bool {
		_, ok := t.seen[n]
		return ok
	})
}

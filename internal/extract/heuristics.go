// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/specgraph/internal/dom"
)

// Heuristic names the rule that settled a parent hosting several markers.
type Heuristic int

const (
	// HeuristicNone means no rule accepted; the parent is skipped.
	HeuristicNone Heuristic = iota
	// HeuristicConjunction accepts markers listed as "X, Y and Z".
	HeuristicConjunction
	// HeuristicConceptPrefix accepts one real term among concept-* markers.
	HeuristicConceptPrefix
	// HeuristicScoped accepts one term plus markers scoped to it.
	HeuristicScoped
)

func (h Heuristic) String() string {
	switch h {
	case HeuristicConjunction:
		return "conjunction"
	case HeuristicConceptPrefix:
		return "concept-prefix"
	case HeuristicScoped:
		return "scoped"
	default:
		return "none"
	}
}

// connectorPunct strips the punctuation ignored between co-equal markers.
var connectorPunct = strings.NewReplacer("`", "", ",", "", ".", "")

// IsConjunction reports whether every gap between consecutive markers is
// empty or the connective word once punctuation (commas, periods,
// backticks) is stripped. Fewer than two markers never qualify.
func IsConjunction(markers []*html.Node, connective string) bool {
	if len(markers) <= 1 {
		return false
	}
	for i := 1; i < len(markers); i++ {
		gap := Clean(connectorPunct.Replace(dom.TextBetween(markers[i-1], markers[i])))
		if gap != "" && gap != connective {
			return false
		}
	}
	return true
}

// IsConceptPrefixed reports whether at most one marker has an identifier
// not starting with prefix. The prefixed markers are glossary references
// embedded in the definition of the single remaining term.
func IsConceptPrefixed(markers []*html.Node, prefix, identityAttr string) bool {
	found := false
	for _, m := range markers {
		if strings.HasPrefix(Identifier(m, identityAttr), prefix) {
			continue
		}
		if found {
			return false
		}
		found = true
	}
	return true
}

// IsScopedDefinition reports whether exactly one marker lacks the scope
// attribute and every scoped marker names that marker's identifier.
func IsScopedDefinition(markers []*html.Node, scopeAttr, identityAttr string) bool {
	var unscoped *html.Node
	var scoped []*html.Node
	for _, m := range markers {
		if Clean(dom.Attr(m, scopeAttr)) == "" {
			if unscoped != nil {
				return false
			}
			unscoped = m
			continue
		}
		scoped = append(scoped, m)
	}
	if unscoped == nil {
		return false
	}

	owner := Identifier(unscoped, identityAttr)
	if owner == "" {
		return false
	}
	for _, m := range scoped {
		if Clean(dom.Attr(m, scopeAttr)) != owner {
			return false
		}
	}
	return true
}

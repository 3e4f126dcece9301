// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/specgraph/internal/dom"
)

// ExtractRefs returns the concept identifiers referenced by links under n.
// Each link element carrying a non-empty target contributes the fragment
// after its last '#' (or the whole target when it has none), cleaned.
// Duplicates collapse; the result is unordered.
func ExtractRefs(n *html.Node, linkTag, linkAttr string) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, link := range dom.FindAll(n, linkTag) {
		target := dom.Attr(link, linkAttr)
		if target == "" {
			continue
		}
		if i := strings.LastIndexByte(target, '#'); i >= 0 {
			target = target[i+1:]
		}
		if ref := Clean(target); ref != "" {
			refs[ref] = struct{}{}
		}
	}
	return refs
}

// Identifier walks from n up through its ancestors and returns the first
// non-empty identity attribute, cleaned. It returns "" when the top of the
// tree is reached without one.
func Identifier(n *html.Node, attr string) string {
	for ; n != nil; n = n.Parent {
		if id := Clean(dom.Attr(n, attr)); id != "" {
			return id
		}
	}
	return ""
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

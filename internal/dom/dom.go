// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dom adapts golang.org/x/net/html trees to the navigation the
// extraction engine needs: element-only sibling moves, descendant search in
// document order, text between two nodes, and serialization. It also owns
// consumption tracking and the pruning applied before extraction.
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse reads a document and returns its root node.
func Parse(r io.Reader) (*html.Node, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return root, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// IsElement reports whether n is an element, and, when tags are given,
// whether its tag is one of them.
func IsElement(n *html.Node, tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.Data == t {
			return true
		}
	}
	return false
}

// Attr returns the value of attribute key on n, or "" when absent.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n carries attribute key, whatever its value.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// ParentElement returns the element containing n, or nil at the top of the tree.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || !IsElement(n.Parent) {
		return nil
	}
	return n.Parent
}

// NextElementSibling returns the first element after n among its siblings.
func NextElementSibling(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// PrevElementSibling returns the first element before n among its siblings.
func PrevElementSibling(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// FindAll returns the descendants of root (root excluded) that are
// elements with the given tag, in document order.
func FindAll(root *html.Node, tag string) []*html.Node {
	return FindAllFunc(root, func(n *html.Node) bool { return IsElement(n, tag) })
}

// FindAllFunc returns the descendants of root matching keep, in document order.
func FindAllFunc(root *html.Node, keep func(*html.Node) bool) []*html.Node {
	if root == nil {
		return nil
	}
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if keep(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// Text concatenates every text node under n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// TextBetween returns the text found in document order after the whole
// subtree of from and before to. When to never follows from, the text runs
// to the end of the document.
func TextBetween(from, to *html.Node) string {
	var b strings.Builder
	for n := nextAfterSubtree(from); n != nil && n != to; n = nextInOrder(n) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
	}
	return b.String()
}

func nextInOrder(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	return nextAfterSubtree(n)
}

func nextAfterSubtree(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// Render serializes n and its subtree as markup.
func Render(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	// Render only fails on writer errors or on trees the parser never
	// produces (children under void elements); neither applies here.
	_ = html.Render(&b, n)
	return b.String()
}

// RenderInline serializes n on a single line, as shown to the oracle.
func RenderInline(n *html.Node) string {
	return strings.ReplaceAll(Render(n), "\n", "")
}

// RenderFiltered serializes root leaving out every subtree for which skip
// reports true. The tree itself is not modified.
func RenderFiltered(root *html.Node, skip func(*html.Node) bool) string {
	if root == nil {
		return ""
	}
	return Render(cloneFiltered(root, skip))
}

func cloneFiltered(n *html.Node, skip func(*html.Node) bool) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if skip != nil && skip(ch) {
			continue
		}
		c.AppendChild(cloneFiltered(ch, skip))
	}
	return c
}

// Detach removes n from its parent, keeping its own subtree intact.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

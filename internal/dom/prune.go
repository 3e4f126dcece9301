// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dom

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pdiddy/specgraph/pkg/types"
)

// DefaultPruneClasses are the non-defining blocks of the WHATWG HTML standard.
var DefaultPruneClasses = []string{
	"example",
	"note",
	"warning",
	"XXX",
	"domintro",
	"idl",
	"html",
	"bookkeeping",
}

// PruneSummary holds counts from a pruning pass.
type PruneSummary struct {
	Comments     int
	Blocks       int
	SectionNodes int
}

// Prune removes comments, blocks carrying one of cfg.Classes, and the
// section headed by cfg.SectionID from root. A missing section heading is
// logged and otherwise ignored.
func Prune(root *html.Node, cfg types.PruneConfig, log *zap.Logger) PruneSummary {
	if log == nil {
		log = zap.NewNop()
	}
	var summary PruneSummary

	for _, c := range FindAllFunc(root, func(n *html.Node) bool { return n.Type == html.CommentNode }) {
		Detach(c)
		summary.Comments++
	}

	doc := goquery.NewDocumentFromNode(root)

	for _, class := range cfg.Classes {
		sel := doc.Find(fmt.Sprintf("[class~=%q]", class))
		summary.Blocks += sel.Length()
		sel.Remove()
	}

	if cfg.SectionID != "" {
		heading := doc.Find(fmt.Sprintf("[id=%q]", cfg.SectionID)).First()
		if heading.Length() == 0 {
			log.Warn("section heading not found, section kept", zap.String("id", cfg.SectionID))
		} else {
			level := goquery.NodeName(heading)
			body := heading.NextUntil(level)
			summary.SectionNodes = 1 + body.Length()
			body.Remove()
			heading.Remove()
		}
	}

	log.Debug("pruned document",
		zap.Int("comments", summary.Comments),
		zap.Int("blocks", summary.Blocks),
		zap.Int("section_nodes", summary.SectionNodes))
	return summary
}

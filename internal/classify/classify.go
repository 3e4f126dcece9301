// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify labels concepts with their grammatical nature by asking
// the reasoning oracle about the context each marker appears in.
package classify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pdiddy/specgraph/internal/dom"
	"github.com/pdiddy/specgraph/internal/extract"
	"github.com/pdiddy/specgraph/internal/oracle"
	"github.com/pdiddy/specgraph/internal/registry"
	"github.com/pdiddy/specgraph/pkg/types"
)

var promptTmpl = template.Must(template.New("classify").Parse(`You classify terms defined in a technical specification.

The term is "{{.Name}}" (identifier "{{.ID}}"). It is defined in this context:
{{.Context}}

Decide what kind of thing the term names:
- Callable: an algorithm, method, function or steps that are invoked
- Variable: a slot, field, flag or state that holds a value and can change
- Value: a constant, keyword, enumerated value or literal
- Unknown: none of the above, or you cannot tell

Answer with exactly one word from: {{.Labels}}. Do not add anything else.
`))

// Summary counts the outcome of one classification pass.
type Summary struct {
	// Classified is the number of identifiers labeled.
	Classified int

	// Coerced counts replies outside the label set, stored as Unknown.
	Coerced int

	// Failed counts oracle errors, stored as Unknown.
	Failed int

	// Labels counts identifiers per label.
	Labels map[types.Classification]int
}

// Pass asks an oracle for the classification of every marker identifier.
type Pass struct {
	oracle       oracle.Oracle
	reg          *registry.Registry
	format       types.ContextFormat
	identityAttr string
	conv         *md.Converter
	log          *zap.Logger
}

// New returns a Pass writing labels into reg.
func New(o oracle.Oracle, reg *registry.Registry, format types.ContextFormat, identityAttr string, log *zap.Logger) *Pass {
	if log == nil {
		log = zap.NewNop()
	}
	if identityAttr == "" {
		identityAttr = "id"
	}
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &Pass{
		oracle:       o,
		reg:          reg,
		format:       format,
		identityAttr: identityAttr,
		conv:         conv,
		log:          log,
	}
}

// Run classifies each marker, whether or not extraction defined it. An
// identifier shared by several markers is asked about once, using its
// first marker. The tree is only read. Run stops early only when ctx is
// cancelled.
func (p *Pass) Run(ctx context.Context, markers []*html.Node) (Summary, error) {
	sum := Summary{Labels: make(map[types.Classification]int)}
	seen := make(map[string]struct{})

	for _, m := range markers {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		id := extract.Identifier(m, p.identityAttr)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		label := p.classify(ctx, id, m, &sum)
		p.reg.Classify(id, label)
		sum.Classified++
		sum.Labels[label]++
	}
	return sum, nil
}

func (p *Pass) classify(ctx context.Context, id string, marker *html.Node, sum *Summary) types.Classification {
	prompt, err := p.prompt(id, marker)
	if err != nil {
		p.log.Warn("rendering classification prompt", zap.String("id", id), zap.Error(err))
		sum.Failed++
		return types.ClassUnknown
	}

	reply, err := oracle.Ask(ctx, p.oracle, prompt)
	if err != nil {
		p.log.Warn("classification oracle failed", zap.String("id", id), zap.Error(err))
		sum.Failed++
		return types.ClassUnknown
	}

	label, err := types.ParseClassification(strings.TrimSpace(reply))
	if err != nil {
		p.log.Warn("classification reply outside label set, using Unknown",
			zap.String("id", id),
			zap.String("reply", reply))
		sum.Coerced++
		return types.ClassUnknown
	}
	return label
}

func (p *Pass) prompt(id string, marker *html.Node) (string, error) {
	scope := dom.ParentElement(marker)
	if scope == nil {
		scope = marker
	}
	shown, err := p.render(scope)
	if err != nil {
		return "", err
	}

	labels := make([]string, len(types.Classifications))
	for i, c := range types.Classifications {
		labels[i] = string(c)
	}

	var buf bytes.Buffer
	err = promptTmpl.Execute(&buf, struct {
		ID      string
		Name    string
		Context string
		Labels  string
	}{
		ID:      id,
		Name:    extract.Clean(dom.Text(marker)),
		Context: shown,
		Labels:  strings.Join(labels, ", "),
	})
	return buf.String(), err
}

// render serializes scope in the configured context format.
func (p *Pass) render(scope *html.Node) (string, error) {
	raw := dom.Render(scope)
	if p.format != types.ContextMarkdown {
		return raw, nil
	}
	out, err := p.conv.ConvertString(raw)
	if err != nil {
		return "", fmt.Errorf("converting context to markdown: %w", err)
	}
	return out, nil
}

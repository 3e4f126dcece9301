// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package interp implements the bounded command interpreter that lets an
// oracle resolve one ambiguous region by issuing primitive calls against a
// sliding window of sibling context.
package interp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pdiddy/specgraph/internal/dom"
	"github.com/pdiddy/specgraph/internal/oracle"
	"github.com/pdiddy/specgraph/pkg/types"
)

// ErrUnresolved reports a session that ran out of steps before finish().
var ErrUnresolved = errors.New("step budget exhausted without finish")

// DefaultMaxSteps bounds a session when the configuration leaves it unset.
const DefaultMaxSteps = 10

const (
	StartOfFile = "<start of file>"
	EndOfFile   = "<end of file>"

	replyDone        = "done"
	replyUnknownCall = "Unknown method call."
)

var promptTmpl = template.Must(template.New("interp").Parse(`Here is the spec context:
{{.Context}}
Here are the available methods:
{{.Methods}}
Reply with exactly one method call, either as name(arg, [a, b]) or as a JSON object {"op": "...", "concept": "...", "dependencies": ["..."]}.
Here is your task:
{{.Task}}
Provide the next method call:
`))

// Session is one interpreter run over a context window anchored at an
// ambiguous node. A Session is used once and is not safe for concurrent use.
type Session struct {
	oracle   oracle.Oracle
	maxSteps int
	log      *zap.Logger

	prev, cur, next *html.Node
	prevEnd         bool
	nextEnd         bool

	done       bool
	steps      int
	solution   []types.Action
	transcript []oracle.Message
}

// NewSession returns a Session whose three context pointers start at
// anchor. A non-positive maxSteps means DefaultMaxSteps.
func NewSession(o oracle.Oracle, anchor *html.Node, maxSteps int, log *zap.Logger) *Session {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		oracle:   o,
		maxSteps: maxSteps,
		log:      log,
		prev:     anchor,
		cur:      anchor,
		next:     anchor,
	}
}

// Done reports whether the oracle called finish().
func (s *Session) Done() bool { return s.done }

// Steps returns the number of oracle replies consumed.
func (s *Session) Steps() int { return s.steps }

// Solution returns the actions recorded so far.
func (s *Session) Solution() []types.Action {
	return append([]types.Action(nil), s.solution...)
}

// Transcript returns the conversation so far.
func (s *Session) Transcript() []oracle.Message {
	return append([]oracle.Message(nil), s.transcript...)
}

// Run drives the session until finish() or until the step budget is spent.
// On success the solution log is returned, possibly empty. Exhausting the
// budget returns ErrUnresolved; an oracle failure ends the session with
// that error.
func (s *Session) Run(ctx context.Context, task string) ([]types.Action, error) {
	prompt, err := s.initialPrompt(task)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	s.transcript = []oracle.Message{{Role: oracle.RoleUser, Content: prompt}}

	for s.steps < s.maxSteps {
		if err := s.Step(ctx); err != nil {
			return nil, err
		}
		if s.done {
			return s.Solution(), nil
		}
	}
	s.log.Debug("interpreter session unresolved", zap.String("task", task), zap.Int("steps", s.steps))
	return nil, ErrUnresolved
}

// Step asks the oracle for one reply, dispatches it and appends the
// result to the transcript. Malformed replies cost a step and produce a
// corrective message; they never end the session.
func (s *Session) Step(ctx context.Context) error {
	if len(s.transcript) == 0 {
		return fmt.Errorf("session not started")
	}
	reply, err := s.oracle.Ask(ctx, s.transcript)
	if err != nil {
		return fmt.Errorf("asking oracle: %w", err)
	}
	s.steps++

	result := s.dispatch(reply)
	s.transcript = append(s.transcript,
		oracle.Message{Role: oracle.RoleAssistant, Content: reply},
		oracle.Message{Role: oracle.RoleUser, Content: result})
	return nil
}

func (s *Session) dispatch(reply string) string {
	call, err := ParseCall(reply)
	if err != nil {
		s.log.Warn("oracle issued an invalid call",
			zap.String("reply", reply),
			zap.Int("step", s.steps),
			zap.Error(err))
		return fmt.Sprintf("%s %s. Available methods: %s", replyUnknownCall, err, methods())
	}

	switch call.Op {
	case types.OpPreviousContext:
		return s.previousContext()
	case types.OpNextContext:
		return s.nextContext()
	case types.OpCreateConcept:
		s.solution = append(s.solution, types.Action{Kind: types.ActionCreate, Concept: call.Concept})
	case types.OpAddDependencies:
		s.solution = append(s.solution, types.Action{
			Kind:         types.ActionAdd,
			Concept:      call.Concept,
			Dependencies: append([]string{}, call.Dependencies...),
		})
	case types.OpFinish:
		s.done = true
	}
	return replyDone
}

func (s *Session) previousContext() string {
	if s.prevEnd {
		return StartOfFile
	}
	s.prev = dom.PrevElementSibling(s.prev)
	if s.prev == nil {
		s.prevEnd = true
		return StartOfFile
	}
	return dom.RenderInline(s.prev)
}

func (s *Session) nextContext() string {
	if s.nextEnd {
		return EndOfFile
	}
	s.next = dom.NextElementSibling(s.next)
	if s.next == nil {
		s.nextEnd = true
		return EndOfFile
	}
	return dom.RenderInline(s.next)
}

func (s *Session) initialPrompt(task string) (string, error) {
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, struct {
		Context string
		Methods string
		Task    string
	}{
		Context: dom.RenderInline(s.cur),
		Methods: methods(),
		Task:    task,
	})
	return buf.String(), err
}

func methods() string {
	sigs := make([]string, len(types.Ops))
	for i, op := range types.Ops {
		sigs[i] = op.Signature()
	}
	return strings.Join(sigs, ", ")
}

// AmbiguityTask phrases the task of resolving a parent that hosts several
// markers with the given identifiers.
func AmbiguityTask(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + id + "'"
	}
	return fmt.Sprintf("Multiple definitions in context, resolve %s. "+
		"Create each concept defined here and add the identifiers it depends on, then call finish().",
		strings.Join(quoted, ", "))
}

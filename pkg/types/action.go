// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Op names one primitive of the command interpreter.
type Op string

const (
	OpPreviousContext Op = "get_previous_context"
	OpNextContext     Op = "get_next_context"
	OpCreateConcept   Op = "create_concept"
	OpAddDependencies Op = "add_dependencies"
	OpFinish          Op = "finish"
)

// Ops lists the primitives in menu order.
var Ops = []Op{OpPreviousContext, OpNextContext, OpAddDependencies, OpCreateConcept, OpFinish}

// Signature returns the call-syntax form shown to the oracle.
func (o Op) Signature() string {
	switch o {
	case OpCreateConcept:
		return string(o) + "(concept)"
	case OpAddDependencies:
		return string(o) + "(concept, [dependencies])"
	default:
		return string(o) + "()"
	}
}

// Call is one decoded oracle reply: a primitive with typed arguments.
type Call struct {
	Op           Op       `json:"op"`
	Concept      string   `json:"concept,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// ErrUnknownOp reports a reply naming a primitive outside the menu.
var ErrUnknownOp = errors.New("unknown method")

// Validate checks that the call names a known primitive and carries the
// arguments that primitive needs.
func (c Call) Validate() error {
	switch c.Op {
	case OpPreviousContext, OpNextContext, OpFinish:
		if c.Concept != "" || len(c.Dependencies) > 0 {
			return fmt.Errorf("%s takes no arguments", c.Op)
		}
	case OpCreateConcept:
		if c.Concept == "" {
			return fmt.Errorf("%s requires a concept identifier", c.Op)
		}
		if len(c.Dependencies) > 0 {
			return fmt.Errorf("%s takes exactly one argument", c.Op)
		}
	case OpAddDependencies:
		if c.Concept == "" {
			return fmt.Errorf("%s requires a concept identifier", c.Op)
		}
		for _, d := range c.Dependencies {
			if d == "" {
				return fmt.Errorf("%s: empty dependency identifier", c.Op)
			}
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownOp, c.Op)
	}
	return nil
}

// ActionKind tags an entry of an interpreter solution log.
type ActionKind string

const (
	ActionCreate ActionKind = "new"
	ActionAdd    ActionKind = "add"
)

// Action is one recorded step of a solution, applied to the registry after
// the session finishes.
type Action struct {
	Kind         ActionKind `json:"kind" yaml:"kind"`
	Concept      string     `json:"concept" yaml:"concept"`
	Dependencies []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the specgraph pipeline:
// configuration, concept records, run diagnostics and the interpreter
// action contract.
package types

import "fmt"

// Classification is the grammatical nature of a concept.
type Classification string

const (
	ClassCallable Classification = "Callable"
	ClassVariable Classification = "Variable"
	ClassValue    Classification = "Value"
	ClassUnknown  Classification = "Unknown"
)

// Classifications lists the closed label set in prompt order.
var Classifications = []Classification{ClassCallable, ClassVariable, ClassValue, ClassUnknown}

// ParseClassification returns the label exactly matching s.
func ParseClassification(s string) (Classification, error) {
	for _, c := range Classifications {
		if string(c) == s {
			return c, nil
		}
	}
	return ClassUnknown, fmt.Errorf("unknown classification %q", s)
}

// Concept is one node of the dependency graph.
type Concept struct {
	// ID is the identifier of the concept, unique across a run.
	ID string `json:"-" yaml:"id"`

	// Name is the cleaned display text of the marker that defined it.
	Name string `json:"name" yaml:"name"`

	// Dependencies are identifiers referenced from the defining region,
	// sorted, without duplicates.
	Dependencies []string `json:"dependencies" yaml:"dependencies"`

	// Defined is false for stubs created only because something referenced them.
	Defined bool `json:"defined" yaml:"defined"`

	// DefinitionText is the serialized defining region.
	DefinitionText string `json:"dfn_txt" yaml:"dfn_txt"`

	// Classification is written only by the classification pass.
	Classification Classification `json:"ctype" yaml:"ctype"`
}

// Graph maps each concept identifier to its dependency identifiers.
type Graph map[string][]string

// ConceptTable maps each concept identifier to its record.
type ConceptTable map[string]Concept

// Diagnostics summarizes one extraction run. None of the counts gate the
// run; they make extraction quality observable.
type Diagnostics struct {
	Markers   int     `json:"markers" yaml:"markers"`
	Concepts  int     `json:"concepts" yaml:"concepts"`
	Defined   int     `json:"defined" yaml:"defined"`
	Undefined int     `json:"undefined" yaml:"undefined"`
	Remaining int     `json:"remaining" yaml:"remaining"`
	Rate      float64 `json:"rate" yaml:"rate"`

	SkippedNoIdentifier int `json:"skipped_no_identifier" yaml:"skipped_no_identifier"`
	SkippedNoParent     int `json:"skipped_no_parent" yaml:"skipped_no_parent"`
	SkippedAmbiguous    int `json:"skipped_ambiguous" yaml:"skipped_ambiguous"`
	SkippedShape        int `json:"skipped_shape" yaml:"skipped_shape"`
	SkippedConsumed     int `json:"skipped_consumed" yaml:"skipped_consumed"`

	ResolvedConjunction   int `json:"resolved_conjunction" yaml:"resolved_conjunction"`
	ResolvedConceptPrefix int `json:"resolved_concept_prefix" yaml:"resolved_concept_prefix"`
	ResolvedScoped        int `json:"resolved_scoped" yaml:"resolved_scoped"`

	Redefinitions int `json:"redefinitions" yaml:"redefinitions"`

	InterpreterResolved   int `json:"interpreter_resolved" yaml:"interpreter_resolved"`
	InterpreterUnresolved int `json:"interpreter_unresolved" yaml:"interpreter_unresolved"`

	Classified        int `json:"classified" yaml:"classified"`
	ClassifiedCoerced int `json:"classified_coerced" yaml:"classified_coerced"`
	Cycles            int `json:"cycles" yaml:"cycles"`
	SelfReferences    int `json:"self_references" yaml:"self_references"`
}

// ExtractionRate returns defined / (defined + remaining), or 0 when both are zero.
func ExtractionRate(defined, remaining int) float64 {
	if defined+remaining == 0 {
		return 0
	}
	return float64(defined) / float64(defined+remaining)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package interp

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/specgraph/internal/oracle"
	"github.com/pdiddy/specgraph/pkg/types"
)

// ErrNoCall reports a reply that holds neither a JSON call object nor a
// name(args) line.
var ErrNoCall = errors.New("no method call found")

// callLinePattern matches name(args) on a single line.
var callLinePattern = regexp.MustCompile(`^\s*` + "`?" + `([A-Za-z0-9_]+)\s*\((.*)\)` + "`?" + `\s*[;.]?\s*$`)

// arg is one decoded call-syntax argument: a scalar or a bracketed list.
type arg struct {
	value  string
	list   []string
	isList bool
}

// ParseCall decodes an oracle reply into a validated Call. A JSON object,
// bare or fenced, takes precedence; otherwise the first line of the form
// name(arg, [a, b]) is used. The returned error explains what was wrong
// so it can be sent back as a correction.
func ParseCall(reply string) (types.Call, error) {
	if raw := oracle.ExtractJSON(reply); raw != "" {
		var c types.Call
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return types.Call{}, fmt.Errorf("decoding call object: %w", err)
		}
		c.Concept = trimArg(c.Concept)
		for i, d := range c.Dependencies {
			c.Dependencies[i] = trimArg(d)
		}
		return c, c.Validate()
	}

	for _, line := range strings.Split(reply, "\n") {
		m := callLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		args, err := splitArgs(m[2])
		if err != nil {
			return types.Call{Op: types.Op(m[1])}, err
		}
		return toCall(m[1], args)
	}
	return types.Call{}, ErrNoCall
}

func toCall(name string, args []arg) (types.Call, error) {
	c := types.Call{Op: types.Op(name)}
	switch c.Op {
	case types.OpPreviousContext, types.OpNextContext, types.OpFinish:
		if len(args) != 0 {
			return c, fmt.Errorf("%s takes no arguments, got %d", name, len(args))
		}
	case types.OpCreateConcept:
		if len(args) != 1 || args[0].isList {
			return c, fmt.Errorf("%s takes exactly one identifier", name)
		}
		c.Concept = args[0].value
	case types.OpAddDependencies:
		if len(args) != 2 || args[0].isList || !args[1].isList {
			return c, fmt.Errorf("%s takes an identifier and a [list] of identifiers", name)
		}
		c.Concept = args[0].value
		c.Dependencies = args[1].list
	}
	return c, c.Validate()
}

// splitArgs splits an argument string on commas outside brackets.
func splitArgs(s string) ([]arg, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ] in arguments")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced [ in arguments")
	}
	parts = append(parts, s[start:])

	args := make([]arg, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "[") && strings.HasSuffix(p, "]") {
			a := arg{isList: true, list: []string{}}
			for _, item := range strings.Split(p[1:len(p)-1], ",") {
				if item = trimArg(item); item != "" {
					a.list = append(a.list, item)
				}
			}
			args = append(args, a)
			continue
		}
		args = append(args, arg{value: trimArg(p)})
	}
	return args, nil
}

// trimArg strips whitespace and one layer of matching quotes.
func trimArg(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch q := s[0]; q {
		case '"', '\'', '`':
			if s[len(s)-1] == q {
				s = strings.TrimSpace(s[1 : len(s)-1])
			}
		}
	}
	return s
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches an object inside a fenced code block.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern is the greedy fallback for a bare object.
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailingCommaPattern matches a trailing comma before } or ].
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON returns the JSON object embedded in a model reply, or "" if
// there is none. Fenced blocks win over bare objects; trailing commas are
// dropped.
func ExtractJSON(reply string) string {
	var raw string
	if m := jsonBlockPattern.FindStringSubmatch(reply); len(m) > 1 {
		raw = m[1]
	} else {
		raw = jsonObjectPattern.FindString(reply)
	}
	if raw == "" {
		return ""
	}
	return trailingCommaPattern.ReplaceAllString(strings.TrimSpace(raw), "$1")
}

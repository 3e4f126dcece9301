// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"
)

// tokenNoiseRe matches quote characters (optionally backslash-escaped) and
// runs of Unicode whitespace, including no-break and em spaces; both
// collapse to a single space.
var tokenNoiseRe = regexp.MustCompile(`(?:\\?"|[\s\v\p{Z}\x{85}])+`)

// Clean normalizes a raw text fragment into an identifier or display name:
// quotes are dropped, whitespace runs collapse to one space, and the
// result is trimmed.
func Clean(token string) string {
	return strings.TrimSpace(tokenNoiseRe.ReplaceAllString(token, " "))
}

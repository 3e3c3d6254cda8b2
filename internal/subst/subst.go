// SPDX-License-Identifier: MPL-2.0

// Package subst implements safe "$name" substitution: known names are
// replaced, unknown names and malformed placeholders are left untouched.
package subst

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// LookupFunc returns the value of a name and whether it is known.
type LookupFunc func(name string) (string, bool)

// placeholder matches "$$", "$name" and "${name}".
var placeholder = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\})`)

// Safe replaces placeholders in s using lookup. "$$" always collapses to "$".
func Safe(s string, lookup LookupFunc) string {
	if lookup == nil || !strings.Contains(s, "$") {
		return s
	}

	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		if groups[1] != "" {
			return "$"
		}
		name := groups[2]
		if name == "" {
			name = groups[3]
		}
		if v, ok := lookup(name); ok {
			return v
		}
		return match
	})
}

// FromMap builds a LookupFunc over arbitrary values. Scalars are converted
// with cast; values cast cannot convert count as unknown.
func FromMap(vars map[string]any) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		if !ok {
			return "", false
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return "", false
		}
		return s, true
	}
}

// Walk applies Safe to every string reachable from v, returning a copy.
// Map keys are left alone.
func Walk(v any, lookup LookupFunc) any {
	switch t := v.(type) {
	case string:
		return Safe(t, lookup)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Walk(val, lookup)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Walk(val, lookup)
		}
		return out
	default:
		return v
	}
}

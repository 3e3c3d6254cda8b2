// SPDX-License-Identifier: MPL-2.0

// Package query evaluates path queries against build documents.
//
// Queries use gjson path syntax ("a.b.c", "list.0", "list.#.name", "a.*")
// with a JSONPath-style front end: a leading "$" or "$." is dropped,
// "[N]" becomes ".N", "[*]" and ".*" select every element of a list or
// every value of a mapping, and "['key']" addresses keys containing dots
// or other special characters.
package query

import (
	"strconv"
	"strings"

	"mb-cli/internal/document"
	"mb-cli/internal/issue"

	"github.com/tidwall/gjson"
)

// Path is a translated query ready for evaluation.
type Path struct {
	// Raw is the query as written.
	Raw string
	// Expr is the gjson path.
	Expr string
	// Steps holds the segments of Expr. Paths with wildcards are evaluated
	// one step at a time.
	Steps []string
	// Fanout counts the "every element" steps.
	Fanout int
}

// Compile translates q into a gjson path.
func Compile(q string) (Path, error) {
	raw := q
	q = strings.TrimSpace(q)
	if q == "" {
		return Path{}, issue.NewConfigurationError("empty query")
	}

	if strings.HasPrefix(q, "$") {
		q = strings.TrimPrefix(strings.TrimPrefix(q, "$"), ".")
		if q == "" {
			return Path{Raw: raw, Expr: "@this", Steps: []string{}}, nil
		}
	}

	segments, err := split(raw, q)
	if err != nil {
		return Path{}, err
	}

	var (
		parts  []string
		fanout int
	)
	for i, seg := range segments {
		last := i == len(segments)-1
		switch {
		case seg == wildcard || seg == "*":
			parts = append(parts, "*")
			fanout++
		case seg == "#" && !last:
			parts = append(parts, seg)
			fanout++
		default:
			parts = append(parts, seg)
		}
	}
	expr := strings.Join(parts, ".")
	if len(parts) == 0 {
		expr = "@this"
	}

	return Path{Raw: raw, Expr: expr, Steps: parts, Fanout: fanout}, nil
}

// wildcard marks a [*] step while splitting; it cannot collide with a real
// segment because brackets never survive splitting.
const wildcard = "[*]"

// split breaks q into path segments. Dots separate segments, brackets form
// their own segment and a backslash escapes the next character.
func split(raw, q string) ([]string, error) {
	var (
		segments []string
		cur      strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(q); i++ {
		c := q[i]
		switch c {
		case '\\':
			cur.WriteByte(c)
			if i+1 < len(q) {
				i++
				cur.WriteByte(q[i])
			}
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(q[i:], ']')
			if end < 0 {
				return nil, &issue.ConfigurationError{Resource: raw, Message: "unterminated '[' in query"}
			}
			inner := strings.TrimSpace(q[i+1 : i+end])
			i += end

			switch {
			case inner == "*":
				segments = append(segments, wildcard)
			case isIndex(inner):
				segments = append(segments, inner)
			case isQuoted(inner):
				segments = append(segments, gjson.Escape(inner[1:len(inner)-1]))
			default:
				return nil, &issue.ConfigurationError{Resource: raw, Message: "invalid bracket expression [" + inner + "]"}
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	return segments, nil
}

// Find returns every value matching q in doc, in document order. A query
// without wildcards yields at most one match.
func Find(doc *document.Document, q string) ([]any, error) {
	p, err := Compile(q)
	if err != nil {
		return nil, err
	}
	return p.Find(doc)
}

// Find evaluates the compiled path against doc.
func (p Path) Find(doc *document.Document) ([]any, error) {
	data, err := doc.JSON()
	if err != nil {
		return nil, issue.WrapConfiguration(err, doc.Path(), "failed to encode document")
	}

	if p.Fanout == 0 {
		res := gjson.GetBytes(data, p.Expr)
		if !res.Exists() {
			return nil, nil
		}
		return []any{Convert(res)}, nil
	}

	results := []gjson.Result{gjson.ParseBytes(data)}
	for i, step := range p.Steps {
		last := i == len(p.Steps)-1
		var next []gjson.Result
		for _, res := range results {
			switch {
			case step == "*" && (res.IsArray() || res.IsObject()),
				step == "#" && !last && res.IsArray():
				res.ForEach(func(_, v gjson.Result) bool {
					next = append(next, v)
					return true
				})
			case step == "*", step == "#" && !last:
			default:
				if v := res.Get(step); v.Exists() {
					next = append(next, v)
				}
			}
		}
		results = next
	}

	if len(results) == 0 {
		return nil, nil
	}
	out := make([]any, len(results))
	for i, res := range results {
		out[i] = Convert(res)
	}
	return out, nil
}

// Convert turns a gjson result into the value types documents use:
// map[string]any, []any, string, int, float64, bool and nil.
func Convert(res gjson.Result) any {
	switch res.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		if !strings.ContainsAny(res.Raw, ".eE") {
			if i, err := strconv.Atoi(res.Raw); err == nil {
				return i
			}
		}
		return res.Float()
	case gjson.String:
		return res.String()
	}

	if res.IsArray() {
		items := res.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = Convert(item)
		}
		return out
	}

	out := make(map[string]any)
	res.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = Convert(value)
		return true
	})
	return out
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '\'' && s[len(s)-1] == '\'' || s[0] == '"' && s[len(s)-1] == '"')
}

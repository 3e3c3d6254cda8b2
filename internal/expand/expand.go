// SPDX-License-Identifier: MPL-2.0

package expand

import (
	"encoding/json"
	"maps"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"mb-cli/internal/document"
	"mb-cli/internal/issue"
	"mb-cli/internal/memo"
	"mb-cli/internal/query"

	"github.com/spf13/cast"
)

// DefaultMaxDepth bounds how many nested lookups a single expansion may
// perform before it is reported as a cycle.
const DefaultMaxDepth = 32

var tokenPattern = regexp.MustCompile(`@\{\{(.+?)\}\}`)

type (
	// Loader loads an external document referenced through file://.
	Loader func(path string, env document.Environ) (*document.Document, error)

	// Option configures an Expander.
	Option func(*Expander)

	// Expander resolves @{{query}} tokens and file:// references. Results
	// are memoized per (document path, query) for the life of the Expander;
	// documents are immutable, so a memoized value never goes stale within
	// one run.
	Expander struct {
		defaults map[string]any
		env      document.Environ
		maxDepth int
		load     Loader

		single *memo.Cache[cacheKey, lookupResult]
		multi  *memo.Cache[cacheKey, []any]
		docs   *memo.Cache[string, *document.Document]
	}

	cacheKey struct {
		Doc   string
		Query string
	}

	lookupResult struct {
		value any
		found bool
	}

	// trail records the lookups in progress for one top-level call.
	trail struct {
		root string
		keys []cacheKey
	}
)

// WithDefaults sets the table consulted when a query has no match.
func WithDefaults(defaults map[string]any) Option {
	return func(e *Expander) {
		e.defaults = maps.Clone(defaults)
	}
}

// WithEnviron sets the environment used when loading external documents.
func WithEnviron(env document.Environ) Option {
	return func(e *Expander) {
		e.env = env
	}
}

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(e *Expander) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithLoader replaces document.Load for external documents.
func WithLoader(l Loader) Option {
	return func(e *Expander) {
		if l != nil {
			e.load = l
		}
	}
}

// New creates an Expander.
func New(opts ...Option) *Expander {
	e := &Expander{
		defaults: map[string]any{},
		maxDepth: DefaultMaxDepth,
		load:     document.Load,
		single:   memo.New[cacheKey, lookupResult](),
		multi:    memo.New[cacheKey, []any](),
		docs:     memo.New[string, *document.Document](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lookup returns the first match of q in doc, fully expanded. When nothing
// matches, the defaults table is consulted; found is false only when
// neither produced a value.
func (e *Expander) Lookup(doc *document.Document, q string) (value any, found bool, err error) {
	r, err := e.lookup(doc, q, newTrail(doc))
	if err != nil {
		return nil, false, err
	}
	return r.value, r.found, nil
}

// LookupAll returns every match of q in doc, each fully expanded. Without
// matches it returns the default for q as a single element, or an empty
// slice.
func (e *Expander) LookupAll(doc *document.Document, q string) ([]any, error) {
	key := cacheKey{Doc: doc.ID(), Query: strings.TrimSpace(q)}
	values, err := e.multi.GetOrCompute(key, func() ([]any, error) {
		matches, err := query.Find(doc, key.Query)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			if d, ok := e.defaults[key.Query]; ok {
				return []any{d}, nil
			}
			return []any{}, nil
		}

		tr := newTrail(doc)
		out := make([]any, 0, len(matches))
		for _, m := range matches {
			v, err := e.expand(doc, m, tr)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(values), nil
}

// Expand expands every string reachable from v against doc. Mapping keys
// are left untouched.
func (e *Expander) Expand(doc *document.Document, v any) (any, error) {
	return e.expand(doc, v, newTrail(doc))
}

// ExpandMap expands both keys and values of m. Keys that expand to the same
// string are a configuration error.
func (e *Expander) ExpandMap(doc *document.Document, m map[string]any) (map[string]any, error) {
	tr := newTrail(doc)
	out := make(map[string]any, len(m))
	origin := make(map[string]string, len(m))

	for _, k := range slices.Sorted(maps.Keys(m)) {
		ek, err := e.expandString(doc, k, tr)
		if err != nil {
			return nil, err
		}
		key, err := Stringify(ek)
		if err != nil {
			return nil, issue.WrapConfiguration(err, k, "key does not expand to a string")
		}
		if prev, dup := origin[key]; dup {
			return nil, issue.NewConfigurationError("keys %q and %q both expand to %q", prev, k, key)
		}

		v, err := e.expand(doc, m[k], tr)
		if err != nil {
			return nil, err
		}
		out[key] = v
		origin[key] = k
	}

	return out, nil
}

// Document loads an external document through the memoized loader.
func (e *Expander) Document(path string) (*document.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, issue.WrapConfiguration(err, path, "failed to resolve path")
	}
	return e.docs.GetOrCompute(abs, func() (*document.Document, error) {
		return e.load(abs, e.env)
	})
}

// Stats reports hit and miss counts of the single-value cache.
func (e *Expander) Stats() (hits, misses int) {
	return e.single.Stats()
}

func (e *Expander) lookup(doc *document.Document, q string, tr *trail) (lookupResult, error) {
	key := cacheKey{Doc: doc.ID(), Query: strings.TrimSpace(q)}
	if r, ok := e.single.Get(key); ok {
		return r, nil
	}

	if err := tr.enter(key, e.maxDepth); err != nil {
		return lookupResult{}, err
	}
	defer tr.leave()

	return e.single.GetOrCompute(key, func() (lookupResult, error) {
		matches, err := query.Find(doc, key.Query)
		if err != nil {
			return lookupResult{}, err
		}
		if len(matches) == 0 {
			if d, ok := e.defaults[key.Query]; ok {
				return lookupResult{value: d, found: true}, nil
			}
			return lookupResult{}, nil
		}

		v, err := e.expand(doc, matches[0], tr)
		if err != nil {
			return lookupResult{}, err
		}
		return lookupResult{value: v, found: true}, nil
	})
}

func (e *Expander) expand(doc *document.Document, v any, tr *trail) (any, error) {
	switch t := v.(type) {
	case string:
		return e.expandString(doc, t, tr)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ev, err := e.expand(doc, val, tr)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			ev, err := e.expand(doc, val, tr)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}

func (e *Expander) expandString(doc *document.Document, s string, tr *trail) (any, error) {
	if strings.Contains(s, "@{{") {
		var (
			b    strings.Builder
			last int
		)
		for _, m := range tokenPattern.FindAllStringSubmatchIndex(s, -1) {
			b.WriteString(s[last:m[0]])

			r, err := e.lookup(doc, s[m[2]:m[3]], tr)
			if err != nil {
				return nil, err
			}
			str, err := Stringify(r.value)
			if err != nil {
				return nil, issue.WrapConfiguration(err, s[m[0]:m[1]], "value cannot be substituted into a string")
			}
			b.WriteString(str)
			last = m[1]
		}
		b.WriteString(s[last:])
		s = b.String()
	}

	if strings.HasPrefix(s, FilePrefix) {
		return e.expandFile(doc, s, tr)
	}
	return s, nil
}

func (e *Expander) expandFile(doc *document.Document, s string, tr *trail) (any, error) {
	ref, err := ParseFileReference(s)
	if err != nil {
		return nil, err
	}

	path := ref.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(doc.Dir(), path)
	}
	ext, err := e.Document(path)
	if err != nil {
		return nil, err
	}

	r, err := e.lookup(ext, ref.Query, tr)
	if err != nil {
		return nil, err
	}
	return r.value, nil
}

// Stringify renders a resolved value for substitution into a string:
// nil becomes empty, containers become JSON and scalars use cast.
func Stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case map[string]any, []any:
		data, err := json.Marshal(t)
		return string(data), err
	}
	return cast.ToStringE(v)
}

func newTrail(doc *document.Document) *trail {
	return &trail{root: doc.ID()}
}

func (t *trail) enter(key cacheKey, maxDepth int) error {
	for i, k := range t.keys {
		if k == key {
			return &issue.InterpolationCycleError{Chain: t.labels(t.keys[i:], key)}
		}
	}
	if len(t.keys) >= maxDepth {
		return &issue.InterpolationCycleError{Chain: t.labels(t.keys, key), MaxDepth: maxDepth}
	}
	t.keys = append(t.keys, key)
	return nil
}

func (t *trail) leave() {
	t.keys = t.keys[:len(t.keys)-1]
}

func (t *trail) labels(keys []cacheKey, next cacheKey) []string {
	out := make([]string, 0, len(keys)+1)
	for _, k := range append(slices.Clone(keys), next) {
		if k.Doc == t.root {
			out = append(out, k.Query)
		} else {
			out = append(out, filepath.Base(k.Doc)+"@"+k.Query)
		}
	}
	return out
}

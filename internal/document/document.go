// SPDX-License-Identifier: MPL-2.0

package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type (
	// Format identifies the serialization a document was parsed from.
	Format string

	// Environ looks up an environment variable. A nil Environ disables
	// load-time substitution.
	Environ func(name string) (string, bool)

	// Document is an immutable, parsed build document. Its identity is the
	// absolute path it was loaded from.
	Document struct {
		path   string
		format Format
		root   any

		jsonOnce sync.Once
		jsonData []byte
		jsonErr  error
	}
)

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// OSEnviron reads the process environment.
func OSEnviron() Environ {
	return os.LookupEnv
}

// MapEnviron serves lookups from a fixed map. Useful in tests.
func MapEnviron(m map[string]string) Environ {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// New wraps an already decoded tree. The tree is normalized so that every
// mapping is a map[string]any and every integer is an int.
func New(path string, format Format, root any) *Document {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	root = normalize(root)
	if root == nil {
		root = map[string]any{}
	}
	return &Document{path: abs, format: format, root: root}
}

// Path returns the absolute source path.
func (d *Document) Path() string { return d.path }

// ID is the identity used for memoization.
func (d *Document) ID() string { return d.path }

// Dir is the directory containing the document.
func (d *Document) Dir() string { return filepath.Dir(d.path) }

func (d *Document) Format() Format { return d.format }

// Root returns the decoded tree. Callers must not mutate it.
func (d *Document) Root() any { return d.root }

// Mapping returns the root as a mapping, or false if the root is a list
// or scalar.
func (d *Document) Mapping() (map[string]any, bool) {
	m, ok := d.root.(map[string]any)
	return m, ok
}

// JSON returns the tree encoded as JSON, computed once.
func (d *Document) JSON() ([]byte, error) {
	d.jsonOnce.Do(func() {
		d.jsonData, d.jsonErr = json.Marshal(d.root)
	})
	return d.jsonData, d.jsonErr
}

func (d *Document) String() string {
	return fmt.Sprintf("%s (%s)", d.path, d.format)
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int64:
		return int(t)
	case int32:
		return int(t)
	case uint64:
		return int(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

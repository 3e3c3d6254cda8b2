// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"mb-cli/internal/logging"
	"mb-cli/internal/plugin"
	"mb-cli/internal/query"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// BuildContextFile is the state file name inside the artifact directory.
const BuildContextFile = "build_context.json"

// DefaultBuildContext keeps variables in a JSON file under the artifact
// directory so that later runs and later steps can read them.
type DefaultBuildContext struct {
	path string
	log  *log.Logger
}

// NewDefaultBuildContext is the factory of DefaultBuildContext.
func NewDefaultBuildContext(d plugin.Deps) (plugin.BuildContext, error) {
	dir, err := d.Config().ArtifactDir()
	if err != nil {
		return nil, err
	}
	l := logging.Get("BuildContext")
	l.Debug("Initializing DefaultBuildContext")
	return &DefaultBuildContext{path: filepath.Join(dir, BuildContextFile), log: l}, nil
}

// Path is the state file location.
func (b *DefaultBuildContext) Path() string { return b.path }

// Variables returns the stored variables, or an empty map when nothing
// has been stored yet.
func (b *DefaultBuildContext) Variables() (map[string]any, error) {
	data, err := b.read()
	if err != nil || data == nil {
		return map[string]any{}, err
	}
	vars, ok := query.Convert(gjson.ParseBytes(data)).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("build context %s does not hold a JSON object", b.path)
	}
	return vars, nil
}

// AddVariables merges vars into the state file. Keys already stored and
// not present in vars are kept.
func (b *DefaultBuildContext) AddVariables(vars map[string]any) error {
	data, err := b.read()
	if err != nil {
		return err
	}
	if data == nil {
		data = []byte("{}")
	}

	for _, key := range slices.Sorted(maps.Keys(vars)) {
		data, err = sjson.SetBytes(data, gjson.Escape(key), vars[key])
		if err != nil {
			return fmt.Errorf("failed to set build context variable %s: %w", key, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write build context: %w", err)
	}
	b.log.Debug("Updated build context", "path", b.path, "keys", len(vars))
	return nil
}

// read returns nil data when the file does not exist.
func (b *DefaultBuildContext) read() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read build context: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("build context %s is not valid JSON", b.path)
	}
	return data, nil
}

// SPDX-License-Identifier: MPL-2.0

package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mb-cli/internal/issue"
	"mb-cli/internal/subst"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FormatOf picks the loader for path from its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", &issue.ConfigurationError{
		Resource: path,
		Message:  "unsupported file type, only .yml, .yaml, .json and .toml documents can be loaded",
	}
}

// Load reads and parses the document at path. When env is non-nil every
// string value (not key) goes through safe "$NAME" substitution once.
func Load(path string, env Environ) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.WrapConfiguration(err, path, "failed to read document")
	}

	return Parse(path, format, data, env)
}

// Parse decodes data as format. path only serves as the document identity.
func Parse(path string, format Format, data []byte, env Environ) (*Document, error) {
	var (
		root any
		err  error
	)

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &root)
	case FormatJSON:
		root, err = decodeJSON(data)
	case FormatTOML:
		var m map[string]any
		err = toml.Unmarshal(data, &m)
		root = m
	default:
		return nil, issue.NewConfigurationError("unknown document format %q", format)
	}
	if err != nil {
		return nil, issue.WrapConfiguration(err, path, fmt.Sprintf("%s parse error", format))
	}

	doc := New(path, format, root)
	if env != nil {
		doc.root = subst.Walk(doc.root, subst.LookupFunc(env))
	}
	return doc, nil
}

func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return root, nil
}

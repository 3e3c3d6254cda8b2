// SPDX-License-Identifier: MPL-2.0

package expand

import (
	"strings"

	"mb-cli/internal/document"
	"mb-cli/internal/issue"
)

// FilePrefix marks a value as a reference into another document.
const FilePrefix = "file://"

// FileReference is a parsed "file://<path>@<query>" value.
type FileReference struct {
	Path  string
	Query string
}

// ParseFileReference splits s on its last "@". The "file://" prefix is
// optional. Only YAML and JSON documents can be referenced; TOML is
// reserved for the root build document.
func ParseFileReference(s string) (FileReference, error) {
	ref := strings.TrimPrefix(s, FilePrefix)

	at := strings.LastIndex(ref, "@")
	if at < 0 {
		return FileReference{}, &issue.ConfigurationError{
			Resource: s,
			Message:  "invalid file reference, you must specify a query by appending @<query> to the file path",
		}
	}

	path, q := ref[:at], strings.TrimSpace(ref[at+1:])
	if path == "" || q == "" {
		return FileReference{}, &issue.ConfigurationError{
			Resource: s,
			Message:  "invalid file reference, both a file path and a query are required",
		}
	}
	if format, err := document.FormatOf(path); err != nil || format == document.FormatTOML {
		return FileReference{}, &issue.ConfigurationError{
			Resource: s,
			Message:  "invalid file reference, only .yml, .yaml and .json files can be referenced",
		}
	}

	return FileReference{Path: path, Query: q}, nil
}

// SPDX-License-Identifier: MPL-2.0

// Package document loads build documents.
//
// A build document is a YAML, JSON or TOML file named .mb.yml, .mb.yaml,
// .mb.json or .mb.toml. Discover finds it by walking up from a start
// directory; Load parses it and applies safe "$NAME" environment
// substitution to string values; Validate checks the root document against
// an embedded CUE schema. Loaded documents are immutable and identified by
// their absolute path.
package document

// SPDX-License-Identifier: MPL-2.0

// Package expand resolves configuration values.
//
// A string value may contain "@{{ query }}" tokens; each is replaced by the
// string form of the first match of query in the same document, itself
// expanded first. A string that starts with "file://" after substitution is
// a reference "file://<path>@<query>" into another document, resolved
// against that document's own context. Relative paths are taken from the
// directory of the referencing document.
//
// Every top-level call tracks the lookups in progress, so a value that
// refers back to itself fails with issue.InterpolationCycleError instead of
// recursing forever.
package expand

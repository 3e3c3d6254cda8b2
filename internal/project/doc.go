// SPDX-License-Identifier: MPL-2.0

// Package project exposes the root build document to the rest of mb.
//
// A Config pairs the document with the expander used for every lookup of
// the run, so that memoized values are shared between the runner, the
// plugin container and the plugins themselves. Well-known keys such as
// "artifact_dir" fall back to Defaults when the document omits them.
package project

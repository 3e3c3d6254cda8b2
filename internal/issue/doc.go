// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// It defines the error kinds raised while resolving a build document
// (ConfigurationError, DocumentNotFoundError, UnknownCommandError and
// InterpolationCycleError) and a catalog of Markdown help pages that the CLI
// renders with glamour in verbose mode.
package issue

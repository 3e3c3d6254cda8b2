// SPDX-License-Identifier: MPL-2.0

// Package runner dispatches configured commands.
//
// A command first runs its dependencies in declared order, then its own
// body. Every command whose name does not start with an underscore also
// depends on the internal _prerun command, which derives the version,
// updates the build context and renders templates. A command is marked as
// run before its dependencies start, so a command reachable through two
// paths runs once and dependency cycles terminate.
package runner

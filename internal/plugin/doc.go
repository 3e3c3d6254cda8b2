// SPDX-License-Identifier: MPL-2.0

// Package plugin defines the four plugin contracts and wires plugins
// together.
//
// A Registry maps plugin names to factories. It is filled at startup with
// the built-in implementations and, optionally, with plugins loaded from
// the project's plugin directory. A Container turns the plugin references
// read from the build document into singletons: each factory receives the
// Container as its Deps and may ask it for the configured build context,
// version scheme or template engine, which are constructed on demand.
// After construction the reference's expanded config is handed to
// ApplyConfig. Unknown or invalid keys are logged and skipped.
package plugin

// SPDX-License-Identifier: MPL-2.0

// Package builtin holds the plugins compiled into mb.
//
// The three slot defaults (DefaultBuildContext, DefaultVersionScheme and
// DefaultTemplateEngine) are used when the build document does not name
// its own. PreRunCommand ties them together and runs before every user
// command. ShellCommand, DockerCommand and DemoCommand are the commands a
// document can configure out of the box.
package builtin

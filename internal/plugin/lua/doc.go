// SPDX-License-Identifier: MPL-2.0

// Package lua loads plugins from Lua files in the project's plugin
// directory.
//
// Each file runs once in its own sandboxed state (no io, os, package or
// debug libraries) under a fresh module id, and declares plugins with
// register:
//
//	register {
//		capability = "command",
//		name = "Greet",
//		description = "Prints a greeting",
//		dependencies = { "build" },
//		options = { greeting = "hello" },
//		run = function(self, args)
//			mb.log(self.greeting .. " " .. mb.value("name"))
//		end,
//	}
//
// The options table lists the config keys the plugin accepts, with their
// defaults. Commands also accept description and dependencies in their
// config, and their run function only sees the arguments left after the
// --verbose flag is parsed. Every function receives the plugin's self
// table first.
//
// The global mb table offers log, warn, debug, value(query) and
// project_dir, plus build_context(), version_scheme() and
// template_engine(), which return the plugins configured for those slots:
//
//	local ctx = mb.build_context()
//	ctx.add_variables({ version = mb.version_scheme().generate().version })
//	mb.template_engine().generate_files()
//
// Required functions per capability: command needs run, build_context
// needs variables and add_variables, template_engine needs generate_files
// and version_scheme needs generate.
package lua

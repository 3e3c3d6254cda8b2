// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"mb-cli/internal/plugin"
	"mb-cli/internal/project"
)

// Names of the built-in plugins besides the slot defaults in project.
const (
	PreRunCommandName    = "PreRunCommand"
	DemoCommandName      = "DemoCommand"
	ShellCommandName     = "ShellCommand"
	DockerCommandName    = "DockerCommand"
	GoTemplateEngineName = "GoTemplateEngine"
)

// Register adds every built-in plugin to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterBuildContext(project.DefaultBuildContextName, NewDefaultBuildContext)
	reg.RegisterVersionScheme(project.DefaultVersionSchemeName, NewDefaultVersionScheme)
	reg.RegisterTemplateEngine(project.DefaultTemplateEngineName, NewDefaultTemplateEngine)
	reg.RegisterTemplateEngine(GoTemplateEngineName, NewGoTemplateEngine)

	reg.RegisterCommand(PreRunCommandName, NewPreRunCommand)
	reg.RegisterCommand(DemoCommandName, NewDemoCommand)
	reg.RegisterCommand(ShellCommandName, NewShellCommand)
	reg.RegisterCommand(DockerCommandName, NewDockerCommand)
}

// NewRegistry returns a registry holding the built-ins.
func NewRegistry() *plugin.Registry {
	reg := plugin.NewRegistry()
	Register(reg)
	return reg
}

// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"

	"mb-cli/internal/project"
)

// Capabilities a plugin can implement. Every plugin implements exactly one.
const (
	CapabilityBuildContext Capability = iota + 1
	CapabilityCommand
	CapabilityTemplateEngine
	CapabilityVersionScheme
)

type (
	// Capability identifies one of the plugin contracts.
	Capability int

	// BuildContext persists variables across the steps of a build.
	BuildContext interface {
		Variables() (map[string]any, error)
		// AddVariables merges vars over what was stored before. Keys not in
		// vars are kept.
		AddVariables(vars map[string]any) error
	}

	// Command is a runnable unit of work. Dependencies lists the names of
	// commands that must have run before this one.
	Command interface {
		Description() string
		Dependencies() []string
		Run(ctx context.Context, args []string) error
	}

	// TemplateEngine renders the project's template files.
	TemplateEngine interface {
		GenerateFiles(ctx context.Context) error
	}

	// VersionScheme derives version variables for the build.
	VersionScheme interface {
		Generate(ctx context.Context) (map[string]any, error)
	}

	// Deps is what a factory may ask for while constructing a plugin. The
	// slot accessors return the singleton configured for that slot,
	// constructing it on first use.
	Deps interface {
		Config() *project.Config
		BuildContext() (BuildContext, error)
		VersionScheme() (VersionScheme, error)
		TemplateEngine() (TemplateEngine, error)
	}

	// Configurable plugins receive their expanded config after construction.
	// ApplyConfig must not fail; problems are reported in the result and the
	// offending keys are skipped.
	Configurable interface {
		ApplyConfig(config map[string]any) BindResult
	}

	// BindResult lists keys ApplyConfig did not use.
	BindResult struct {
		// Unknown keys are not options of the plugin.
		Unknown []string
		// Failed keys are options whose value could not be assigned.
		Failed map[string]error
	}
)

// Capabilities returns the fixed set of capabilities.
func Capabilities() []Capability {
	return []Capability{CapabilityBuildContext, CapabilityCommand, CapabilityTemplateEngine, CapabilityVersionScheme}
}

func (c Capability) String() string {
	switch c {
	case CapabilityBuildContext:
		return "BuildContext"
	case CapabilityCommand:
		return "Command"
	case CapabilityTemplateEngine:
		return "TemplateEngine"
	case CapabilityVersionScheme:
		return "VersionScheme"
	}
	return "Unknown"
}

// ParseCapability maps a capability name to its value. Names are matched
// exactly or in snake_case ("build_context").
func ParseCapability(s string) (Capability, bool) {
	for _, c := range Capabilities() {
		if s == c.String() || s == string(slotOf(c)) || (c == CapabilityCommand && s == "command") {
			return c, true
		}
	}
	return 0, false
}

// Implements reports whether instance satisfies the contract of c.
func (c Capability) Implements(instance any) bool {
	switch c {
	case CapabilityBuildContext:
		_, ok := instance.(BuildContext)
		return ok
	case CapabilityCommand:
		_, ok := instance.(Command)
		return ok
	case CapabilityTemplateEngine:
		_, ok := instance.(TemplateEngine)
		return ok
	case CapabilityVersionScheme:
		_, ok := instance.(VersionScheme)
		return ok
	}
	return false
}

func slotOf(c Capability) project.Slot {
	switch c {
	case CapabilityBuildContext:
		return project.SlotBuildContext
	case CapabilityTemplateEngine:
		return project.SlotTemplateEngine
	case CapabilityVersionScheme:
		return project.SlotVersionScheme
	}
	return ""
}

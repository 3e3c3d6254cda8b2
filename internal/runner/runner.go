// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"mb-cli/internal/builtin"
	"mb-cli/internal/dag"
	"mb-cli/internal/issue"
	"mb-cli/internal/logging"
	"mb-cli/internal/plugin"
	"mb-cli/internal/project"

	"github.com/charmbracelet/log"
)

// PreRun is the internal command every advertised command depends on.
const PreRun = "_prerun"

type (
	// Runner executes configured commands together with their
	// dependencies. Each command body runs at most once per Runner.
	Runner struct {
		container *plugin.Container
		log       *log.Logger
		commands  map[string]project.PluginReference
		plugins   map[string]string
		completed map[string]bool
	}

	// Info describes one command for listings.
	Info struct {
		Name         string
		Plugin       string
		Description  string
		Dependencies []string
	}
)

// New builds the command set from the document's commands. Commands whose
// plugin is not a registered Command are dropped with a warning. The
// internal _prerun command is always PreRunCommand; a document entry with
// that name is ignored.
func New(c *plugin.Container, logger *log.Logger) (*Runner, error) {
	if logger == nil {
		logger = logging.Get("Runner")
	}
	cfg := c.Config()

	refs, err := cfg.Commands()
	if err != nil {
		return nil, err
	}
	if _, ok := refs[PreRun]; ok {
		logger.Warn(fmt.Sprintf("The %s command is reserved, its definition in the build document is ignored", PreRun))
	}
	refs[PreRun] = project.NewReference(cfg, "commands."+PreRun, builtin.PreRunCommandName, nil)

	r := &Runner{
		container: c,
		log:       logger,
		commands:  make(map[string]project.PluginReference, len(refs)),
		plugins:   make(map[string]string, len(refs)),
		completed: make(map[string]bool),
	}
	for _, name := range slices.Sorted(maps.Keys(refs)) {
		ref := refs[name]
		pluginName, err := ref.ResolveName()
		if err != nil {
			return nil, err
		}
		d, ok := c.Registry().Lookup(pluginName)
		if !ok || d.Capability != plugin.CapabilityCommand {
			r.log.Warn(fmt.Sprintf("The following Command: %s was not found and will not be available", name),
				"plugin", pluginName)
			continue
		}
		r.commands[name] = ref
		r.plugins[name] = pluginName
	}
	return r, nil
}

// Hidden reports whether name is internal and never advertised.
func Hidden(name string) bool {
	return strings.HasPrefix(name, "_")
}

// Commands returns the advertised command names, sorted.
func (r *Runner) Commands() []string {
	var names []string
	for name := range r.commands {
		if !Hidden(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Has reports whether name is an advertised command.
func (r *Runner) Has(name string) bool {
	_, ok := r.commands[name]
	return ok && !Hidden(name)
}

// Describe loads the command's plugin and reports what it is.
func (r *Runner) Describe(name string) (Info, error) {
	if !r.Has(name) {
		return Info{}, r.unknown(name)
	}
	cmd, err := r.container.Command(r.commands[name])
	if err != nil {
		return Info{}, err
	}
	return Info{
		Name:         name,
		Plugin:       r.plugins[name],
		Description:  cmd.Description(),
		Dependencies: cmd.Dependencies(),
	}, nil
}

// Run executes name with args after its dependencies. Dependencies run
// without arguments. A command that already ran is skipped, which also
// ends dependency cycles.
func (r *Runner) Run(ctx context.Context, name string, args []string) error {
	if !r.Has(name) {
		return r.unknown(name)
	}
	return r.run(ctx, name, args)
}

func (r *Runner) run(ctx context.Context, name string, args []string) error {
	if r.completed[name] {
		r.log.Debug("Command already ran", "command", name)
		return nil
	}
	r.completed[name] = true

	cmd, deps, err := r.resolve(name)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.run(ctx, dep, nil); err != nil {
			return err
		}
	}

	r.log.Debug("Running command", "command", name, "args", args)
	if err := cmd.Run(ctx, args); err != nil {
		return fmt.Errorf("command %s failed: %w", name, err)
	}
	return nil
}

// resolve loads the command and returns its dependencies, with _prerun
// first for every command that is not itself internal.
func (r *Runner) resolve(name string) (plugin.Command, []string, error) {
	ref, ok := r.commands[name]
	if !ok {
		return nil, nil, r.unknown(name)
	}
	cmd, err := r.container.Command(ref)
	if err != nil {
		return nil, nil, err
	}

	var deps []string
	if _, ok := r.commands[PreRun]; ok && !Hidden(name) {
		deps = append(deps, PreRun)
	}
	for _, dep := range cmd.Dependencies() {
		if !slices.Contains(deps, dep) {
			deps = append(deps, dep)
		}
	}
	for _, dep := range deps {
		if _, ok := r.commands[dep]; !ok {
			return nil, nil, r.unknown(dep)
		}
	}
	return cmd, deps, nil
}

// Plan returns the commands Run would execute for name, in order, without
// running anything. Commands already run by this Runner are left out.
func (r *Runner) Plan(name string) ([]string, error) {
	if !r.Has(name) {
		return nil, r.unknown(name)
	}

	seen := maps.Clone(r.completed)
	var order []string
	var visit func(string) error
	visit = func(n string) error {
		if seen[n] {
			return nil
		}
		seen[n] = true
		_, deps, err := r.resolve(n)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		order = append(order, n)
		return nil
	}
	if err := visit(name); err != nil {
		return nil, err
	}
	return order, nil
}

// Graph loads every command and returns the graph of declared
// dependencies, with an edge from each dependency to its dependent.
func (r *Runner) Graph() (*dag.Graph, error) {
	g := dag.New()
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		g.AddNode(name)
		_, deps, err := r.resolve(name)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			g.AddEdge(dep, name)
		}
	}
	return g, nil
}

// Cycle reports a dependency cycle among the configured commands, or nil.
// Cycles do not stop Run, but their bodies run in an order that depends
// on where the run enters the cycle.
func (r *Runner) Cycle() (*dag.CycleError, error) {
	g, err := r.Graph()
	if err != nil {
		return nil, err
	}
	if _, err := g.TopologicalSort(); err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return cycleErr, nil
		}
		return nil, err
	}
	return nil, nil
}

func (r *Runner) unknown(name string) error {
	return &issue.UnknownCommandError{Name: name, Available: r.Commands()}
}

// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"io"
	"os"

	"mb-cli/internal/logging"
	"mb-cli/internal/plugin"

	"github.com/charmbracelet/log"
)

// command carries what every built-in command shares: the --verbose flag,
// configurable description and dependencies, and timing.
type command struct {
	name         string
	description  string
	dependencies []string
	log          *log.Logger
	stdout       io.Writer
}

func newCommand(name, description string) command {
	l := logging.Get(name)
	l.Debug("Initializing " + name)
	return command{name: name, description: description, log: l, stdout: os.Stdout}
}

func (c *command) Description() string { return c.description }

func (c *command) Dependencies() []string { return c.dependencies }

// bindCommon binds the options every command accepts.
func (c *command) bindCommon(cfg map[string]any) *plugin.Binder {
	return plugin.Bind(cfg).
		String("description", &c.description).
		StringSlice("dependencies", &c.dependencies)
}

// run parses the command's own flags from args and times body.
func (c *command) run(ctx context.Context, args []string, body func(ctx context.Context, args []string) error) error {
	return plugin.RunCommand(ctx, c.name, c.log, args, body)
}

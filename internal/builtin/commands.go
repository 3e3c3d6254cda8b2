// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"mb-cli/internal/plugin"
	"mb-cli/internal/shell"

	"github.com/kballard/go-shellquote"
)

type (
	// PreRunCommand runs before every user command: it generates the
	// version, stores it in the build context and renders the templates.
	PreRunCommand struct {
		command
		templates plugin.TemplateEngine
		versions  plugin.VersionScheme
		context   plugin.BuildContext
	}

	// DemoCommand logs its test_property. Useful to try out configuration.
	DemoCommand struct {
		command
		testProperty string
	}

	// ShellCommand runs a shell command line from the project directory.
	// Arguments given on the command line are quoted and appended to it.
	ShellCommand struct {
		command
		projectDir       string
		cwd              string
		cmd              string
		env              map[string]string
		returnOutput     bool
		throwOnFailure   bool
		expectedExitCode int
	}
)

// NewPreRunCommand is the factory of PreRunCommand.
func NewPreRunCommand(d plugin.Deps) (plugin.Command, error) {
	te, err := d.TemplateEngine()
	if err != nil {
		return nil, err
	}
	vs, err := d.VersionScheme()
	if err != nil {
		return nil, err
	}
	bc, err := d.BuildContext()
	if err != nil {
		return nil, err
	}
	return &PreRunCommand{
		command:   newCommand(PreRunCommandName, "Generates the version, build context and templated files"),
		templates: te,
		versions:  vs,
		context:   bc,
	}, nil
}

// Run generates the version, merges it into the build context, then
// renders templates with the updated variables.
func (c *PreRunCommand) Run(ctx context.Context, args []string) error {
	return c.run(ctx, args, func(ctx context.Context, _ []string) error {
		version, err := c.versions.Generate(ctx)
		if err != nil {
			return err
		}
		if err := c.context.AddVariables(version); err != nil {
			return err
		}
		return c.templates.GenerateFiles(ctx)
	})
}

// NewDemoCommand is the factory of DemoCommand.
func NewDemoCommand(plugin.Deps) (plugin.Command, error) {
	return &DemoCommand{
		command:      newCommand(DemoCommandName, "Logs its test_property"),
		testProperty: "initial",
	}, nil
}

// TestProperty is the bound test_property.
func (c *DemoCommand) TestProperty() string { return c.testProperty }

func (c *DemoCommand) ApplyConfig(cfg map[string]any) plugin.BindResult {
	return c.bindCommon(cfg).String("test_property", &c.testProperty).Result()
}

func (c *DemoCommand) Run(ctx context.Context, args []string) error {
	return c.run(ctx, args, func(context.Context, []string) error {
		c.log.Info("Demo Command...")
		c.log.Info("Test Property: " + c.testProperty)
		return nil
	})
}

// NewShellCommand is the factory of ShellCommand.
func NewShellCommand(d plugin.Deps) (plugin.Command, error) {
	dir := d.Config().ProjectDir()
	return &ShellCommand{
		command:        newCommand(ShellCommandName, "Runs a shell command"),
		projectDir:     dir,
		cwd:            dir,
		cmd:            "echo ShellCommand",
		returnOutput:   true,
		throwOnFailure: true,
	}, nil
}

func (c *ShellCommand) ApplyConfig(cfg map[string]any) plugin.BindResult {
	return c.bindCommon(cfg).
		String("command", &c.cmd).
		String("cwd", &c.cwd).
		StringMap("env", &c.env).
		Bool("return_output", &c.returnOutput).
		Bool("throw_on_failure", &c.throwOnFailure).
		Int("expected_exit_code", &c.expectedExitCode).
		Result()
}

// CommandLine is the command that Run executes for args.
func (c *ShellCommand) CommandLine(args []string) string {
	if len(args) == 0 {
		return c.cmd
	}
	return c.cmd + " " + shellquote.Join(args...)
}

func (c *ShellCommand) Run(ctx context.Context, args []string) error {
	return c.run(ctx, args, func(ctx context.Context, rest []string) error {
		dir := c.cwd
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.projectDir, dir)
		}

		res, err := shell.Execute(ctx, shell.Options{
			Command:          c.CommandLine(rest),
			Dir:              dir,
			Env:              c.env,
			ReturnOutput:     c.returnOutput,
			ThrowOnFailure:   c.throwOnFailure,
			ExpectedExitCode: c.expectedExitCode,
			Stdout:           c.stdout,
		})
		if c.returnOutput && res.Output != "" {
			_, _ = io.WriteString(c.stdout, res.Output)
		}
		if err != nil {
			return err
		}
		if res.ExitCode != c.expectedExitCode {
			c.log.Warn(fmt.Sprintf("Command exited with code %d", res.ExitCode),
				"command", strings.TrimSpace(c.cmd))
		}
		return nil
	})
}

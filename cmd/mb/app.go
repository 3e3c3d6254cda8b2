// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mb-cli/internal/builtin"
	"mb-cli/internal/config"
	"mb-cli/internal/document"
	"mb-cli/internal/issue"
	"mb-cli/internal/logging"
	"mb-cli/internal/plugin"
	"mb-cli/internal/plugin/lua"
	"mb-cli/internal/project"
	"mb-cli/internal/runner"

	"github.com/spf13/cobra"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root of the CLI layer: every cobra handler receives an App and opens a
	// session through it.
	App struct {
		Settings config.Provider
		stdout   io.Writer
		stderr   io.Writer
		verbose  bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Settings config.Provider
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// session is everything one invocation resolves from the build
	// document: settings, configuration, plugins and commands.
	session struct {
		settings  *config.Settings
		cfg       *project.Config
		registry  *plugin.Registry
		container *plugin.Container
		runner    *runner.Runner
		scripts   *lua.Scripts
	}
)

// NewApp creates an App with production defaults for nil dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Settings == nil {
		deps.Settings = config.NewProvider()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{Settings: deps.Settings, stdout: deps.Stdout, stderr: deps.Stderr}
}

// open loads settings from cmd's flags, finds and validates the build
// document and builds the plugin container and command runner over it.
// Callers must Close the session.
func (a *App) open(ctx context.Context, cmd *cobra.Command) (*session, error) {
	settings, err := a.Settings.Load(ctx, config.LoadOptions{Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	a.verbose = settings.Verbose

	logging.SetOutput(a.stderr)
	if lvl, ok := settings.Level(); ok {
		logging.SetLevel(lvl)
	}

	env := document.OSEnviron()
	if settings.NoEnv {
		env = nil
	}

	var cfg *project.Config
	if settings.ConfigFile != "" {
		path := settings.ConfigFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(settings.WorkDir, path)
		}
		cfg, err = project.OpenFile(path, env)
	} else {
		cfg, err = project.Open(settings.WorkDir, env)
	}
	if err != nil {
		return nil, err
	}

	if _, ok := settings.Level(); !ok {
		raw, err := cfg.LogLevel()
		if err != nil {
			return nil, err
		}
		lvl, err := logging.ParseLevel(raw)
		if err != nil {
			return nil, issue.WrapConfiguration(err, "log_level", "invalid log level")
		}
		logging.SetLevel(lvl)
	}

	pluginDir := settings.PluginDir
	if pluginDir == "" {
		if pluginDir, err = cfg.PluginDir(); err != nil {
			return nil, err
		}
	}

	reg := builtin.NewRegistry()
	scripts, err := lua.LoadDir(pluginDir, reg)
	if err != nil {
		return nil, err
	}

	container := plugin.NewContainer(cfg, reg, nil)
	r, err := runner.New(container, nil)
	if err != nil {
		scripts.Close()
		return nil, err
	}

	return &session{
		settings:  settings,
		cfg:       cfg,
		registry:  reg,
		container: container,
		runner:    r,
		scripts:   scripts,
	}, nil
}

// Close releases the plugin scripts.
func (s *session) Close() {
	s.scripts.Close()
}

// withSession runs fn over a freshly opened session and maps its error to
// an exit code.
func (a *App) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := a.open(ctx, cmd)
	if err != nil {
		return withExitCode(err)
	}
	defer s.Close()
	return withExitCode(fn(ctx, s))
}

// renderIssue prints the catalog entry that explains err, when one exists.
func (a *App) renderIssue(err error) {
	id := issue.IdFor(err)
	if id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render("dark")
	if renderErr != nil {
		logging.Get("Cli").Warn("failed to render issue catalog entry", "issueID", id, "error", renderErr)
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// formatErrorForDisplay formats an error for user display. Actionable
// errors list their suggestions, and the full chain in verbose mode.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the mb command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"mb-cli/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// DefaultCommand runs when mb is invoked without a command name.
const DefaultCommand = "default"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// newRootCommand builds the command tree over app.
func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "mb",
		Short: "Master Builder, a pluggable build orchestrator",
		Long: TitleStyle.Render("mb") + SubtitleStyle.Render(" - Master Builder, a pluggable build orchestrator") + `

mb reads a build document (.mb.yml, .mb.yaml, .mb.json or .mb.toml) from the
current directory or any parent, resolves its @{{ }} tokens and file://
references, and runs the commands it declares. Every command first derives
the project version, records it in the build context and renders templates.

Plugins are created once per run. Commands that name the same plugin share
it, together with the configuration of the first one loaded, so give each
differently configured command its own plugin (for example a Lua plugin in
the plugin directory).

` + SubtitleStyle.Render("Examples:") + `
  mb                     Run the 'default' command
  mb build --verbose     Run the 'build' command with debug output
  mb list                List the available commands
  mb get variables       Print the expanded 'variables' section
  mb plan deploy         Show what 'mb deploy' would run`,
		SilenceUsage: true,
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	flags := root.PersistentFlags()
	flags.Bool("verbose", false, "enable debug logging")
	flags.String("log-level", "", "log level, overriding the build document (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	flags.StringP("config", "c", "", "build document to use instead of discovering one")
	flags.StringP("workdir", "C", ".", "directory where build document discovery starts")
	flags.Bool("no-env", false, "do not substitute $NAME environment variables in documents")
	flags.String("plugin-dir", "", "plugin directory, overriding the build document")

	root.AddCommand(
		newRunCommand(app),
		newListCommand(app),
		newGetCommand(app),
		newPlanCommand(app),
		newValidateCommand(app),
		newPluginsCommand(app),
		newVersionCommand(),
	)
	return root
}

// dispatchArgs rewrites the raw arguments so that "mb <name> args..." and
// a bare "mb" reach the run command. Arguments starting with a dash go to
// the default command, except for help and version requests.
func dispatchArgs(root *cobra.Command, args []string) []string {
	if len(args) == 0 {
		return []string{"run"}
	}

	first := args[0]
	switch first {
	case "-h", "--help", "--version", "help", "completion", "__complete", "__completeNoDesc":
		return args
	}
	if strings.HasPrefix(first, "-") {
		return append([]string{"run", "--"}, args...)
	}

	for _, c := range root.Commands() {
		if c.Name() == first || slices.Contains(c.Aliases, first) {
			return args
		}
	}
	return append([]string{"run"}, args...)
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	root := newRootCommand(app)
	root.SetArgs(dispatchArgs(root, os.Args[1:]))

	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return
	}

	if app.verbose {
		var ae *issue.ActionableError
		if errors.As(err, &ae) && ae.HasSuggestions() {
			fmt.Fprintln(app.stderr, formatErrorForDisplay(err, true))
		}
		app.renderIssue(err)
	}
	os.Exit(exitCodeFor(err))
}

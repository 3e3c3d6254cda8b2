// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"mb-cli/internal/issue"
	"mb-cli/internal/plugin"
	"mb-cli/internal/project"
	"mb-cli/internal/runner"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRunCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [command] [args...]",
		Short: "Run a configured command after its dependencies",
		Long: `Run a command declared under 'commands' in the build document.

Everything after the command name is passed to the command itself, so flags
meant for mb go before it. Without a name, or when the first argument is a
flag, the '` + DefaultCommand + `' command runs.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(ctx context.Context, s *session) error {
				name, rest := DefaultCommand, args
				if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
					name, rest = args[0], args[1:]
				}
				return s.runner.Run(ctx, name, rest)
			})
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(_ context.Context, s *session) error {
				names := s.runner.Commands()
				out := cmd.OutOrStdout()
				if len(names) == 0 {
					fmt.Fprintln(out, WarningStyle.Render("No commands available"))
					return nil
				}

				t := newTable(out)
				t.AppendHeader(table.Row{"COMMAND", "PLUGIN", "DESCRIPTION", "DEPENDENCIES"})
				for _, name := range names {
					info, err := s.runner.Describe(name)
					if err != nil {
						return err
					}
					t.AppendRow(table.Row{
						text.FgHiCyan.Sprint(info.Name),
						info.Plugin,
						info.Description,
						strings.Join(info.Dependencies, ", "),
					})
				}
				t.Render()
				return nil
			})
		},
	}
}

func newGetCommand(app *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "get [query]",
		Short: "Print an expanded value of the build document as YAML",
		Long: `Print the value at a dotted query, such as 'variables.foo', after resolving
@{{ }} tokens and file:// references. Without a query the whole document is
printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(_ context.Context, s *session) error {
				value, err := lookup(s.cfg, args, all)
				if err != nil {
					return err
				}
				data, err := yaml.Marshal(value)
				if err != nil {
					return fmt.Errorf("failed to encode value: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "print every match of a wildcard query as a list")
	return cmd
}

func lookup(cfg *project.Config, args []string, all bool) (any, error) {
	if len(args) == 0 {
		return cfg.Expand(cfg.Document().Root())
	}
	q := args[0]
	if all {
		return cfg.Values(q)
	}
	v, found, err := cfg.Value(q)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &issue.ConfigurationError{Resource: q, Message: "no value found in the build document"}
	}
	return v, nil
}

func newPlanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <command>",
		Short: "Show the commands a run would execute, in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(_ context.Context, s *session) error {
				order, err := s.runner.Plan(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for i, name := range order {
					label := CmdStyle.Render(name)
					if runner.Hidden(name) {
						label = SubtitleStyle.Render(name)
					}
					fmt.Fprintf(out, "%d. %s\n", i+1, label)
				}
				return nil
			})
		},
	}
}

func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the build document, its plugins and command dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(_ context.Context, s *session) error {
				return validate(cmd.OutOrStdout(), s)
			})
		},
	}
}

// validate constructs every configured plugin so that binding problems
// surface as warnings, and reports dependency cycles. Only problems that
// would abort a run are errors.
func validate(out io.Writer, s *session) error {
	ok := SuccessStyle.Render("✓")
	fmt.Fprintf(out, "%s build document %s\n", ok, s.cfg.Document().Path())

	for _, slot := range project.Slots() {
		ref, err := s.cfg.Slot(slot)
		if err != nil {
			return err
		}
		name, err := ref.ResolveName()
		if err != nil {
			return err
		}
		if err := loadSlot(s.container, slot); err != nil {
			fmt.Fprintf(out, "%s %s: %s\n", ErrorStyle.Render("✗"), slot, CmdStyle.Render(name))
			return err
		}
		fmt.Fprintf(out, "%s %s: %s\n", ok, slot, CmdStyle.Render(name))
	}

	for _, name := range s.runner.Commands() {
		info, err := s.runner.Describe(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s command %s: %s\n", ok, CmdStyle.Render(name), info.Plugin)
	}

	cycle, err := s.runner.Cycle()
	if err != nil {
		return err
	}
	if cycle != nil {
		fmt.Fprintf(out, "%s %s\n", WarningStyle.Render("!"), WarningStyle.Render(cycle.Error()))
	}
	return nil
}

func loadSlot(c *plugin.Container, slot project.Slot) error {
	var err error
	switch slot {
	case project.SlotBuildContext:
		_, err = c.BuildContext()
	case project.SlotVersionScheme:
		_, err = c.VersionScheme()
	case project.SlotTemplateEngine:
		_, err = c.TemplateEngine()
	}
	return err
}

func newPluginsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the registered plugins by capability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(_ context.Context, s *session) error {
				t := newTable(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"CAPABILITY", "NAME", "SOURCE"})
				for _, d := range s.registry.Descriptors() {
					t.AppendRow(table.Row{d.Capability.String(), text.FgHiCyan.Sprint(d.Name), d.Source})
				}
				t.Render()
				return nil
			})
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mb version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "mb "+getVersionString())
		},
	}
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

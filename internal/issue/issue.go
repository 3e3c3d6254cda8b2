// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	DocumentNotFoundId Id = iota + 1
	ConfigurationErrorId
	UnknownCommandId
	InterpolationCycleId
	PluginNotAvailableId
	ProcessFailedId
	SettingsLoadFailedId
	DependencyCycleId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	documentNotFoundIssue = &Issue{
		id: DocumentNotFoundId,
		mdMsg: `
# No build document found!

mb looks for a build document in the current directory and then in every
parent directory until it reaches the filesystem root.

## Supported file names (in order of precedence):
1. .mb.yml
2. .mb.yaml
3. .mb.json
4. .mb.toml

## Things you can try:
- Create a minimal document in your project root:
~~~yaml
name: my-project
commands:
  default: DemoCommand
~~~

- Or point mb at another directory:
~~~
$ mb --workdir /path/to/project list
~~~`,
	}

	configurationErrorIssue = &Issue{
		id: ConfigurationErrorId,
		mdMsg: `
# The build document is not valid!

A value in the build document could not be parsed, validated or resolved.

## Common causes:
- YAML indentation or JSON syntax errors
- A ` + "`file://path@query`" + ` reference without the ` + "`@query`" + ` part
- A file reference to something other than a .yml, .yaml or .json file
- A plugin reference without a ` + "`name`" + `

## Things you can try:
~~~
$ mb validate
$ mb get 'plugins.build_context'
~~~`,
		extLinks: []HttpLink{"https://github.com/tidwall/gjson/blob/master/SYNTAX.md"},
	}

	unknownCommandIssue = &Issue{
		id: UnknownCommandId,
		mdMsg: `
# Unknown command!

The command you asked for is not defined under ` + "`commands`" + `, or its
plugin is not registered and the command was dropped at startup.

## Things you can try:
- List the commands that are available:
~~~
$ mb list
~~~

- List the registered command plugins:
~~~
$ mb plugins
~~~`,
	}

	interpolationCycleIssue = &Issue{
		id: InterpolationCycleId,
		mdMsg: `
# Interpolation cycle detected!

A value refers back to itself through ` + "`@{{ query }}`" + ` tokens or
` + "`file://`" + ` references, so it can never be fully expanded.

## Example of a cycle:
~~~yaml
a: "@{{b}}"
b: "@{{a}}"
~~~

## Things you can try:
- Follow the chain printed above and break one of the links
- Move shared values into ` + "`variables`" + ` and reference them from both places`,
	}

	pluginNotAvailableIssue = &Issue{
		id: PluginNotAvailableId,
		mdMsg: `
# Plugin not available!

The build document references a plugin name that is not registered.

## Things you can try:
- Check the spelling of the plugin name (names are case sensitive)
- Make sure your Lua plugin is stored in ` + "`plugin_dir`" + ` and calls ` + "`register{}`" + `
- List registered plugins:
~~~
$ mb plugins
~~~`,
	}

	processFailedIssue = &Issue{
		id: ProcessFailedId,
		mdMsg: `
# A process exited with an unexpected status!

A shell or container command finished with an exit code different from
` + "`expected_exit_code`" + `.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see the captured output
- Set ` + "`throw_on_failure: false`" + ` if the failure is expected`,
	}

	settingsLoadFailedIssue = &Issue{
		id: SettingsLoadFailedId,
		mdMsg: `
# Failed to load mb settings!

The tool settings (the ` + "`config.cue`" + ` settings file, flags and ` + "`MB_*`" + `
environment variables) could not be read.

## Things you can try:
- Check the settings file against the accepted keys: ` + "`verbose`, `log_level`, `config_file`, `work_dir`, `no_env`, `plugin_dir`" + `
- Unset unexpected ` + "`MB_*`" + ` environment variables
- Check the value passed to ` + "`--log-level`" + ``,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Commands depend on each other in a loop!

mb still runs such commands because every command is marked as completed
before its dependencies run, but the resulting order is rarely intended.

## Things you can try:
- Inspect the execution order:
~~~
$ mb plan <command>
~~~`,
	}

	issues = map[Id]*Issue{
		documentNotFoundIssue.Id():   documentNotFoundIssue,
		configurationErrorIssue.Id(): configurationErrorIssue,
		unknownCommandIssue.Id():     unknownCommandIssue,
		interpolationCycleIssue.Id(): interpolationCycleIssue,
		pluginNotAvailableIssue.Id(): pluginNotAvailableIssue,
		processFailedIssue.Id():      processFailedIssue,
		settingsLoadFailedIssue.Id(): settingsLoadFailedIssue,
		dependencyCycleIssue.Id():    dependencyCycleIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	v := maps.Values(issues)
	slices.SortFunc(v, func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
	return v
}

func Get(id Id) *Issue {
	return issues[id]
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mb-cli/internal/config"
	"mb-cli/internal/testutil"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// isolatedSettings loads settings as usual but never reads the user's own
// settings file.
type isolatedSettings struct {
	dir string
}

func (p isolatedSettings) Load(ctx context.Context, opts config.LoadOptions) (*config.Settings, error) {
	opts.SettingsDir = p.dir
	return config.Load(ctx, opts)
}

// execute runs the command tree in process. Not parallel: the loggers are
// process wide.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := NewApp(Dependencies{
		Settings: isolatedSettings{dir: t.TempDir()},
		Stdout:   &out,
		Stderr:   &errOut,
	})
	root := newRootCommand(app)
	root.SetArgs(dispatchArgs(root, args))
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// sampleProject writes the build document and its Lua plugins into a fresh
// directory.
func sampleProject(t *testing.T, content string) string {
	t.Helper()

	dir, _ := testutil.Project(t, content)
	testutil.WriteFile(t, filepath.Join(dir, ".mb", "plugins"), "clean.lua", cleanPlugin)
	return dir
}

// gitProject is sampleProject inside a repository with one commit, so that
// the default version scheme has a HEAD to describe.
func gitProject(t *testing.T, content string) string {
	t.Helper()

	dir := sampleProject(t, content)
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}
	if _, err := wt.Add(".mb.yml"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	sig := &object.Signature{Name: "mb", Email: "mb@example.com", When: time.Unix(1700000000, 0)}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return dir
}

const cleanPlugin = `
register{
  capability = "Command",
  name = "CleanCommand",
  description = "Removes build output",
  run = function(self, args) mb.log("cleaned " .. mb.value("name")) end,
}
`

// Each command names its own plugin: plugins are singletons, so two
// commands naming the same plugin would share one configuration.
const sampleDocument = `
name: sample
version: "2.0"
variables:
  foo: bar
  greeting: "hello @{{name}}"
plugins:
  version_scheme: {name: DefaultVersionScheme, config: {version: "@{{version}}"}}
commands:
  default:
    name: DemoCommand
    config:
      test_property: from default
  build:
    name: ShellCommand
    config:
      description: Builds the project
      command: echo built > build.txt
      dependencies: [clean]
  clean: CleanCommand
  ghost: NotAPlugin
`

func TestRun(t *testing.T) {
	dir := gitProject(t, sampleDocument)

	_, stderr, err := execute(t, "run", "-C", dir, "build")
	if err != nil {
		t.Fatalf("run build error = %v\n%s", err, stderr)
	}
	if got := testutil.MustReadFile(t, filepath.Join(dir, "build.txt")); got != "built\n" {
		t.Errorf("build.txt = %q, want %q", got, "built\n")
	}
	if !strings.Contains(stderr, "cleaned sample") {
		t.Errorf("clean dependency did not run:\n%s", stderr)
	}
	if strings.Index(stderr, "cleaned sample") > strings.LastIndex(stderr, "Command Time") {
		t.Errorf("clean should run before build:\n%s", stderr)
	}
	stored := testutil.MustReadFile(t, filepath.Join(dir, ".mb", "artifacts", "build_context.json"))
	if !strings.Contains(stored, `"version":"2.0"`) {
		t.Errorf("build context = %s", stored)
	}
	if !strings.Contains(stderr, "The following Command: ghost was not found and will not be available") {
		t.Errorf("missing dropped command warning:\n%s", stderr)
	}
}

func TestRun_Default(t *testing.T) {
	dir := gitProject(t, sampleDocument)

	_, stderr, err := execute(t, "run", "-C", dir)
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, stderr)
	}
	if !strings.Contains(stderr, "Test Property: from default") {
		t.Errorf("default command did not run:\n%s", stderr)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	dir := gitProject(t, `
commands:
  broken: {name: ShellCommand, config: {command: exit 3}}
  ghost: NotAPlugin
`)

	_, _, err := execute(t, "run", "-C", dir, "broken")
	if got := exitCodeFor(err); got != 3 {
		t.Errorf("exit code = %d (%v), want 3", got, err)
	}

	_, _, err = execute(t, "run", "-C", dir, "ghost")
	if got := exitCodeFor(err); got != 2 {
		t.Errorf("exit code = %d (%v), want 2", got, err)
	}

	_, _, err = execute(t, "run", "-C", t.TempDir(), "build")
	if got := exitCodeFor(err); got != 2 {
		t.Errorf("exit code without a document = %d (%v), want 2", got, err)
	}
}

func TestList(t *testing.T) {
	dir := sampleProject(t, sampleDocument)

	out, stderr, err := execute(t, "list", "-C", dir)
	if err != nil {
		t.Fatalf("list error = %v\n%s", err, stderr)
	}
	for _, want := range []string{"COMMAND", "build", "Builds the project", "clean", "Removes build output", "ShellCommand", "CleanCommand"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output misses %q:\n%s", want, out)
		}
	}
	for _, hidden := range []string{"_prerun", "ghost"} {
		if strings.Contains(out, hidden) {
			t.Errorf("list output shows %q:\n%s", hidden, out)
		}
	}
}

func TestGet(t *testing.T) {
	dir := sampleProject(t, sampleDocument)

	tests := map[string]string{
		"variables.greeting": "hello sample\n",
		"variables.foo":      "bar\n",
		"artifact_dir":       ".mb/artifacts\n",
	}
	for query, want := range tests {
		out, stderr, err := execute(t, "get", "-C", dir, query)
		if err != nil {
			t.Fatalf("get %s error = %v\n%s", query, err, stderr)
		}
		if out != want {
			t.Errorf("get %s = %q, want %q", query, out, want)
		}
	}

	if _, _, err := execute(t, "get", "-C", dir, "variables.nope"); exitCodeFor(err) != 2 {
		t.Errorf("get of a missing value error = %v, want exit code 2", err)
	}
}

func TestPlan(t *testing.T) {
	dir := sampleProject(t, sampleDocument)

	out, stderr, err := execute(t, "plan", "-C", dir, "build")
	if err != nil {
		t.Fatalf("plan error = %v\n%s", err, stderr)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{"1. _prerun", "2. clean", "3. build"}
	if len(lines) != len(want) {
		t.Fatalf("plan output = %q", out)
	}
	for i := range want {
		if !strings.HasPrefix(lines[i], want[i][:3]) || !strings.Contains(lines[i], want[i][3:]) {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	dir, _ := testutil.Project(t, `
commands:
  a: {name: DemoCommand, config: {dependencies: [b]}}
  b: {name: ShellCommand, config: {dependencies: [a]}}
`)

	out, stderr, err := execute(t, "validate", "-C", dir)
	if err != nil {
		t.Fatalf("validate error = %v\n%s", err, stderr)
	}
	for _, want := range []string{"build_context", "DefaultBuildContext", "command", "dependency cycle detected"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output misses %q:\n%s", want, out)
		}
	}

	bad, _ := testutil.Project(t, "commands: [a, b]\n")
	if _, _, err := execute(t, "validate", "-C", bad); exitCodeFor(err) != 2 {
		t.Errorf("validate of a malformed document error = %v, want exit code 2", err)
	}

	missing, _ := testutil.Project(t, "plugins:\n  version_scheme: NoSuchScheme\n")
	out, _, err = execute(t, "validate", "-C", missing)
	if exitCodeFor(err) != 2 {
		t.Errorf("validate with an unregistered plugin error = %v, want exit code 2", err)
	}
	if !strings.Contains(out, "✗ version_scheme: NoSuchScheme") {
		t.Errorf("validate output misses the failed slot:\n%s", out)
	}
}

func TestPlugins(t *testing.T) {
	dir, _ := testutil.Project(t, "name: plugins\n")
	testutil.WriteFile(t, filepath.Join(dir, ".mb", "plugins"), "hello.lua", `
register{
  capability = "Command",
  name = "HelloCommand",
  run = function(self, args) mb.log("hello") end,
}
`)

	out, stderr, err := execute(t, "plugins", "-C", dir)
	if err != nil {
		t.Fatalf("plugins error = %v\n%s", err, stderr)
	}
	for _, want := range []string{"HelloCommand", "hello.lua", "DockerCommand", "builtin", "VersionScheme"} {
		if !strings.Contains(out, want) {
			t.Errorf("plugins output misses %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "mb ") {
		t.Errorf("version output = %q", out)
	}
}

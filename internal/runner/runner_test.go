// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"mb-cli/internal/builtin"
	"mb-cli/internal/document"
	"mb-cli/internal/issue"
	"mb-cli/internal/plugin"
	"mb-cli/internal/project"
	"mb-cli/internal/testutil"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
)

type (
	journal struct {
		ran  []string
		args map[string][]string
	}

	recorder struct {
		name string
		deps []string
		fail bool
		j    *journal
	}
)

func (r *recorder) Description() string    { return "records " + r.name }
func (r *recorder) Dependencies() []string { return r.deps }

func (r *recorder) ApplyConfig(cfg map[string]any) plugin.BindResult {
	return plugin.Bind(cfg).StringSlice("dependencies", &r.deps).Bool("fail", &r.fail).Result()
}

func (r *recorder) Run(_ context.Context, args []string) error {
	r.j.ran = append(r.j.ran, r.name)
	r.j.args[r.name] = args
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

// newRunner registers one recording command plugin per name, so that
// every command gets its own singleton.
func newRunner(t *testing.T, content string, names ...string) (*Runner, *journal, *testutil.SyncBuffer) {
	t.Helper()

	j := &journal{args: make(map[string][]string)}
	reg := plugin.NewRegistry()
	for _, name := range append(names, builtin.PreRunCommandName) {
		reg.RegisterCommand(name, func(plugin.Deps) (plugin.Command, error) {
			return &recorder{name: name, j: j}, nil
		})
	}
	reg.RegisterBuildContext("Context", func(plugin.Deps) (plugin.BuildContext, error) {
		return nil, errors.New("not used")
	})

	doc, err := document.Parse(filepath.Join(t.TempDir(), ".mb.yml"), document.FormatYAML, []byte(content), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	buf := &testutil.SyncBuffer{}
	logger := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	c := plugin.NewContainer(project.New(doc), reg, logger)

	r, err := New(c, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, j, buf
}

func TestRun_SharedDependencyRunsOnce(t *testing.T) {
	t.Parallel()

	r, j, _ := newRunner(t, `
commands:
  a: {name: A, config: {dependencies: [c]}}
  b: {name: B, config: {dependencies: [c]}}
  c: C
`, "A", "B", "C")

	ctx := context.Background()
	if err := r.Run(ctx, "a", []string{"--flag"}); err != nil {
		t.Fatalf("Run(a) error = %v", err)
	}
	if err := r.Run(ctx, "b", nil); err != nil {
		t.Fatalf("Run(b) error = %v", err)
	}

	want := []string{builtin.PreRunCommandName, "C", "A", "B"}
	if diff := cmp.Diff(want, j.ran); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"--flag"}, j.args["A"]); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if j.args["C"] != nil {
		t.Errorf("dependency got args %v, want none", j.args["C"])
	}
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	r, j, _ := newRunner(t, "commands:\n  a: A\n", "A")
	for range 3 {
		if err := r.Run(context.Background(), "a", nil); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}
	if diff := cmp.Diff([]string{builtin.PreRunCommandName, "A"}, j.ran); diff != "" {
		t.Errorf("execution mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Cycle(t *testing.T) {
	t.Parallel()

	r, j, _ := newRunner(t, `
commands:
  a: {name: A, config: {dependencies: [b]}}
  b: {name: B, config: {dependencies: [a]}}
`, "A", "B")

	if err := r.Run(context.Background(), "a", nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{builtin.PreRunCommandName, "B", "A"}, j.ran); diff != "" {
		t.Errorf("execution mismatch (-want +got):\n%s", diff)
	}

	cycle, err := r.Cycle()
	if err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if cycle == nil {
		t.Fatal("Cycle() = nil, want a cycle")
	}
	if diff := cmp.Diff([]string{"a", "b", "a"}, cycle.Cycle); diff != "" {
		t.Errorf("cycle mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	r, j, _ := newRunner(t, `
commands:
  broken: {name: A, config: {fail: true}}
  orphan: {name: B, config: {dependencies: [nope]}}
`, "A", "B")
	ctx := context.Background()

	var unknown *issue.UnknownCommandError
	err := r.Run(ctx, "missing", nil)
	if !errors.As(err, &unknown) || unknown.Name != "missing" {
		t.Fatalf("Run(missing) error = %v, want UnknownCommandError", err)
	}
	if diff := cmp.Diff([]string{"broken", "orphan"}, unknown.Available); diff != "" {
		t.Errorf("Available mismatch (-want +got):\n%s", diff)
	}

	if err := r.Run(ctx, PreRun, nil); !errors.As(err, &unknown) {
		t.Errorf("Run(%s) error = %v, want UnknownCommandError", PreRun, err)
	}

	if err := r.Run(ctx, "orphan", nil); !errors.As(err, &unknown) || unknown.Name != "nope" {
		t.Errorf("Run(orphan) error = %v, want UnknownCommandError for nope", err)
	}

	err = r.Run(ctx, "broken", nil)
	if err == nil || err.Error() != "command broken failed: boom" {
		t.Errorf("Run(broken) error = %v", err)
	}
	// orphan failed before any of its dependencies started.
	if diff := cmp.Diff([]string{builtin.PreRunCommandName, "A"}, j.ran); diff != "" {
		t.Errorf("execution mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_DropsUnavailableCommands(t *testing.T) {
	t.Parallel()

	r, _, buf := newRunner(t, `
commands:
  ok: A
  ghost: NotRegistered
  wrong: Context
`, "A")

	if diff := cmp.Diff([]string{"ok"}, r.Commands()); diff != "" {
		t.Errorf("Commands() mismatch (-want +got):\n%s", diff)
	}
	for _, name := range []string{"ghost", "wrong"} {
		if r.Has(name) {
			t.Errorf("Has(%s) = true", name)
		}
		if !strings.Contains(buf.String(), "The following Command: "+name+" was not found and will not be available") {
			t.Errorf("missing warning for %s:\n%s", name, buf.String())
		}
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	r, j, _ := newRunner(t, `
commands:
  deploy: {name: D, config: {dependencies: [test, build]}}
  test: {name: T, config: {dependencies: [build]}}
  build: B
`, "D", "T", "B")

	got, err := r.Plan("deploy")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if diff := cmp.Diff([]string{PreRun, "build", "test", "deploy"}, got); diff != "" {
		t.Errorf("Plan() mismatch (-want +got):\n%s", diff)
	}
	if len(j.ran) != 0 {
		t.Errorf("Plan() ran %v", j.ran)
	}

	if err := r.Run(context.Background(), "build", nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got, err = r.Plan("deploy")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if diff := cmp.Diff([]string{"test", "deploy"}, got); diff != "" {
		t.Errorf("Plan() after build mismatch (-want +got):\n%s", diff)
	}

	info, err := r.Describe("test")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	want := Info{Name: "test", Plugin: "T", Description: "records T", Dependencies: []string{"build"}}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("Describe() mismatch (-want +got):\n%s", diff)
	}

	if cycle, err := r.Cycle(); err != nil || cycle != nil {
		t.Errorf("Cycle() = (%v, %v), want none", cycle, err)
	}
}

func TestRun_WithoutPreRunPlugin(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry()
	j := &journal{args: make(map[string][]string)}
	reg.RegisterCommand("A", func(plugin.Deps) (plugin.Command, error) {
		return &recorder{name: "A", j: j}, nil
	})
	doc, err := document.Parse(filepath.Join(t.TempDir(), ".mb.yml"), document.FormatYAML, []byte("commands:\n  a: A\n"), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	buf := &testutil.SyncBuffer{}
	logger := log.NewWithOptions(buf, log.Options{})
	r, err := New(plugin.NewContainer(project.New(doc), reg, logger), logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := r.Run(context.Background(), "a", nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, j.ran); diff != "" {
		t.Errorf("execution mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "The following Command: _prerun was not found") {
		t.Errorf("missing warning:\n%s", buf.String())
	}
}

func TestRun_PreRunCannotBeOverridden(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unregistered plugin": "commands:\n  a: A\n  _prerun: NotRegistered\n",
		"other command":       "commands:\n  a: A\n  b: B\n  _prerun: B\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r, j, buf := newRunner(t, content, "A", "B")
			if err := r.Run(context.Background(), "a", nil); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if diff := cmp.Diff([]string{builtin.PreRunCommandName, "A"}, j.ran); diff != "" {
				t.Errorf("execution mismatch (-want +got):\n%s", diff)
			}
			if !strings.Contains(buf.String(), "The _prerun command is reserved") {
				t.Errorf("missing warning:\n%s", buf.String())
			}
		})
	}
}

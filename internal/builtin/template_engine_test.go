// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mb-cli/internal/testutil"
)

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestDefaultTemplateEngine(t *testing.T) {
	t.Parallel()

	c, dir, _ := newProject(t, `
name: sample
variables:
  greeting: hello
  version: from-config
`)
	templates := filepath.Join(dir, ".mb", "templates")
	testutil.WriteFile(t, templates, "app.conf", "# build-template\nname=$greeting ${version} $$HOME $unknown\n")
	testutil.WriteFile(t, templates, "deploy.yml", "# build-template | deploy/out/deploy.yml\nversion: $version\n")
	testutil.WriteFile(t, templates, "notes.txt", "plain file\n$greeting\n")
	testutil.WriteFile(t, templates, "escape.txt", "# build-template|../../outside.txt\n$greeting\n")

	bc, err := c.BuildContext()
	if err != nil {
		t.Fatalf("BuildContext() error = %v", err)
	}
	if err := bc.AddVariables(map[string]any{"version": "1.2.3"}); err != nil {
		t.Fatalf("AddVariables() error = %v", err)
	}

	te, err := c.TemplateEngine()
	if err != nil {
		t.Fatalf("TemplateEngine() error = %v", err)
	}
	if err := te.GenerateFiles(context.Background()); err != nil {
		t.Fatalf("GenerateFiles() error = %v", err)
	}

	tests := map[string]string{
		"app.conf":              "name=hello 1.2.3 $HOME $unknown\n",
		"deploy/out/deploy.yml": "version: 1.2.3\n",
		"outside.txt":           "hello\n",
	}
	for rel, want := range tests {
		if got := testutil.MustReadFile(t, filepath.Join(dir, rel)); got != want {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); !os.IsNotExist(err) {
		t.Error("unmarked file should not be rendered")
	}
}

func TestDefaultTemplateEngine_NoTemplateDir(t *testing.T) {
	t.Parallel()

	c, dir, _ := newProject(t, "template_dir: missing\n")
	te, err := c.TemplateEngine()
	if err != nil {
		t.Fatalf("TemplateEngine() error = %v", err)
	}
	if err := te.GenerateFiles(context.Background()); err != nil {
		t.Fatalf("GenerateFiles() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Error("a missing template directory should not be created")
	}
}

func TestGoTemplateEngine(t *testing.T) {
	t.Parallel()

	c, dir, _ := newProject(t, `
variables:
  service: api
  replicas: 3
plugins:
  template_engine: GoTemplateEngine
`)
	templates := filepath.Join(dir, ".mb", "templates")
	testutil.WriteFile(t, templates, "svc.txt", "# go-template|out/svc.txt\n{{ .service | upper }} x{{ .replicas }} {{ .missing }}\n")
	testutil.WriteFile(t, templates, "other.txt", "# build-template\n$service\n")

	te, err := c.TemplateEngine()
	if err != nil {
		t.Fatalf("TemplateEngine() error = %v", err)
	}
	if err := te.GenerateFiles(context.Background()); err != nil {
		t.Fatalf("GenerateFiles() error = %v", err)
	}

	if got := testutil.MustReadFile(t, filepath.Join(dir, "out", "svc.txt")); got != "API x3 <no value>\n" {
		t.Errorf("svc.txt = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "other.txt")); !os.IsNotExist(err) {
		t.Error("build-template files belong to the default engine")
	}
}

func TestGoTemplateEngine_Strict(t *testing.T) {
	t.Parallel()

	c, dir, _ := newProject(t, `
plugins:
  template_engine: {name: GoTemplateEngine, config: {strict: true}}
`)
	testutil.WriteFile(t, filepath.Join(dir, ".mb", "templates"), "a.txt", "# go-template\n{{ .missing }}\n")

	te, err := c.TemplateEngine()
	if err != nil {
		t.Fatalf("TemplateEngine() error = %v", err)
	}
	if err := te.GenerateFiles(context.Background()); err == nil {
		t.Error("GenerateFiles() with a missing key in strict mode should fail")
	}
}

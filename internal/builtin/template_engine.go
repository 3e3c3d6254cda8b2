// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"mb-cli/internal/logging"
	"mb-cli/internal/plugin"
	"mb-cli/internal/project"
	"mb-cli/internal/subst"

	"github.com/Masterminds/sprig/v3"
	"github.com/charmbracelet/log"
	securejoin "github.com/cyphar/filepath-securejoin"
)

// Markers a template file's first line must contain to be rendered. Text
// after a "|" on that line is the destination path relative to the
// project directory.
const (
	BuildTemplateMarker = "# build-template"
	GoTemplateMarker    = "# go-template"
)

type (
	// DefaultTemplateEngine renders files from the template directory with
	// "$name" substitution. Unknown names are left in place.
	DefaultTemplateEngine struct {
		templates
	}

	// GoTemplateEngine renders files from the template directory with
	// text/template and the sprig function library.
	GoTemplateEngine struct {
		templates
		strict bool
	}

	// templates holds what both engines share: where templates live, where
	// output goes and the variables they see.
	templates struct {
		cfg    *project.Config
		ctx    plugin.BuildContext
		marker string
		log    *log.Logger
	}

	templateFile struct {
		name string
		dest string
		body string
	}
)

// NewDefaultTemplateEngine is the factory of DefaultTemplateEngine.
func NewDefaultTemplateEngine(d plugin.Deps) (plugin.TemplateEngine, error) {
	t, err := newTemplates(d, BuildTemplateMarker)
	if err != nil {
		return nil, err
	}
	return &DefaultTemplateEngine{templates: t}, nil
}

// NewGoTemplateEngine is the factory of GoTemplateEngine.
func NewGoTemplateEngine(d plugin.Deps) (plugin.TemplateEngine, error) {
	t, err := newTemplates(d, GoTemplateMarker)
	if err != nil {
		return nil, err
	}
	return &GoTemplateEngine{templates: t}, nil
}

func newTemplates(d plugin.Deps, marker string) (templates, error) {
	bc, err := d.BuildContext()
	if err != nil {
		return templates{}, err
	}
	l := logging.Get("TemplateEngine")
	return templates{cfg: d.Config(), ctx: bc, marker: marker, log: l}, nil
}

// GenerateFiles renders every marked file of the template directory.
func (e *DefaultTemplateEngine) GenerateFiles(ctx context.Context) error {
	return e.generate(ctx, func(f templateFile, vars map[string]any) (string, error) {
		return subst.Safe(f.body, subst.FromMap(vars)), nil
	})
}

// ApplyConfig binds strict, which makes missing variables an error.
func (e *GoTemplateEngine) ApplyConfig(cfg map[string]any) plugin.BindResult {
	return plugin.Bind(cfg).Bool("strict", &e.strict).Result()
}

// GenerateFiles renders every marked file of the template directory.
func (e *GoTemplateEngine) GenerateFiles(ctx context.Context) error {
	missing := "missingkey=default"
	if e.strict {
		missing = "missingkey=error"
	}
	return e.generate(ctx, func(f templateFile, vars map[string]any) (string, error) {
		tmpl, err := template.New(f.name).Option(missing).Funcs(sprig.TxtFuncMap()).Parse(f.body)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, vars); err != nil {
			return "", err
		}
		return buf.String(), nil
	})
}

// Variables returns the document variables overlaid with the build
// context variables.
func (t *templates) Variables() (map[string]any, error) {
	vars, err := t.cfg.Variables()
	if err != nil {
		return nil, err
	}
	stored, err := t.ctx.Variables()
	if err != nil {
		return nil, err
	}
	maps.Copy(vars, stored)
	return vars, nil
}

func (t *templates) generate(ctx context.Context, render func(templateFile, map[string]any) (string, error)) error {
	t.log.Info("Generating templated files...")

	vars, err := t.Variables()
	if err != nil {
		return err
	}
	dir, err := t.cfg.TemplateDir()
	if err != nil {
		return err
	}

	files, err := t.collect(dir)
	if errors.Is(err, fs.ErrNotExist) {
		t.log.Warn("There are no template files to generate!")
		return nil
	}
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := render(f, vars)
		if err != nil {
			return fmt.Errorf("failed to render template %s: %w", f.name, err)
		}
		if err := os.MkdirAll(filepath.Dir(f.dest), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.dest, err)
		}
		if err := os.WriteFile(f.dest, []byte(out), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.dest, err)
		}
		t.log.Debug("Generated file", "template", f.name, "dest", f.dest)
	}
	return nil
}

// collect reads the top-level files of dir whose first line carries the
// marker. The marker line itself is not part of the body.
func (t *templates) collect(dir string) ([]templateFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	root := t.cfg.ProjectDir()
	var files []templateFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", e.Name(), err)
		}

		first, body, _ := strings.Cut(string(data), "\n")
		first = strings.TrimSpace(first)
		if !strings.Contains(first, t.marker) {
			t.log.Debug("The following file is being ignored: " + e.Name())
			continue
		}

		rel := e.Name()
		if _, target, ok := strings.Cut(first, "|"); ok && strings.TrimSpace(target) != "" {
			rel = strings.TrimSpace(target)
		}
		dest, err := securejoin.SecureJoin(root, rel)
		if err != nil {
			return nil, fmt.Errorf("invalid destination %s for template %s: %w", rel, e.Name(), err)
		}
		files = append(files, templateFile{name: e.Name(), dest: dest, body: body})
	}
	return files, nil
}

// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mb-cli/internal/issue"
	"mb-cli/internal/testutil"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("mb", pflag.ContinueOnError)
	fs.BoolP("verbose", "v", false, "")
	fs.String("log-level", "", "")
	fs.StringP("config", "c", "", "")
	fs.StringP("workdir", "C", "", "")
	fs.Bool("no-env", false, "")
	fs.String("plugin-dir", "", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	s, err := Load(context.Background(), LoadOptions{SettingsDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Defaults(), s); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, SettingsFileName, `
log_level:  "warning"
plugin_dir: "/from/file"
no_env:     true
work_dir:   "/from/file"
`)
	t.Setenv("MB_PLUGIN_DIR", "/from/env")
	t.Setenv("MB_WORK_DIR", "/from/env")

	fs := testFlags()
	if err := fs.Parse([]string{"--workdir", "/from/flag", "-c", "ci.yml"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	s, err := Load(context.Background(), LoadOptions{SettingsDir: dir, Flags: fs})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := &Settings{
		LogLevel:   "warning",
		ConfigFile: "ci.yml",
		WorkDir:    "/from/flag",
		NoEnv:      true,
		PluginDir:  "/from/env",
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvBool(t *testing.T) {
	t.Setenv("MB_VERBOSE", "true")

	s, err := Load(context.Background(), LoadOptions{SettingsDir: t.TempDir(), Flags: testFlags()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !s.Verbose {
		t.Error("MB_VERBOSE=true should enable verbose")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := map[string]LoadOptions{
		"missing explicit file": {SettingsFile: filepath.Join(dir, "nope.cue")},
		"unknown key":           {SettingsFile: testutil.WriteFile(t, dir, "unknown.cue", "colour: \"red\"\n")},
		"wrong type":            {SettingsFile: testutil.WriteFile(t, dir, "type.cue", "verbose: \"yes\"\n")},
		"invalid level":         {SettingsFile: testutil.WriteFile(t, dir, "level.cue", "log_level: \"loud\"\n")},
		"syntax":                {SettingsFile: testutil.WriteFile(t, dir, "syntax.cue", "verbose: {\n")},
	}

	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(context.Background(), opts)
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("Load() error = %v, want *issue.ActionableError", err)
			}
			if ae.Issue != issue.SettingsLoadFailedId {
				t.Errorf("Issue = %v, want SettingsLoadFailedId", ae.Issue)
			}
		})
	}
}

func TestLoad_InvalidLevelFlag(t *testing.T) {
	t.Parallel()

	fs := testFlags()
	if err := fs.Parse([]string{"--log-level", "chatty"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := Load(context.Background(), LoadOptions{SettingsDir: t.TempDir(), Flags: fs}); err == nil {
		t.Error("Load() with --log-level chatty should fail")
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestSettings_Level(t *testing.T) {
	t.Parallel()

	tests := []struct {
		settings Settings
		want     log.Level
		ok       bool
	}{
		{Settings{}, log.InfoLevel, false},
		{Settings{LogLevel: "ERROR"}, log.ErrorLevel, true},
		{Settings{LogLevel: "ERROR", Verbose: true}, log.DebugLevel, true},
		{Settings{LogLevel: "bogus"}, log.InfoLevel, false},
	}
	for _, tt := range tests {
		lvl, ok := tt.settings.Level()
		if ok != tt.ok || (ok && lvl != tt.want) {
			t.Errorf("%+v.Level() = (%v, %v), want (%v, %v)", tt.settings, lvl, ok, tt.want, tt.ok)
		}
	}
}

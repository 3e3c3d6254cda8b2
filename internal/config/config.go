// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mb-cli/internal/issue"
	"mb-cli/internal/logging"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// AppName names the settings directory.
	AppName = "mb"
	// EnvPrefix prefixes every environment variable read as a setting.
	EnvPrefix = "MB"
	// SettingsFileName is the settings file looked up in Dir.
	SettingsFileName = "config.cue"
)

//go:embed settings_schema.cue
var settingsSchema string

type (
	// Settings configure the tool rather than a project.
	Settings struct {
		// Verbose forces debug logging.
		Verbose bool `mapstructure:"verbose"`
		// LogLevel overrides the build document's log_level when set.
		LogLevel string `mapstructure:"log_level"`
		// ConfigFile is an explicit build document, bypassing discovery.
		ConfigFile string `mapstructure:"config_file"`
		// WorkDir is where build document discovery starts.
		WorkDir string `mapstructure:"work_dir"`
		// NoEnv disables "$NAME" substitution when documents are loaded.
		NoEnv bool `mapstructure:"no_env"`
		// PluginDir overrides the build document's plugin_dir when set.
		PluginDir string `mapstructure:"plugin_dir"`
	}

	// LoadOptions are the explicit inputs of Load.
	LoadOptions struct {
		// SettingsFile forces a settings file, which must exist.
		SettingsFile string
		// SettingsDir replaces Dir when looking for the settings file.
		SettingsDir string
		// Flags are bound over every other source. Only flags that exist
		// in the set are bound.
		Flags *pflag.FlagSet
	}

	// Provider loads Settings. Tests substitute their own.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Settings, error)
	}

	viperProvider struct{}
)

// flagKeys maps command line flags to setting keys.
var flagKeys = map[string]string{
	"verbose":    "verbose",
	"log-level":  "log_level",
	"config":     "config_file",
	"workdir":    "work_dir",
	"no-env":     "no_env",
	"plugin-dir": "plugin_dir",
}

// Defaults returns the settings used when no source sets anything.
func Defaults() *Settings {
	return &Settings{WorkDir: "."}
}

// NewProvider returns the Viper backed Provider.
func NewProvider() Provider {
	return viperProvider{}
}

func (viperProvider) Load(ctx context.Context, opts LoadOptions) (*Settings, error) {
	return Load(ctx, opts)
}

// Dir is the per-user settings directory, such as ~/.config/mb on Linux.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate the user configuration directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Load merges defaults, the settings file, the environment and opts.Flags.
func Load(ctx context.Context, opts LoadOptions) (*Settings, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load settings canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	defaults := Defaults()
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("config_file", defaults.ConfigFile)
	v.SetDefault("work_dir", defaults.WorkDir)
	v.SetDefault("no_env", defaults.NoEnv)
	v.SetDefault("plugin_dir", defaults.PluginDir)

	path, err := settingsFile(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Only the keys of the settings schema are accepted").
				WithIssue(issue.SettingsLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load settings").
			WithSuggestion("Check the values of MB_* environment variables").
			WithIssue(issue.SettingsLoadFailedId).
			Wrap(err).
			BuildError()
	}
	if s.LogLevel != "" {
		if _, err := logging.ParseLevel(s.LogLevel); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load settings").
				WithResource("log_level").
				WithSuggestion("Use one of DEBUG, INFO, WARNING, ERROR or CRITICAL").
				WithIssue(issue.SettingsLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}
	return &s, nil
}

// Level is the log level the settings ask for. ok is false when the
// build document should decide.
func (s *Settings) Level() (lvl log.Level, ok bool) {
	if s.Verbose {
		return log.DebugLevel, true
	}
	if s.LogLevel == "" {
		return log.InfoLevel, false
	}
	lvl, err := logging.ParseLevel(s.LogLevel)
	return lvl, err == nil
}

// settingsFile returns the settings file to read, or "" when there is none.
func settingsFile(opts LoadOptions) (string, error) {
	if opts.SettingsFile != "" {
		if !fileExists(opts.SettingsFile) {
			return "", issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(opts.SettingsFile).
				WithSuggestion("Verify the file path is correct").
				WithIssue(issue.SettingsLoadFailedId).
				Wrap(fmt.Errorf("settings file not found: %s", opts.SettingsFile)).
				BuildError()
		}
		return opts.SettingsFile, nil
	}

	dir := opts.SettingsDir
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			// Without a home there is no settings file, which is fine.
			return "", nil
		}
	}
	if path := filepath.Join(dir, SettingsFileName); fileExists(path) {
		return path, nil
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE settings file against #Config and merges
// it into v. Concrete(false) is used because every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(settingsSchema, cue.Filename("settings_schema.cue"))
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile settings schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return errors.New(cueerrors.Details(userValue.Err(), nil))
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return errors.New(cueerrors.Details(err, nil))
	}

	var m map[string]any
	if err := unified.Decode(&m); err != nil {
		return errors.New(cueerrors.Details(err, nil))
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SPDX-License-Identifier: MPL-2.0

package project

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"mb-cli/internal/document"
	"mb-cli/internal/expand"
	"mb-cli/internal/issue"
)

// Names of the built-in implementations used when a slot is not configured.
const (
	DefaultBuildContextName   = "DefaultBuildContext"
	DefaultVersionSchemeName  = "DefaultVersionScheme"
	DefaultTemplateEngineName = "DefaultTemplateEngine"
)

// Capability slots on the root document.
const (
	SlotBuildContext   Slot = "build_context"
	SlotVersionScheme  Slot = "version_scheme"
	SlotTemplateEngine Slot = "template_engine"
)

type (
	// Slot names a capability that the root document may configure under
	// "plugins.<slot>".
	Slot string

	// Config is the root build document together with the expander shared
	// by every lookup in the run. It is what plugins receive when they ask
	// for the configuration.
	Config struct {
		doc *document.Document
		exp *expand.Expander
	}
)

// Defaults returns the table consulted when a query has no match in the
// document. The returned map is a fresh copy.
func Defaults() map[string]any {
	return map[string]any{
		"plugins." + string(SlotBuildContext):   DefaultBuildContextName,
		"plugins." + string(SlotVersionScheme):  DefaultVersionSchemeName,
		"plugins." + string(SlotTemplateEngine): DefaultTemplateEngineName,
		"version":      "1",
		"log_level":    "INFO",
		"plugin_dir":   ".mb/plugins",
		"artifact_dir": ".mb/artifacts",
		"template_dir": ".mb/templates",
	}
}

// Slots lists the configurable capability slots.
func Slots() []Slot {
	return []Slot{SlotBuildContext, SlotVersionScheme, SlotTemplateEngine}
}

// Query is the document path of the slot.
func (s Slot) Query() string {
	return "plugins." + string(s)
}

// New wraps doc. The defaults table is always installed; opts may add an
// environment or a depth limit for the expander.
func New(doc *document.Document, opts ...expand.Option) *Config {
	opts = append([]expand.Option{expand.WithDefaults(Defaults())}, opts...)
	return &Config{doc: doc, exp: expand.New(opts...)}
}

// Open discovers the build document starting at startDir, loads it with
// env substitution, validates it against the schema and wraps it.
func Open(startDir string, env document.Environ, opts ...expand.Option) (*Config, error) {
	path, err := document.Discover(startDir)
	if err != nil {
		return nil, err
	}
	return OpenFile(path, env, opts...)
}

// OpenFile is Open for a known document path.
func OpenFile(path string, env document.Environ, opts ...expand.Option) (*Config, error) {
	doc, err := document.Load(path, env)
	if err != nil {
		return nil, err
	}
	if err := document.Validate(doc); err != nil {
		return nil, err
	}
	return New(doc, append([]expand.Option{expand.WithEnviron(env)}, opts...)...), nil
}

// Document returns the root document.
func (c *Config) Document() *document.Document { return c.doc }

// Expander returns the expander shared by the run.
func (c *Config) Expander() *expand.Expander { return c.exp }

// Value returns the first match of q, expanded, falling back to Defaults.
func (c *Config) Value(q string) (any, bool, error) {
	return c.exp.Lookup(c.doc, q)
}

// Values returns every match of q, expanded.
func (c *Config) Values(q string) ([]any, error) {
	return c.exp.LookupAll(c.doc, q)
}

// String returns the value of q rendered as a string. A missing value is
// the empty string.
func (c *Config) String(q string) (string, error) {
	v, _, err := c.Value(q)
	if err != nil {
		return "", err
	}
	s, err := expand.Stringify(v)
	if err != nil {
		return "", issue.WrapConfiguration(err, q, "value is not a string")
	}
	return s, nil
}

// Expand resolves tokens in v against the root document.
func (c *Config) Expand(v any) (any, error) {
	return c.exp.Expand(c.doc, v)
}

// Name is the project name.
func (c *Config) Name() (string, error) { return c.String("name") }

// Version is the configured base version.
func (c *Config) Version() (string, error) { return c.String("version") }

// LogLevel is the configured log level name.
func (c *Config) LogLevel() (string, error) { return c.String("log_level") }

// ProjectDir is the directory holding the build document.
func (c *Config) ProjectDir() string { return c.doc.Dir() }

// PluginDir is the external plugin directory.
func (c *Config) PluginDir() (string, error) { return c.dir("plugin_dir") }

// ArtifactDir is where run state such as the build context is persisted.
func (c *Config) ArtifactDir() (string, error) { return c.dir("artifact_dir") }

// TemplateDir is where template files are read from.
func (c *Config) TemplateDir() (string, error) { return c.dir("template_dir") }

func (c *Config) dir(q string) (string, error) {
	s, err := c.String(q)
	if err != nil {
		return "", err
	}
	if s == "" {
		return c.ProjectDir(), nil
	}
	if filepath.IsAbs(s) {
		return filepath.Clean(s), nil
	}
	return filepath.Join(c.ProjectDir(), s), nil
}

// Variables returns the expanded "variables" mapping, or an empty one.
func (c *Config) Variables() (map[string]any, error) {
	v, _, err := c.Value("variables")
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return maps.Clone(t), nil
	}
	return nil, &issue.ConfigurationError{
		Resource: c.doc.Path(),
		Message:  fmt.Sprintf("variables must be a mapping, got %T", v),
	}
}

// Slot returns the unexpanded reference configured for s, or a reference
// to the default implementation when the document has none.
func (c *Config) Slot(s Slot) (PluginReference, error) {
	plugins, err := c.section("plugins")
	if err != nil {
		return PluginReference{}, err
	}
	var raw any
	switch t := plugins.(type) {
	case nil:
	case map[string]any:
		raw = t[string(s)]
	default:
		return PluginReference{}, &issue.ConfigurationError{
			Resource: c.doc.Path(),
			Message:  fmt.Sprintf("plugins must be a mapping of slots to plugins, got %T", plugins),
		}
	}
	if raw == nil {
		return PluginReference{Slot: s.Query(), Name: Defaults()[s.Query()], Owner: c}, nil
	}
	return c.reference(s.Query(), raw)
}

// section returns a top-level value of the document. A string section is
// a token or file:// reference standing for the whole section and is
// expanded.
func (c *Config) section(key string) (any, error) {
	root, _ := c.doc.Mapping()
	raw := root[key]
	if _, ok := raw.(string); !ok {
		return raw, nil
	}
	return c.Expand(raw)
}

// Commands returns the unexpanded references under "commands", keyed by
// command name.
func (c *Config) Commands() (map[string]PluginReference, error) {
	raw, err := c.section("commands")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]PluginReference{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &issue.ConfigurationError{
			Resource: c.doc.Path(),
			Message:  fmt.Sprintf("commands must be a mapping of command names to plugins, got %T", raw),
		}
	}

	out := make(map[string]PluginReference, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		ref, err := c.reference("commands."+name, m[name])
		if err != nil {
			return nil, err
		}
		out[name] = ref
	}
	return out, nil
}

func (c *Config) reference(slot string, raw any) (PluginReference, error) {
	switch t := raw.(type) {
	case string:
		return PluginReference{Slot: slot, Name: t, Owner: c}, nil
	case map[string]any:
		return PluginReference{Slot: slot, Name: t["name"], RawConfig: t["config"], Owner: c}, nil
	}
	return PluginReference{}, &issue.ConfigurationError{
		Resource: slot,
		Message:  fmt.Sprintf("plugin reference must be a name or a mapping with a name, got %T", raw),
	}
}

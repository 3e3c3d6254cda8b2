// SPDX-License-Identifier: MPL-2.0

package project

import (
	"fmt"
	"strings"

	"mb-cli/internal/expand"
	"mb-cli/internal/issue"
)

type (
	// PluginReference points at a plugin implementation before anything has
	// been constructed. Name and RawConfig are exactly as written in the
	// document; tokens in either are resolved against Owner.
	PluginReference struct {
		// Slot is the document path the reference was read from.
		Slot      string
		Name      any
		RawConfig any
		Owner     *Config
	}

	// ResolvedPlugin is a reference with its name and config fully expanded.
	ResolvedPlugin struct {
		Name   string
		Config map[string]any
	}
)

// NewReference builds a reference by hand, mostly for internal commands
// that are not read from the document.
func NewReference(owner *Config, slot, name string, config map[string]any) PluginReference {
	var raw any
	if config != nil {
		raw = config
	}
	return PluginReference{Slot: slot, Name: name, RawConfig: raw, Owner: owner}
}

// Resolve expands the name and both keys and values of the config. A
// missing or empty name, or a config that is not a mapping, is a
// configuration error.
func (r PluginReference) Resolve() (ResolvedPlugin, error) {
	if r.Owner == nil {
		return ResolvedPlugin{}, issue.NewConfigurationError("plugin reference %s has no owning document", r.Slot)
	}

	name, err := r.resolveName()
	if err != nil {
		return ResolvedPlugin{}, err
	}

	var cfg map[string]any
	switch t := r.RawConfig.(type) {
	case nil:
		cfg = map[string]any{}
	case map[string]any:
		cfg, err = r.Owner.exp.ExpandMap(r.Owner.doc, t)
		if err != nil {
			return ResolvedPlugin{}, err
		}
	case string:
		v, err := r.Owner.Expand(t)
		if err != nil {
			return ResolvedPlugin{}, err
		}
		m, ok := v.(map[string]any)
		if !ok && v != nil {
			return ResolvedPlugin{}, &issue.ConfigurationError{
				Resource: r.Slot,
				Message:  fmt.Sprintf("config of plugin %s must resolve to a mapping, got %T", name, v),
			}
		}
		cfg = m
		if cfg == nil {
			cfg = map[string]any{}
		}
	default:
		return ResolvedPlugin{}, &issue.ConfigurationError{
			Resource: r.Slot,
			Message:  fmt.Sprintf("config of plugin %s must be a mapping, got %T", name, r.RawConfig),
		}
	}

	return ResolvedPlugin{Name: name, Config: cfg}, nil
}

// ResolveName expands only the name.
func (r PluginReference) ResolveName() (string, error) {
	if r.Owner == nil {
		return "", issue.NewConfigurationError("plugin reference %s has no owning document", r.Slot)
	}
	return r.resolveName()
}

func (r PluginReference) resolveName() (string, error) {
	if r.Name == nil {
		return "", &issue.ConfigurationError{Resource: r.Slot, Message: "plugin reference is missing a name"}
	}
	v, err := r.Owner.Expand(r.Name)
	if err != nil {
		return "", err
	}
	name, ok := v.(string)
	if !ok {
		return "", &issue.ConfigurationError{
			Resource: r.Slot,
			Message:  fmt.Sprintf("plugin name must be a string, got %T", v),
		}
	}
	if name = strings.TrimSpace(name); name == "" {
		return "", &issue.ConfigurationError{Resource: r.Slot, Message: "plugin name is empty"}
	}
	return name, nil
}

// String renders the raw name for log messages.
func (r PluginReference) String() string {
	s, err := expand.Stringify(r.Name)
	if err != nil {
		return fmt.Sprint(r.Name)
	}
	return s
}

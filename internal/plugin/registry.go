// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// SourceBuiltin is the Source of plugins compiled into mb.
const SourceBuiltin = "builtin"

type (
	// Factory constructs a plugin instance.
	Factory func(deps Deps) (any, error)

	// Descriptor describes one registered implementation.
	Descriptor struct {
		Name       string
		Capability Capability
		// Source is SourceBuiltin or the file the plugin was loaded from.
		Source string
		New    Factory
	}

	// Registry maps plugin names to implementations. It is filled once at
	// startup and only read afterwards.
	Registry struct {
		mu      sync.RWMutex
		entries map[string]Descriptor
	}
)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Descriptor)}
}

// Add registers d. Names are unique across capabilities.
func (r *Registry) Add(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("plugin name must not be empty")
	}
	if d.New == nil {
		return fmt.Errorf("plugin %s has no factory", d.Name)
	}
	if d.Capability.String() == "Unknown" {
		return fmt.Errorf("plugin %s has an unknown capability %d", d.Name, d.Capability)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.entries[d.Name]; exists {
		return fmt.Errorf("plugin %s from %s is already registered by %s", d.Name, d.Source, prev.Source)
	}
	r.entries[d.Name] = d
	return nil
}

func (r *Registry) mustAdd(d Descriptor) {
	if err := r.Add(d); err != nil {
		panic(err.Error())
	}
}

// RegisterBuildContext registers a built-in BuildContext. It panics if
// the name is taken.
func (r *Registry) RegisterBuildContext(name string, f func(Deps) (BuildContext, error)) {
	r.mustAdd(Descriptor{Name: name, Capability: CapabilityBuildContext, Source: SourceBuiltin,
		New: func(d Deps) (any, error) { return unwrap(f(d)) }})
}

// RegisterCommand registers a built-in Command. It panics if the name is
// taken.
func (r *Registry) RegisterCommand(name string, f func(Deps) (Command, error)) {
	r.mustAdd(Descriptor{Name: name, Capability: CapabilityCommand, Source: SourceBuiltin,
		New: func(d Deps) (any, error) { return unwrap(f(d)) }})
}

// RegisterTemplateEngine registers a built-in TemplateEngine. It panics if
// the name is taken.
func (r *Registry) RegisterTemplateEngine(name string, f func(Deps) (TemplateEngine, error)) {
	r.mustAdd(Descriptor{Name: name, Capability: CapabilityTemplateEngine, Source: SourceBuiltin,
		New: func(d Deps) (any, error) { return unwrap(f(d)) }})
}

// RegisterVersionScheme registers a built-in VersionScheme. It panics if
// the name is taken.
func (r *Registry) RegisterVersionScheme(name string, f func(Deps) (VersionScheme, error)) {
	r.mustAdd(Descriptor{Name: name, Capability: CapabilityVersionScheme, Source: SourceBuiltin,
		New: func(d Deps) (any, error) { return unwrap(f(d)) }})
}

// unwrap keeps a failed factory from returning a non-nil interface holding
// a nil pointer.
func unwrap[T any](v T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[name]
	return d, ok
}

// Names returns the sorted names registered for c.
func (r *Registry) Names(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, d := range r.entries {
		if d.Capability == c {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Discover returns a copy of the whole table.
func (r *Registry) Discover() map[string]Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.entries)
}

// Descriptors returns every descriptor ordered by capability, then name.
func (r *Registry) Descriptors() []Descriptor {
	return slices.SortedFunc(maps.Values(r.Discover()), func(a, b Descriptor) int {
		if c := cmp.Compare(a.Capability, b.Capability); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

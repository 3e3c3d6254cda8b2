// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"mb-cli/internal/issue"
	"mb-cli/internal/logging"
	"mb-cli/internal/project"

	"github.com/charmbracelet/log"
)

// Container turns plugin references into configured singletons. Instances
// are keyed by plugin name for the life of the Container. A Container is
// driven by one goroutine.
type Container struct {
	cfg *project.Config
	reg *Registry
	log *log.Logger

	instances map[string]any
	building  []string
}

var _ Deps = (*Container)(nil)

// NewContainer creates a Container. A nil logger uses the "Ioc" subsystem
// logger.
func NewContainer(cfg *project.Config, reg *Registry, logger *log.Logger) *Container {
	if logger == nil {
		logger = logging.Get("Ioc")
	}
	return &Container{
		cfg:       cfg,
		reg:       reg,
		log:       logger,
		instances: make(map[string]any),
	}
}

// Config returns the root configuration.
func (c *Container) Config() *project.Config { return c.cfg }

// Registry returns the registry the Container constructs from.
func (c *Container) Registry() *Registry { return c.reg }

// Load returns the singleton for ref, constructing and configuring it on
// first use. A cache hit neither constructs nor re-applies configuration.
func (c *Container) Load(ref project.PluginReference) (any, error) {
	name, err := ref.ResolveName()
	if err != nil {
		return nil, err
	}
	if instance, ok := c.instances[name]; ok {
		return instance, nil
	}

	resolved, err := ref.Resolve()
	if err != nil {
		return nil, err
	}

	desc, ok := c.reg.Lookup(name)
	if !ok {
		return nil, &issue.ConfigurationError{
			Resource: ref.Slot,
			Message:  fmt.Sprintf("plugin %s is not registered", name),
		}
	}

	if i := slices.Index(c.building, name); i >= 0 {
		chain := append(slices.Clone(c.building[i:]), name)
		return nil, &issue.ConfigurationError{
			Resource: ref.Slot,
			Message:  "plugin depends on itself: " + strings.Join(chain, " -> "),
		}
	}
	c.building = append(c.building, name)
	instance, err := desc.New(c)
	c.building = c.building[:len(c.building)-1]
	if err != nil {
		return nil, issue.WrapConfiguration(err, ref.Slot, fmt.Sprintf("failed to construct plugin %s", name))
	}
	if !desc.Capability.Implements(instance) {
		return nil, &issue.ConfigurationError{
			Resource: ref.Slot,
			Message:  fmt.Sprintf("plugin %s does not implement %s", name, desc.Capability),
		}
	}

	c.bind(name, instance, resolved.Config)
	c.instances[name] = instance
	c.log.Debug("Loaded plugin", "name", name, "capability", desc.Capability, "source", desc.Source)
	return instance, nil
}

func (c *Container) bind(name string, instance any, config map[string]any) {
	if len(config) == 0 {
		return
	}

	var res BindResult
	if cfg, ok := instance.(Configurable); ok {
		res = cfg.ApplyConfig(config)
	} else {
		res.Unknown = slices.Sorted(maps.Keys(config))
	}

	for _, key := range res.Unknown {
		c.log.Warnf("The following plugin config: %s, is not an option to set on %s", key, name)
	}
	for _, key := range slices.Sorted(maps.Keys(res.Failed)) {
		c.log.Warnf("There was a problem setting the plugin config: '%s' on '%s' with '%v'.", key, name, config[key])
		c.log.Debug("Exception occurred while trying to set a plugin config value", "error", res.Failed[key])
	}
}

// Loaded reports whether the named plugin has been constructed.
func (c *Container) Loaded(name string) bool {
	_, ok := c.instances[name]
	return ok
}

// Command loads ref and checks that it is a Command.
func (c *Container) Command(ref project.PluginReference) (Command, error) {
	return load[Command](c, ref, CapabilityCommand)
}

// BuildContext returns the build context configured for the project.
func (c *Container) BuildContext() (BuildContext, error) {
	return loadSlot[BuildContext](c, project.SlotBuildContext, CapabilityBuildContext)
}

// VersionScheme returns the version scheme configured for the project.
func (c *Container) VersionScheme() (VersionScheme, error) {
	return loadSlot[VersionScheme](c, project.SlotVersionScheme, CapabilityVersionScheme)
}

// TemplateEngine returns the template engine configured for the project.
func (c *Container) TemplateEngine() (TemplateEngine, error) {
	return loadSlot[TemplateEngine](c, project.SlotTemplateEngine, CapabilityTemplateEngine)
}

func loadSlot[T any](c *Container, slot project.Slot, want Capability) (T, error) {
	ref, err := c.cfg.Slot(slot)
	if err != nil {
		var zero T
		return zero, err
	}
	return load[T](c, ref, want)
}

func load[T any](c *Container, ref project.PluginReference, want Capability) (T, error) {
	var zero T
	instance, err := c.Load(ref)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &issue.ConfigurationError{
			Resource: ref.Slot,
			Message:  fmt.Sprintf("plugin %s is not a %s", ref, want),
		}
	}
	return typed, nil
}

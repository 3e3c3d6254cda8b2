// SPDX-License-Identifier: MPL-2.0

package lua

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"mb-cli/internal/logging"
	"mb-cli/internal/plugin"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

type (
	// instance is one constructed Lua plugin. self is the table passed as
	// the first argument of every function; it starts as a copy of the
	// definition's options.
	instance struct {
		s       *script
		def     definition
		self    *lua.LTable
		options map[string]bool
		log     *log.Logger

		description  string
		dependencies []string
	}

	buildContext   struct{ *instance }
	command        struct{ *instance }
	templateEngine struct{ *instance }
	versionScheme  struct{ *instance }
)

var (
	_ plugin.BuildContext   = (*buildContext)(nil)
	_ plugin.Command        = (*command)(nil)
	_ plugin.TemplateEngine = (*templateEngine)(nil)
	_ plugin.VersionScheme  = (*versionScheme)(nil)
	_ plugin.Configurable   = (*instance)(nil)
)

func (s *script) newInstance(d definition) *instance {
	inst := &instance{
		s:           s,
		def:         d,
		self:        s.L.NewTable(),
		options:     make(map[string]bool),
		log:         logging.Get(d.name),
		description: lua.LVAsString(d.table.RawGetString("description")),
	}
	inst.self.RawSetString("name", lua.LString(d.name))
	if deps, ok := d.table.RawGetString("dependencies").(*lua.LTable); ok {
		for i := 1; i <= deps.Len(); i++ {
			inst.dependencies = append(inst.dependencies, lua.LVAsString(deps.RawGetInt(i)))
		}
	}
	if opts, ok := d.table.RawGetString("options").(*lua.LTable); ok {
		opts.ForEach(func(k, v lua.LValue) {
			if key, ok := k.(lua.LString); ok {
				inst.options[string(key)] = true
				inst.self.RawSetString(string(key), v)
			}
		})
	}
	return inst
}

// ApplyConfig sets declared options on self. Commands also accept
// description and dependencies. Other keys are reported as unknown.
func (i *instance) ApplyConfig(cfg map[string]any) plugin.BindResult {
	b := plugin.Bind(cfg)
	if i.def.capability == plugin.CapabilityCommand {
		b.String("description", &i.description).
			StringSlice("dependencies", &i.dependencies)
	}
	for _, key := range slices.Sorted(maps.Keys(i.options)) {
		b.Func(key, func(v any) error {
			i.self.RawSetString(key, toLua(i.s.L, v))
			return nil
		})
	}
	return b.Result()
}

func (i *instance) call(ctx context.Context, fn string, args ...lua.LValue) (lua.LValue, error) {
	L := i.s.L
	f, ok := i.def.table.RawGetString(fn).(*lua.LFunction)
	if !ok {
		return lua.LNil, nil
	}

	// Nested calls from the mb slot accessors keep the outer context.
	if L.Context() == nil {
		L.SetContext(ctx)
		defer L.RemoveContext()
	}

	err := L.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, append([]lua.LValue{i.self}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", i.def.name, fn, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

func (i *instance) mapping(ctx context.Context, fn string, args ...lua.LValue) (map[string]any, error) {
	ret, err := i.call(ctx, fn, args...)
	if err != nil {
		return nil, err
	}
	switch v := toGo(ret).(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case []any:
		if len(v) == 0 {
			return map[string]any{}, nil
		}
	}
	return nil, fmt.Errorf("%s.%s must return a table of variables, got %s", i.def.name, fn, ret.Type())
}

func (c *buildContext) Variables() (map[string]any, error) {
	return c.mapping(context.Background(), "variables")
}

func (c *buildContext) AddVariables(vars map[string]any) error {
	_, err := c.call(context.Background(), "add_variables", toLua(c.s.L, vars))
	return err
}

func (c *command) Description() string { return c.description }

func (c *command) Dependencies() []string { return c.dependencies }

func (c *command) Run(ctx context.Context, args []string) error {
	return plugin.RunCommand(ctx, c.def.name, c.log, args, func(ctx context.Context, args []string) error {
		_, err := c.call(ctx, "run", toLua(c.s.L, args))
		return err
	})
}

func (t *templateEngine) GenerateFiles(ctx context.Context) error {
	_, err := t.call(ctx, "generate_files")
	return err
}

func (v *versionScheme) Generate(ctx context.Context) (map[string]any, error) {
	return v.mapping(ctx, "generate")
}

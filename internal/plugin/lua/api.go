// SPDX-License-Identifier: MPL-2.0

package lua

import (
	"context"

	"mb-cli/internal/plugin"
	"mb-cli/internal/project"

	lua "github.com/yuin/gopher-lua"
)

// The slot tables below expose the configured plugins to scripts. Their
// functions may be called with either "." or ":"; the argument they need
// is always the last one.

func (s *script) dependencies(L *lua.LState, fn string) plugin.Deps {
	if s.deps == nil {
		L.RaiseError("mb.%s is only available inside plugin functions", fn)
	}
	return s.deps
}

func (s *script) config(L *lua.LState, fn string) *project.Config {
	return s.dependencies(L, fn).Config()
}

func callContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (s *script) buildContextTable(bc plugin.BuildContext) *lua.LTable {
	L := s.L
	t := L.NewTable()
	L.SetFuncs(t, map[string]lua.LGFunction{
		"variables": func(L *lua.LState) int {
			vars, err := bc.Variables()
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(toLua(L, vars))
			return 1
		},
		"add_variables": func(L *lua.LState) int {
			vars, ok := toGo(L.CheckTable(L.GetTop())).(map[string]any)
			if !ok {
				L.ArgError(L.GetTop(), "a table of variables is required")
			}
			if err := bc.AddVariables(vars); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
	})
	return t
}

func (s *script) versionSchemeTable(vs plugin.VersionScheme) *lua.LTable {
	L := s.L
	t := L.NewTable()
	t.RawSetString("generate", L.NewFunction(func(L *lua.LState) int {
		vars, err := vs.Generate(callContext(L))
		if err != nil {
			L.RaiseError("%s", err.Error())
		}
		L.Push(toLua(L, vars))
		return 1
	}))
	return t
}

func (s *script) templateEngineTable(te plugin.TemplateEngine) *lua.LTable {
	L := s.L
	t := L.NewTable()
	t.RawSetString("generate_files", L.NewFunction(func(L *lua.LState) int {
		if err := te.GenerateFiles(callContext(L)); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	return t
}

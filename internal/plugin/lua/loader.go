// SPDX-License-Identifier: MPL-2.0

package lua

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mb-cli/internal/issue"
	"mb-cli/internal/logging"
	"mb-cli/internal/plugin"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
)

// Functions each capability must define in its register table.
var required = map[plugin.Capability][]string{
	plugin.CapabilityBuildContext:   {"variables", "add_variables"},
	plugin.CapabilityCommand:        {"run"},
	plugin.CapabilityTemplateEngine: {"generate_files"},
	plugin.CapabilityVersionScheme:  {"generate"},
}

type (
	// Scripts holds the Lua states of the loaded plugin files. The states
	// must stay open for as long as the plugins are used.
	Scripts struct {
		scripts []*script
		names   []string
	}

	script struct {
		path string
		id   string
		L    *lua.LState
		defs []definition
		// deps is set when the first plugin of the file is constructed.
		deps plugin.Deps
	}

	definition struct {
		name       string
		capability plugin.Capability
		table      *lua.LTable
	}
)

// LoadDir runs every *.lua file directly inside dir and adds the plugins
// they register to reg. Subdirectories are ignored. A missing directory
// loads nothing.
func LoadDir(dir string, reg *plugin.Registry) (*Scripts, error) {
	out := &Scripts{}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, issue.WrapConfiguration(err, dir, "failed to read plugin directory")
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lua" {
			continue
		}
		s, err := loadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			out.Close()
			return nil, err
		}
		out.scripts = append(out.scripts, s)

		for _, d := range s.defs {
			desc := plugin.Descriptor{Name: d.name, Capability: d.capability, Source: s.path, New: s.factory(d)}
			if err := reg.Add(desc); err != nil {
				out.Close()
				return nil, issue.WrapConfiguration(err, s.path, "failed to register plugin")
			}
			out.names = append(out.names, d.name)
		}
		logging.Get("Ioc").Debug("Loaded plugin file", "file", s.path, "module", s.id, "plugins", len(s.defs))
	}
	return out, nil
}

// Names lists the registered plugin names in load order.
func (s *Scripts) Names() []string { return s.names }

// Modules lists the unique module ids the files were loaded under.
func (s *Scripts) Modules() []string {
	ids := make([]string, 0, len(s.scripts))
	for _, sc := range s.scripts {
		ids = append(ids, sc.id)
	}
	return ids
}

// Close releases every Lua state.
func (s *Scripts) Close() {
	if s == nil {
		return
	}
	for _, sc := range s.scripts {
		sc.L.Close()
	}
	s.scripts = nil
}

func loadFile(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.WrapConfiguration(err, path, "failed to read plugin file")
	}

	stem := strings.TrimSuffix(filepath.Base(path), ".lua")
	s := &script{
		path: path,
		id:   fmt.Sprintf("mb_plugin_%s_%s", stem, strings.ReplaceAll(uuid.NewString(), "-", "")),
		L:    newState(),
	}
	s.installAPI(stem)

	fn, err := s.L.Load(bytes.NewReader(data), s.id)
	if err == nil {
		s.L.Push(fn)
		err = s.L.PCall(0, lua.MultRet, nil)
	}
	if err != nil {
		s.L.Close()
		return nil, issue.WrapConfiguration(err, path, "failed to load plugin file")
	}
	return s, nil
}

// newState opens a state with only the libraries that cannot reach the
// filesystem or the process.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func (s *script) installAPI(stem string) {
	L := s.L
	logger := logging.Get(stem)

	L.SetGlobal("register", L.NewFunction(s.register))

	mb := L.NewTable()
	mb.RawSetString("module", lua.LString(s.id))
	mb.RawSetString("file", lua.LString(s.path))
	L.SetFuncs(mb, map[string]lua.LGFunction{
		"log": func(L *lua.LState) int {
			logger.Info(L.CheckString(1))
			return 0
		},
		"warn": func(L *lua.LState) int {
			logger.Warn(L.CheckString(1))
			return 0
		},
		"debug": func(L *lua.LState) int {
			logger.Debug(L.CheckString(1))
			return 0
		},
		"value": func(L *lua.LState) int {
			v, _, err := s.config(L, "value").Value(L.CheckString(1))
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(toLua(L, v))
			return 1
		},
		"project_dir": func(L *lua.LState) int {
			L.Push(lua.LString(s.config(L, "project_dir").ProjectDir()))
			return 1
		},
		"build_context": func(L *lua.LState) int {
			bc, err := s.dependencies(L, "build_context").BuildContext()
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(s.buildContextTable(bc))
			return 1
		},
		"version_scheme": func(L *lua.LState) int {
			vs, err := s.dependencies(L, "version_scheme").VersionScheme()
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(s.versionSchemeTable(vs))
			return 1
		},
		"template_engine": func(L *lua.LState) int {
			te, err := s.dependencies(L, "template_engine").TemplateEngine()
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			L.Push(s.templateEngineTable(te))
			return 1
		},
	})
	L.SetGlobal("mb", mb)
}

// register is the Lua function register{capability=..., name=..., ...}.
func (s *script) register(L *lua.LState) int {
	def := L.CheckTable(1)

	name := strings.TrimSpace(lua.LVAsString(def.RawGetString("name")))
	if name == "" {
		L.ArgError(1, "name is required")
	}
	capName := lua.LVAsString(def.RawGetString("capability"))
	c, ok := plugin.ParseCapability(capName)
	if !ok {
		L.ArgError(1, fmt.Sprintf("unknown capability %q for plugin %s", capName, name))
	}
	for _, fn := range required[c] {
		if _, ok := def.RawGetString(fn).(*lua.LFunction); !ok {
			L.ArgError(1, fmt.Sprintf("%s plugin %s must define function %s", c, name, fn))
		}
	}

	s.defs = append(s.defs, definition{name: name, capability: c, table: def})
	return 0
}

func (s *script) factory(d definition) plugin.Factory {
	return func(deps plugin.Deps) (any, error) {
		s.deps = deps
		inst := s.newInstance(d)
		switch d.capability {
		case plugin.CapabilityBuildContext:
			return &buildContext{inst}, nil
		case plugin.CapabilityCommand:
			return &command{inst}, nil
		case plugin.CapabilityTemplateEngine:
			return &templateEngine{inst}, nil
		case plugin.CapabilityVersionScheme:
			return &versionScheme{inst}, nil
		}
		return nil, fmt.Errorf("unsupported capability %s", d.capability)
	}
}

package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/script/security"
)

// HostModulePrefix is the module namespace the host provides through
// PreloadModule. require accepts it and anything below it.
const HostModulePrefix = "luaproc"

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L       *lua.LState
	checker *security.PermissionChecker
}

// NewSandbox creates a sandbox for L gated by checker.
func NewSandbox(L *lua.LState, checker *security.PermissionChecker) *Sandbox {
	return &Sandbox{L: L, checker: checker}
}

// Install strips the loaders that read from disk and replaces require.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installSafeRequire()
}

var safeModules = map[string]bool{
	"_G": true, "string": true, "table": true, "math": true, "package": true,
}

// installSafeRequire empties the search paths and allows only the safe
// libraries, host modules and capability gated libraries.
func (s *Sandbox) installSafeRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))

		if loaded, ok := s.L.GetField(pkg, "loaded").(*lua.LTable); ok {
			var remove []string
			loaded.ForEach(func(k, _ lua.LValue) {
				if ks, ok := k.(lua.LString); ok && !safeModules[string(ks)] {
					remove = append(remove, string(ks))
				}
			})
			for _, key := range remove {
				loaded.RawSetString(key, lua.LNil)
			}
		}
	}

	original := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		switch {
		case safeModules[name], isHostModule(name):
		case name == "io":
			if !s.checker.HasCapability(security.CapabilityFileRead) && !s.checker.HasCapability(security.CapabilityUnsafe) {
				L.RaiseError("module 'io' requires %s capability", security.CapabilityFileRead)
			}
		case name == "os", name == "debug":
			if !s.checker.HasCapability(security.CapabilityUnsafe) {
				L.RaiseError("module %q requires %s capability", name, security.CapabilityUnsafe)
			}
		default:
			L.RaiseError("module %q is not available", name)
		}

		L.Push(original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

func isHostModule(name string) bool {
	return name == HostModulePrefix || strings.HasPrefix(name, HostModulePrefix+".")
}

// Grant grants cap and opens the libraries it unlocks. Revoking later
// does not unload them.
func (s *Sandbox) Grant(cap security.Capability) {
	s.checker.Grant(cap)

	switch cap {
	case security.CapabilityFileRead:
		s.open(lua.IoLibName, lua.OpenIo)
	case security.CapabilityUnsafe:
		s.open(lua.IoLibName, lua.OpenIo)
		s.open(lua.OsLibName, lua.OpenOs)
		s.open(lua.DebugLibName, lua.OpenDebug)
	}
}

func (s *Sandbox) open(name string, fn lua.LGFunction) {
	s.L.Push(s.L.NewFunction(fn))
	s.L.Push(lua.LString(name))
	s.L.Call(1, 0)
}

// HasCapability reports whether cap is granted.
func (s *Sandbox) HasCapability(cap security.Capability) bool {
	return s.checker.HasCapability(cap)
}

// CheckCapability returns a *security.CapabilityError if cap is not granted.
func (s *Sandbox) CheckCapability(cap security.Capability) error {
	return s.checker.CheckCapability(cap)
}

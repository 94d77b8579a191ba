package api

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/process"
	"github.com/dshills/luaproc/internal/script/security"
)

// LoaderName is the module name scripts pass to require.
const LoaderName = "luaproc"

// APIVersion is reported as luaproc.api_version.
const APIVersion = 1

// Module is a set of host functions exposed to scripts under one global.
type Module interface {
	// Name keys the module in the luaproc table.
	Name() string

	// Global is the global variable Register installs.
	Global() string

	// RequiredCapability gates the module. Empty means always available.
	RequiredCapability() security.Capability

	Register(L *lua.LState) error
}

// Registry holds the modules a host can inject into a state.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: map[string]Module{}}
}

// Register adds mod. Names must be unique.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}
	r.modules[mod.Name()] = mod
	return nil
}

// Get looks a module up by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	return mod, ok
}

// List returns all registered module names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNamesLocked()
}

// InjectAll registers every module checker allows and installs the
// luaproc loader. With a nil checker only modules without a required
// capability are injected.
func (r *Registry) InjectAll(L *lua.LState, checker *security.PermissionChecker) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var injected []Module
	for _, name := range r.sortedNamesLocked() {
		mod := r.modules[name]
		if !allowed(mod, checker) {
			continue
		}
		if err := register(L, mod); err != nil {
			return err
		}
		injected = append(injected, mod)
	}

	installLoader(L, injected)
	return nil
}

// Inject registers the named modules. Unlike InjectAll it fails when a
// module needs a capability checker does not grant.
func (r *Registry) Inject(L *lua.LState, checker *security.PermissionChecker, names ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range names {
		mod, ok := r.modules[name]
		if !ok {
			return fmt.Errorf("module %q not found", name)
		}
		if c := mod.RequiredCapability(); c != "" {
			if checker == nil {
				return security.NewCapabilityError(c, "module "+name, "no permission checker")
			}
			if err := checker.CheckCapability(c); err != nil {
				return err
			}
		}
		if err := register(L, mod); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) sortedNamesLocked() []string {
	return slices.Sorted(maps.Keys(r.modules))
}

func allowed(mod Module, checker *security.PermissionChecker) bool {
	c := mod.RequiredCapability()
	return c == "" || (checker != nil && checker.HasCapability(c))
}

func register(L *lua.LState, mod Module) error {
	if err := mod.Register(L); err != nil {
		return fmt.Errorf("register module %q: %w", mod.Name(), err)
	}
	return nil
}

// installLoader preloads the luaproc module aggregating the injected
// module globals.
func installLoader(L *lua.LState, mods []Module) {
	root := L.NewTable()
	for _, mod := range mods {
		if v := L.GetGlobal(mod.Global()); v != lua.LNil {
			L.SetField(root, mod.Name(), v)
		}
	}
	L.SetField(root, "api_version", lua.LNumber(APIVersion))

	L.PreloadModule(LoaderName, func(L *lua.LState) int {
		L.Push(root)
		return 1
	})
}

// DefaultRegistry returns a registry holding the Process and Buffer
// modules, with spawned handles tracked by procs.
func DefaultRegistry(procs *process.Registry, opts ...ProcessModuleOption) (*Registry, error) {
	r := NewRegistry()
	for _, mod := range []Module{
		NewProcessModule(procs, opts...),
		NewBufferModule(),
	} {
		if err := r.Register(mod); err != nil {
			return nil, err
		}
	}
	return r, nil
}

package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/process"
	luabridge "github.com/dshills/luaproc/internal/script/lua"
	"github.com/dshills/luaproc/internal/script/security"
)

type mockModule struct {
	name       string
	capability security.Capability
	registered bool
}

func (m *mockModule) Name() string                            { return m.name }
func (m *mockModule) Global() string                          { return "Mock_" + m.name }
func (m *mockModule) RequiredCapability() security.Capability { return m.capability }
func (m *mockModule) Register(L *lua.LState) error {
	m.registered = true
	mod := L.NewTable()
	L.SetField(mod, "id", lua.LString(m.name))
	L.SetGlobal(m.Global(), mod)
	return nil
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockModule{name: "b"}))
	require.NoError(t, r.Register(&mockModule{name: "a"}))
	assert.Error(t, r.Register(&mockModule{name: "a"}))

	mod, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", mod.Name())

	_, ok = r.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.List())
}

func TestRegistryInjectAllChecksCapabilities(t *testing.T) {
	free := &mockModule{name: "free"}
	gated := &mockModule{name: "gated", capability: security.CapabilityProcessSpawn}

	r := NewRegistry()
	require.NoError(t, r.Register(free))
	require.NoError(t, r.Register(gated))

	L := lua.NewState()
	defer L.Close()

	require.NoError(t, r.InjectAll(L, nil))
	assert.True(t, free.registered)
	assert.False(t, gated.registered)

	pc := security.NewPermissionChecker("test")
	pc.Grant(security.CapabilityProcess)
	require.NoError(t, r.InjectAll(L, pc))
	assert.True(t, gated.registered)
}

func TestRegistryInject(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockModule{name: "gated", capability: security.CapabilityUnsafe}))

	L := lua.NewState()
	defer L.Close()

	assert.Error(t, r.Inject(L, nil, "missing"))

	var capErr *security.CapabilityError
	assert.ErrorAs(t, r.Inject(L, nil, "gated"), &capErr)
	assert.ErrorAs(t, r.Inject(L, security.NewPermissionChecker("test"), "gated"), &capErr)

	pc := security.NewPermissionChecker("test")
	pc.Grant(security.CapabilityUnsafe)
	assert.NoError(t, r.Inject(L, pc, "gated"))
}

func TestLoaderAggregatesModules(t *testing.T) {
	state, err := luabridge.NewState()
	require.NoError(t, err)
	defer state.Close()

	procs := process.NewRegistry()
	defer procs.Shutdown()

	r, err := DefaultRegistry(procs)
	require.NoError(t, err)
	require.NoError(t, r.InjectAll(state.LuaState(), state.Permissions()))

	require.NoError(t, state.DoString(context.Background(), `
		local luaproc = require("luaproc")
		version = luaproc.api_version
		hasBuffer = luaproc.buffer == Buffer
		hasProcess = luaproc.process ~= nil
	`))
	assert.Equal(t, lua.LNumber(APIVersion), state.GetGlobal("version"))
	assert.Equal(t, lua.LTrue, state.GetGlobal("hasBuffer"))
	// Process needs process.spawn, which was not granted.
	assert.Equal(t, lua.LFalse, state.GetGlobal("hasProcess"))
	assert.Equal(t, lua.LNil, state.GetGlobal("Process"))
}

package api

import (
	"context"
	"errors"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/log"
	"github.com/dshills/luaproc/internal/process"
	luabridge "github.com/dshills/luaproc/internal/script/lua"
	"github.com/dshills/luaproc/internal/script/security"
)

// ExitError carries the code passed to Process.exit while the script
// unwinds.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "script exited"
}

// ExitCode reports whether err came from Process.exit and with which code.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		if ud, ok := apiErr.Object.(*lua.LUserData); ok {
			if exitErr, ok := ud.Value.(*ExitError); ok {
				return exitErr.Code, true
			}
		}
	}
	return 0, false
}

// ProcessModule implements the Process global.
type ProcessModule struct {
	procs  *process.Registry
	opts   []process.Option
	logger log.Logger

	// pty size used when spawn options leave cols or rows out
	cols, rows uint16
}

// ProcessModuleOption configures a ProcessModule.
type ProcessModuleOption func(*ProcessModule)

// WithProcessOptions sets options applied to every spawn and exec.
func WithProcessOptions(opts ...process.Option) ProcessModuleOption {
	return func(m *ProcessModule) {
		m.opts = append(m.opts, opts...)
	}
}

// WithPtySize sets the terminal size for pty children that do not pass
// cols and rows.
func WithPtySize(cols, rows uint16) ProcessModuleOption {
	return func(m *ProcessModule) {
		m.cols, m.rows = cols, rows
	}
}

// WithModuleLogger sets the logger for script level events.
func WithModuleLogger(l log.Logger) ProcessModuleOption {
	return func(m *ProcessModule) {
		m.logger = l
	}
}

// NewProcessModule creates a process module spawning through procs.
func NewProcessModule(procs *process.Registry, opts ...ProcessModuleOption) *ProcessModule {
	m := &ProcessModule{procs: procs, logger: log.Noop}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name.
func (m *ProcessModule) Name() string { return "process" }

// Global returns the global the module is installed under.
func (m *ProcessModule) Global() string { return "Process" }

// RequiredCapability returns the capability required for this module.
func (m *ProcessModule) RequiredCapability() security.Capability {
	return security.CapabilityProcessSpawn
}

// Register registers the module into the Lua state.
func (m *ProcessModule) Register(L *lua.LState) error {
	m.registerHandleType(L)

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"spawn":        m.spawn,
		"exec":         m.exec,
		"get":          m.get,
		"list":         m.list,
		"getCwd":       m.getCwd,
		"setCwd":       m.setCwd,
		"getEnv":       m.getEnv,
		"setEnv":       m.setEnv,
		"getEnvAll":    m.getEnvAll,
		"getPid":       m.getPid,
		"getParentPid": m.getParentPid,
		"exit":         m.exit,
	})
	L.SetGlobal(m.Global(), mod)
	return nil
}

// checkConfig builds a process.Config from (command, args?, options?)
// starting at stack index 1, raising on configuration faults.
func checkConfig(L *lua.LState) process.Config {
	cfg := process.Config{Command: L.CheckString(1)}

	switch v := L.Get(2).(type) {
	case *lua.LNilType:
	case *lua.LTable:
		args, err := luabridge.ToStringSlice(v)
		if err != nil {
			L.ArgError(2, err.Error())
		}
		cfg.Args = args
	default:
		L.ArgError(2, "args must be a table of strings")
	}

	switch v := L.Get(3).(type) {
	case *lua.LNilType:
	case *lua.LTable:
		applyOptions(L, v, &cfg)
	default:
		L.ArgError(3, "options must be a table")
	}
	return cfg
}

func applyOptions(L *lua.LState, opts *lua.LTable, cfg *process.Config) {
	if cwd := opts.RawGetString("cwd"); cwd != lua.LNil {
		s, ok := cwd.(lua.LString)
		if !ok {
			L.ArgError(3, "cwd must be a string")
		}
		cfg.Dir = string(s)
	}

	modes := []struct {
		key string
		dst *process.StdioMode
	}{
		{"stdin", &cfg.Stdin},
		{"stdout", &cfg.Stdout},
		{"stderr", &cfg.Stderr},
	}
	for _, mode := range modes {
		v := opts.RawGetString(mode.key)
		if v == lua.LNil {
			continue
		}
		s, ok := v.(lua.LString)
		if !ok {
			L.ArgError(3, mode.key+" must be a string")
		}
		parsed, err := process.ParseStdioMode(string(s))
		if err != nil {
			L.ArgError(3, err.Error())
		}
		*mode.dst = parsed
	}

	cfg.PtyCols = optUint16(L, opts, "cols")
	cfg.PtyRows = optUint16(L, opts, "rows")
}

func optUint16(L *lua.LState, t *lua.LTable, key string) uint16 {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return 0
	}
	n, ok := v.(lua.LNumber)
	if !ok || n < 1 || n > 0xffff {
		L.ArgError(3, key+" must be a number between 1 and 65535")
	}
	return uint16(n)
}

// spawnFailed pushes {error = msg} when err is a launch failure and
// raises otherwise.
func (m *ProcessModule) spawnFailed(L *lua.LState, err error) int {
	var sf *process.SpawnFailure
	if !errors.As(err, &sf) {
		L.RaiseError("%v", err)
		return 0
	}
	m.logger.WithValues(log.Kv{"command": sf.Command}).Debugf("script spawn failed: %v", sf.Err)

	t := L.NewTable()
	t.RawSetString("error", lua.LString(sf.Message))
	L.Push(t)
	return 1
}

func (m *ProcessModule) checkConfig(L *lua.LState) process.Config {
	cfg := checkConfig(L)
	if cfg.PtyCols == 0 {
		cfg.PtyCols = m.cols
	}
	if cfg.PtyRows == 0 {
		cfg.PtyRows = m.rows
	}
	return cfg
}

// Process.spawn(command, args?, options?) -> handle | {error = msg}
func (m *ProcessModule) spawn(L *lua.LState) int {
	cfg := m.checkConfig(L)

	h, err := m.procs.Spawn(cfg, m.opts...)
	if err != nil {
		return m.spawnFailed(L, err)
	}
	L.Push(pushHandle(L, h))
	return 1
}

// Process.get(id) -> handle | nil
//
// The handle is a new userdata over the same process, so it is not == to
// the one spawn returned.
func (m *ProcessModule) get(L *lua.LState) int {
	h, err := m.procs.Get(L.CheckString(1))
	if errors.Is(err, process.ErrHandleNotFound) {
		L.Push(lua.LNil)
		return 1
	}
	if err != nil {
		L.RaiseError("get: %v", err)
	}
	L.Push(pushHandle(L, h))
	return 1
}

// Process.list() -> {id...}
func (m *ProcessModule) list(L *lua.LState) int {
	L.Push(luabridge.ToLuaValue(L, m.procs.List()))
	return 1
}

// Process.exec(command, args?, options?) -> {stdout, stderr, exitCode} | {error = msg}
func (m *ProcessModule) exec(L *lua.LState) int {
	cfg := m.checkConfig(L)

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := m.procs.Exec(ctx, cfg, m.opts...)
	if err != nil {
		return m.spawnFailed(L, err)
	}

	L.Push(luabridge.ToLuaValue(L, map[string]any{
		"stdout":   res.Stdout,
		"stderr":   res.Stderr,
		"exitCode": res.ExitCode,
	}))
	return 1
}

// Process.getCwd() -> string
func (m *ProcessModule) getCwd(L *lua.LState) int {
	dir, err := os.Getwd()
	if err != nil {
		L.RaiseError("getCwd: %v", err)
	}
	L.Push(lua.LString(dir))
	return 1
}

// Process.setCwd(path)
func (m *ProcessModule) setCwd(L *lua.LState) int {
	if err := os.Chdir(L.CheckString(1)); err != nil {
		L.RaiseError("setCwd: %v", err)
	}
	return 0
}

// Process.getEnv(key) -> string | nil
func (m *ProcessModule) getEnv(L *lua.LState) int {
	v, ok := os.LookupEnv(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(v))
	return 1
}

// Process.setEnv(key, value). A nil value unsets key.
func (m *ProcessModule) setEnv(L *lua.LState) int {
	key := L.CheckString(1)
	var err error
	if L.Get(2) == lua.LNil {
		err = os.Unsetenv(key)
	} else {
		err = os.Setenv(key, L.CheckString(2))
	}
	if err != nil {
		L.RaiseError("setEnv: %v", err)
	}
	return 0
}

// Process.getEnvAll() -> table
func (m *ProcessModule) getEnvAll(L *lua.LState) int {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		// Windows keeps per-drive cwd entries like "=C:=C:\"; skip them.
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	L.Push(luabridge.ToLuaValue(L, env))
	return 1
}

// Process.getPid() -> number
func (m *ProcessModule) getPid(L *lua.LState) int {
	L.Push(lua.LNumber(os.Getpid()))
	return 1
}

// Process.getParentPid() -> number | nil
func (m *ProcessModule) getParentPid(L *lua.LState) int {
	ppid := os.Getppid()
	if ppid <= 0 {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(ppid))
	return 1
}

// Process.exit(code?) unwinds the script; the host decides what exiting means.
func (m *ProcessModule) exit(L *lua.LState) int {
	code := L.OptInt(1, 0)
	m.logger.Debugf("script requested exit with code %d", code)

	ud := L.NewUserData()
	ud.Value = &ExitError{Code: code}
	L.Error(ud, 0)
	return 0
}

// Package script runs Lua scripts with the luaproc modules installed.
package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/log"
	"github.com/dshills/luaproc/internal/process"
	"github.com/dshills/luaproc/internal/script/api"
	"github.com/dshills/luaproc/internal/script/lua"
	"github.com/dshills/luaproc/internal/script/security"
)

// FailureExitCode is the status reported for a script that raised an error.
const FailureExitCode = 1

type options struct {
	capabilities []security.Capability
	timeout      time.Duration
	processOpts  []process.Option
	maxProcesses int
	cols, rows   uint16
	logger       log.Logger
}

// Option configures a Host.
type Option func(*options)

// WithCapabilities grants capabilities to every script the host runs.
func WithCapabilities(caps ...security.Capability) Option {
	return func(o *options) {
		o.capabilities = append(o.capabilities, caps...)
	}
}

// WithTimeout bounds each script run. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithProcessOptions sets options for every process a script spawns.
func WithProcessOptions(opts ...process.Option) Option {
	return func(o *options) {
		o.processOpts = append(o.processOpts, opts...)
	}
}

// WithMaxProcesses limits how many live children a script may hold.
func WithMaxProcesses(n int) Option {
	return func(o *options) {
		o.maxProcesses = n
	}
}

// WithPtySize sets the default terminal size of pty children.
func WithPtySize(cols, rows uint16) Option {
	return func(o *options) {
		o.cols, o.rows = cols, rows
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Host owns one Lua state and the registry of processes spawned from it.
type Host struct {
	state  *lua.State
	procs  *process.Registry
	logger log.Logger
}

// New creates a host with the modules its capabilities allow.
func New(opts ...Option) (*Host, error) {
	o := options{
		timeout: lua.DefaultExecutionTimeout,
		logger:  log.Noop,
	}
	for _, opt := range opts {
		opt(&o)
	}

	pc := security.NewPermissionChecker("")
	pc.Grant(o.capabilities...)

	state, err := lua.NewState(lua.WithPermissions(pc), lua.WithExecutionTimeout(o.timeout))
	if err != nil {
		return nil, err
	}

	procOpts := append([]process.Option{process.WithLogger(o.logger)}, o.processOpts...)
	procs := process.NewRegistry(
		process.WithMaxHandles(o.maxProcesses),
		process.WithSpawnOptions(procOpts...),
	)

	modules, err := api.DefaultRegistry(procs,
		api.WithModuleLogger(o.logger),
		api.WithPtySize(o.cols, o.rows),
	)
	if err == nil {
		err = modules.InjectAll(state.LuaState(), pc)
	}
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("install script modules: %w", err)
	}

	o.logger.WithValues(log.Kv{"capabilities": pc.Capabilities(), "modules": modules.List()}).
		Debugf("Script host ready")

	return &Host{state: state, procs: procs, logger: o.logger}, nil
}

// Run executes the script at path with args exposed as the global arg
// table, arg[0] being the path. It returns the exit status: the code
// passed to Process.exit, 0 when the script finishes, or FailureExitCode
// together with the error when it raises.
func (h *Host) Run(ctx context.Context, path string, args []string) (int, error) {
	h.setArgs(path, args)
	return h.result(path, h.state.DoFile(ctx, path))
}

// RunString is Run for an in-memory chunk; name is used as arg[0].
func (h *Host) RunString(ctx context.Context, name, code string, args []string) (int, error) {
	h.setArgs(name, args)
	return h.result(name, h.state.DoString(ctx, code))
}

func (h *Host) setArgs(name string, args []string) {
	L := h.state.LuaState()
	t := L.CreateTable(len(args), 1)
	t.RawSetInt(0, glua.LString(name))
	for i, a := range args {
		t.RawSetInt(i+1, glua.LString(a))
	}
	h.state.SetGlobal("arg", t)
}

func (h *Host) result(name string, err error) (int, error) {
	logger := h.logger.WithValues(log.Kv{"script": name})
	if code, ok := api.ExitCode(err); ok {
		logger.Debugf("Script exited with code %d", code)
		return code, nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return FailureExitCode, err
		}
		return FailureExitCode, fmt.Errorf("script %s: %w", name, err)
	}
	return 0, nil
}

// Processes returns the registry tracking the children scripts spawned.
func (h *Host) Processes() *process.Registry {
	return h.procs
}

// State returns the Lua state scripts run in.
func (h *Host) State() *lua.State {
	return h.state
}

// Close tears down every child still tracked and closes the Lua state.
// Closing twice does nothing.
func (h *Host) Close() error {
	if h.procs.IsShutdown() && h.state.IsClosed() {
		return nil
	}
	err := h.procs.Shutdown()
	if err != nil {
		h.logger.Warningf("Process shutdown incomplete: %v", err)
	}
	return errors.Join(err, h.state.Close())
}

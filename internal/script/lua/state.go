package lua

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/script/security"
)

// DefaultExecutionTimeout bounds a single DoFile or DoString call.
const DefaultExecutionTimeout = 5 * time.Minute

// State is a sandboxed gopher-lua state.
//
// An LState must not be used from two goroutines at once. Every State
// method takes mu; callers using L or LuaState directly must serialise
// themselves.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	closed  bool
	timeout time.Duration

	checker *security.PermissionChecker
	sandbox *Sandbox
}

// Option configures a State.
type Option func(*State)

// WithExecutionTimeout bounds each DoFile and DoString run. A zero or
// negative d runs without a deadline.
func WithExecutionTimeout(d time.Duration) Option {
	return func(s *State) { s.timeout = d }
}

// WithPermissions gates the sandbox with pc. Whatever pc has granted at
// creation time is applied straight away.
func WithPermissions(pc *security.PermissionChecker) Option {
	return func(s *State) { s.checker = pc }
}

// NewState returns a state with the safe standard libraries open and the
// sandbox installed.
func NewState(opts ...Option) (*State, error) {
	s := &State{timeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.checker == nil {
		s.checker = security.NewPermissionChecker("")
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range safeLibraries {
		openLibrary(s.L, lib.name, lib.open)
	}

	s.sandbox = NewSandbox(s.L, s.checker)
	s.sandbox.Install()
	for _, c := range s.checker.Capabilities() {
		s.sandbox.Grant(c)
	}
	return s, nil
}

// Libraries that cannot reach the host.
var safeLibraries = []struct {
	name string
	open lua.LGFunction
}{
	{lua.LoadLibName, lua.OpenPackage},
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

func openLibrary(L *lua.LState, name string, open lua.LGFunction) {
	L.Push(L.NewFunction(open))
	L.Push(lua.LString(name))
	L.Call(1, 0)
}

// DoFile runs the script at path.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.run(ctx, func() error { return s.L.DoFile(path) })
}

// DoString runs a chunk of Lua source.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, func() error { return s.L.DoString(code) })
}

// run executes fn with ctx, plus the execution timeout, attached to the
// LState. An error caused by the context surfaces as ctx.Err() when the
// caller cancelled and as ErrExecutionTimeout when the timeout fired.
func (s *State) run(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.L.SetContext(runCtx)
	defer s.L.RemoveContext()

	err := protect(fn)
	switch {
	case err == nil || runCtx.Err() == nil:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("%w after %s", ErrExecutionTimeout, s.timeout)
	}
}

// protect turns a Go panic raised inside the interpreter into an error.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Call invokes the global function fn and returns all of its results.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	f, ok := s.L.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%q is not a function (got %s)", fn, s.L.GetGlobal(fn).Type())
	}

	base := s.L.GetTop()
	err := protect(func() error {
		return s.L.CallByParam(lua.P{Fn: f, NRet: lua.MultRet, Protect: true}, args...)
	})
	if err != nil {
		return nil, err
	}

	n := s.L.GetTop() - base
	results := make([]lua.LValue, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		results = append(results, s.L.Get(base+i))
	}
	if n > 0 {
		s.L.Pop(n)
	}
	return results, nil
}

// GetGlobal reads a global. It returns LNil once the state is closed.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// SetGlobal assigns a global. It does nothing once the state is closed.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.L.SetGlobal(name, value)
	}
}

// LuaState exposes the underlying LState without locking.
func (s *State) LuaState() *lua.LState { return s.L }

// Sandbox returns the capability sandbox.
func (s *State) Sandbox() *Sandbox { return s.sandbox }

// Permissions returns the checker gating this state.
func (s *State) Permissions() *security.PermissionChecker { return s.checker }

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the interpreter. It is idempotent; later runs return
// ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.L.Close()
		s.closed = true
	}
	return nil
}

package lua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/script/security"
)

func newState(t *testing.T, opts ...Option) *State {
	t.Helper()
	state, err := NewState(opts...)
	if err != nil {
		t.Fatalf("NewState error: %v", err)
	}
	t.Cleanup(func() { state.Close() })
	return state
}

func TestStateDoString(t *testing.T) {
	state := newState(t)

	if err := state.DoString(context.Background(), `x = 1 + 1`); err != nil {
		t.Fatalf("DoString error: %v", err)
	}
	if got := state.GetGlobal("x"); got != glua.LNumber(2) {
		t.Errorf("x = %v, want 2", got)
	}
}

func TestStateDoStringSyntaxError(t *testing.T) {
	state := newState(t)
	if err := state.DoString(context.Background(), `invalid lua code !!!`); err == nil {
		t.Error("expected syntax error")
	}
}

func TestStateDoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(`answer = "forty" .. "two"`), 0o644); err != nil {
		t.Fatal(err)
	}

	state := newState(t)
	if err := state.DoFile(context.Background(), path); err != nil {
		t.Fatalf("DoFile error: %v", err)
	}
	if got := state.GetGlobal("answer"); got != glua.LString("fortytwo") {
		t.Errorf("answer = %v, want fortytwo", got)
	}
}

func TestStateExecutionTimeout(t *testing.T) {
	state := newState(t, WithExecutionTimeout(50*time.Millisecond))

	err := state.DoString(context.Background(), `while true do end`)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Errorf("DoString error = %v, want ErrExecutionTimeout", err)
	}

	// The state stays usable after a timeout.
	if err := state.DoString(context.Background(), `y = 3`); err != nil {
		t.Fatalf("DoString after timeout: %v", err)
	}
	if got := state.GetGlobal("y"); got != glua.LNumber(3) {
		t.Errorf("y = %v, want 3", got)
	}
}

func TestStateContextCancel(t *testing.T) {
	state := newState(t, WithExecutionTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := state.DoString(ctx, `while true do end`); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("DoString error = %v, want context.DeadlineExceeded", err)
	}
}

func TestStateCall(t *testing.T) {
	state := newState(t)
	if err := state.DoString(context.Background(), `function add(a, b) return a + b, "done" end`); err != nil {
		t.Fatal(err)
	}

	results, err := state.Call("add", glua.LNumber(2), glua.LNumber(5))
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0] != glua.LNumber(7) {
		t.Errorf("results[0] = %v, want 7", results[0])
	}
	if results[1] != glua.LString("done") {
		t.Errorf("results[1] = %v, want done", results[1])
	}

	if _, err := state.Call("missing"); err == nil {
		t.Error("expected error calling an undefined function")
	}
}

func TestStateClosed(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatal(err)
	}

	if err := state.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := state.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if !state.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}

	if err := state.DoString(context.Background(), `x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString error = %v, want ErrStateClosed", err)
	}
	if _, err := state.Call("print"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call error = %v, want ErrStateClosed", err)
	}
	if got := state.GetGlobal("x"); got != glua.LNil {
		t.Errorf("GetGlobal on closed state = %v, want nil", got)
	}
}

func TestStateAppliesGrantedCapabilities(t *testing.T) {
	pc := security.NewPermissionChecker("test")
	pc.Grant(security.CapabilityUnsafe)

	state := newState(t, WithPermissions(pc))
	if state.Permissions() != pc {
		t.Error("Permissions() did not return the configured checker")
	}
	if err := state.DoString(context.Background(), `t = os.time()`); err != nil {
		t.Errorf("os.time with unsafe granted: %v", err)
	}
}

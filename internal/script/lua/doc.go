// Package lua hosts the sandboxed gopher-lua runtime scripts run in.
//
// # State
//
// State wraps an LState opened with the safe standard libraries only
// (base, package, table, string, math) and a Sandbox installed:
//
//	state, err := lua.NewState(lua.WithExecutionTimeout(30 * time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	if err := state.DoFile(ctx, "build.lua"); err != nil {
//	    return err
//	}
//
// Each DoFile and DoString call gets its own context; the execution
// timeout is layered on top of it and cancelling either stops the VM.
//
// # Sandbox
//
// The Sandbox removes dofile, loadfile, load and loadstring, empties
// package.path and package.cpath and replaces require with a whitelist.
// Granting a capability opens the matching library: filesystem.read opens
// io, unsafe opens io, os and debug.
//
// # Bridge
//
// ToLuaValue converts plain Go values (scalars, byte slices, slices and
// string keyed maps) into Lua values.
package lua

// Package api provides the Lua modules a script sees.
//
// Each Module installs one global table and can be gated by a capability:
//
//	Process  process.spawn  spawn/exec children and touch cwd, env and exit
//	Buffer   none           cursor based byte buffers
//
// Registry.InjectAll registers every module the script's PermissionChecker
// allows and preloads the aggregate module, so
//
//	local luaproc = require("luaproc")
//	local h = luaproc.process.spawn("ls", {"-l"})
//
// is equivalent to using the Process global.
//
// # Error conventions
//
// Configuration faults (wrong argument types, unknown stdio modes or
// signals) and operational faults raise Lua errors. A child that could not
// be launched is not an error: spawn and exec return {error = msg}.
// Process.exit unwinds the script with an error value that ExitCode
// recognises.
package api

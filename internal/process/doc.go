// Package process launches and controls child processes for the scripting
// runtime.
//
// The package hides the two OS process models (POSIX fork/exec with a
// pseudo-terminal pair, Windows CreateProcess with pipes or a ConPTY pseudo
// console) behind one synchronous contract. Callers never block except in
// Handle.Wait: reads and writes on the parent-side endpoints are
// non-blocking and an empty result means "nothing available yet".
//
// # Stdio Modes
//
// Each of the child's standard streams is configured independently:
//
//   - ModePipe: a pipe whose parent end is readable (stdout, stderr) or
//     writable (stdin) through the Handle
//   - ModeInherit: the child shares the parent's stream
//   - ModeNull: the child sees the platform null device
//   - ModePty: all three streams are attached to one pseudo-terminal
//
// Requesting ModePty for any stream switches the whole process to pty mode.
// Stdin and stdout then share the terminal, stderr is merged into it and
// Handle.ReadErr always returns nothing.
//
// # Lifecycle
//
// A Handle starts Running and becomes Exited the first time Wait or Poll
// observes termination. The exit code is cached from then on:
//
//   - normal exit: the status the child returned
//   - death by signal: 128 + signal number
//   - anything else: -1
//
// Handle.Close tears the child down (SIGTERM, a short grace period, SIGKILL,
// blocking reap) and closes every endpoint exactly once. The same teardown
// runs when an unclosed Handle is garbage collected, so an abandoned handle
// never leaks an OS process or descriptor.
//
// # Usage
//
// Spawning and draining by hand:
//
//	h, err := process.Spawn(process.Config{Command: "cat"})
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	h.WriteString("hello\n")
//	h.CloseStdin()
//	code, err := h.Wait()
//
// Running a command to completion:
//
//	res, err := process.Exec(ctx, process.Config{Command: "ls", Args: []string{"-l"}})
//
// Spawn and Exec report launch failures as *SpawnFailure so callers can
// tell them apart from configuration mistakes (ErrInvalidConfig) with
// errors.As.
package process

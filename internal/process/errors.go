package process

import (
	"errors"
	"fmt"
)

// Sentinel errors for the process package.
var (
	// ErrInvalidConfig is wrapped by every configuration fault.
	ErrInvalidConfig = errors.New("invalid process configuration")

	// ErrStdinClosed is returned when writing to a closed stdin.
	ErrStdinClosed = errors.New("process stdin is not open")

	// ErrStdoutClosed is returned when reading into a buffer from a closed stdout.
	ErrStdoutClosed = errors.New("process stdout is not open")

	// ErrBufferFull is returned by ReadToBuffer when the buffer has no room.
	ErrBufferFull = errors.New("buffer is full")

	// ErrUnknownSignal is returned for signal names that are not recognized.
	ErrUnknownSignal = errors.New("unknown signal")

	// ErrNotPty is returned when a terminal operation is used without a pty.
	ErrNotPty = errors.New("process has no pty")

	// ErrPTYNotSupported is returned when pty mode is unavailable on this platform.
	ErrPTYNotSupported = errors.New("PTY not supported on this platform")

	// ErrHandleClosed is returned by operations on a closed handle.
	ErrHandleClosed = errors.New("process handle is closed")

	// ErrHandleNotFound is returned when a handle ID is not tracked.
	ErrHandleNotFound = errors.New("process handle not found")

	// ErrRegistryClosed is returned when spawning through a shut down registry.
	ErrRegistryClosed = errors.New("process registry is shut down")

	// ErrOutputTooLarge is returned when captured output cannot be allocated.
	ErrOutputTooLarge = errors.New("out of memory while capturing process output")

	// ErrCommandLineTooLong is returned when a Windows command line exceeds its limit.
	ErrCommandLineTooLong = errors.New("command line too long")
)

// SpawnFailure reports that a child process could not be created.
//
// It is returned as a value by Spawn and Exec rather than as a fault so the
// script layer can hand it back as an ordinary result.
type SpawnFailure struct {
	// Command is the program that failed to start.
	Command string

	// Message is the text handed to scripts as {error = Message}.
	Message string

	// Err is the underlying OS or lookup error.
	Err error
}

func (f *SpawnFailure) Error() string {
	if f.Message == "" {
		return "failed to spawn process"
	}
	return f.Message
}

// Unwrap returns the underlying cause.
func (f *SpawnFailure) Unwrap() error {
	return f.Err
}

func spawnFailure(command string, err error) error {
	msg := "failed to spawn process"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &SpawnFailure{Command: command, Message: msg, Err: err}
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

package process

import (
	"fmt"
	"slices"
	"strings"
)

// StdioMode selects how one of the child's standard streams is wired.
type StdioMode int

const (
	// ModePipe connects the stream to a pipe owned by the Handle.
	ModePipe StdioMode = iota
	// ModeInherit shares the parent's stream.
	ModeInherit
	// ModeNull connects the stream to the null device.
	ModeNull
	// ModePty attaches the process to a pseudo-terminal.
	ModePty
)

// String returns the mode name as accepted by ParseStdioMode.
func (m StdioMode) String() string {
	switch m {
	case ModePipe:
		return "pipe"
	case ModeInherit:
		return "inherit"
	case ModeNull:
		return "null"
	case ModePty:
		return "pty"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseStdioMode parses "pipe", "inherit", "null" or "pty".
// An empty string yields ModePipe.
func ParseStdioMode(s string) (StdioMode, error) {
	switch strings.ToLower(s) {
	case "", "pipe":
		return ModePipe, nil
	case "inherit":
		return ModeInherit, nil
	case "null":
		return ModeNull, nil
	case "pty":
		return ModePty, nil
	default:
		return ModePipe, invalidConfig("unknown stdio mode %q", s)
	}
}

// Default pseudo-terminal size.
const (
	DefaultPtyCols = 80
	DefaultPtyRows = 25
)

// Config describes a child process to launch.
type Config struct {
	// Command is the program to run. It is resolved against PATH when it
	// contains no path separator.
	Command string

	// Args are the arguments after the program name.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Stdin, Stdout and Stderr select the stream wiring. The zero value is ModePipe.
	Stdin  StdioMode
	Stdout StdioMode
	Stderr StdioMode

	// PtyCols and PtyRows size the pseudo-terminal. Zero selects 80x25.
	PtyCols uint16
	PtyRows uint16
}

// Validate reports configuration faults.
func (c Config) Validate() error {
	if c.Command == "" {
		return invalidConfig("command is required")
	}
	if strings.ContainsRune(c.Command, 0) {
		return invalidConfig("command contains a NUL byte")
	}
	for i, a := range c.Args {
		if strings.ContainsRune(a, 0) {
			return invalidConfig("argument %d contains a NUL byte", i)
		}
	}
	for name, m := range map[string]StdioMode{"stdin": c.Stdin, "stdout": c.Stdout, "stderr": c.Stderr} {
		if m < ModePipe || m > ModePty {
			return invalidConfig("%s has unknown mode %d", name, int(m))
		}
	}
	return nil
}

// UsesPty reports whether any stream requests a pseudo-terminal.
func (c Config) UsesPty() bool {
	return c.Stdin == ModePty || c.Stdout == ModePty || c.Stderr == ModePty
}

// normalized returns a copy with defaults applied and the pty rule enforced:
// one pty serves every stream.
func (c Config) normalized() Config {
	c.Args = slices.Clone(c.Args)
	if c.UsesPty() {
		c.Stdin, c.Stdout, c.Stderr = ModePty, ModePty, ModePty
	}
	if c.PtyCols == 0 {
		c.PtyCols = DefaultPtyCols
	}
	if c.PtyRows == 0 {
		c.PtyRows = DefaultPtyRows
	}
	return c
}

package process

import (
	"errors"
	"slices"
)

// endpoint is the parent side of one child stream.
type endpoint interface {
	// read performs one non-blocking read. It returns 0, nil when no data
	// is available and 0, io.EOF once the child side is gone.
	read(p []byte) (int, error)

	// ready reports, without consuming anything, whether a read would
	// return data or EOF.
	ready() bool

	// write performs one write. It returns 0, nil when the OS would block.
	write(p []byte) (int, error)

	close() error
}

// terminal is the pseudo-terminal attached to a pty-mode process.
type terminal interface {
	resize(cols, rows uint16) error
	close() error
}

// osProcess is the platform process the launcher created.
type osProcess interface {
	pid() int

	// signal delivers sig. A process that is already gone is not an error.
	signal(sig Signal) error

	// kill forcibly terminates the process.
	kill() error

	// wait reaps the process. When block is false it returns immediately
	// with exited false if the process is still running.
	wait(block bool) (code int, exited bool, err error)

	// release frees OS handles. The process must already be reaped.
	release() error
}

// launcher creates processes. Exactly one implementation is compiled in.
type launcher interface {
	launch(cfg Config, o options) (*launched, error)
}

// launched carries everything a successful launch produced.
//
// In pty mode on POSIX stdin and stdout are the same endpoint.
type launched struct {
	proc   osProcess
	stdin  endpoint
	stdout endpoint
	stderr endpoint
	term   terminal
}

// resources is the rollback list for a channel resolution. Every allocation
// is added before the next fallible step so that one release frees exactly
// what exists.
type resources struct {
	closers []func() error
}

func (r *resources) add(fn func() error) {
	r.closers = append(r.closers, fn)
}

// release runs the closers in reverse order and forgets them.
func (r *resources) release() error {
	var errs []error
	for _, fn := range slices.Backward(r.closers) {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// disown forgets the closers without running them. Ownership has moved to
// the handle.
func (r *resources) disown() {
	r.closers = nil
}

// inheritList returns the child stream handles to pass to the child, in
// order, without duplicates and without the absent values.
func inheritList[H comparable](child [3]H, absent ...H) []H {
	var out []H
	for _, h := range child {
		if slices.Contains(absent, h) || slices.Contains(out, h) {
			continue
		}
		out = append(out, h)
	}
	return out
}

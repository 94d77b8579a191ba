//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

var platform launcher = posixLauncher{}

// posixLauncher starts children with fork/exec through os/exec. The child
// stdio are plain files, so os/exec starts no copying goroutines and the
// Handle keeps full control of the parent ends.
type posixLauncher struct{}

func (posixLauncher) launch(cfg Config, o options) (*launched, error) {
	var parent, child resources
	// Child ends belong to the child once it starts, and to nobody if it
	// does not.
	defer child.release()

	ch, err := resolveChannels(cfg, &parent, &child)
	if err != nil {
		parent.release()
		return nil, err
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Stdin = ch.files[0]
	cmd.Stdout = ch.files[1]
	cmd.Stderr = ch.files[2]
	if ch.term != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Setsid:  true,
			Setctty: true,
		}
	}

	if err := cmd.Start(); err != nil {
		parent.release()
		return nil, err
	}
	parent.disown()

	l := &launched{
		proc:   &posixProcess{p: cmd.Process},
		stdin:  ch.parent[0],
		stdout: ch.parent[1],
		stderr: ch.parent[2],
	}
	if ch.term != nil {
		l.term = ch.term
	}
	return l, nil
}

// posixChannels holds the resolved stdio for one launch.
type posixChannels struct {
	files  [3]*os.File
	parent [3]endpoint
	term   *ptyTerm
}

var streamNames = [3]string{"stdin", "stdout", "stderr"}

// resolveChannels allocates the stdio for cfg. Parent ends are registered
// on parent and child ends on child as soon as they exist.
func resolveChannels(cfg Config, parent, child *resources) (*posixChannels, error) {
	ch := &posixChannels{}

	if cfg.UsesPty() {
		master, slave, err := openPTY()
		if err != nil {
			return nil, fmt.Errorf("open pty: %w", err)
		}
		parent.add(func() error { return unix.Close(master) })
		child.add(slave.Close)

		term := &ptyTerm{fd: master}
		if err := term.resize(cfg.PtyCols, cfg.PtyRows); err != nil {
			return nil, fmt.Errorf("set pty size: %w", err)
		}
		ep, err := newFdEndpoint(master, true)
		if err != nil {
			return nil, fmt.Errorf("set pty non-blocking: %w", err)
		}

		ch.files = [3]*os.File{slave, slave, slave}
		ch.parent = [3]endpoint{ep, ep, nil}
		ch.term = term
		return ch, nil
	}

	std := [3]*os.File{os.Stdin, os.Stdout, os.Stderr}
	modes := [3]StdioMode{cfg.Stdin, cfg.Stdout, cfg.Stderr}
	for i, mode := range modes {
		switch mode {
		case ModeInherit:
			ch.files[i] = std[i]

		case ModeNull:
			f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
			if err != nil {
				return nil, fmt.Errorf("open null device for %s: %w", streamNames[i], err)
			}
			child.add(f.Close)
			ch.files[i] = f

		default:
			r, w, err := newPipe()
			if err != nil {
				return nil, fmt.Errorf("create %s pipe: %w", streamNames[i], err)
			}
			parentFd, childFd := r, w
			if i == 0 {
				parentFd, childFd = w, r
			}
			parent.add(func() error { return unix.Close(parentFd) })
			f := os.NewFile(uintptr(childFd), "|"+streamNames[i])
			child.add(f.Close)
			ch.files[i] = f

			ep, err := newFdEndpoint(parentFd, false)
			if err != nil {
				return nil, fmt.Errorf("set %s non-blocking: %w", streamNames[i], err)
			}
			ch.parent[i] = ep
		}
	}
	return ch, nil
}

// ptyTerm resizes the pty through its master. The master itself is owned
// and closed by the shared endpoint.
type ptyTerm struct {
	fd int
}

func (t *ptyTerm) resize(cols, rows uint16) error {
	return unix.IoctlSetWinsize(t.fd, unix.TIOCSWINSZ, &unix.Winsize{Row: rows, Col: cols})
}

func (t *ptyTerm) close() error { return nil }

// posixProcess reaps with wait4 so that Poll can use WNOHANG.
type posixProcess struct {
	p      *os.Process
	reaped bool
}

func (pp *posixProcess) pid() int { return pp.p.Pid }

func (pp *posixProcess) signal(sig Signal) error {
	if pp.reaped {
		return nil
	}
	err := unix.Kill(pp.p.Pid, unix.Signal(sig))
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func (pp *posixProcess) kill() error {
	return pp.signal(SignalKill)
}

func (pp *posixProcess) wait(block bool) (int, bool, error) {
	if pp.reaped {
		return -1, true, nil
	}
	flags := unix.WNOHANG
	if block {
		flags = 0
	}
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(pp.p.Pid, &ws, flags, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			// Reaped elsewhere; the status is lost.
			pp.reaped = true
			return -1, true, nil
		case err != nil:
			return -1, false, err
		case pid == 0:
			return -1, false, nil
		}
		pp.reaped = true
		return exitCode(ws), true, nil
	}
}

func (pp *posixProcess) release() error {
	return pp.p.Release()
}

// exitCode maps a wait status to the script-visible exit code.
func exitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return -1
	}
}

//go:build windows

package process

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var platform launcher = windowsLauncher{}

// windowsLauncher creates processes with CreateProcess. Pipe, inherit and
// null streams go through STARTUPINFO standard handles; a pty goes through a
// pseudo console attached with a process thread attribute list.
type windowsLauncher struct{}

func (windowsLauncher) launch(cfg Config, o options) (*launched, error) {
	line, err := BuildCommandLine(cfg.Command, cfg.Args)
	if err != nil {
		return nil, err
	}
	cmdLine, err := windows.UTF16PtrFromString(line)
	if err != nil {
		return nil, err
	}
	var dir *uint16
	if cfg.Dir != "" {
		if dir, err = windows.UTF16PtrFromString(cfg.Dir); err != nil {
			return nil, err
		}
	}

	var parent, child resources
	// Child ends are duplicated into the child by CreateProcess.
	defer child.release()

	ch, err := resolveChannels(cfg, &parent, &child)
	if err != nil {
		parent.release()
		return nil, err
	}

	var si windows.StartupInfoEx
	si.Cb = uint32(unsafe.Sizeof(si))
	si.Flags = windows.STARTF_USESTDHANDLES
	var flags uint32
	inherit := true

	if ch.console != nil {
		attrs, err := windows.NewProcThreadAttributeList(1)
		if err != nil {
			parent.release()
			return nil, fmt.Errorf("create attribute list: %w", err)
		}
		defer attrs.Delete()

		hpc := ch.console.hpc
		if err := attrs.Update(windows.PROC_THREAD_ATTRIBUTE_PSEUDOCONSOLE, unsafe.Pointer(hpc), unsafe.Sizeof(hpc)); err != nil {
			parent.release()
			return nil, fmt.Errorf("attach pseudo console: %w", err)
		}
		si.ProcThreadAttributeList = attrs.List()
		flags |= windows.EXTENDED_STARTUPINFO_PRESENT
		// Zero standard handles force the child onto the pseudo console
		// even when ours are redirected.
		inherit = false
	} else {
		si.StdInput = ch.child[0]
		si.StdOutput = ch.child[1]
		si.StdErr = ch.child[2]

		// Only the three child ends may cross into the child. Without the
		// list every inheritable handle of ours would, including the pipe
		// ends of a concurrent spawn.
		handles := inheritList(ch.child, 0, windows.InvalidHandle)
		if len(handles) == 0 {
			inherit = false
		} else {
			attrs, err := windows.NewProcThreadAttributeList(1)
			if err != nil {
				parent.release()
				return nil, fmt.Errorf("create attribute list: %w", err)
			}
			defer attrs.Delete()

			size := uintptr(len(handles)) * unsafe.Sizeof(handles[0])
			if err := attrs.Update(windows.PROC_THREAD_ATTRIBUTE_HANDLE_LIST, unsafe.Pointer(&handles[0]), size); err != nil {
				parent.release()
				return nil, fmt.Errorf("set inherited handle list: %w", err)
			}
			si.ProcThreadAttributeList = attrs.List()
			flags |= windows.EXTENDED_STARTUPINFO_PRESENT
			defer runtime.KeepAlive(handles)
		}
	}

	var pi windows.ProcessInformation
	err = windows.CreateProcess(nil, cmdLine, nil, nil, inherit, flags, nil, dir, &si.StartupInfo, &pi)
	if err != nil {
		parent.release()
		return nil, err
	}
	parent.disown()

	l := &launched{
		proc: &windowsProcess{
			h:        pi.Process,
			thread:   pi.Thread,
			id:       pi.ProcessId,
			threadID: pi.ThreadId,
		},
		stdin:  ch.parent[0],
		stdout: ch.parent[1],
		stderr: ch.parent[2],
	}
	if ch.console != nil {
		l.term = ch.console
	}
	return l, nil
}

// windowsChannels holds the resolved stdio for one launch. Unused parent
// slots stay nil.
type windowsChannels struct {
	child   [3]windows.Handle
	parent  [3]endpoint
	console *conPTY
}

var (
	streamNames  = [3]string{"stdin", "stdout", "stderr"}
	stdHandleIDs = [3]uint32{windows.STD_INPUT_HANDLE, windows.STD_OUTPUT_HANDLE, windows.STD_ERROR_HANDLE}
)

func resolveChannels(cfg Config, parent, child *resources) (*windowsChannels, error) {
	ch := &windowsChannels{}
	closer := func(h windows.Handle) func() error {
		return func() error { return windows.CloseHandle(h) }
	}

	if cfg.UsesPty() {
		var inR, inW, outR, outW windows.Handle
		if err := windows.CreatePipe(&inR, &inW, nil, 0); err != nil {
			return nil, fmt.Errorf("create pty input pipe: %w", err)
		}
		child.add(closer(inR))
		parent.add(closer(inW))

		if err := windows.CreatePipe(&outR, &outW, nil, 0); err != nil {
			return nil, fmt.Errorf("create pty output pipe: %w", err)
		}
		parent.add(closer(outR))
		child.add(closer(outW))

		var hpc windows.Handle
		size := windows.Coord{X: int16(cfg.PtyCols), Y: int16(cfg.PtyRows)}
		if err := windows.CreatePseudoConsole(size, inR, outW, 0, &hpc); err != nil {
			return nil, fmt.Errorf("create pseudo console: %w", err)
		}
		parent.add(func() error {
			windows.ClosePseudoConsole(hpc)
			return nil
		})

		ch.parent = [3]endpoint{&handleEndpoint{h: inW}, &handleEndpoint{h: outR}, nil}
		ch.console = &conPTY{hpc: hpc}
		return ch, nil
	}

	sa := &windows.SecurityAttributes{InheritHandle: 1}
	sa.Length = uint32(unsafe.Sizeof(*sa))

	modes := [3]StdioMode{cfg.Stdin, cfg.Stdout, cfg.Stderr}
	for i, mode := range modes {
		switch mode {
		case ModeInherit:
			h, err := windows.GetStdHandle(stdHandleIDs[i])
			if err != nil {
				return nil, fmt.Errorf("get parent %s: %w", streamNames[i], err)
			}
			if h == 0 || h == windows.InvalidHandle {
				// No console stream to share; the child gets none either.
				break
			}
			// Our std handles need not be inheritable, so hand the child
			// an inheritable duplicate.
			self := windows.CurrentProcess()
			var dup windows.Handle
			if err := windows.DuplicateHandle(self, h, self, &dup, 0, true, windows.DUPLICATE_SAME_ACCESS); err != nil {
				return nil, fmt.Errorf("duplicate parent %s: %w", streamNames[i], err)
			}
			child.add(closer(dup))
			ch.child[i] = dup

		case ModeNull:
			name, _ := windows.UTF16PtrFromString("NUL")
			h, err := windows.CreateFile(
				name,
				windows.GENERIC_READ|windows.GENERIC_WRITE,
				windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
				sa,
				windows.OPEN_EXISTING,
				0,
				0,
			)
			if err != nil {
				return nil, fmt.Errorf("open null device for %s: %w", streamNames[i], err)
			}
			child.add(closer(h))
			ch.child[i] = h

		default:
			var r, w windows.Handle
			if err := windows.CreatePipe(&r, &w, sa, 0); err != nil {
				return nil, fmt.Errorf("create %s pipe: %w", streamNames[i], err)
			}
			parentH, childH := r, w
			if i == 0 {
				parentH, childH = w, r
			}
			parent.add(closer(parentH))
			child.add(closer(childH))

			if err := windows.SetHandleInformation(parentH, windows.HANDLE_FLAG_INHERIT, 0); err != nil {
				return nil, fmt.Errorf("mark %s non-inheritable: %w", streamNames[i], err)
			}
			ch.child[i] = childH
			ch.parent[i] = &handleEndpoint{h: parentH}
		}
	}
	return ch, nil
}

// conPTY is a Windows pseudo console.
type conPTY struct {
	hpc windows.Handle
}

func (c *conPTY) resize(cols, rows uint16) error {
	return windows.ResizePseudoConsole(c.hpc, windows.Coord{X: int16(cols), Y: int16(rows)})
}

func (c *conPTY) close() error {
	windows.ClosePseudoConsole(c.hpc)
	return nil
}

// waitTimeout is the WaitForSingleObject result for an unsignalled object.
const waitTimeout = 0x00000102

type windowsProcess struct {
	h        windows.Handle
	thread   windows.Handle
	id       uint32
	threadID uint32
}

func (wp *windowsProcess) pid() int { return int(wp.id) }

// signal terminates the process whatever sig is; Windows has no signals.
func (wp *windowsProcess) signal(Signal) error {
	return wp.kill()
}

func (wp *windowsProcess) kill() error {
	err := windows.TerminateProcess(wp.h, 1)
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		// Already exiting
		if ev, _ := windows.WaitForSingleObject(wp.h, 0); ev == windows.WAIT_OBJECT_0 {
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("failed to terminate process: %w", err)
	}
	return nil
}

func (wp *windowsProcess) wait(block bool) (int, bool, error) {
	timeout := uint32(0)
	if block {
		timeout = windows.INFINITE
	}
	ev, err := windows.WaitForSingleObject(wp.h, timeout)
	if err != nil {
		return -1, false, err
	}
	switch ev {
	case windows.WAIT_OBJECT_0:
		var code uint32
		if err := windows.GetExitCodeProcess(wp.h, &code); err != nil {
			return -1, true, nil
		}
		return int(code), true, nil
	case waitTimeout:
		return -1, false, nil
	default:
		return -1, false, fmt.Errorf("unexpected wait result %#x", ev)
	}
}

func (wp *windowsProcess) release() error {
	return errors.Join(windows.CloseHandle(wp.thread), windows.CloseHandle(wp.h))
}

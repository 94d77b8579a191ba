//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package process

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

// fdEndpoint is a non-blocking parent-side descriptor.
//
// The descriptor is kept raw rather than wrapped in *os.File so that the
// runtime poller never flips it back to blocking mode.
type fdEndpoint struct {
	fd int

	// tty marks a pty master, where EIO means the slave side hung up.
	tty bool
}

func newFdEndpoint(fd int, tty bool) (*fdEndpoint, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	return &fdEndpoint{fd: fd, tty: tty}, nil
}

func (e *fdEndpoint) read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(e.fd, p)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		case errors.Is(err, unix.EIO) && e.tty:
			return 0, io.EOF
		case err != nil:
			return 0, err
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

func (e *fdEndpoint) ready() bool {
	fds := []unix.PollFd{{Fd: int32(e.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || n == 0 {
			return false
		}
		return fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
	}
}

func (e *fdEndpoint) write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Write(e.fd, p)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		case err != nil:
			return 0, err
		}
		return n, nil
	}
}

func (e *fdEndpoint) close() error {
	return unix.Close(e.fd)
}

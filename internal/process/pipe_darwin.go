//go:build darwin

package process

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// newPipe returns a close-on-exec pipe as (read end, write end).
// Darwin has no pipe2, so the fork lock keeps a concurrent fork from
// inheriting the descriptors before FD_CLOEXEC is set.
func newPipe() (int, int, error) {
	var p [2]int
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	if err := unix.Pipe(p[:]); err != nil {
		return -1, -1, err
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])
	return p[0], p[1], nil
}

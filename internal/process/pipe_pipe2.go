//go:build linux || freebsd || netbsd || openbsd || dragonfly

package process

import "golang.org/x/sys/unix"

// newPipe returns a close-on-exec pipe as (read end, write end).
func newPipe() (int, int, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return -1, -1, err
	}
	return p[0], p[1], nil
}

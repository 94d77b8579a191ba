//go:build freebsd || netbsd || openbsd || dragonfly

package process

import "os"

func openPTY() (int, *os.File, error) {
	return -1, nil, ErrPTYNotSupported
}

//go:build linux

package process

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// openPTY opens a pty pair. The master is returned as a raw descriptor for
// the parent, the slave as a file to hand to the child.
func openPTY() (int, *os.File, error) {
	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, nil, err
	}

	// Unlock slave
	if err := unix.IoctlSetPointerInt(master, unix.TIOCSPTLCK, 0); err != nil {
		unix.Close(master)
		return -1, nil, err
	}

	n, err := unix.IoctlGetUint32(master, unix.TIOCGPTN)
	if err != nil {
		unix.Close(master)
		return -1, nil, err
	}
	slavePath := "/dev/pts/" + strconv.Itoa(int(n))

	slave, err := unix.Open(slavePath, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		unix.Close(master)
		return -1, nil, err
	}

	return master, os.NewFile(uintptr(slave), slavePath), nil
}

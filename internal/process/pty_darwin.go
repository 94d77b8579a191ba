//go:build darwin

package process

import (
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// openPTY opens a pty pair through /dev/ptmx.
func openPTY() (int, *os.File, error) {
	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, nil, err
	}

	if err := unix.IoctlSetInt(master, unix.TIOCPTYGRANT, 0); err != nil {
		unix.Close(master)
		return -1, nil, err
	}
	if err := unix.IoctlSetInt(master, unix.TIOCPTYUNLK, 0); err != nil {
		unix.Close(master)
		return -1, nil, err
	}

	slavePath, err := ptsName(master)
	if err != nil {
		unix.Close(master)
		return -1, nil, err
	}

	slave, err := unix.Open(slavePath, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		unix.Close(master)
		return -1, nil, err
	}

	return master, os.NewFile(uintptr(slave), slavePath), nil
}

// ptsName returns the slave device path using TIOCPTYGNAME.
func ptsName(master int) (string, error) {
	var name [128]byte
	_, _, errno := syscall.Syscall(
		syscall.SYS_IOCTL,
		uintptr(master),
		uintptr(unix.TIOCPTYGNAME),
		uintptr(unsafe.Pointer(&name[0])),
	)
	if errno != 0 {
		return "", errno
	}

	// Find null terminator
	var end int
	for end = 0; end < len(name) && name[end] != 0; end++ {
	}

	return string(name[:end]), nil
}

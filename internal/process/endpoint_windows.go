//go:build windows

package process

import (
	"errors"
	"io"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procPeekNamedPipe = windows.NewLazySystemDLL("kernel32.dll").NewProc("PeekNamedPipe")

// peekAvailable returns the number of bytes waiting in a pipe.
func peekAvailable(h windows.Handle) (uint32, error) {
	var avail uint32
	r1, _, err := procPeekNamedPipe.Call(
		uintptr(h),
		0,
		0,
		0,
		uintptr(unsafe.Pointer(&avail)),
		0,
	)
	if r1 == 0 {
		return 0, err
	}
	return avail, nil
}

// handleEndpoint is an anonymous pipe end. Anonymous pipes cannot be put in
// non-blocking mode, so reads are preceded by a PeekNamedPipe check and only
// ask for what is already buffered.
type handleEndpoint struct {
	h windows.Handle
}

func (e *handleEndpoint) read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	avail, err := peekAvailable(e.h)
	if err != nil {
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) {
			return 0, io.EOF
		}
		return 0, err
	}
	if avail == 0 {
		return 0, nil
	}

	want := min(uint32(len(p)), avail)
	var n uint32
	if err := windows.ReadFile(e.h, p[:want], &n, nil); err != nil {
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) {
			return 0, io.EOF
		}
		return 0, err
	}
	return int(n), nil
}

func (e *handleEndpoint) ready() bool {
	avail, err := peekAvailable(e.h)
	return err != nil || avail > 0
}

func (e *handleEndpoint) write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var n uint32
	if err := windows.WriteFile(e.h, p, &n, nil); err != nil {
		return int(n), err
	}
	return int(n), nil
}

func (e *handleEndpoint) close() error {
	return windows.CloseHandle(e.h)
}

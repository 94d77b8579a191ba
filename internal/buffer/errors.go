package buffer

import "errors"

// Sentinel errors for the buffer package.
var (
	// ErrInvalidSize is returned when a buffer is created with a bad size.
	ErrInvalidSize = errors.New("invalid buffer size")

	// ErrOverflow is returned when a write does not fit a fixed-size buffer.
	ErrOverflow = errors.New("buffer overflow")

	// ErrTooLarge is returned when growing would exceed MaxSize.
	ErrTooLarge = errors.New("buffer exceeded maximum size (100MB)")

	// ErrReadPastEnd is returned when a read runs past the logical length.
	ErrReadPastEnd = errors.New("read past end of buffer")

	// ErrOutOfRange is returned for seeks, skips and slices outside the buffer.
	ErrOutOfRange = errors.New("position out of range")

	// ErrNoTerminator is returned when ReadString finds no NUL byte.
	ErrNoTerminator = errors.New("no null terminator found")

	// ErrInvalidEndianness is returned by ParseEndianness.
	ErrInvalidEndianness = errors.New("invalid endianness")
)

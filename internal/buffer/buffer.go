// Package buffer provides a cursor-based byte buffer shared between scripts
// and the process subsystem.
//
// A Buffer has a capacity (allocated storage), a logical length (bytes that
// hold data) and a position (the cursor). Writes land at the position and
// extend the length when they pass it; reads consume bytes between the
// position and the length. Auto-growing buffers expand by half their
// capacity when a write does not fit, up to MaxSize.
package buffer

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// MaxSize is the largest capacity a Buffer may have.
const MaxSize = 100 * 1024 * 1024

// Cursor is the view of a buffer used by I/O that reads into or writes from
// its storage directly.
type Cursor interface {
	// Cap returns the allocated storage size.
	Cap() int
	// Pos returns the cursor position.
	Pos() int
	// Len returns the logical length.
	Len() int
	// Data returns the storage, Cap bytes long.
	Data() []byte
	// SetPos moves the cursor, clamped to Cap.
	SetPos(pos int)
	// SetLen sets the logical length, clamped to Cap.
	SetLen(n int)
}

// Endianness selects the byte order for multi-byte values.
type Endianness int

const (
	// LittleEndian is the default order.
	LittleEndian Endianness = iota
	// BigEndian is network order.
	BigEndian
)

// String returns "little" or "big".
func (e Endianness) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// ParseEndianness parses "little" or "big".
func ParseEndianness(s string) (Endianness, error) {
	switch s {
	case "little":
		return LittleEndian, nil
	case "big":
		return BigEndian, nil
	default:
		return LittleEndian, fmt.Errorf("%w: must be 'little' or 'big', got %q", ErrInvalidEndianness, s)
	}
}

// Buffer is a growable byte buffer with a read/write cursor.
// It is not safe for concurrent use.
type Buffer struct {
	data     []byte
	length   int
	pos      int
	autoGrow bool
	order    Endianness
}

// New creates a buffer of the given capacity.
func New(size int, autoGrow bool) (*Buffer, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: size must be between 1 and %d bytes, got %d", ErrInvalidSize, MaxSize, size)
	}
	return &Buffer{
		data:     make([]byte, size),
		autoGrow: autoGrow,
	}, nil
}

// Cap returns the allocated storage size.
func (b *Buffer) Cap() int { return len(b.data) }

// Pos returns the cursor position.
func (b *Buffer) Pos() int { return b.pos }

// Len returns the logical length.
func (b *Buffer) Len() int { return b.length }

// Data returns the full storage.
func (b *Buffer) Data() []byte { return b.data }

// AutoGrow reports whether writes may expand the buffer.
func (b *Buffer) AutoGrow() bool { return b.autoGrow }

// SetPos moves the cursor, clamped to [0, Cap].
func (b *Buffer) SetPos(pos int) { b.pos = clamp(pos, len(b.data)) }

// SetLen sets the logical length, clamped to [0, Cap].
func (b *Buffer) SetLen(n int) { b.length = clamp(n, len(b.data)) }

// Endianness returns the byte order.
func (b *Buffer) Endianness() Endianness { return b.order }

// SetEndianness sets the byte order.
func (b *Buffer) SetEndianness(e Endianness) { b.order = e }

// Remaining returns the number of unread bytes between the cursor and the length.
func (b *Buffer) Remaining() int {
	if b.pos >= b.length {
		return 0
	}
	return b.length - b.pos
}

// Seek moves the cursor to an absolute position.
func (b *Buffer) Seek(pos int) error {
	if pos < 0 || pos > len(b.data) {
		return fmt.Errorf("%w: seek position %d exceeds capacity %d", ErrOutOfRange, pos, len(b.data))
	}
	b.pos = pos
	return nil
}

// Skip advances the cursor by n bytes.
func (b *Buffer) Skip(n int) error {
	np := b.pos + n
	if n < 0 || np > len(b.data) {
		return fmt.Errorf("%w: skip would exceed buffer capacity", ErrOutOfRange)
	}
	b.pos = np
	return nil
}

// Rewind moves the cursor to the start.
func (b *Buffer) Rewind() { b.pos = 0 }

// Clear zeroes the storage and resets cursor and length.
func (b *Buffer) Clear() {
	clear(b.data)
	b.length = 0
	b.pos = 0
}

// Fill sets every byte of the storage to v and makes it all logical data.
func (b *Buffer) Fill(v byte) {
	for i := range b.data {
		b.data[i] = v
	}
	b.length = len(b.data)
}

// Bytes returns a copy of the logical contents.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, b.length)
	copy(out, b.data[:b.length])
	return out
}

// String returns the contents up to the first NUL byte or the length.
func (b *Buffer) String() string {
	n := 0
	for n < b.length && b.data[n] != 0 {
		n++
	}
	return string(b.data[:n])
}

// Hex returns the logical contents hex encoded.
func (b *Buffer) Hex() string {
	return hex.EncodeToString(b.data[:b.length])
}

// Slice returns a new fixed-size buffer holding a copy of [start, end).
func (b *Buffer) Slice(start, end int) (*Buffer, error) {
	if start < 0 || start > end || end > b.length {
		return nil, fmt.Errorf("%w: invalid slice range [%d, %d) for buffer length %d", ErrOutOfRange, start, end, b.length)
	}
	size := end - start
	if size == 0 {
		return &Buffer{data: []byte{}, order: b.order}, nil
	}
	nb, err := New(size, false)
	if err != nil {
		return nil, err
	}
	copy(nb.data, b.data[start:end])
	nb.length = size
	nb.order = b.order
	return nb, nil
}

// WriteUint8 writes one byte.
func (b *Buffer) WriteUint8(v uint8) error {
	p, err := b.reserve(1)
	if err != nil {
		return err
	}
	p[0] = v
	return nil
}

// WriteInt8 writes one signed byte.
func (b *Buffer) WriteInt8(v int8) error { return b.WriteUint8(uint8(v)) }

// WriteUint16 writes a 16-bit value in the buffer's byte order.
func (b *Buffer) WriteUint16(v uint16) error {
	p, err := b.reserve(2)
	if err != nil {
		return err
	}
	b.byteOrder().PutUint16(p, v)
	return nil
}

// WriteInt16 writes a signed 16-bit value.
func (b *Buffer) WriteInt16(v int16) error { return b.WriteUint16(uint16(v)) }

// WriteUint32 writes a 32-bit value in the buffer's byte order.
func (b *Buffer) WriteUint32(v uint32) error {
	p, err := b.reserve(4)
	if err != nil {
		return err
	}
	b.byteOrder().PutUint32(p, v)
	return nil
}

// WriteInt32 writes a signed 32-bit value.
func (b *Buffer) WriteInt32(v int32) error { return b.WriteUint32(uint32(v)) }

// WriteFloat32 writes an IEEE-754 single.
func (b *Buffer) WriteFloat32(v float32) error { return b.WriteUint32(math.Float32bits(v)) }

// WriteFloat64 writes an IEEE-754 double.
func (b *Buffer) WriteFloat64(v float64) error {
	p, err := b.reserve(8)
	if err != nil {
		return err
	}
	b.byteOrder().PutUint64(p, math.Float64bits(v))
	return nil
}

// WriteBytes writes raw bytes.
func (b *Buffer) WriteBytes(v []byte) error {
	p, err := b.reserve(len(v))
	if err != nil {
		return err
	}
	copy(p, v)
	return nil
}

// WriteString writes s followed by a NUL terminator.
func (b *Buffer) WriteString(s string) error {
	p, err := b.reserve(len(s) + 1)
	if err != nil {
		return err
	}
	copy(p, s)
	p[len(s)] = 0
	return nil
}

// WriteStringRaw writes s without a terminator.
func (b *Buffer) WriteStringRaw(s string) error {
	p, err := b.reserve(len(s))
	if err != nil {
		return err
	}
	copy(p, s)
	return nil
}

// ReadUint8 reads one byte.
func (b *Buffer) ReadUint8() (uint8, error) {
	p, err := b.consume(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadInt8 reads one signed byte.
func (b *Buffer) ReadInt8() (int8, error) {
	v, err := b.ReadUint8()
	return int8(v), err
}

// ReadUint16 reads a 16-bit value.
func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.consume(2)
	if err != nil {
		return 0, err
	}
	return b.byteOrder().Uint16(p), nil
}

// ReadInt16 reads a signed 16-bit value.
func (b *Buffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a 32-bit value.
func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.consume(4)
	if err != nil {
		return 0, err
	}
	return b.byteOrder().Uint32(p), nil
}

// ReadInt32 reads a signed 32-bit value.
func (b *Buffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads an IEEE-754 single.
func (b *Buffer) ReadFloat32() (float32, error) {
	v, err := b.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads an IEEE-754 double.
func (b *Buffer) ReadFloat64() (float64, error) {
	p, err := b.consume(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(b.byteOrder().Uint64(p)), nil
}

// ReadBytes reads n raw bytes.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	p, err := b.consume(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// ReadString reads a NUL terminated string and skips the terminator.
func (b *Buffer) ReadString() (string, error) {
	end := b.pos
	for end < b.length && b.data[end] != 0 {
		end++
	}
	if end >= b.length {
		return "", ErrNoTerminator
	}
	s := string(b.data[b.pos:end])
	b.pos = end + 1
	return s, nil
}

// ReadStringN reads exactly n bytes as a string.
func (b *Buffer) ReadStringN(n int) (string, error) {
	p, err := b.consume(n)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

func (b *Buffer) byteOrder() binary.ByteOrder {
	if b.order == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// reserve makes room for n bytes at the cursor, advances past them and
// returns the slice to fill.
func (b *Buffer) reserve(n int) ([]byte, error) {
	if err := b.ensure(n); err != nil {
		return nil, err
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	if b.pos > b.length {
		b.length = b.pos
	}
	return p, nil
}

func (b *Buffer) consume(n int) ([]byte, error) {
	if n < 0 || b.pos+n > b.length {
		return nil, fmt.Errorf("%w (pos=%d, length=%d)", ErrReadPastEnd, b.pos, b.length)
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	return p, nil
}

func (b *Buffer) ensure(n int) error {
	required := b.pos + n
	if required <= len(b.data) {
		return nil
	}
	if !b.autoGrow {
		return fmt.Errorf("%w: need %d bytes, capacity is %d", ErrOverflow, required, len(b.data))
	}

	newCap := len(b.data) + len(b.data)>>1
	if newCap < required {
		newCap = required
	}
	if newCap > MaxSize {
		return ErrTooLarge
	}

	data := make([]byte, newCap)
	copy(data, b.data)
	b.data = data
	return nil
}

func clamp(v, upper int) int {
	if v < 0 {
		return 0
	}
	if v > upper {
		return upper
	}
	return v
}

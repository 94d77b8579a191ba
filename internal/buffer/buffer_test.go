package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luaproc/internal/buffer"
)

func TestNewRejectsBadSizes(t *testing.T) {
	tests := map[string]struct {
		size    int
		wantErr bool
	}{
		"zero":        {size: 0, wantErr: true},
		"negative":    {size: -3, wantErr: true},
		"too large":   {size: buffer.MaxSize + 1, wantErr: true},
		"one byte":    {size: 1},
		"max allowed": {size: 16},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			b, err := buffer.New(test.size, false)
			if test.wantErr {
				assert.ErrorIs(t, err, buffer.ErrInvalidSize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.size, b.Cap())
			assert.Equal(t, 0, b.Len())
			assert.Equal(t, 0, b.Pos())
		})
	}
}

func TestWriteReadRoundTripEndianness(t *testing.T) {
	for _, order := range []buffer.Endianness{buffer.LittleEndian, buffer.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			b, err := buffer.New(4, true)
			require.NoError(t, err)
			b.SetEndianness(order)

			require.NoError(t, b.WriteUint16(0xBEEF))
			require.NoError(t, b.WriteInt32(-42))
			require.NoError(t, b.WriteFloat64(3.5))
			require.NoError(t, b.WriteString("hi"))
			assert.Equal(t, 2+4+8+3, b.Len())

			b.Rewind()
			u16, err := b.ReadUint16()
			require.NoError(t, err)
			assert.Equal(t, uint16(0xBEEF), u16)
			i32, err := b.ReadInt32()
			require.NoError(t, err)
			assert.Equal(t, int32(-42), i32)
			f, err := b.ReadFloat64()
			require.NoError(t, err)
			assert.Equal(t, 3.5, f)
			s, err := b.ReadString()
			require.NoError(t, err)
			assert.Equal(t, "hi", s)
			assert.Equal(t, 0, b.Remaining())
		})
	}
}

func TestByteOrderLayout(t *testing.T) {
	b, err := buffer.New(2, false)
	require.NoError(t, err)
	require.NoError(t, b.WriteUint16(0x0102))
	assert.Equal(t, "0201", b.Hex())

	b.Clear()
	b.SetEndianness(buffer.BigEndian)
	require.NoError(t, b.WriteUint16(0x0102))
	assert.Equal(t, "0102", b.Hex())
}

func TestFixedBufferOverflow(t *testing.T) {
	b, err := buffer.New(3, false)
	require.NoError(t, err)

	err = b.WriteUint32(1)
	assert.ErrorIs(t, err, buffer.ErrOverflow)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Pos())
}

func TestAutoGrowExpandsByHalf(t *testing.T) {
	b, err := buffer.New(10, true)
	require.NoError(t, err)

	require.NoError(t, b.WriteBytes(make([]byte, 11)))
	assert.Equal(t, 15, b.Cap())

	require.NoError(t, b.WriteBytes(make([]byte, 20)))
	assert.Equal(t, 31, b.Cap())
}

func TestReadPastEnd(t *testing.T) {
	b, err := buffer.New(8, false)
	require.NoError(t, err)
	require.NoError(t, b.WriteUint8(7))
	b.Rewind()

	_, err = b.ReadUint16()
	assert.ErrorIs(t, err, buffer.ErrReadPastEnd)
}

func TestSeekSkipAndClamps(t *testing.T) {
	b, err := buffer.New(8, false)
	require.NoError(t, err)

	require.NoError(t, b.Seek(8))
	assert.ErrorIs(t, b.Seek(9), buffer.ErrOutOfRange)
	b.Rewind()
	require.NoError(t, b.Skip(5))
	assert.ErrorIs(t, b.Skip(4), buffer.ErrOutOfRange)

	b.SetPos(100)
	assert.Equal(t, 8, b.Pos())
	b.SetLen(-1)
	assert.Equal(t, 0, b.Len())
}

func TestStringStopsAtNul(t *testing.T) {
	b, err := buffer.New(16, false)
	require.NoError(t, err)
	require.NoError(t, b.WriteStringRaw("abc"))
	require.NoError(t, b.WriteUint8(0))
	require.NoError(t, b.WriteStringRaw("def"))

	assert.Equal(t, "abc", b.String())
	assert.Equal(t, []byte("abc\x00def"), b.Bytes())
}

func TestSlice(t *testing.T) {
	b, err := buffer.New(8, false)
	require.NoError(t, err)
	require.NoError(t, b.WriteStringRaw("abcdef"))

	s, err := b.Slice(1, 4)
	require.NoError(t, err)
	assert.Equal(t, "bcd", string(s.Bytes()))
	assert.Equal(t, 3, s.Cap())
	assert.Equal(t, 0, s.Pos())

	_, err = b.Slice(4, 7)
	assert.ErrorIs(t, err, buffer.ErrOutOfRange)
}

func TestParseEndianness(t *testing.T) {
	e, err := buffer.ParseEndianness("big")
	require.NoError(t, err)
	assert.Equal(t, buffer.BigEndian, e)

	_, err = buffer.ParseEndianness("middle")
	assert.ErrorIs(t, err, buffer.ErrInvalidEndianness)
}

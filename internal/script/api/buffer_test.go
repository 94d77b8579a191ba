package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	luabridge "github.com/dshills/luaproc/internal/script/lua"
)

func newBufferState(t *testing.T) *luabridge.State {
	t.Helper()
	state, err := luabridge.NewState()
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })
	require.NoError(t, NewBufferModule().Register(state.LuaState()))
	return state
}

func TestBufferModuleReadWrite(t *testing.T) {
	state := newBufferState(t)

	require.NoError(t, state.DoString(context.Background(), `
		local b = Buffer.new(4)
		b:writeUint8(255):writeUint16(0x1234):writeInt32(-2):writeFloat64(1.5)
		b:writeString("hi")
		length = #b
		grown = b:getCapacity() >= length
		b:rewind()
		u8 = b:readUint8()
		u16 = b:readUint16()
		i32 = b:readInt32()
		f64 = b:readFloat64()
		str = b:readString()
		left = b:remaining()
	`))

	assert.Equal(t, lua.LNumber(1+2+4+8+3), state.GetGlobal("length"))
	assert.Equal(t, lua.LTrue, state.GetGlobal("grown"))
	assert.Equal(t, lua.LNumber(255), state.GetGlobal("u8"))
	assert.Equal(t, lua.LNumber(0x1234), state.GetGlobal("u16"))
	assert.Equal(t, lua.LNumber(-2), state.GetGlobal("i32"))
	assert.Equal(t, lua.LNumber(1.5), state.GetGlobal("f64"))
	assert.Equal(t, lua.LString("hi"), state.GetGlobal("str"))
	assert.Equal(t, lua.LNumber(0), state.GetGlobal("left"))
}

func TestBufferModuleEndianness(t *testing.T) {
	state := newBufferState(t)

	require.NoError(t, state.DoString(context.Background(), `
		local b = Buffer.new(2, false):setEndianness("big")
		b:writeUint16(0x0102)
		hex = b:toHex()
		order = b:getEndianness()
	`))
	assert.Equal(t, lua.LString("0102"), state.GetGlobal("hex"))
	assert.Equal(t, lua.LString("big"), state.GetGlobal("order"))

	assert.Error(t, state.DoString(context.Background(), `Buffer.new(2):setEndianness("middle")`))
}

func TestBufferModuleCursor(t *testing.T) {
	state := newBufferState(t)

	require.NoError(t, state.DoString(context.Background(), `
		local b = Buffer.new(8)
		b:writeBytes("abc\0def")
		text = b:toString()
		raw = b:toBytes()
		b:setPosition(4)
		pos = b:getPosition()
		tail = b:readString(3)
		local s = b:slice(1, 3)
		sliced = s:toString()
		b:clear()
		cleared = b:getLength()
	`))
	assert.Equal(t, lua.LString("abc"), state.GetGlobal("text"))
	assert.Equal(t, lua.LString("abc\x00def"), state.GetGlobal("raw"))
	assert.Equal(t, lua.LNumber(4), state.GetGlobal("pos"))
	assert.Equal(t, lua.LString("def"), state.GetGlobal("tail"))
	assert.Equal(t, lua.LString("bc"), state.GetGlobal("sliced"))
	assert.Equal(t, lua.LNumber(0), state.GetGlobal("cleared"))
}

func TestBufferModuleErrors(t *testing.T) {
	tests := map[string]string{
		"zero size":      `Buffer.new(0)`,
		"too large":      `Buffer.new(Buffer.MAX_SIZE + 1)`,
		"fixed overflow": `Buffer.new(1, false):writeUint32(1)`,
		"read past end":  `Buffer.new(4):readUint8()`,
		"bad seek":       `Buffer.new(4):seek(9)`,
		"not a buffer":   `Buffer.new(4).readUint8({})`,
	}

	for name, code := range tests {
		t.Run(name, func(t *testing.T) {
			state := newBufferState(t)
			assert.Error(t, state.DoString(context.Background(), code))
		})
	}
}

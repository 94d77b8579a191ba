package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/buffer"
	"github.com/dshills/luaproc/internal/script/security"
)

const bufferTypeName = "luaproc.buffer"

// BufferModule implements the Buffer global.
type BufferModule struct{}

// NewBufferModule creates a new buffer module.
func NewBufferModule() *BufferModule {
	return &BufferModule{}
}

// Name returns the module name.
func (m *BufferModule) Name() string { return "buffer" }

// Global returns the global the module is installed under.
func (m *BufferModule) Global() string { return "Buffer" }

// RequiredCapability returns the capability required for this module.
// Buffers never leave the Lua state, so none is needed.
func (m *BufferModule) RequiredCapability() security.Capability { return "" }

// Register registers the module into the Lua state.
func (m *BufferModule) Register(L *lua.LState) error {
	mt := L.NewTypeMetatable(bufferTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), bufferMethods))
	L.SetField(mt, "__len", L.NewFunction(bufLen))
	L.SetField(mt, "__tostring", L.NewFunction(bufToString))

	mod := L.NewTable()
	L.SetField(mod, "new", L.NewFunction(m.newBuffer))
	L.SetField(mod, "MAX_SIZE", lua.LNumber(buffer.MaxSize))
	L.SetGlobal(m.Global(), mod)
	return nil
}

// Buffer.new(size, autoGrow?) -> buffer
func (m *BufferModule) newBuffer(L *lua.LState) int {
	size := L.CheckInt(1)
	autoGrow := L.OptBool(2, true)

	b, err := buffer.New(size, autoGrow)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(pushBuffer(L, b))
	return 1
}

func pushBuffer(L *lua.LState, b *buffer.Buffer) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = b
	L.SetMetatable(ud, L.GetTypeMetatable(bufferTypeName))
	return ud
}

// checkBuffer returns the buffer at stack index n or raises.
func checkBuffer(L *lua.LState, n int) *buffer.Buffer {
	ud := L.CheckUserData(n)
	if b, ok := ud.Value.(*buffer.Buffer); ok {
		return b
	}
	L.ArgError(n, "buffer expected")
	return nil
}

var bufferMethods = map[string]lua.LGFunction{
	"writeUint8":     bufWriteNumber(func(b *buffer.Buffer, v lua.LNumber) error { return b.WriteUint8(uint8(v)) }),
	"writeInt8":      bufWriteNumber(func(b *buffer.Buffer, v lua.LNumber) error { return b.WriteInt8(int8(v)) }),
	"writeUint16":    bufWriteNumber(func(b *buffer.Buffer, v lua.LNumber) error { return b.WriteUint16(uint16(v)) }),
	"writeInt16":     bufWriteNumber(func(b *buffer.Buffer, v lua.LNumber) error { return b.WriteInt16(int16(v)) }),
	"writeUint32":    bufWriteNumber(func(b *buffer.Buffer, v lua.LNumber) error { return b.WriteUint32(uint32(v)) }),
	"writeInt32":     bufWriteNumber(func(b *buffer.Buffer, v lua.LNumber) error { return b.WriteInt32(int32(v)) }),
	"writeFloat32":   bufWriteNumber(func(b *buffer.Buffer, v lua.LNumber) error { return b.WriteFloat32(float32(v)) }),
	"writeFloat64":   bufWriteNumber(func(b *buffer.Buffer, v lua.LNumber) error { return b.WriteFloat64(float64(v)) }),
	"readUint8":      bufReadNumber(func(b *buffer.Buffer) (float64, error) { v, err := b.ReadUint8(); return float64(v), err }),
	"readInt8":       bufReadNumber(func(b *buffer.Buffer) (float64, error) { v, err := b.ReadInt8(); return float64(v), err }),
	"readUint16":     bufReadNumber(func(b *buffer.Buffer) (float64, error) { v, err := b.ReadUint16(); return float64(v), err }),
	"readInt16":      bufReadNumber(func(b *buffer.Buffer) (float64, error) { v, err := b.ReadInt16(); return float64(v), err }),
	"readUint32":     bufReadNumber(func(b *buffer.Buffer) (float64, error) { v, err := b.ReadUint32(); return float64(v), err }),
	"readInt32":      bufReadNumber(func(b *buffer.Buffer) (float64, error) { v, err := b.ReadInt32(); return float64(v), err }),
	"readFloat32":    bufReadNumber(func(b *buffer.Buffer) (float64, error) { v, err := b.ReadFloat32(); return float64(v), err }),
	"readFloat64":    bufReadNumber(func(b *buffer.Buffer) (float64, error) { return b.ReadFloat64() }),
	"writeString":    bufWriteString,
	"writeStringRaw": bufWriteStringRaw,
	"writeBytes":     bufWriteStringRaw,
	"readString":     bufReadString,
	"readBytes":      bufReadBytes,
	"seek":           bufSeek,
	"skip":           bufSkip,
	"rewind":         bufRewind,
	"clear":          bufClear,
	"fill":           bufFill,
	"remaining":      bufRemaining,
	"getPosition":    bufGetPosition,
	"setPosition":    bufSetPosition,
	"getLength":      bufLen,
	"setLength":      bufSetLength,
	"getCapacity":    bufGetCapacity,
	"setEndianness":  bufSetEndianness,
	"getEndianness":  bufGetEndianness,
	"slice":          bufSlice,
	"toString":       bufToString,
	"toHex":          bufToHex,
	"toBytes":        bufToBytes,
}

func bufWriteNumber(write func(*buffer.Buffer, lua.LNumber) error) lua.LGFunction {
	return func(L *lua.LState) int {
		b := checkBuffer(L, 1)
		if err := write(b, L.CheckNumber(2)); err != nil {
			L.RaiseError("%v", err)
		}
		L.Push(L.Get(1))
		return 1
	}
}

func bufReadNumber(read func(*buffer.Buffer) (float64, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		v, err := read(checkBuffer(L, 1))
		if err != nil {
			L.RaiseError("%v", err)
		}
		L.Push(lua.LNumber(v))
		return 1
	}
}

// buf:writeString(s) writes s followed by a NUL byte.
func bufWriteString(L *lua.LState) int {
	b := checkBuffer(L, 1)
	if err := b.WriteString(L.CheckString(2)); err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(L.Get(1))
	return 1
}

func bufWriteStringRaw(L *lua.LState) int {
	b := checkBuffer(L, 1)
	if err := b.WriteStringRaw(L.CheckString(2)); err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(L.Get(1))
	return 1
}

// buf:readString(n?) reads n bytes, or up to the next NUL without n.
func bufReadString(L *lua.LState) int {
	b := checkBuffer(L, 1)
	var (
		s   string
		err error
	)
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		s, err = b.ReadStringN(L.CheckInt(2))
	} else {
		s, err = b.ReadString()
	}
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(lua.LString(s))
	return 1
}

func bufReadBytes(L *lua.LState) int {
	b := checkBuffer(L, 1)
	p, err := b.ReadBytes(L.CheckInt(2))
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(lua.LString(p))
	return 1
}

func bufSeek(L *lua.LState) int {
	b := checkBuffer(L, 1)
	if err := b.Seek(L.CheckInt(2)); err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(L.Get(1))
	return 1
}

func bufSkip(L *lua.LState) int {
	b := checkBuffer(L, 1)
	if err := b.Skip(L.CheckInt(2)); err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(L.Get(1))
	return 1
}

func bufRewind(L *lua.LState) int {
	checkBuffer(L, 1).Rewind()
	L.Push(L.Get(1))
	return 1
}

func bufClear(L *lua.LState) int {
	checkBuffer(L, 1).Clear()
	L.Push(L.Get(1))
	return 1
}

func bufFill(L *lua.LState) int {
	b := checkBuffer(L, 1)
	b.Fill(byte(L.OptInt(2, 0)))
	L.Push(L.Get(1))
	return 1
}

func bufRemaining(L *lua.LState) int {
	L.Push(lua.LNumber(checkBuffer(L, 1).Remaining()))
	return 1
}

func bufGetPosition(L *lua.LState) int {
	L.Push(lua.LNumber(checkBuffer(L, 1).Pos()))
	return 1
}

func bufSetPosition(L *lua.LState) int {
	b := checkBuffer(L, 1)
	b.SetPos(L.CheckInt(2))
	L.Push(L.Get(1))
	return 1
}

func bufLen(L *lua.LState) int {
	L.Push(lua.LNumber(checkBuffer(L, 1).Len()))
	return 1
}

func bufSetLength(L *lua.LState) int {
	b := checkBuffer(L, 1)
	b.SetLen(L.CheckInt(2))
	L.Push(L.Get(1))
	return 1
}

func bufGetCapacity(L *lua.LState) int {
	L.Push(lua.LNumber(checkBuffer(L, 1).Cap()))
	return 1
}

func bufSetEndianness(L *lua.LState) int {
	b := checkBuffer(L, 1)
	e, err := buffer.ParseEndianness(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
	}
	b.SetEndianness(e)
	L.Push(L.Get(1))
	return 1
}

func bufGetEndianness(L *lua.LState) int {
	L.Push(lua.LString(checkBuffer(L, 1).Endianness().String()))
	return 1
}

func bufSlice(L *lua.LState) int {
	b := checkBuffer(L, 1)
	s, err := b.Slice(L.CheckInt(2), L.OptInt(3, b.Len()))
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(pushBuffer(L, s))
	return 1
}

func bufToString(L *lua.LState) int {
	L.Push(lua.LString(checkBuffer(L, 1).String()))
	return 1
}

func bufToHex(L *lua.LState) int {
	L.Push(lua.LString(checkBuffer(L, 1).Hex()))
	return 1
}

// buf:toBytes() returns the written bytes without stopping at NUL.
func bufToBytes(L *lua.LState) int {
	L.Push(lua.LString(checkBuffer(L, 1).Bytes()))
	return 1
}

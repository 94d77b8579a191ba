package api

import (
	"fmt"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luaproc/internal/process"
)

const handleTypeName = "luaproc.process"

func (m *ProcessModule) registerHandleType(L *lua.LState) {
	mt := L.NewTypeMetatable(handleTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), handleMethods))
	L.SetField(mt, "__tostring", L.NewFunction(handleToString))
}

func pushHandle(L *lua.LState, h *process.Handle) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = h
	L.SetMetatable(ud, L.GetTypeMetatable(handleTypeName))
	return ud
}

func checkHandle(L *lua.LState) *process.Handle {
	ud := L.CheckUserData(1)
	if h, ok := ud.Value.(*process.Handle); ok {
		return h
	}
	L.ArgError(1, "process handle expected")
	return nil
}

var handleMethods = map[string]lua.LGFunction{
	"write":        handleWrite,
	"writeBuffer":  handleWriteBuffer,
	"closeStdin":   handleCloseStdin,
	"read":         handleRead,
	"readErr":      handleReadErr,
	"readNonBlock": handleReadNonBlock,
	"readToBuffer": handleReadToBuffer,
	"kill":         handleKill,
	"wait":         handleWait,
	"poll":         handlePoll,
	"isRunning":    handleIsRunning,
	"getPid":       handleGetPid,
	"getExitCode":  handleGetExitCode,
	"close":        handleClose,
	"resize":       handleResize,
	"getId":        handleGetID,
}

// h:write(data) -> h, n
//
// n is the number of bytes the child accepted; stdin is non-blocking so it
// can be less than #data.
func handleWrite(L *lua.LState) int {
	h := checkHandle(L)
	n, err := h.WriteString(L.CheckString(2))
	if err != nil {
		L.RaiseError("write: %v", err)
	}
	L.Push(L.Get(1))
	L.Push(lua.LNumber(n))
	return 2
}

// h:writeBuffer(buf) -> n
func handleWriteBuffer(L *lua.LState) int {
	h := checkHandle(L)
	n, err := h.WriteBuffer(checkBuffer(L, 2))
	if err != nil {
		L.RaiseError("writeBuffer: %v", err)
	}
	L.Push(lua.LNumber(n))
	return 1
}

// h:closeStdin() -> h
func handleCloseStdin(L *lua.LState) int {
	if err := checkHandle(L).CloseStdin(); err != nil {
		L.RaiseError("closeStdin: %v", err)
	}
	L.Push(L.Get(1))
	return 1
}

func pushRead(L *lua.LState, name string, read func() ([]byte, error)) int {
	p, err := read()
	if err != nil {
		L.RaiseError("%s: %v", name, err)
	}
	L.Push(lua.LString(p))
	return 1
}

// h:read() -> string, empty when nothing is available
func handleRead(L *lua.LState) int {
	return pushRead(L, "read", checkHandle(L).Read)
}

// h:readErr() -> string
func handleReadErr(L *lua.LState) int {
	return pushRead(L, "readErr", checkHandle(L).ReadErr)
}

// h:readNonBlock() -> string, never raises
func handleReadNonBlock(L *lua.LState) int {
	L.Push(lua.LString(checkHandle(L).ReadNonBlock()))
	return 1
}

// h:readToBuffer(buf) -> n
func handleReadToBuffer(L *lua.LState) int {
	h := checkHandle(L)
	n, err := h.ReadToBuffer(checkBuffer(L, 2))
	if err != nil {
		L.RaiseError("readToBuffer: %v", err)
	}
	L.Push(lua.LNumber(n))
	return 1
}

// checkSignal accepts a signal name, a positive number or nil for SIGTERM.
func checkSignal(L *lua.LState, n int) process.Signal {
	var (
		sig process.Signal
		err error
	)
	switch v := L.Get(n).(type) {
	case *lua.LNilType:
		sig = process.SignalTerm
	case lua.LString:
		sig, err = process.ParseSignal(string(v))
	case lua.LNumber:
		sig, err = process.ParseSignal(strconv.Itoa(int(v)))
	default:
		err = fmt.Errorf("%w: expected string or number, got %s", process.ErrUnknownSignal, v.Type())
	}
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return sig
}

// h:kill(signal?) -> h
func handleKill(L *lua.LState) int {
	h := checkHandle(L)
	if err := h.Kill(checkSignal(L, 2)); err != nil {
		L.RaiseError("kill: %v", err)
	}
	L.Push(L.Get(1))
	return 1
}

// h:wait() -> code
func handleWait(L *lua.LState) int {
	code, err := checkHandle(L).Wait()
	if err != nil {
		L.RaiseError("wait: %v", err)
	}
	L.Push(lua.LNumber(code))
	return 1
}

// h:poll() -> code | nil
func handlePoll(L *lua.LState) int {
	code, exited, err := checkHandle(L).Poll()
	if err != nil {
		L.RaiseError("poll: %v", err)
	}
	if !exited {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(code))
	return 1
}

// h:isRunning() -> bool
func handleIsRunning(L *lua.LState) int {
	L.Push(lua.LBool(checkHandle(L).IsRunning()))
	return 1
}

// h:getPid() -> number
func handleGetPid(L *lua.LState) int {
	L.Push(lua.LNumber(checkHandle(L).Pid()))
	return 1
}

// h:getExitCode() -> code | nil
func handleGetExitCode(L *lua.LState) int {
	code, ok := checkHandle(L).ExitCode()
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(code))
	return 1
}

// h:close()
func handleClose(L *lua.LState) int {
	if err := checkHandle(L).Close(); err != nil {
		L.RaiseError("close: %v", err)
	}
	return 0
}

// h:resize(cols, rows)
func handleResize(L *lua.LState) int {
	h := checkHandle(L)
	cols, rows := L.CheckInt(2), L.CheckInt(3)
	if cols < 1 || cols > 0xffff {
		L.ArgError(2, "cols out of range")
	}
	if rows < 1 || rows > 0xffff {
		L.ArgError(3, "rows out of range")
	}
	if err := h.Resize(uint16(cols), uint16(rows)); err != nil {
		L.RaiseError("resize: %v", err)
	}
	return 0
}

// h:getId() -> string
func handleGetID(L *lua.LState) int {
	L.Push(lua.LString(checkHandle(L).ID()))
	return 1
}

func handleToString(L *lua.LState) int {
	h := checkHandle(L)
	L.Push(lua.LString(fmt.Sprintf("Process(%s, pid %d)", h.Command(), h.Pid())))
	return 1
}

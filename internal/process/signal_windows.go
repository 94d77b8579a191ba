//go:build windows

package process

import "syscall"

// Signals accepted by ParseSignal. Windows has no signal delivery; every
// value terminates the process. The numbers follow Linux.
const (
	SignalTerm = Signal(syscall.SIGTERM)
	SignalKill = Signal(syscall.SIGKILL)
	SignalInt  = Signal(syscall.SIGINT)
	SignalHup  = Signal(syscall.SIGHUP)
	SignalQuit = Signal(syscall.SIGQUIT)
	SignalUsr1 = Signal(10)
	SignalUsr2 = Signal(12)
	SignalStop = Signal(19)
	SignalCont = Signal(18)
)

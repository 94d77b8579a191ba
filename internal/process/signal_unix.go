//go:build unix

package process

import "golang.org/x/sys/unix"

// Signals accepted by ParseSignal.
const (
	SignalTerm = Signal(unix.SIGTERM)
	SignalKill = Signal(unix.SIGKILL)
	SignalInt  = Signal(unix.SIGINT)
	SignalHup  = Signal(unix.SIGHUP)
	SignalQuit = Signal(unix.SIGQUIT)
	SignalUsr1 = Signal(unix.SIGUSR1)
	SignalUsr2 = Signal(unix.SIGUSR2)
	SignalStop = Signal(unix.SIGSTOP)
	SignalCont = Signal(unix.SIGCONT)
)

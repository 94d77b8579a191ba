package process

import (
	"fmt"
	"strconv"
	"strings"
)

// Signal is a signal deliverable through Handle.Kill.
//
// On Windows every signal terminates the process; the value only matters
// on POSIX systems.
type Signal int

// ParseSignal accepts a POSIX signal name with or without the SIG prefix
// (SIGTERM, TERM, sigkill) or a positive signal number. An empty string
// selects SignalTerm.
func ParseSignal(s string) (Signal, error) {
	if s == "" {
		return SignalTerm, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: %d", ErrUnknownSignal, n)
		}
		return Signal(n), nil
	}

	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	for _, e := range signalTable {
		if e.name == name {
			return e.sig, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownSignal, s)
}

// String returns the signal name, or its number when it has no name.
func (s Signal) String() string {
	for _, e := range signalTable {
		if e.sig == s {
			return e.name
		}
	}
	return strconv.Itoa(int(s))
}

type signalEntry struct {
	name string
	sig  Signal
}

// signalTable lists the names ParseSignal accepts, built from the
// per-platform signal constants.
var signalTable = []signalEntry{
	{"SIGTERM", SignalTerm},
	{"SIGKILL", SignalKill},
	{"SIGINT", SignalInt},
	{"SIGHUP", SignalHup},
	{"SIGQUIT", SignalQuit},
	{"SIGUSR1", SignalUsr1},
	{"SIGUSR2", SignalUsr2},
	{"SIGSTOP", SignalStop},
	{"SIGCONT", SignalCont},
}

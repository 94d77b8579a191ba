package process

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/luaproc/internal/buffer"
	"github.com/dshills/luaproc/internal/log"
)

// ptyEOF is the terminal end-of-file character (Ctrl-D).
const ptyEOF = 0x04

// Handle is a live child process and the parent ends of its streams.
//
// Every read and write is a single non-blocking attempt. Wait is the only
// call that blocks. A Handle is safe for concurrent use but is designed for
// one caller at a time.
type Handle struct {
	id      string
	s       *handleState
	reg     *Registry
	cleanup runtime.Cleanup
}

// handleState owns the OS resources. It is separate from Handle so the
// garbage-collection cleanup can hold it without keeping the Handle alive.
type handleState struct {
	mu sync.Mutex

	command string
	proc    osProcess
	pid     int

	stdin  endpoint
	stdout endpoint
	stderr endpoint
	term   terminal
	pty    bool

	stdinOpen  bool
	stdoutOpen bool
	stderrOpen bool

	exited bool
	code   int
	closed bool

	scratch []byte

	grace  time.Duration
	chunk  int
	logger log.Logger
}

// cleanupArg is what the garbage-collection cleanup needs. It must not
// reference the Handle.
type cleanupArg struct {
	id  string
	s   *handleState
	reg *Registry
}

// Spawn launches the process described by cfg.
//
// Configuration faults are returned wrapping ErrInvalidConfig and allocate
// nothing. A failure to create the process is returned as *SpawnFailure
// after every channel allocated for it has been released.
func Spawn(cfg Config, opts ...Option) (*Handle, error) {
	return spawn(cfg, newOptions(opts), nil)
}

func spawn(cfg Config, o options, reg *Registry) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	logger := o.logger.WithValues(log.Kv{"cmd": cfg.Command})

	l, err := platform.launch(cfg, o)
	if err != nil {
		logger.Debugf("Spawn failed: %s", err)
		return nil, spawnFailure(cfg.Command, err)
	}

	id := uuid.New().String()
	pid := l.proc.pid()
	s := &handleState{
		command:    cfg.Command,
		proc:       l.proc,
		pid:        pid,
		stdin:      l.stdin,
		stdout:     l.stdout,
		stderr:     l.stderr,
		term:       l.term,
		pty:        cfg.UsesPty(),
		stdinOpen:  l.stdin != nil,
		stdoutOpen: l.stdout != nil,
		stderrOpen: l.stderr != nil,
		code:       -1,
		grace:      o.gracePeriod,
		chunk:      o.readChunkSize,
		logger:     logger.WithValues(log.Kv{"pid": pid, "handle": id}),
	}

	h := &Handle{id: id, s: s, reg: reg}
	h.cleanup = runtime.AddCleanup(h, collectHandle, cleanupArg{id: id, s: s, reg: reg})

	s.logger.Debugf("Process spawned (stdin=%s stdout=%s stderr=%s)", cfg.Stdin, cfg.Stdout, cfg.Stderr)
	return h, nil
}

// collectHandle runs when a Handle becomes unreachable without Close.
func collectHandle(c cleanupArg) {
	c.s.logger.Debugf("Handle collected without Close, tearing down")
	if err := c.s.teardown(); err != nil {
		c.s.logger.Warningf("Teardown of collected handle failed: %s", err)
	}
	if c.reg != nil {
		c.reg.forget(c.id)
	}
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string { return h.id }

// Command returns the program the handle runs.
func (h *Handle) Command() string { return h.s.command }

// Pid returns the OS process ID.
func (h *Handle) Pid() int { return h.s.pid }

// UsesPty reports whether the process is attached to a pseudo-terminal.
func (h *Handle) UsesPty() bool { return h.s.pty }

// Write writes p to the child's stdin in one attempt and returns the number
// of bytes accepted, which is 0 when the pipe is full.
func (h *Handle) Write(p []byte) (int, error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(p)
}

// WriteString is Write for a string.
func (h *Handle) WriteString(str string) (int, error) {
	return h.Write([]byte(str))
}

// WriteBuffer writes the bytes between the buffer's position and length,
// then advances the position by the amount written.
func (h *Handle) WriteBuffer(b buffer.Cursor) (int, error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.stdinOpen {
		return 0, ErrStdinClosed
	}
	pos, end := b.Pos(), b.Len()
	if pos >= end {
		return 0, nil
	}
	n, err := s.writeLocked(b.Data()[pos:end])
	b.SetPos(pos + n)
	return n, err
}

func (s *handleState) writeLocked(p []byte) (int, error) {
	if s.closed || !s.stdinOpen {
		return 0, ErrStdinClosed
	}
	n, err := s.stdin.write(p)
	if err != nil {
		return n, fmt.Errorf("write to process stdin: %w", err)
	}
	return n, nil
}

// CloseStdin signals end of input. It is idempotent.
//
// The parent end is closed when it has one of its own: a pipe, or the
// input pipe of a Windows pseudo console. A POSIX pty master also carries
// stdout, so the terminal EOF character is sent instead.
func (h *Handle) CloseStdin() error {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.stdinOpen {
		return nil
	}
	s.stdinOpen = false

	if s.stdin == s.stdout {
		if _, err := s.stdin.write([]byte{ptyEOF}); err != nil {
			return fmt.Errorf("send EOF to pty: %w", err)
		}
		return nil
	}

	err := s.stdin.close()
	s.stdin = nil
	if err != nil {
		return fmt.Errorf("close process stdin: %w", err)
	}
	return nil
}

// Read returns whatever stdout has available, up to the read chunk size.
// It returns nothing when no data is waiting or the stream has ended.
func (h *Handle) Read() ([]byte, error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.stdoutOpen {
		return nil, nil
	}
	return s.readLocked(s.stdout, "stdout")
}

// ReadErr is Read for stderr. It always returns nothing in pty mode.
func (h *Handle) ReadErr() ([]byte, error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.pty || !s.stderrOpen {
		return nil, nil
	}
	return s.readLocked(s.stderr, "stderr")
}

// ReadNonBlock checks stdout readiness without blocking and reads if data
// is waiting. Every failure yields an empty result.
func (h *Handle) ReadNonBlock() []byte {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.stdoutOpen || !s.stdout.ready() {
		return nil
	}
	data, err := s.readLocked(s.stdout, "stdout")
	if err != nil {
		return nil
	}
	return data
}

func (s *handleState) readLocked(ep endpoint, name string) ([]byte, error) {
	if s.scratch == nil {
		s.scratch = make([]byte, s.chunk)
	}
	n, err := ep.read(s.scratch)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read from process %s: %w", name, err)
	}
	if n == 0 {
		return nil, nil
	}
	return bytes.Clone(s.scratch[:n]), nil
}

// ReadToBuffer reads stdout directly into the buffer at its position, up
// to its capacity. The position advances by the bytes read and the length
// grows if the position passes it.
func (h *Handle) ReadToBuffer(b buffer.Cursor) (int, error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.stdoutOpen {
		return 0, ErrStdoutClosed
	}
	pos, capacity := b.Pos(), b.Cap()
	if pos >= capacity {
		return 0, ErrBufferFull
	}

	n, err := s.stdout.read(b.Data()[pos:capacity])
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read from process stdout: %w", err)
	}

	b.SetPos(pos + n)
	if pos+n > b.Len() {
		b.SetLen(pos + n)
	}
	return n, nil
}

// Kill sends sig to the process. Calling it on a process that has already
// exited, including one a previous Kill brought down, does nothing.
//
// On Windows the signal is ignored and the process is terminated.
func (h *Handle) Kill(sig Signal) error {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if _, exited, err := s.pollLocked(); err != nil {
		return err
	} else if exited {
		return nil
	}

	if err := s.proc.signal(sig); err != nil {
		return fmt.Errorf("send %s to process %d: %w", sig, s.pid, err)
	}
	s.logger.Debugf("Sent %s", sig)
	return nil
}

// Wait blocks until the process exits and returns its exit code. After the
// first observation the cached code is returned without touching the OS.
func (h *Handle) Wait() (int, error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exited {
		return s.code, nil
	}
	if s.closed {
		return -1, ErrHandleClosed
	}

	code, _, err := s.proc.wait(true)
	if err != nil {
		return -1, fmt.Errorf("wait for process %d: %w", s.pid, err)
	}
	s.markExited(code)
	return code, nil
}

// Poll checks for exit without blocking. exited is false while the process
// runs; code is only meaningful when exited is true.
func (h *Handle) Poll() (code int, exited bool, err error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollLocked()
}

func (s *handleState) pollLocked() (int, bool, error) {
	if s.exited {
		return s.code, true, nil
	}
	if s.closed {
		return -1, true, nil
	}
	code, exited, err := s.proc.wait(false)
	if err != nil {
		return -1, false, fmt.Errorf("poll process %d: %w", s.pid, err)
	}
	if exited {
		s.markExited(code)
	}
	return code, exited, nil
}

func (s *handleState) markExited(code int) {
	s.exited = true
	s.code = code
	s.logger.Debugf("Process exited with code %d", code)
}

// IsRunning re-checks the process and reports whether it is still alive.
func (h *Handle) IsRunning() bool {
	_, exited, err := h.Poll()
	return err == nil && !exited
}

// ExitCode returns the cached exit code. ok is false until Wait or Poll
// has observed the exit.
func (h *Handle) ExitCode() (code int, ok bool) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.exited
}

// Resize changes the pseudo-terminal window size.
func (h *Handle) Resize(cols, rows uint16) error {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrHandleClosed
	}
	if s.term == nil {
		return ErrNotPty
	}
	if err := s.term.resize(cols, rows); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	return nil
}

// Close tears the process down and releases every resource. If the child
// is still running it gets SIGTERM, then SIGKILL after the grace period,
// and is reaped. Close is idempotent.
func (h *Handle) Close() error {
	h.cleanup.Stop()
	err := h.s.teardown()
	if h.reg != nil {
		h.reg.forget(h.id)
	}
	return err
}

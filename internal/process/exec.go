package process

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// ExecResult is the captured outcome of Exec.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Exec runs cfg to completion and captures its output.
//
// Stdin is closed immediately. The child is then drained in passes of one
// Poll followed by reading stdout and stderr until each has nothing more
// waiting. Passes are DrainInterval apart while the child runs; once exit
// is observed exactly one more pass collects the tail and the loop ends.
//
// A launch failure is returned as *SpawnFailure. Cancelling ctx tears the
// child down and returns ctx.Err(). The handle is closed on every path.
func Exec(ctx context.Context, cfg Config, opts ...Option) (*ExecResult, error) {
	o := newOptions(opts)
	h, err := spawn(cfg, o, nil)
	if err != nil {
		return nil, err
	}
	return drain(ctx, h, o)
}

func drain(ctx context.Context, h *Handle, o options) (res *ExecResult, err error) {
	defer func() {
		if cerr := h.Close(); cerr != nil && err == nil {
			res, err = nil, fmt.Errorf("close process: %w", cerr)
		}
	}()

	if err := h.CloseStdin(); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	code := -1
	final := false
	for {
		c, exited, err := h.Poll()
		if err != nil {
			return nil, err
		}
		if err := drainStream(h.Read, &stdout); err != nil {
			return nil, err
		}
		if err := drainStream(h.ReadErr, &stderr); err != nil {
			return nil, err
		}

		if final {
			break
		}
		if exited {
			code = c
			final = true
			continue
		}

		if err := sleepCtx(ctx, o.drainInterval); err != nil {
			return nil, err
		}
	}

	return &ExecResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: code,
	}, nil
}

// drainStream appends reads to dst until the stream has nothing waiting.
func drainStream(read func() ([]byte, error), dst *bytes.Buffer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == bytes.ErrTooLarge {
				err = ErrOutputTooLarge
				return
			}
			panic(r)
		}
	}()

	for {
		p, err := read()
		if err != nil {
			return err
		}
		if len(p) == 0 {
			return nil
		}
		dst.Write(p)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

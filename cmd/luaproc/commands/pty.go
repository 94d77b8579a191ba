package commands

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/luaproc/internal/log"
	"github.com/dshills/luaproc/internal/process"
)

// NewPtyCommand creates `luaproc pty [--cwd dir] <command> [args...]`, an
// interactive session with a child attached to a pseudo-terminal.
func NewPtyCommand(rc *RootCommand) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "pty <command> [args...]",
		Short: "Run a command on a pseudo-terminal attached to this one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runPty(cmd.Context(), rc, process.Config{
				Command: args[0],
				Args:    args[1:],
				Dir:     dir,
				Stdin:   process.ModePty,
				Stdout:  process.ModePty,
				Stderr:  process.ModePty,
				PtyCols: uint16(rc.Config.Process.PtyCols),
				PtyRows: uint16(rc.Config.Process.PtyRows),
			})
			rc.ExitCode = code
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "cwd", "", "Working directory of the command")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runPty(ctx context.Context, rc *RootCommand, cfg process.Config) (int, error) {
	logger := rc.Logger.WithValues(log.Kv{"command": cfg.Command})

	// A real terminal on stdin goes raw and lends its size to the child.
	termFd := -1
	if f, ok := rc.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		termFd = int(f.Fd())
		if cols, rows, err := term.GetSize(termFd); err == nil {
			cfg.PtyCols, cfg.PtyRows = uint16(cols), uint16(rows)
		}
	}

	opts := append(rc.Config.Process.ProcessOptions(), process.WithLogger(logger))
	h, err := process.Spawn(cfg, opts...)
	if err != nil {
		var sf *process.SpawnFailure
		if errors.As(err, &sf) {
			return SpawnFailureExitCode, err
		}
		return 1, err
	}
	defer h.Close()

	if termFd >= 0 {
		state, err := term.MakeRaw(termFd)
		if err != nil {
			return 1, err
		}
		defer func() { _ = term.Restore(termFd, state) }()
	}

	inputCtx, stopInput := context.WithCancel(ctx)
	defer stopInput()
	input := readInput(inputCtx, rc.Stdin)
	size := [2]uint16{cfg.PtyCols, cfg.PtyRows}

	ticker := time.NewTicker(rc.Config.Process.DrainInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 1, ctx.Err()

		case chunk, ok := <-input:
			if !ok {
				logger.Debugf("Input ended, closing child stdin")
				if err := h.CloseStdin(); err != nil {
					return 1, err
				}
				input = nil
				continue
			}
			if _, err := h.Write(chunk); err != nil && !errors.Is(err, process.ErrStdinClosed) {
				return 1, err
			}

		case <-ticker.C:
			code, exited, err := h.Poll()
			if err != nil {
				return 1, err
			}
			// One drain after exit picks up the final output.
			if err := copyOutput(h, rc.Stdout); err != nil {
				return 1, err
			}
			if exited {
				logger.Debugf("Command exited with code %d", code)
				return code, nil
			}

			if termFd >= 0 {
				if cols, rows, err := term.GetSize(termFd); err == nil && size != [2]uint16{uint16(cols), uint16(rows)} {
					size = [2]uint16{uint16(cols), uint16(rows)}
					if err := h.Resize(size[0], size[1]); err != nil {
						logger.Warningf("Could not resize pty: %s", err)
					}
				}
			}
		}
	}
}

// copyOutput writes everything the child has waiting to w.
func copyOutput(h *process.Handle, w io.Writer) error {
	for {
		p, err := h.Read()
		if err != nil {
			return err
		}
		if len(p) == 0 {
			return nil
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
}

// readInput forwards r in chunks until it ends or ctx is done. The channel
// is closed on EOF or any read error.
func readInput(ctx context.Context, r io.Reader) <-chan []byte {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case ch <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

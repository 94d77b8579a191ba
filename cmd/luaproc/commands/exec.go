package commands

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/luaproc/internal/log"
	"github.com/dshills/luaproc/internal/process"
)

// SpawnFailureExitCode is reported when the command could not be launched.
const SpawnFailureExitCode = 127

// NewExecCommand creates `luaproc exec [--json] [--cwd dir] <command> [args...]`.
func NewExecCommand(rc *RootCommand) *cobra.Command {
	var (
		asJSON bool
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run a command to completion and print its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := process.Config{Command: args[0], Args: args[1:], Dir: dir}
			logger := rc.Logger.WithValues(log.Kv{"command": cfg.Command})

			opts := append(rc.Config.Process.ProcessOptions(), process.WithLogger(logger))
			res, err := process.Exec(cmd.Context(), cfg, opts...)

			var sf *process.SpawnFailure
			if errors.As(err, &sf) {
				rc.ExitCode = SpawnFailureExitCode
				if asJSON {
					out, _ := sjson.SetBytes([]byte(`{}`), "error", err.Error())
					_, werr := rc.Stdout.Write(append(out, '\n'))
					return werr
				}
				return err
			}
			if err != nil {
				rc.ExitCode = 1
				return err
			}

			rc.ExitCode = res.ExitCode
			logger.Debugf("Command exited with code %d", res.ExitCode)

			if asJSON {
				out, err := execJSON(res)
				if err != nil {
					return err
				}
				_, err = rc.Stdout.Write(append(out, '\n'))
				return err
			}
			if _, err := rc.Stdout.Write(res.Stdout); err != nil {
				return err
			}
			_, err = rc.Stderr.Write(res.Stderr)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stdout, stderr and exit code as one JSON object")
	cmd.Flags().StringVar(&dir, "cwd", "", "Working directory of the command")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func execJSON(res *process.ExecResult) ([]byte, error) {
	out := []byte(`{}`)
	var err error
	for _, field := range []struct {
		path  string
		value any
	}{
		{"stdout", string(res.Stdout)},
		{"stderr", string(res.Stderr)},
		{"exitCode", res.ExitCode},
	} {
		if out, err = sjson.SetBytes(out, field.path, field.value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

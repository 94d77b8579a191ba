package commands

import (
	"github.com/spf13/cobra"

	"github.com/dshills/luaproc/internal/script"
)

// NewRunCommand creates `luaproc run <script.lua> [args...]`.
func NewRunCommand(rc *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script.lua> [args...]",
		Short: "Run a Lua script",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.Config
			host, err := script.New(
				script.WithCapabilities(cfg.Script.ParsedCapabilities()...),
				script.WithTimeout(cfg.Script.Timeout.Std()),
				script.WithProcessOptions(cfg.Process.ProcessOptions()...),
				script.WithMaxProcesses(cfg.Process.MaxProcesses),
				script.WithPtySize(uint16(cfg.Process.PtyCols), uint16(cfg.Process.PtyRows)),
				script.WithLogger(rc.Logger),
			)
			if err != nil {
				return err
			}
			defer host.Close()

			code, err := host.Run(cmd.Context(), args[0], args[1:])
			rc.ExitCode = code
			return err
		},
	}
	// Everything after the script path belongs to the script.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// Package commands holds the luaproc CLI commands.
package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/luaproc/internal/config"
	"github.com/dshills/luaproc/internal/log"
)

const (
	// LoggerTypeText is the human readable logger.
	LoggerTypeText = "text"
	// LoggerTypeJSON is the json logger.
	LoggerTypeJSON = "json"
)

// RootCommand carries the global flags and instances shared by every
// command.
type RootCommand struct {
	// Global flags.
	ConfigPath string
	Debug      bool
	NoColor    bool
	LoggerType string

	// Global instances, set before a command runs.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config
	Logger log.Logger

	// ExitCode is the status the process should exit with once the
	// command returns.
	ExitCode int
}

// NewRootCommand creates the cobra command tree. setup runs after flags
// are parsed and before any subcommand.
func NewRootCommand(rc *RootCommand, setup func() error) *cobra.Command {
	root := &cobra.Command{
		Use:   "luaproc",
		Short: "Run Lua scripts that spawn and drive child processes",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rc.ConfigPath, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "Path to a YAML or TOML config file")
	flags.BoolVar(&rc.Debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&rc.NoColor, "no-color", false, "Disable logger color")
	flags.StringVar(&rc.LoggerType, "log-format", "", "Logger format: text or json (default from config)")

	root.AddCommand(
		NewRunCommand(rc),
		NewExecCommand(rc),
		NewPtyCommand(rc),
	)
	return root
}

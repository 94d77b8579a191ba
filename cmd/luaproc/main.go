package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/oklog/run"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dshills/luaproc/cmd/luaproc/commands"
	"github.com/dshills/luaproc/internal/config"
	"github.com/dshills/luaproc/internal/log"
	loglogrus "github.com/dshills/luaproc/internal/log/logrus"
)

// Version is the application version (set via ldflags).
var Version = "dev"

// Run runs the main application and returns the exit code the process
// should terminate with.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	rootCmd, app := newApp(args, stdin, stdout, stderr)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(signals)

	return execute(ctx, rootCmd, app, signals)
}

func newApp(args []string, stdin io.Reader, stdout, stderr io.Writer) (*commands.RootCommand, *cobra.Command) {
	rootCmd := &commands.RootCommand{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Logger: log.Noop,
	}

	setup := func() error {
		cfg, err := config.Load(rootCmd.ConfigPath)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if rootCmd.LoggerType == "" {
			rootCmd.LoggerType = cfg.Log.Format
		}
		rootCmd.Config = cfg
		rootCmd.Logger = getLogger(*rootCmd)
		return nil
	}

	app := commands.NewRootCommand(rootCmd, setup)
	app.SetArgs(args[1:])
	app.SetIn(stdin)
	app.SetOut(stdout)
	app.SetErr(stderr)
	return rootCmd, app
}

// InterruptedError reports that the command was stopped by an OS signal.
type InterruptedError struct {
	Signal os.Signal
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted by %s", e.Signal)
}

// ExitCode is 128 plus the signal number, as a shell reports it.
func (e *InterruptedError) ExitCode() int {
	if sig, ok := e.Signal.(syscall.Signal); ok {
		return 128 + int(sig)
	}
	return 1
}

func execute(ctx context.Context, rootCmd *commands.RootCommand, app *cobra.Command, signals <-chan os.Signal) (int, error) {
	var g run.Group

	// OS signals.
	{
		stop := make(chan struct{})
		g.Add(
			func() error {
				select {
				case sig := <-signals:
					return &InterruptedError{Signal: sig}
				case <-stop:
					return nil
				}
			},
			func(_ error) {
				close(stop)
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				return app.ExecuteContext(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	err := g.Run()
	code := rootCmd.ExitCode

	var interrupted *InterruptedError
	switch {
	case errors.As(err, &interrupted):
		rootCmd.Logger.Debugf("Termination signal received: %s", interrupted.Signal)
		code = interrupted.ExitCode()
	case err != nil && code == 0:
		code = 1
	}
	return code, err
}

// getLogger returns the application logger.
func getLogger(rc commands.RootCommand) log.Logger {
	logrusLog := logrus.New()
	logrusLog.Out = rc.Stderr // Keep stdout for command output.
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if level, err := logrus.ParseLevel(rc.Config.Log.Level); err == nil {
		logrusLog.SetLevel(level)
	}
	if rc.Debug {
		logrusLog.SetLevel(logrus.DebugLevel)
	}

	switch rc.LoggerType {
	case commands.LoggerTypeJSON:
		logrusLog.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrusLog.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !rc.NoColor,
			DisableColors: rc.NoColor,
		})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	code, err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(code)
}

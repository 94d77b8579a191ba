// Package config holds luaproc settings.
//
// Settings come from built-in defaults, then an optional YAML or TOML file,
// then LUAPROC_* environment variables, the later source winning per key.
package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dshills/luaproc/internal/process"
	"github.com/dshills/luaproc/internal/script/security"
)

// Config is the complete luaproc configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Process ProcessConfig `yaml:"process"`
	Script  ScriptConfig  `yaml:"script"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is a logrus level name.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// ProcessConfig configures spawned children.
type ProcessConfig struct {
	GracePeriod   Duration `yaml:"grace_period"`
	DrainInterval Duration `yaml:"drain_interval"`
	ReadChunkSize int      `yaml:"read_chunk_size"`
	PtyCols       int      `yaml:"pty_cols"`
	PtyRows       int      `yaml:"pty_rows"`
	// MaxProcesses limits live children per script; 0 is unlimited.
	MaxProcesses int `yaml:"max_processes"`
}

// ScriptConfig configures the Lua host.
type ScriptConfig struct {
	Capabilities []string `yaml:"capabilities"`
	// Timeout bounds one script run; 0 disables it.
	Timeout Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Process: ProcessConfig{
			GracePeriod:   Duration(100 * time.Millisecond),
			DrainInterval: Duration(10 * time.Millisecond),
			ReadChunkSize: 4096,
			PtyCols:       process.DefaultPtyCols,
			PtyRows:       process.DefaultPtyRows,
		},
		Script: ScriptConfig{
			Capabilities: []string{string(security.CapabilityProcess)},
			Timeout:      Duration(5 * time.Minute),
		},
	}
}

// Validate checks every setting and returns the first violation.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidValue, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidValue, c.Log.Format)
	}

	p := c.Process
	switch {
	case p.GracePeriod < 0:
		return fmt.Errorf("%w: process.grace_period must not be negative", ErrInvalidValue)
	case p.DrainInterval <= 0:
		return fmt.Errorf("%w: process.drain_interval must be positive", ErrInvalidValue)
	case p.ReadChunkSize <= 0:
		return fmt.Errorf("%w: process.read_chunk_size must be positive", ErrInvalidValue)
	case p.PtyCols < 1 || p.PtyCols > 0xffff:
		return fmt.Errorf("%w: process.pty_cols out of range: %d", ErrInvalidValue, p.PtyCols)
	case p.PtyRows < 1 || p.PtyRows > 0xffff:
		return fmt.Errorf("%w: process.pty_rows out of range: %d", ErrInvalidValue, p.PtyRows)
	case p.MaxProcesses < 0:
		return fmt.Errorf("%w: process.max_processes must not be negative", ErrInvalidValue)
	}

	if _, err := security.ParseCapabilities(c.Script.Capabilities); err != nil {
		return fmt.Errorf("%w: script.capabilities: %v", ErrInvalidValue, err)
	}
	if c.Script.Timeout < 0 {
		return fmt.Errorf("%w: script.timeout must not be negative", ErrInvalidValue)
	}
	return nil
}

// ProcessOptions converts the process settings into spawn options.
func (p ProcessConfig) ProcessOptions() []process.Option {
	return []process.Option{
		process.WithGracePeriod(p.GracePeriod.Std()),
		process.WithDrainInterval(p.DrainInterval.Std()),
		process.WithReadChunkSize(p.ReadChunkSize),
	}
}

// ParsedCapabilities returns the configured capabilities. The config must have
// been validated.
func (s ScriptConfig) ParsedCapabilities() []security.Capability {
	caps, _ := security.ParseCapabilities(s.Capabilities)
	return caps
}

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML accepts only duration strings; a bare number is ambiguous.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!int" || node.Tag == "!!float" {
		return fmt.Errorf("%w: line %d: duration must be a string like \"100ms\"", ErrInvalidValue, node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}

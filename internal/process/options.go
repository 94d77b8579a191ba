package process

import (
	"time"

	"github.com/dshills/luaproc/internal/log"
)

// Defaults for Option values.
const (
	// DefaultGracePeriod is how long teardown waits after SIGTERM before SIGKILL.
	DefaultGracePeriod = 100 * time.Millisecond

	// DefaultDrainInterval is the sleep between Exec drain passes.
	DefaultDrainInterval = 10 * time.Millisecond

	// DefaultReadChunkSize is the most bytes a single read returns.
	DefaultReadChunkSize = 4096
)

// Option configures Spawn, Exec and Registry.
type Option func(*options)

type options struct {
	logger        log.Logger
	gracePeriod   time.Duration
	drainInterval time.Duration
	readChunkSize int
}

func newOptions(opts []Option) options {
	o := options{
		logger:        log.Noop,
		gracePeriod:   DefaultGracePeriod,
		drainInterval: DefaultDrainInterval,
		readChunkSize: DefaultReadChunkSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithGracePeriod sets the SIGTERM to SIGKILL escalation delay.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.gracePeriod = d
		}
	}
}

// WithDrainInterval sets the sleep between Exec drain passes.
func WithDrainInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.drainInterval = d
		}
	}
}

// WithReadChunkSize sets the largest read the handle performs at once.
func WithReadChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readChunkSize = n
		}
	}
}

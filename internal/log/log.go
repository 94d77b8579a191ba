// Package log defines the logger used across luaproc.
//
// Libraries accept a Logger and default to Noop; the CLI wires a logrus
// backed implementation from the logrus subpackage.
package log

import "context"

// Kv is a set of structured key-value pairs.
type Kv = map[string]any

// Logger is the logging interface.
type Logger interface {
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
	WithValues(values Kv) Logger
	WithCtxValues(ctx context.Context) Logger
	SetValuesOnCtx(parent context.Context, values Kv) context.Context
}

type contextKey string

// contextLogValuesKey is used to store log values in a context.
const contextLogValuesKey = contextKey("internal-log-values")

// CtxWithValues returns a copy of parent carrying values merged over any
// already present.
func CtxWithValues(parent context.Context, kv Kv) context.Context {
	merged := Kv{}
	for k, v := range ValuesFromCtx(parent) {
		merged[k] = v
	}
	for k, v := range kv {
		merged[k] = v
	}
	return context.WithValue(parent, contextLogValuesKey, merged)
}

// ValuesFromCtx returns the log values stored on ctx.
func ValuesFromCtx(ctx context.Context) Kv {
	v, ok := ctx.Value(contextLogValuesKey).(Kv)
	if !ok {
		return Kv{}
	}
	return v
}

// Noop is a logger that discards everything.
const Noop = noop(0)

type noop int

func (n noop) Infof(format string, args ...any)    {}
func (n noop) Warningf(format string, args ...any) {}
func (n noop) Errorf(format string, args ...any)   {}
func (n noop) Debugf(format string, args ...any)   {}
func (n noop) WithValues(_ Kv) Logger              { return n }
func (n noop) WithCtxValues(_ context.Context) Logger {
	return n
}

func (n noop) SetValuesOnCtx(parent context.Context, values Kv) context.Context {
	return parent
}

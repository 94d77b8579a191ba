package process

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"weak"
)

// Registry tracks every handle spawned through it so they can all be torn
// down together, for example when the script that launched them ends.
//
// Handles are held weakly: tracking never keeps an abandoned handle from
// being collected, and a collected handle removes itself.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	handles map[string]weak.Pointer[Handle]
	closed  bool

	// maxHandles limits live handles (0 = unlimited)
	maxHandles int

	opts []Option
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxHandles sets the maximum number of live handles.
// A value of 0 (default) means unlimited.
func WithMaxHandles(max int) RegistryOption {
	return func(r *Registry) {
		r.maxHandles = max
	}
}

// WithSpawnOptions sets options applied to every spawn before the
// per-call ones.
func WithSpawnOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.opts = append(r.opts, opts...)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		handles: make(map[string]weak.Pointer[Handle]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Spawn launches a process and tracks its handle.
//
// Returns ErrRegistryClosed after Shutdown.
func (r *Registry) Spawn(cfg Config, opts ...Option) (*Handle, error) {
	if err := r.admit(); err != nil {
		return nil, err
	}

	h, err := spawn(cfg, newOptions(r.options(opts)), r)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		// Shut down while we were spawning
		r.mu.Unlock()
		_ = h.Close()
		return nil, ErrRegistryClosed
	}
	r.handles[h.id] = weak.Make(h)
	r.mu.Unlock()

	return h, nil
}

// Exec runs a process to completion like Exec, tracked while it runs.
func (r *Registry) Exec(ctx context.Context, cfg Config, opts ...Option) (*ExecResult, error) {
	h, err := r.Spawn(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return drain(ctx, h, newOptions(r.options(opts)))
}

func (r *Registry) admit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if r.maxHandles > 0 && r.liveLocked() >= r.maxHandles {
		return fmt.Errorf("process limit reached: %d", r.maxHandles)
	}
	return nil
}

func (r *Registry) options(opts []Option) []Option {
	all := make([]Option, 0, len(r.opts)+len(opts))
	all = append(all, r.opts...)
	return append(all, opts...)
}

// Get returns a tracked handle by ID.
// Returns ErrHandleNotFound if the handle is unknown or already collected.
func (r *Registry) Get(id string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wp, ok := r.handles[id]
	if !ok {
		return nil, ErrHandleNotFound
	}
	h := wp.Value()
	if h == nil {
		delete(r.handles, id)
		return nil, ErrHandleNotFound
	}
	return h, nil
}

// List returns the IDs of all live handles, sorted.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.handles))
	for id, wp := range r.handles {
		if wp.Value() != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Count returns the number of live handles.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveLocked()
}

func (r *Registry) liveLocked() int {
	n := 0
	for id, wp := range r.handles {
		if wp.Value() == nil {
			delete(r.handles, id)
			continue
		}
		n++
	}
	return n
}

// forget drops a handle from tracking.
func (r *Registry) forget(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

// IsShutdown reports whether Shutdown has been called.
func (r *Registry) IsShutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Shutdown closes every live handle and refuses further spawns. Each child
// still running is terminated and reaped before Shutdown returns.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	live := make([]*Handle, 0, len(r.handles))
	for _, wp := range r.handles {
		if h := wp.Value(); h != nil {
			live = append(live, h)
		}
	}
	r.mu.Unlock()

	// Close outside the lock; Close calls back into forget.
	var errs []error
	for _, h := range live {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close handle %s: %w", h.id, err))
		}
	}
	return errors.Join(errs...)
}

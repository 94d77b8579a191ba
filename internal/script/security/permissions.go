package security

import (
	"maps"
	"slices"
	"sync"
)

// PermissionChecker is the set of capabilities granted to one script. It
// is safe for concurrent use.
type PermissionChecker struct {
	script string

	mu      sync.RWMutex
	granted map[Capability]struct{}
}

// NewPermissionChecker returns a checker for script with nothing granted.
func NewPermissionChecker(script string) *PermissionChecker {
	return &PermissionChecker{script: script, granted: map[Capability]struct{}{}}
}

// ScriptName is the script the checker was created for.
func (pc *PermissionChecker) ScriptName() string { return pc.script }

// Grant adds caps to the set.
func (pc *PermissionChecker) Grant(caps ...Capability) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for _, c := range caps {
		pc.granted[c] = struct{}{}
	}
}

// Revoke removes cap. A child implied by a granted parent stays available
// until the parent is revoked as well.
func (pc *PermissionChecker) Revoke(cap Capability) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	delete(pc.granted, cap)
}

// HasCapability reports whether cap, or a parent of it, was granted.
func (pc *PermissionChecker) HasCapability(cap Capability) bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if _, ok := pc.granted[cap]; ok {
		return true
	}
	for g := range pc.granted {
		if ImpliesCapability(g, cap) {
			return true
		}
	}
	return false
}

// CheckCapability is HasCapability returning a *CapabilityError on denial.
func (pc *PermissionChecker) CheckCapability(cap Capability) error {
	if pc.HasCapability(cap) {
		return nil
	}
	return NewCapabilityError(cap, "", "not granted")
}

// Capabilities lists what was granted explicitly, in sorted order.
func (pc *PermissionChecker) Capabilities() []Capability {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return slices.Sorted(maps.Keys(pc.granted))
}

// Package security gates what a script may reach from the host.
package security

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Capability names a permission a script can be granted.
// Capabilities are hierarchical: granting a parent grants all children.
type Capability string

const (
	// CapabilityProcess grants every process capability.
	CapabilityProcess Capability = "process"

	// CapabilityProcessSpawn allows spawning and controlling child processes
	// and mutating the host's working directory and environment.
	CapabilityProcessSpawn Capability = "process.spawn"

	// CapabilityFileRead allows loading the io library.
	CapabilityFileRead Capability = "filesystem.read"

	// CapabilityUnsafe grants the full Lua standard library.
	CapabilityUnsafe Capability = "unsafe"
)

// RiskLevel grades how much of the host a capability exposes.
type RiskLevel int

// Risk levels, lowest first.
const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = [...]string{"low", "medium", "high", "critical"}

func (r RiskLevel) String() string {
	if r < 0 || int(r) >= len(riskNames) {
		return "unknown"
	}
	return riskNames[r]
}

// CapabilityInfo describes a known capability.
type CapabilityInfo struct {
	Name        Capability
	Description string
	Parent      Capability
	RiskLevel   RiskLevel
}

var known = map[Capability]CapabilityInfo{
	CapabilityProcess: {
		Name:        CapabilityProcess,
		Description: "All process capabilities",
		RiskLevel:   RiskCritical,
	},
	CapabilityProcessSpawn: {
		Name:        CapabilityProcessSpawn,
		Description: "Spawn child processes and change the working directory and environment",
		Parent:      CapabilityProcess,
		RiskLevel:   RiskCritical,
	},
	CapabilityFileRead: {
		Name:        CapabilityFileRead,
		Description: "Read files with the io library",
		RiskLevel:   RiskMedium,
	},
	CapabilityUnsafe: {
		Name:        CapabilityUnsafe,
		Description: "Full Lua standard library access",
		RiskLevel:   RiskCritical,
	},
}

// GetCapabilityInfo looks cap up.
func GetCapabilityInfo(cap Capability) (CapabilityInfo, bool) {
	info, ok := known[cap]
	return info, ok
}

// IsValidCapability reports whether cap is known.
func IsValidCapability(cap Capability) bool {
	_, ok := known[cap]
	return ok
}

// AllCapabilities lists every known capability in sorted order.
func AllCapabilities() []Capability {
	return slices.Sorted(maps.Keys(known))
}

// ParseCapabilities converts configured names into capabilities,
// rejecting unknown names.
func ParseCapabilities(names []string) ([]Capability, error) {
	caps := make([]Capability, 0, len(names))
	for _, name := range names {
		cap := Capability(strings.TrimSpace(name))
		if !IsValidCapability(cap) {
			return nil, NewCapabilityError(cap, "", "unknown capability")
		}
		caps = append(caps, cap)
	}
	return caps, nil
}

// IsChildOf reports whether child sits below parent in the dotted
// hierarchy, at any depth.
func IsChildOf(child, parent Capability) bool {
	return strings.HasPrefix(string(child), string(parent)+".")
}

// ImpliesCapability reports whether holding granted is enough for required.
func ImpliesCapability(granted, required Capability) bool {
	return granted == required || IsChildOf(required, granted)
}

// CapabilityError is returned when a capability is unknown or missing.
type CapabilityError struct {
	Capability Capability
	Operation  string
	Message    string
}

func (e *CapabilityError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("capability %q required for %s: %s", e.Capability, e.Operation, e.Message)
	}
	return fmt.Sprintf("capability %q: %s", e.Capability, e.Message)
}

// NewCapabilityError returns a *CapabilityError. operation may be empty.
func NewCapabilityError(cap Capability, operation, message string) *CapabilityError {
	return &CapabilityError{Capability: cap, Operation: operation, Message: message}
}

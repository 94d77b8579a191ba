package security

import (
	"errors"
	"slices"
	"testing"
)

func TestImpliesCapability(t *testing.T) {
	tests := []struct {
		name     string
		granted  Capability
		required Capability
		want     bool
	}{
		{"same", CapabilityProcessSpawn, CapabilityProcessSpawn, true},
		{"parent", CapabilityProcess, CapabilityProcessSpawn, true},
		{"child to parent", CapabilityProcessSpawn, CapabilityProcess, false},
		{"unrelated", CapabilityFileRead, CapabilityProcessSpawn, false},
		{"prefix only", Capability("proc"), CapabilityProcess, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImpliesCapability(tt.granted, tt.required); got != tt.want {
				t.Errorf("ImpliesCapability(%q, %q) = %v, want %v", tt.granted, tt.required, got, tt.want)
			}
		})
	}
}

func TestPermissionChecker(t *testing.T) {
	pc := NewPermissionChecker("build.lua")
	if pc.ScriptName() != "build.lua" {
		t.Errorf("ScriptName() = %q, want %q", pc.ScriptName(), "build.lua")
	}
	if pc.HasCapability(CapabilityProcessSpawn) {
		t.Error("HasCapability(process.spawn) = true before any grant")
	}

	var capErr *CapabilityError
	if err := pc.CheckCapability(CapabilityProcessSpawn); !errors.As(err, &capErr) {
		t.Fatalf("CheckCapability error = %v, want *CapabilityError", err)
	}
	if capErr.Capability != CapabilityProcessSpawn {
		t.Errorf("capErr.Capability = %q, want %q", capErr.Capability, CapabilityProcessSpawn)
	}

	pc.Grant(CapabilityProcess)
	if !pc.HasCapability(CapabilityProcessSpawn) {
		t.Error("process grant should imply process.spawn")
	}
	if err := pc.CheckCapability(CapabilityProcessSpawn); err != nil {
		t.Errorf("CheckCapability() = %v, want nil", err)
	}

	pc.Revoke(CapabilityProcess)
	if pc.HasCapability(CapabilityProcessSpawn) {
		t.Error("process.spawn still granted after revoking process")
	}

	pc.Grant(CapabilityUnsafe, CapabilityFileRead)
	want := []Capability{CapabilityFileRead, CapabilityUnsafe}
	if got := pc.Capabilities(); !slices.Equal(got, want) {
		t.Errorf("Capabilities() = %v, want %v", got, want)
	}
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities([]string{"process.spawn", " unsafe "})
	if err != nil {
		t.Fatalf("ParseCapabilities error: %v", err)
	}
	want := []Capability{CapabilityProcessSpawn, CapabilityUnsafe}
	if !slices.Equal(caps, want) {
		t.Errorf("ParseCapabilities() = %v, want %v", caps, want)
	}

	_, err = ParseCapabilities([]string{"network"})
	var capErr *CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("ParseCapabilities(network) error = %v, want *CapabilityError", err)
	}
	if capErr.Capability != "network" {
		t.Errorf("capErr.Capability = %q, want %q", capErr.Capability, "network")
	}
}

func TestCapabilityInfo(t *testing.T) {
	info, ok := GetCapabilityInfo(CapabilityProcessSpawn)
	if !ok {
		t.Fatal("GetCapabilityInfo(process.spawn) ok = false")
	}
	if info.Parent != CapabilityProcess {
		t.Errorf("info.Parent = %q, want %q", info.Parent, CapabilityProcess)
	}
	if got := info.RiskLevel.String(); got != "critical" {
		t.Errorf("RiskLevel.String() = %q, want %q", got, "critical")
	}

	want := []Capability{CapabilityFileRead, CapabilityProcess, CapabilityProcessSpawn, CapabilityUnsafe}
	if got := AllCapabilities(); !slices.Equal(got, want) {
		t.Errorf("AllCapabilities() = %v, want %v", got, want)
	}
	if IsValidCapability("editor") {
		t.Error("IsValidCapability(editor) = true")
	}
}

package types

import (
	"os"
	"strings"
)

// NetworkMode selects how the sandbox's network namespace is provisioned.
type NetworkMode string

const (
	// NetworkNone gives the sandbox a fresh namespace with only the
	// loopback interface.
	NetworkNone NetworkMode = "none"

	// NetworkHost shares the outer network namespace; the net namespace
	// is not unshared at all.
	NetworkHost NetworkMode = "host"

	// NetworkWireGuard gives the sandbox a fresh namespace with a
	// configured wg interface carrying the default route.
	NetworkWireGuard NetworkMode = "wireguard"
)

// VpnRefKind discriminates how a VPN reference should be resolved.
type VpnRefKind int

const (
	// VpnRefNone means no VPN is attached.
	VpnRefNone VpnRefKind = iota

	// VpnRefName refers to <name>.conf in the standard WireGuard
	// config directories.
	VpnRefName

	// VpnRefPath refers to a config file directly.
	VpnRefPath
)

// VpnRef is a reference to a WireGuard configuration, either by name
// (searched in the standard directories) or by file path.
type VpnRef struct {
	Kind  VpnRefKind
	Value string
}

// ParseVpnRef classifies a --vpn argument. Anything containing a path
// separator, or that exists as a file, is a path; everything else is a
// config name. The empty string is the absent reference.
func ParseVpnRef(s string) VpnRef {
	if s == "" {
		return VpnRef{Kind: VpnRefNone}
	}
	if strings.ContainsRune(s, '/') {
		return VpnRef{Kind: VpnRefPath, Value: s}
	}
	if info, err := os.Stat(s); err == nil && !info.IsDir() {
		return VpnRef{Kind: VpnRefPath, Value: s}
	}
	return VpnRef{Kind: VpnRefName, Value: s}
}

// IsZero reports whether the reference is absent.
func (v VpnRef) IsZero() bool {
	return v.Kind == VpnRefNone
}

// String returns the raw reference value as given by the user.
func (v VpnRef) String() string {
	return v.Value
}

package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// BindMount makes a host path visible at a destination inside the
// container view. Values are copied freely; the resolver owns ordering
// and duplicate collapsing.
type BindMount struct {
	// Source is the host path. It must exist by the time the
	// filesystem assembler runs.
	Source string `json:"source"`

	// Destination is the absolute path inside the container view.
	Destination string `json:"destination"`

	// ReadOnly requests the two-step bind+remount read-only treatment.
	ReadOnly bool `json:"read_only"`
}

// ParseBindMount parses the --bind flag format HOST[:CONTAINER][:ro].
// A bare path is mounted at the same location inside the container.
func ParseBindMount(s string) (BindMount, error) {
	if s == "" {
		return BindMount{}, fmt.Errorf("empty bind specification")
	}

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		return BindMount{Source: parts[0], Destination: parts[0]}, nil
	case 2:
		if parts[1] == "ro" {
			return BindMount{Source: parts[0], Destination: parts[0], ReadOnly: true}, nil
		}
		return BindMount{Source: parts[0], Destination: parts[1]}, nil
	case 3:
		if parts[2] != "ro" {
			return BindMount{}, fmt.Errorf("invalid bind mode %q in %q, only \"ro\" is supported", parts[2], s)
		}
		return BindMount{Source: parts[0], Destination: parts[1], ReadOnly: true}, nil
	default:
		return BindMount{}, fmt.Errorf("invalid bind specification %q, expected HOST[:CONTAINER][:ro]", s)
	}
}

// Normalize cleans both sides of the mount. The destination keeps its
// leading slash; relative destinations are rejected by the resolver,
// not here.
func (b BindMount) Normalize() BindMount {
	b.Source = filepath.Clean(b.Source)
	b.Destination = filepath.Clean(b.Destination)
	return b
}

package kakuri

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/unfaded/kakuri/pkg/types"
)

// initSpecFd is the file descriptor the init process inherits for the
// synchronization pipe. The parent writes the InitSpec there only once
// every step it performs on the child's behalf has completed, so the
// blocking read doubles as the release barrier.
const initSpecFd = 3

// OverlayLayout names the three directories of an overlay stack plus
// its mount target. The lower layer is always the host root.
type OverlayLayout struct {
	UpperDir  string `json:"upper_dir"`
	WorkDir   string `json:"work_dir"`
	MergedDir string `json:"merged_dir"`
}

// WireGuardSpec is the part of a parsed WireGuard config the init
// process needs: interface identity, address and DNS. Key and peers
// are configured by the parent before the interface is moved into the
// namespace.
type WireGuardSpec struct {
	Interface string   `json:"interface"`
	Address   string   `json:"address"`
	DNS       []string `json:"dns,omitempty"`
}

// NetworkSpec tells the init process how to provision its network
// namespace.
type NetworkSpec struct {
	Mode      types.NetworkMode `json:"mode"`
	WireGuard *WireGuardSpec    `json:"wireguard,omitempty"`
}

// InitSpec is the full sandbox description handed from the launcher to
// the init process over the synchronization pipe.
type InitSpec struct {
	Command  []string          `json:"command"`
	Env      []string          `json:"env,omitempty"`
	WorkDir  string            `json:"work_dir,omitempty"`
	Hostname string            `json:"hostname"`
	Layout   OverlayLayout     `json:"layout"`
	Mounts   []types.BindMount `json:"mounts"`
	Network  NetworkSpec       `json:"network"`
}

// WriteInitSpec serializes the spec to the given pipe end and closes
// it, releasing the init process.
func WriteInitSpec(w *os.File, spec *InitSpec) error {
	defer w.Close()
	if err := json.NewEncoder(w).Encode(spec); err != nil {
		return fmt.Errorf("failed to send init spec: %w", err)
	}
	return nil
}

// ReadInitSpec blocks on the inherited synchronization pipe until the
// parent releases the init process, then returns the decoded spec.
func ReadInitSpec() (*InitSpec, error) {
	f := os.NewFile(initSpecFd, "init-spec")
	if f == nil {
		return nil, fmt.Errorf("init spec pipe (fd %d) is not open", initSpecFd)
	}
	defer f.Close()

	spec := &InitSpec{}
	if err := json.NewDecoder(f).Decode(spec); err != nil {
		return nil, fmt.Errorf("failed to read init spec: %w", err)
	}
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("init spec carries no command")
	}
	return spec, nil
}

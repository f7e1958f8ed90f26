package kakuri

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"

	"github.com/unfaded/kakuri/pkg/tools"
	"github.com/unfaded/kakuri/pkg/types"
)

// wgInterfaceName is the interface created inside every
// WireGuard-attached sandbox.
const wgInterfaceName = "wg0"

// WireGuardConfig is the subset of a wg-quick style configuration file
// kakuri needs directly. Peer sections are not modelled; they are fed
// to the wg tool via the stripped config.
type WireGuardConfig struct {
	Address string
	DNS     []string
	Raw     string
}

// LocateVpnConfig resolves a VPN reference to a readable configuration
// file. Names are searched in /etc/wireguard, ~/.config/wireguard and
// ~/.wireguard; paths are used directly.
func LocateVpnConfig(ref types.VpnRef) (string, error) {
	switch ref.Kind {
	case types.VpnRefPath:
		if _, err := os.Stat(ref.Value); err != nil {
			return "", fmt.Errorf("%w: config %s is not readable: %v", ErrVpnUnavailable, ref.Value, err)
		}
		return ref.Value, nil
	case types.VpnRefName:
		for _, dir := range vpnSearchDirs() {
			candidate := filepath.Join(dir, ref.Value+".conf")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("vpn config %q: %w", ref.Value, ErrNotFound)
	default:
		return "", fmt.Errorf("%w: empty vpn reference", ErrVpnUnavailable)
	}
}

func vpnSearchDirs() []string {
	dirs := []string{"/etc/wireguard"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".config", "wireguard"),
			filepath.Join(home, ".wireguard"),
		)
	}
	return dirs
}

// LoadWireGuardConfig reads and parses a configuration file.
func LoadWireGuardConfig(path string) (*WireGuardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read config %s: %v", ErrVpnUnavailable, path, err)
	}
	return ParseWireGuardConfig(string(data))
}

// ParseWireGuardConfig extracts the interface address and DNS servers
// from a wg-quick style config. Address takes the first entry when
// several are listed.
func ParseWireGuardConfig(content string) (*WireGuardConfig, error) {
	cfg := &WireGuardConfig{Raw: content}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Address":
			first, _, _ := strings.Cut(value, ",")
			cfg.Address = strings.TrimSpace(first)
		case "DNS":
			for _, s := range strings.Split(value, ",") {
				if s = strings.TrimSpace(s); s != "" {
					cfg.DNS = append(cfg.DNS, s)
				}
			}
		}
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: config has no Address", ErrVpnUnavailable)
	}
	return cfg, nil
}

// Keys the wg tool rejects in setconf input; wg-quick strips the same
// set before handing the file over.
var wgQuickOnlyKeys = map[string]bool{
	"Address": true, "DNS": true, "MTU": true, "Table": true,
	"PreUp": true, "PostUp": true, "PreDown": true, "PostDown": true,
	"SaveConfig": true,
}

// StripForSetconf removes the wg-quick specific keys from the
// [Interface] section so the remainder is valid wg setconf input.
func StripForSetconf(content string) string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if key, _, ok := strings.Cut(trimmed, "="); ok {
			if wgQuickOnlyKeys[strings.TrimSpace(key)] {
				continue
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// SetupHostWireGuard creates the sandbox's wg interface in the host
// namespace and loads key and peers into it with the host wg tool. The
// interface is created here because an unprivileged process inside its
// own user namespace cannot configure host wireguard state; it is
// moved into the child namespace right after.
func SetupHostWireGuard(cfg *WireGuardConfig) (cleanupLink func(), err error) {
	if err := tools.EnsureTools("wg", "ip"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVpnUnavailable, err)
	}

	attrs := netlink.NewLinkAttrs()
	attrs.Name = wgInterfaceName
	link := &netlink.Wireguard{LinkAttrs: attrs}
	if err := netlink.LinkAdd(link); err != nil {
		return nil, fmt.Errorf("%w: cannot create %s: %v", ErrVpnUnavailable, wgInterfaceName, err)
	}
	cleanupLink = func() {
		if existing, err := netlink.LinkByName(wgInterfaceName); err == nil {
			if err := netlink.LinkDel(existing); err != nil {
				log.WithError(err).Warnf("could not delete %s", wgInterfaceName)
			}
		}
	}

	stripped, err := os.CreateTemp("", "kakuri-wg-*.conf")
	if err != nil {
		cleanupLink()
		return nil, err
	}
	defer os.Remove(stripped.Name())

	if _, err := stripped.WriteString(StripForSetconf(cfg.Raw)); err != nil {
		stripped.Close()
		cleanupLink()
		return nil, err
	}
	stripped.Close()

	out, err := exec.Command("wg", "setconf", wgInterfaceName, stripped.Name()).CombinedOutput()
	if err != nil {
		cleanupLink()
		return nil, fmt.Errorf("%w: wg setconf failed: %v: %s", ErrVpnUnavailable, err, strings.TrimSpace(string(out)))
	}

	return cleanupLink, nil
}

// MoveWireGuardToPid moves the host-side interface into the network
// namespace of the given process.
func MoveWireGuardToPid(pid int) error {
	link, err := netlink.LinkByName(wgInterfaceName)
	if err != nil {
		return fmt.Errorf("%w: %s vanished before hand-off: %v", ErrVpnUnavailable, wgInterfaceName, err)
	}
	if err := netlink.LinkSetNsPid(link, pid); err != nil {
		return fmt.Errorf("%w: cannot move %s into sandbox: %v", ErrVpnUnavailable, wgInterfaceName, err)
	}
	return nil
}

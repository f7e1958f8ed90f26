package kakuri

import (
	"fmt"
	"net"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"

	"github.com/unfaded/kakuri/pkg/types"
)

// ConfigureNetwork provisions the network namespace the init process
// was cloned into. Host mode is a no-op because the namespace was
// never unshared; the other modes bring up loopback and, for
// WireGuard, the interface the parent moved in.
func ConfigureNetwork(spec NetworkSpec) error {
	switch spec.Mode {
	case types.NetworkHost:
		return nil
	case types.NetworkNone:
		return loopbackUp()
	case types.NetworkWireGuard:
		if err := loopbackUp(); err != nil {
			return err
		}
		return wireguardUp(spec.WireGuard)
	default:
		return fmt.Errorf("unknown network mode %q", spec.Mode)
	}
}

// loopbackUp brings lo up; a fresh namespace has it down and addressless.
func loopbackUp() error {
	lo, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("loopback interface not found: %w", err)
	}
	if err := netlink.LinkSetUp(lo); err != nil {
		return fmt.Errorf("failed to bring up loopback: %w", err)
	}
	return nil
}

// wireguardUp finishes the namespace side of the VPN attachment: the
// interface already exists here (the parent configured key and peers
// in the host namespace and moved it), so only address, link state,
// routing and DNS remain.
func wireguardUp(wg *WireGuardSpec) error {
	if wg == nil {
		return fmt.Errorf("%w: wireguard mode without interface spec", ErrVpnUnavailable)
	}

	link, err := netlink.LinkByName(wg.Interface)
	if err != nil {
		return fmt.Errorf("%w: interface %s not present in namespace: %v", ErrVpnUnavailable, wg.Interface, err)
	}

	addr, err := netlink.ParseAddr(wg.Address)
	if err != nil {
		return fmt.Errorf("%w: bad interface address %q: %v", ErrVpnUnavailable, wg.Address, err)
	}
	if err := netlink.AddrAdd(link, addr); err != nil {
		return fmt.Errorf("failed to assign %s to %s: %w", wg.Address, wg.Interface, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", wg.Interface, err)
	}

	if err := defaultRouteVia(link); err != nil {
		return err
	}

	if len(wg.DNS) > 0 {
		if err := writeResolvConf(wg.DNS); err != nil {
			log.WithError(err).Warn("could not install VPN DNS servers")
		}
	}

	log.Debugf("wireguard interface %s configured", wg.Interface)
	return nil
}

// defaultRouteVia sends default traffic through the given link, with
// the split /1 pair as fallback when the kernel refuses a plain
// default route.
func defaultRouteVia(link netlink.Link) error {
	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Scope:     netlink.SCOPE_LINK,
	}
	if err := netlink.RouteAdd(route); err == nil {
		return nil
	}

	for _, cidr := range []string{"0.0.0.0/1", "128.0.0.0/1"} {
		_, dst, err := net.ParseCIDR(cidr)
		if err != nil {
			return err
		}
		half := &netlink.Route{
			LinkIndex: link.Attrs().Index,
			Scope:     netlink.SCOPE_LINK,
			Dst:       dst,
		}
		if err := netlink.RouteAdd(half); err != nil {
			return fmt.Errorf("failed to route %s through vpn: %w", cidr, err)
		}
	}
	return nil
}

// writeResolvConf points the container at the VPN's DNS servers. This
// runs after the pivot, so the write lands in the overlay upper layer
// and never touches the host file.
func writeResolvConf(servers []string) error {
	var b strings.Builder
	for _, s := range servers {
		fmt.Fprintf(&b, "nameserver %s\n", s)
	}
	return os.WriteFile("/etc/resolv.conf", []byte(b.String()), 0o644)
}

//go:build linux

// Package netprep puts a network interface into the bare state the
// benchmark expects: link down, IPv6 autoconfiguration off, link back
// up. Without it the kernel talks on its own (router solicitations,
// neighbor discovery, MLD) and pollutes the quiet segment the
// measurement assumes.
package netprep

import (
	"fmt"
	"os"
	"time"

	"github.com/vishvananda/netlink"
)

// ipv6Sysctls returns the per-interface settings that keep the kernel
// from autoconfiguring IPv6 once the link comes back up.
func ipv6Sysctls(iface string) map[string]string {
	base := "/proc/sys/net/ipv6/conf/" + iface + "/"
	return map[string]string{
		base + "accept_ra":    "0",
		base + "autoconf":     "0",
		base + "disable_ipv6": "1",
	}
}

// Prepare cycles iface down, disables IPv6 autoconfiguration while the
// link is down and brings it back up. Requires CAP_NET_ADMIN.
func Prepare(iface string) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("getting link %q: %w", iface, err)
	}

	if err := netlink.LinkSetDown(link); err != nil {
		return fmt.Errorf("setting %q down: %w", iface, err)
	}

	for path, value := range ipv6Sysctls(iface) {
		if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
			return fmt.Errorf("writing sysctl %s: %w", path, err)
		}
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("setting %q up: %w", iface, err)
	}
	return nil
}

// WaitOperUp polls iface until its carrier reports operationally up or
// timeout passes.
func WaitOperUp(iface string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		link, err := netlink.LinkByName(iface)
		if err != nil {
			return fmt.Errorf("getting link %q: %w", iface, err)
		}
		state := link.Attrs().OperState
		if state == netlink.OperUp {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%q did not come up within %s (state %s)",
				iface, timeout, state)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

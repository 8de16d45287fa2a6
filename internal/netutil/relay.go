// Package netutil holds host network heuristics used when configuring ICE.
package netutil

import (
	"net"
	"strings"
)

// cgnatBlock is the shared address space (100.64.0.0/10) used by carrier
// grade NATs, Tailscale and Cloudflare WARP.
var cgnatBlock = mustCIDR("100.64.0.0/10")

// tunnelNameHints are substrings of interface names created by VPN software.
var tunnelNameHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// Interface is the subset of a network interface the heuristic looks at.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []net.IP
}

// ShouldForceRelay checks if the system is likely behind a restrictive VPN or CGNAT
// and returns true if we should force TURN usage.
func ShouldForceRelay() bool {
	ifaces, err := localInterfaces()
	if err != nil {
		return false
	}
	return ShouldForceRelayFor(ifaces)
}

// ShouldForceRelayFor applies the relay heuristic to the given interfaces.
func ShouldForceRelayFor(ifaces []Interface) bool {
	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback {
			continue
		}
		if IsTunnelInterface(iface.Name) {
			return true
		}
		for _, ip := range iface.Addrs {
			if cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}

// IsTunnelInterface reports whether name looks like a VPN adapter.
func IsTunnelInterface(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range tunnelNameHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func localInterfaces() ([]Interface, error) {
	sys, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(sys))
	for _, iface := range sys {
		entry := Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}

		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					entry.Addrs = append(entry.Addrs, v.IP)
				case *net.IPAddr:
					entry.Addrs = append(entry.Addrs, v.IP)
				}
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func mustCIDR(s string) *net.IPNet {
	_, block, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return block
}

// Package netutil provides small host-environment helpers shared by the
// collector and the reporting layers.
package netutil

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
)

var excludePrefixes = []string{"lo", "veth", "virbr"}

var includePrefixes = []string{
	"eth", "enp", "ens", "eno", // ethernet
	"wlan", "wlp", // wifi
	"docker0", "br-", // docker bridges
	"tailscale", // vpn
}

// Interfaces returns the up, non-loopback interfaces worth metering.
// Falls back to eth0 when detection yields nothing so nethogs always gets
// at least one argument.
func Interfaces() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return []string{"eth0"}
	}

	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if !wantInterface(iface.Name) {
			continue
		}
		out = append(out, iface.Name)
	}

	if len(out) == 0 {
		return []string{"eth0"}
	}
	sort.Strings(out)
	return out
}

func wantInterface(name string) bool {
	for _, p := range excludePrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	for _, p := range includePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Hostname returns the system hostname, or "unknown".
func Hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

// IsValidIP reports whether s parses as an IP address.
func IsValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// FormatBytes renders a byte count as a human-readable string like "1.23 MB".
func FormatBytes(n float64) string {
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if n < 1024 {
			return fmt.Sprintf("%.2f %s", n, unit)
		}
		n /= 1024
	}
	return fmt.Sprintf("%.2f PB", n)
}

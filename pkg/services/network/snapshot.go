// Package network tracks Wi-Fi state via NetworkManager over D-Bus.
//
// The service discovers the wireless device, mirrors the active access
// point and scan results into a canonical snapshot, and shells out to
// nmcli for connection management where NetworkManager's D-Bus API would
// require building full connection profiles.
package network

import (
	"sort"
	"strings"
)

// SecurityOpen and SecuritySecured classify an access point by whether any
// of its security flag sets are non-zero.
const (
	SecurityOpen    = "open"
	SecuritySecured = "secured"
)

// WifiNetwork is one visible network in the scan results.
type WifiNetwork struct {
	// SSID is the network name.
	SSID string
	// Strength is the signal strength percentage (0-100).
	Strength int
	// Security is SecurityOpen or SecuritySecured.
	Security string
	// Active reports whether this is the connected network.
	Active bool
	// Known reports whether a saved connection profile exists.
	Known bool
}

// Snapshot is the canonical Wi-Fi state handed to callbacks.
type Snapshot struct {
	// Available reports whether NetworkManager is on the bus.
	Available bool
	// WifiEnabled is nil until the radio state is known.
	WifiEnabled *bool
	// Connected reports whether a network is connected.
	Connected bool
	// SSID is the connected network's name, empty when disconnected.
	SSID string
	// Strength is the connected network's signal strength.
	Strength int
	// Scanning reports whether a scan is in progress.
	Scanning bool
	// Ready flips to true once the first network list arrives.
	Ready bool
	// Networks is the deduplicated, sorted list of visible networks.
	Networks []WifiNetwork
	// ConnectingSSID is set while a connection attempt is running.
	ConnectingSSID string
	// FailedSSID is the SSID of the last failed attempt, for re-showing
	// the password prompt.
	FailedSSID string
}

func unknownSnapshot() Snapshot {
	return Snapshot{}
}

// clone deep-copies the snapshot so callbacks can hold it safely.
func (s Snapshot) clone() Snapshot {
	c := s
	if s.WifiEnabled != nil {
		v := *s.WifiEnabled
		c.WifiEnabled = &v
	}
	c.Networks = append([]WifiNetwork(nil), s.Networks...)
	return c
}

// dedupeNetworks merges duplicate (SSID, security) entries, keeping the
// strongest signal and OR-ing the active/known flags.
func dedupeNetworks(networks []WifiNetwork) []WifiNetwork {
	type key struct{ ssid, security string }
	merged := make(map[key]WifiNetwork)
	order := make([]key, 0, len(networks))

	for _, net := range networks {
		k := key{net.SSID, net.Security}
		existing, ok := merged[k]
		if !ok {
			merged[k] = net
			order = append(order, k)
			continue
		}
		existing.Active = existing.Active || net.Active
		existing.Known = existing.Known || net.Known
		if net.Strength > existing.Strength {
			existing.Strength = net.Strength
		}
		merged[k] = existing
	}

	out := make([]WifiNetwork, 0, len(merged))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return out
}

// sortNetworks orders networks active first, then known, then by
// descending strength, then by SSID.
func sortNetworks(networks []WifiNetwork) []WifiNetwork {
	group := func(n WifiNetwork) int {
		switch {
		case n.Active:
			return 0
		case n.Known:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(networks, func(i, j int) bool {
		a, b := networks[i], networks[j]
		if ga, gb := group(a), group(b); ga != gb {
			return ga < gb
		}
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		return a.SSID < b.SSID
	})
	return networks
}

// parseKnownConnections extracts saved Wi-Fi connection names from
// `nmcli -t -f NAME,TYPE connection show` output.
func parseKnownConnections(output string) map[string]bool {
	ssids := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			continue
		}
		name, ctype := parts[0], parts[1]
		if strings.Contains(ctype, "wifi") || strings.Contains(ctype, "wireless") {
			ssids[name] = true
		}
	}
	return ssids
}

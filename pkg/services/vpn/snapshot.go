// Package vpn manages VPN connections via NetworkManager over D-Bus.
//
// The service enumerates WireGuard and OpenVPN profiles from the Settings
// service, joins them with the active connection list, and exposes
// activate/deactivate operations. The most recently used connection is
// persisted so the primary selection survives restarts.
package vpn

import (
	"sort"
	"strings"
)

// State mirrors NetworkManager's active connection states.
type State uint32

const (
	StateUnknown      State = 0
	StateActivating   State = 1
	StateActivated    State = 2
	StateDeactivating State = 3
	StateDeactivated  State = 4
)

func stateFromNM(v uint32) State {
	if v >= 1 && v <= 4 {
		return State(v)
	}
	return StateUnknown
}

func (s State) String() string {
	switch s {
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateDeactivating:
		return "deactivating"
	case StateDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// Connection is a VPN profile known to NetworkManager.
type Connection struct {
	// UUID is the profile UUID.
	UUID string
	// Name is the human-readable profile name.
	Name string
	// Active reports whether the connection is currently up.
	Active bool
	// State is the detailed state for active connections.
	State State
	// Autoconnect reports whether the profile autoconnects.
	Autoconnect bool
	// Type is "wireguard" or "vpn" (NetworkManager's OpenVPN type).
	Type string
}

// Snapshot is the canonical VPN state handed to callbacks.
type Snapshot struct {
	// Available reports whether NetworkManager is on the bus.
	Available bool
	// Connections is sorted active first, then preferred, then by name.
	Connections []Connection
	// AnyActive reports whether at least one VPN is up.
	AnyActive bool
	// ActiveCount is the number of active VPN connections.
	ActiveCount int
	// Ready flips to true once the first enumeration completes.
	Ready bool
	// PreferredUUID is the most recently used connection from the
	// persisted state, used by Primary when nothing is active.
	PreferredUUID string
}

func (s Snapshot) clone() Snapshot {
	c := s
	c.Connections = append([]Connection(nil), s.Connections...)
	return c
}

// Primary returns the connection a single-toggle UI should act on: the
// first active connection, else the preferred one, else the first
// configured. The second return is false when no profiles exist.
func (s Snapshot) Primary() (Connection, bool) {
	for _, c := range s.Connections {
		if c.Active {
			return c, true
		}
	}
	if s.PreferredUUID != "" {
		for _, c := range s.Connections {
			if c.UUID == s.PreferredUUID {
				return c, true
			}
		}
	}
	if len(s.Connections) > 0 {
		return s.Connections[0], true
	}
	return Connection{}, false
}

// sortConnections orders active connections first, then the preferred
// UUID, then case-insensitively by name.
func sortConnections(conns []Connection, preferredUUID string) {
	sort.SliceStable(conns, func(i, j int) bool {
		a, b := conns[i], conns[j]
		if a.Active != b.Active {
			return a.Active
		}
		if preferredUUID != "" {
			ap, bp := a.UUID == preferredUUID, b.UUID == preferredUUID
			if ap != bp {
				return ap
			}
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// isVPNType reports whether a NetworkManager connection type is one the
// service tracks. "vpn" covers OpenVPN profiles.
func isVPNType(t string) bool {
	return t == "wireguard" || t == "vpn"
}

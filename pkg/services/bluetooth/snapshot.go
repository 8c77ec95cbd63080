// Package bluetooth tracks the BlueZ adapter and devices over the
// system bus and mediates pairing through an exported agent object.
package bluetooth

import (
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Device is a single device known to BlueZ.
type Device struct {
	Path      string
	Name      string
	Address   string
	Connected bool
	Paired    bool
	Trusted   bool
	Icon      string
}

// AuthKind identifies what response a pending auth request expects.
type AuthKind int

const (
	AuthPinCode AuthKind = iota
	AuthPasskey
	AuthConfirmation
	AuthDisplayPinCode
	AuthDisplayPasskey
)

func (k AuthKind) String() string {
	switch k {
	case AuthPinCode:
		return "pin-code"
	case AuthPasskey:
		return "passkey"
	case AuthConfirmation:
		return "confirmation"
	case AuthDisplayPinCode:
		return "display-pin-code"
	case AuthDisplayPasskey:
		return "display-passkey"
	default:
		return "unknown"
	}
}

// IsDisplayOnly reports whether the remote device shows the code and
// no reply is owed to the peer.
func (k AuthKind) IsDisplayOnly() bool {
	return k == AuthDisplayPinCode || k == AuthDisplayPasskey
}

// AuthRequest is a pending pairing interaction surfaced to the UI.
type AuthRequest struct {
	DevicePath string
	DeviceName string
	Kind       AuthKind
	// Code carries the pin or passkey to display for display-only and
	// confirmation kinds.
	Code string
}

// Snapshot is the full Bluetooth state.
type Snapshot struct {
	HasAdapter       bool
	Powered          bool
	Scanning         bool
	ConnectedDevices int
	Devices          []Device
	Auth             *AuthRequest
	// PairingDevice is the path of the device a pairing was started
	// for, empty when no pairing is in flight.
	PairingDevice string
	Ready         bool
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Devices = append([]Device(nil), s.Devices...)
	if s.Auth != nil {
		auth := *s.Auth
		out.Auth = &auth
	}
	return out
}

// isMACLikeName reports whether a device name is just its address,
// e.g. "A4:5E:60:C2:11:09". BlueZ falls back to that when the device
// never advertised a name.
func isMACLikeName(name string) bool {
	if len(name) != 17 {
		return false
	}
	return name[2] == '-' || name[2] == ':'
}

// sortDevices orders devices for display: connected, then paired,
// then trusted, readable names before address-only ones, then by name.
func sortDevices(devices []Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		a, b := devices[i], devices[j]
		if a.Connected != b.Connected {
			return a.Connected
		}
		if a.Paired != b.Paired {
			return a.Paired
		}
		if a.Trusted != b.Trusted {
			return a.Trusted
		}
		aMAC, bMAC := isMACLikeName(a.Name), isMACLikeName(b.Name)
		if aMAC != bMAC {
			return !aMAC
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

// deviceFromProps builds a Device from a Device1 property map.
func deviceFromProps(path string, props map[string]dbus.Variant) Device {
	dev := Device{Path: path}
	if v, ok := props["Address"]; ok {
		dev.Address, _ = v.Value().(string)
	}
	if v, ok := props["Name"]; ok {
		dev.Name, _ = v.Value().(string)
	}
	if v, ok := props["Connected"]; ok {
		dev.Connected, _ = v.Value().(bool)
	}
	if v, ok := props["Paired"]; ok {
		dev.Paired, _ = v.Value().(bool)
	}
	if v, ok := props["Trusted"]; ok {
		dev.Trusted, _ = v.Value().(bool)
	}
	if v, ok := props["Icon"]; ok {
		dev.Icon, _ = v.Value().(string)
	}
	if dev.Name == "" {
		if dev.Address != "" {
			dev.Name = dev.Address
		} else {
			dev.Name = "Unknown"
		}
	}
	return dev
}

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// parseDevices extracts and sorts Device1 entries from the BlueZ
// object tree.
func parseDevices(objects managedObjects) []Device {
	var devices []Device
	for path, ifaces := range objects {
		p := string(path)
		if !strings.HasPrefix(p, "/org/bluez/hci") || !strings.Contains(p, "/dev_") {
			continue
		}
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		devices = append(devices, deviceFromProps(p, props))
	}
	sortDevices(devices)
	return devices
}

// findAdapter returns the adapter object path, preferring hci0.
func findAdapter(objects managedObjects) (dbus.ObjectPath, bool) {
	if _, ok := objects[adapterPath]; ok {
		if _, ok := objects[adapterPath][adapterIface]; ok {
			return adapterPath, true
		}
	}
	var paths []string
	for path, ifaces := range objects {
		if _, ok := ifaces[adapterIface]; ok {
			paths = append(paths, string(path))
		}
	}
	if len(paths) == 0 {
		return "", false
	}
	sort.Strings(paths)
	return dbus.ObjectPath(paths[0]), true
}

// adapterFlags reads Powered and Discovering from the adapter's
// property map in the object tree.
func adapterFlags(objects managedObjects, adapter dbus.ObjectPath) (powered, discovering bool) {
	props, ok := objects[adapter][adapterIface]
	if !ok {
		return false, false
	}
	if v, ok := props["Powered"]; ok {
		powered, _ = v.Value().(bool)
	}
	if v, ok := props["Discovering"]; ok {
		discovering, _ = v.Value().(bool)
	}
	return powered, discovering
}

package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
	"github.com/vibepanel/vibepanel/pkg/services"
)

const (
	nmService = "org.freedesktop.NetworkManager"
	nmPath    = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmIface   = "org.freedesktop.NetworkManager"
	devIface  = nmIface + ".Device"
	wifiIface = nmIface + ".Device.Wireless"
	apIface   = nmIface + ".AccessPoint"

	propsIface = "org.freedesktop.DBus.Properties"

	// NM_DEVICE_TYPE_WIFI
	wifiDeviceType uint32 = 2

	propTimeout  = 5 * time.Second
	scanTimeout  = 30 * time.Second
	knownSSIDTTL = 30 * time.Second
)

// Runner executes external commands. The nmcli dependency goes through
// this so tests can substitute canned output.
type Runner interface {
	Output(name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// Service tracks NetworkManager Wi-Fi state. All snapshot mutation happens
// on the event loop; D-Bus enumeration and nmcli invocations run on helper
// goroutines that post their results back.
type Service struct {
	log  *slog.Logger
	loop *eventloop.Loop
	conn *dbus.Conn
	run  Runner

	snapshot  Snapshot
	callbacks services.Callbacks[Snapshot]

	wifiPath       dbus.ObjectPath
	ifaceName      string
	scanInProgress bool
	lastScan       *int64
	connectingSSID string
	failedSSID     string

	knownMu        sync.Mutex
	knownSSIDs     map[string]bool
	knownRefreshed time.Time

	propsSub *services.Subscription
	ownerSub *services.Subscription
}

// New creates the service. Start must be called before it produces state.
func New(log *slog.Logger, loop *eventloop.Loop) *Service {
	return &Service{
		log:        log.With("service", "network"),
		loop:       loop,
		run:        execRunner{},
		snapshot:   unknownSnapshot(),
		knownSSIDs: make(map[string]bool),
	}
}

// Start connects to the system bus, watches NetworkManager's name owner,
// and begins Wi-Fi device discovery.
func (s *Service) Start() error {
	conn, err := services.SystemBus()
	if err != nil {
		return fmt.Errorf("system bus: %w", err)
	}
	s.conn = conn

	s.ownerSub, err = services.WatchNameOwner(conn, s.loop, nmService, func(owner string) {
		if owner == "" {
			s.setUnavailable()
			return
		}
		s.setAvailable()
		s.updateNMFlags()
		s.discoverWifiDevice()
	})
	if err != nil {
		return fmt.Errorf("watch name owner: %w", err)
	}

	s.propsSub, err = services.Subscribe(conn, s.loop, s.handlePropertiesChanged,
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchSender(nmService),
	)
	if err != nil {
		return fmt.Errorf("subscribe properties: %w", err)
	}

	if !services.NameHasOwner(conn, nmService) {
		s.log.Warn("NetworkManager not available")
		return nil
	}

	s.setAvailable()
	s.updateNMFlags()
	s.discoverWifiDevice()
	return nil
}

// Stop removes the bus subscriptions.
func (s *Service) Stop() {
	if s.propsSub != nil {
		s.propsSub.Close()
	}
	if s.ownerSub != nil {
		s.ownerSub.Close()
	}
}

// OnChange registers a callback invoked on the event loop with each new
// snapshot. The current snapshot is replayed immediately.
func (s *Service) OnChange(fn func(Snapshot)) int {
	return s.callbacks.Register(fn, s.snapshot.clone())
}

// Unregister removes a callback by its registration id.
func (s *Service) Unregister(id int) {
	s.callbacks.Unregister(id)
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() Snapshot {
	return s.snapshot.clone()
}

func (s *Service) notify() {
	s.callbacks.Notify(s.snapshot.clone())
}

// --- Signal handling ---

func (s *Service) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) == 0 {
		return
	}
	iface, _ := sig.Body[0].(string)
	switch {
	case sig.Path == nmPath && iface == nmIface:
		s.updateNMFlags()
	case sig.Path == s.wifiPath && iface == wifiIface:
		s.updateState()
	}
}

func (s *Service) setAvailable() {
	if s.snapshot.Available {
		return
	}
	s.snapshot.Available = true
	s.notify()
}

func (s *Service) setUnavailable() {
	if !s.snapshot.Available {
		return
	}
	s.snapshot = unknownSnapshot()
	s.wifiPath = ""
	s.ifaceName = ""
	s.notify()
}

// updateNMFlags mirrors the WirelessEnabled property. The read happens
// on a helper goroutine; the result is applied back on the loop.
func (s *Service) updateNMFlags() {
	conn := s.conn
	if conn == nil {
		return
	}
	go func() {
		v, err := getPropOn(conn, nmPath, nmIface, "WirelessEnabled")
		if err != nil {
			s.loop.Post(func() {
				s.log.Debug("read WirelessEnabled failed", "error", err)
			})
			return
		}
		enabled, ok := v.Value().(bool)
		if !ok {
			return
		}
		s.loop.Post(func() { s.applyWifiEnabled(enabled) })
	}()
}

func (s *Service) applyWifiEnabled(enabled bool) {
	if s.snapshot.WifiEnabled != nil && *s.snapshot.WifiEnabled == enabled {
		return
	}
	s.snapshot.WifiEnabled = &enabled
	if !enabled {
		s.snapshot.Connected = false
		s.snapshot.SSID = ""
		s.snapshot.Strength = 0
		for i := range s.snapshot.Networks {
			s.snapshot.Networks[i].Active = false
		}
	}
	s.notify()
}

// --- Device discovery ---

// discoverWifiDevice enumerates NetworkManager devices on a helper
// goroutine and posts the first wireless device back to the loop.
func (s *Service) discoverWifiDevice() {
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()

		var paths []dbus.ObjectPath
		err := conn.Object(nmService, nmPath).
			CallWithContext(ctx, nmIface+".GetDevices", 0).Store(&paths)
		if err != nil {
			s.loop.Post(func() {
				s.log.Warn("device enumeration failed", "error", err)
			})
			return
		}

		for _, path := range paths {
			dtype, err := getPropOn(conn, path, devIface, "DeviceType")
			if err != nil {
				continue
			}
			if t, ok := dtype.Value().(uint32); !ok || t != wifiDeviceType {
				continue
			}
			ifaceName := ""
			if v, err := getPropOn(conn, path, devIface, "Interface"); err == nil {
				ifaceName, _ = v.Value().(string)
			}

			p := path
			s.loop.Post(func() {
				s.log.Debug("found wireless device", "path", p, "interface", ifaceName)
				s.wifiPath = p
				s.ifaceName = ifaceName
				s.updateState()
				s.refreshNetworks()
			})
			return
		}

		s.loop.Post(func() {
			s.log.Warn("no wireless device found")
		})
	}()
}

// --- State updates ---

// updateState resolves the active access point and its details on a
// helper goroutine, then applies the result on the loop. Replies for a
// device that changed in the meantime are dropped.
func (s *Service) updateState() {
	if s.wifiPath == "" {
		return
	}
	conn := s.conn
	wifiPath := s.wifiPath
	go func() {
		v, err := getPropOn(conn, wifiPath, wifiIface, "ActiveAccessPoint")
		if err != nil {
			s.loop.Post(func() {
				s.log.Debug("read ActiveAccessPoint failed", "error", err)
			})
			return
		}
		apPath, _ := v.Value().(dbus.ObjectPath)
		if apPath == "" || apPath == "/" {
			s.loop.Post(func() {
				if s.wifiPath == wifiPath {
					s.setDisconnected()
				}
			})
			return
		}

		ssid, strength, err := apDetails(conn, apPath)
		if err != nil {
			s.loop.Post(func() {
				s.log.Debug("access point details failed", "error", err)
				if s.wifiPath == wifiPath {
					s.setDisconnected()
				}
			})
			return
		}
		s.loop.Post(func() {
			if s.wifiPath != wifiPath {
				return
			}
			s.applyActiveAP(ssid, strength)
		})
	}()
}

// applyActiveAP installs the resolved active connection and kicks off a
// list refresh.
func (s *Service) applyActiveAP(ssid string, strength int) {
	s.snapshot.Connected = true
	s.snapshot.SSID = ssid
	s.snapshot.Strength = strength
	s.notify()
	s.refreshNetworks()
}

func (s *Service) setDisconnected() {
	if !s.snapshot.Connected && s.snapshot.SSID == "" && s.snapshot.Strength == 0 {
		return
	}
	s.snapshot.Connected = false
	s.snapshot.SSID = ""
	s.snapshot.Strength = 0
	s.notify()
}

// --- Network list refresh ---

// refreshNetworks rebuilds the visible network list on a helper goroutine.
func (s *Service) refreshNetworks() {
	if s.wifiPath == "" {
		return
	}
	conn := s.conn
	wifiPath := s.wifiPath

	go func() {
		activePath := dbus.ObjectPath("")
		if v, err := getPropOn(conn, wifiPath, wifiIface, "ActiveAccessPoint"); err == nil {
			if p, ok := v.Value().(dbus.ObjectPath); ok && p != "/" {
				activePath = p
			}
		}

		var lastScan *int64
		if v, err := getPropOn(conn, wifiPath, wifiIface, "LastScan"); err == nil {
			if ls, ok := v.Value().(int64); ok {
				lastScan = &ls
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		var apPaths []dbus.ObjectPath
		err := conn.Object(nmService, wifiPath).
			CallWithContext(ctx, wifiIface+".GetAccessPoints", 0).Store(&apPaths)
		if err != nil {
			s.loop.Post(func() {
				s.log.Error("access point enumeration failed", "error", err)
			})
			return
		}

		known := s.knownConnections()

		networks := make([]WifiNetwork, 0, len(apPaths))
		for _, path := range apPaths {
			net, err := accessPointNetwork(conn, path, activePath, known)
			if err != nil {
				continue
			}
			networks = append(networks, net)
		}

		sorted := sortNetworks(dedupeNetworks(networks))
		s.loop.Post(func() {
			s.applyNetworksRefreshed(sorted, lastScan)
		})
	}()
}

// applyNetworksRefreshed installs a new network list. scanInProgress is
// cleared only when the LastScan timestamp moved forward (or is absent),
// so a stale list does not end the scanning state prematurely.
func (s *Service) applyNetworksRefreshed(networks []WifiNetwork, lastScan *int64) {
	prevLastScan := s.lastScan
	if lastScan != nil {
		s.lastScan = lastScan
	}

	if s.scanInProgress {
		fresh := false
		switch {
		case lastScan != nil && prevLastScan != nil:
			fresh = *lastScan > *prevLastScan
		case lastScan != nil:
			fresh = true
		}
		if lastScan == nil || fresh {
			s.scanInProgress = false
		}
	}

	// connecting_ssid is not cleared from list state: NetworkManager can
	// briefly report the network active during authentication. Only the
	// connection attempt result clears it.
	s.snapshot.Networks = networks
	s.snapshot.Ready = true
	s.snapshot.Scanning = s.scanInProgress
	s.snapshot.ConnectingSSID = s.connectingSSID
	s.snapshot.FailedSSID = s.failedSSID
	s.notify()
}

// knownConnections returns the saved Wi-Fi connection names, refreshing
// from nmcli when the cache is older than 30 seconds.
func (s *Service) knownConnections() map[string]bool {
	s.knownMu.Lock()
	defer s.knownMu.Unlock()

	if !s.knownRefreshed.IsZero() && time.Since(s.knownRefreshed) < knownSSIDTTL {
		return copySet(s.knownSSIDs)
	}

	out, err := s.run.Output("nmcli", "-t", "-f", "NAME,TYPE", "connection", "show")
	if err != nil {
		s.log.Debug("nmcli connection listing failed", "error", err)
		return copySet(s.knownSSIDs)
	}
	s.knownSSIDs = parseKnownConnections(string(out))
	s.knownRefreshed = time.Now()
	return copySet(s.knownSSIDs)
}

func (s *Service) invalidateKnownConnections() {
	s.knownMu.Lock()
	s.knownRefreshed = time.Time{}
	s.knownMu.Unlock()
}

func copySet(m map[string]bool) map[string]bool {
	c := make(map[string]bool, len(m))
	for k := range m {
		c[k] = true
	}
	return c
}

// --- Actions ---

// SetWifiEnabled toggles the wireless radio. Fire-and-forget; the result
// arrives via PropertiesChanged.
func (s *Service) SetWifiEnabled(enabled bool) {
	conn := s.conn
	if conn == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		err := conn.Object(nmService, nmPath).
			CallWithContext(ctx, propsIface+".Set", 0, nmIface, "WirelessEnabled", dbus.MakeVariant(enabled)).Err
		if err != nil {
			s.loop.Post(func() {
				s.log.Error("set WirelessEnabled failed", "error", err)
			})
		}
	}()
}

// Scan requests a Wi-Fi scan. No-op while one is already running.
func (s *Service) Scan() {
	if s.scanInProgress || s.wifiPath == "" {
		return
	}
	s.scanInProgress = true
	s.snapshot.Scanning = true
	s.notify()

	conn := s.conn
	wifiPath := s.wifiPath
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()
		err := conn.Object(nmService, wifiPath).
			CallWithContext(ctx, wifiIface+".RequestScan", 0, map[string]dbus.Variant{}).Err
		s.loop.Post(func() {
			if err != nil {
				s.log.Debug("scan request failed", "error", err)
			}
			s.refreshNetworks()
		})
	}()
}

// Connect attempts to join a network, optionally with a password. The
// attempt runs through nmcli; a failed attempt removes the profile nmcli
// created so the network is not shown as saved.
func (s *Service) Connect(ssid, password string) {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return
	}

	s.failedSSID = ""
	s.connectingSSID = ssid
	s.snapshot.FailedSSID = ""
	s.snapshot.ConnectingSSID = ssid
	s.notify()

	go func() {
		args := []string{"device", "wifi", "connect", ssid}
		if password != "" {
			args = append(args, "password", password)
		}

		_, err := s.run.Output("nmcli", args...)
		success := err == nil
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				s.loop.Post(func() {
					s.log.Warn("connect failed", "ssid", ssid,
						"stderr", strings.TrimSpace(string(exitErr.Stderr)))
				})
			} else {
				s.loop.Post(func() {
					s.log.Error("nmcli invocation failed", "error", err)
				})
			}
			// Drop the profile nmcli created for the failed attempt.
			_, _ = s.run.Output("nmcli", "connection", "delete", "id", ssid)
		}

		s.loop.Post(func() {
			s.finishConnectionAttempt(ssid, success)
		})
	}()
}

func (s *Service) finishConnectionAttempt(ssid string, success bool) {
	s.connectingSSID = ""
	if success {
		s.failedSSID = ""
	} else {
		s.failedSSID = ssid
		s.invalidateKnownConnections()
	}

	s.snapshot.ConnectingSSID = ""
	s.snapshot.FailedSSID = s.failedSSID
	s.notify()
	s.refreshNetworks()
}

// Disconnect drops the current Wi-Fi connection.
func (s *Service) Disconnect() {
	iface := s.ifaceName
	if iface == "" {
		return
	}
	go func() {
		if _, err := s.run.Output("nmcli", "device", "disconnect", iface); err != nil {
			s.loop.Post(func() {
				s.log.Error("disconnect failed", "error", err)
			})
		}
		s.loop.Post(s.refreshNetworks)
	}()
}

// Forget deletes a saved connection profile.
func (s *Service) Forget(ssid string) {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		return
	}
	go func() {
		if _, err := s.run.Output("nmcli", "connection", "delete", "id", ssid); err != nil {
			s.loop.Post(func() {
				s.log.Error("forget failed", "ssid", ssid, "error", err)
			})
		}
		s.invalidateKnownConnections()
		s.loop.Post(s.refreshNetworks)
	}()
}

// ClearFailedState resets the failed SSID, used when the password prompt
// is dismissed.
func (s *Service) ClearFailedState() {
	s.failedSSID = ""
	s.snapshot.FailedSSID = ""
	s.notify()
}

// --- D-Bus helpers ---

func getPropOn(conn *dbus.Conn, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
	defer cancel()
	var v dbus.Variant
	err := conn.Object(nmService, path).
		CallWithContext(ctx, propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

// apDetails reads the SSID and strength of an access point. The SSID is
// transported as a byte array.
func apDetails(conn *dbus.Conn, path dbus.ObjectPath) (string, int, error) {
	v, err := getPropOn(conn, path, apIface, "Ssid")
	if err != nil {
		return "", 0, err
	}
	ssidBytes, _ := v.Value().([]byte)

	strength := 0
	if v, err := getPropOn(conn, path, apIface, "Strength"); err == nil {
		if b, ok := v.Value().(byte); ok {
			strength = int(b)
		}
	}
	return string(ssidBytes), strength, nil
}

// accessPointNetwork builds a WifiNetwork from one access point. Security
// is "secured" when any of the flag sets is non-zero. An active network is
// always considered known.
func accessPointNetwork(conn *dbus.Conn, path, activePath dbus.ObjectPath, known map[string]bool) (WifiNetwork, error) {
	ssid, strength, err := apDetails(conn, path)
	if err != nil {
		return WifiNetwork{}, err
	}

	secured := false
	for _, prop := range []string{"Flags", "WpaFlags", "RsnFlags"} {
		if v, err := getPropOn(conn, path, apIface, prop); err == nil {
			if f, ok := v.Value().(uint32); ok && f != 0 {
				secured = true
				break
			}
		}
	}
	security := SecurityOpen
	if secured {
		security = SecuritySecured
	}

	active := activePath != "" && path == activePath
	return WifiNetwork{
		SSID:     ssid,
		Strength: strength,
		Security: security,
		Active:   active,
		Known:    known[ssid] || active,
	}, nil
}

package vpn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
	"github.com/vibepanel/vibepanel/pkg/services"
	"github.com/vibepanel/vibepanel/pkg/state"
)

const (
	nmService     = "org.freedesktop.NetworkManager"
	nmPath        = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmIface       = "org.freedesktop.NetworkManager"
	settingsPath  = dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings")
	settingsIface = "org.freedesktop.NetworkManager.Settings"
	connIface     = "org.freedesktop.NetworkManager.Settings.Connection"
	activeIface   = "org.freedesktop.NetworkManager.Connection.Active"
	propsIface    = "org.freedesktop.DBus.Properties"

	enumTimeout       = 5 * time.Second
	activateTimeout   = 30 * time.Second
	deactivateTimeout = 5 * time.Second

	// Coalesces bursts of StateChanged/PropertiesChanged signals.
	refreshDelay = 50 * time.Millisecond
)

// Service tracks VPN profiles and their active state. Snapshot mutation
// happens on the event loop; enumeration and activation run on helper
// goroutines. Activation and deactivation are serialized by a mutex so
// rapid toggling cannot interleave.
type Service struct {
	log       *slog.Logger
	loop      *eventloop.Loop
	conn      *dbus.Conn
	statePath string

	snapshot  Snapshot
	callbacks services.Callbacks[Snapshot]

	lastUsedUUID   string
	refreshPending bool

	opMu sync.Mutex

	subs []*services.Subscription
}

// New creates the service. The persisted last-used UUID is loaded from
// statePath so Primary works before the first activation.
func New(log *slog.Logger, loop *eventloop.Loop, statePath string) *Service {
	s := &Service{
		log:       log.With("service", "vpn"),
		loop:      loop,
		statePath: statePath,
	}
	if persisted, err := state.Load(statePath); err == nil {
		s.lastUsedUUID = persisted.VPN.LastUsedUUID
		s.snapshot.PreferredUUID = s.lastUsedUUID
	} else {
		s.log.Debug("persisted state unavailable", "error", err)
	}
	return s
}

// Start connects to the system bus, subscribes to connection lifecycle
// signals, and queues the initial enumeration.
func (s *Service) Start() error {
	conn, err := services.SystemBus()
	if err != nil {
		return fmt.Errorf("system bus: %w", err)
	}
	s.conn = conn

	ownerSub, err := services.WatchNameOwner(conn, s.loop, nmService, func(owner string) {
		if owner == "" {
			s.setUnavailable()
			return
		}
		s.queueRefresh()
	})
	if err != nil {
		return fmt.Errorf("watch name owner: %w", err)
	}
	s.subs = append(s.subs, ownerSub)

	// ActiveConnections moves under the root PropertiesChanged.
	propsSub, err := services.Subscribe(conn, s.loop, func(sig *dbus.Signal) {
		if sig.Path != nmPath || len(sig.Body) == 0 {
			return
		}
		if iface, _ := sig.Body[0].(string); iface == nmIface {
			s.queueRefresh()
		}
	},
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(nmPath),
	)
	if err != nil {
		return fmt.Errorf("subscribe properties: %w", err)
	}
	s.subs = append(s.subs, propsSub)

	// Profile additions and removals.
	for _, member := range []string{"NewConnection", "ConnectionRemoved"} {
		sub, err := services.Subscribe(conn, s.loop, func(*dbus.Signal) {
			s.queueRefresh()
		},
			dbus.WithMatchInterface(settingsIface),
			dbus.WithMatchMember(member),
			dbus.WithMatchObjectPath(settingsPath),
		)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", member, err)
		}
		s.subs = append(s.subs, sub)
	}

	// State transitions on active connections. Subscribed by interface
	// rather than per-path; the refresh re-reads everything anyway.
	stateSub, err := services.Subscribe(conn, s.loop, func(*dbus.Signal) {
		s.queueRefresh()
	},
		dbus.WithMatchInterface(activeIface),
		dbus.WithMatchMember("StateChanged"),
	)
	if err != nil {
		return fmt.Errorf("subscribe StateChanged: %w", err)
	}
	s.subs = append(s.subs, stateSub)

	if services.NameHasOwner(conn, nmService) {
		s.queueRefresh()
	} else {
		s.log.Warn("NetworkManager not available")
	}
	return nil
}

// Stop removes the bus subscriptions.
func (s *Service) Stop() {
	for _, sub := range s.subs {
		sub.Close()
	}
	s.subs = nil
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

// queueRefresh schedules a connection refresh after a short delay so
// signal bursts collapse into one enumeration.
func (s *Service) queueRefresh() {
	if s.refreshPending {
		return
	}
	s.refreshPending = true
	s.loop.After(refreshDelay, s.refreshConnections)
}

func (s *Service) setUnavailable() {
	if !s.snapshot.Available {
		return
	}
	s.snapshot = Snapshot{PreferredUUID: s.lastUsedUUID}
	s.notify()
}

// --- Enumeration ---

// refreshConnections enumerates profiles and active state on a helper
// goroutine and applies the result on the loop.
func (s *Service) refreshConnections() {
	conn := s.conn
	go func() {
		connections := fetchConnections(conn, s.log)
		s.loop.Post(func() {
			s.applyConnections(connections)
		})
	}()
}

func (s *Service) applyConnections(connections []Connection) {
	s.refreshPending = false

	activeCount := 0
	for _, c := range connections {
		if c.Active {
			activeCount++
		}
	}

	// A newly active connection becomes the remembered preference.
	for _, c := range connections {
		if c.Active && c.UUID != s.lastUsedUUID {
			s.log.Debug("updating last used connection", "uuid", c.UUID)
			s.lastUsedUUID = c.UUID
			s.saveState()
			break
		}
	}

	sortConnections(connections, s.lastUsedUUID)

	s.snapshot.Available = true
	s.snapshot.Connections = connections
	s.snapshot.AnyActive = activeCount > 0
	s.snapshot.ActiveCount = activeCount
	s.snapshot.Ready = true
	s.snapshot.PreferredUUID = s.lastUsedUUID
	s.notify()
}

// saveState persists the last-used UUID, preserving unrelated fields.
func (s *Service) saveState() {
	persisted, err := state.Load(s.statePath)
	if err != nil {
		persisted = &state.Persisted{}
	}
	persisted.VPN.LastUsedUUID = s.lastUsedUUID
	if err := state.Save(s.statePath, persisted); err != nil {
		s.log.Warn("state save failed", "error", err)
	}
}

// fetchConnections lists Settings profiles, filters to VPN types, and
// joins them with the active connection map.
func fetchConnections(conn *dbus.Conn, log *slog.Logger) []Connection {
	ctx, cancel := context.WithTimeout(context.Background(), enumTimeout)
	defer cancel()

	var paths []dbus.ObjectPath
	err := conn.Object(nmService, settingsPath).
		CallWithContext(ctx, settingsIface+".ListConnections", 0).Store(&paths)
	if err != nil {
		log.Warn("connection listing failed", "error", err)
		return nil
	}

	activeStates := fetchActiveStates(conn, log)

	var result []Connection
	for _, path := range paths {
		settingsCtx, cancel := context.WithTimeout(context.Background(), enumTimeout)
		var settings map[string]map[string]dbus.Variant
		err := conn.Object(nmService, path).
			CallWithContext(settingsCtx, connIface+".GetSettings", 0).Store(&settings)
		cancel()
		if err != nil {
			log.Debug("settings read failed", "path", path, "error", err)
			continue
		}

		section, ok := settings["connection"]
		if !ok {
			continue
		}
		connType, _ := section["type"].Value().(string)
		if !isVPNType(connType) {
			continue
		}
		uuid, _ := section["uuid"].Value().(string)
		if uuid == "" {
			continue
		}
		name, _ := section["id"].Value().(string)
		autoconnect := true
		if v, ok := section["autoconnect"]; ok {
			autoconnect, _ = v.Value().(bool)
		}

		vpnState, active := activeStates[uuid]
		result = append(result, Connection{
			UUID:        uuid,
			Name:        name,
			Active:      active,
			State:       vpnState,
			Autoconnect: autoconnect,
			Type:        connType,
		})
	}
	return result
}

// fetchActiveStates maps active VPN connection UUIDs to their states.
func fetchActiveStates(conn *dbus.Conn, log *slog.Logger) map[string]State {
	result := make(map[string]State)

	paths, err := activeConnectionPaths(conn)
	if err != nil {
		log.Debug("active connection listing failed", "error", err)
		return result
	}

	for _, path := range paths {
		uuid, _ := activeProp(conn, path, "Uuid")
		if uuid == "" {
			continue
		}
		connType, _ := activeProp(conn, path, "Type")
		if connType != "" && !isVPNType(connType) {
			continue
		}
		st := StateUnknown
		if v, err := getProp(conn, path, activeIface, "State"); err == nil {
			if raw, ok := v.Value().(uint32); ok {
				st = stateFromNM(raw)
			}
		}
		result[uuid] = st
	}
	return result
}

func activeConnectionPaths(conn *dbus.Conn) ([]dbus.ObjectPath, error) {
	v, err := getProp(conn, nmPath, nmIface, "ActiveConnections")
	if err != nil {
		return nil, err
	}
	paths, _ := v.Value().([]dbus.ObjectPath)
	return paths, nil
}

func activeProp(conn *dbus.Conn, path dbus.ObjectPath, prop string) (string, error) {
	v, err := getProp(conn, path, activeIface, prop)
	if err != nil {
		return "", err
	}
	s, _ := v.Value().(string)
	return s, nil
}

func getProp(conn *dbus.Conn, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), enumTimeout)
	defer cancel()
	var v dbus.Variant
	err := conn.Object(nmService, path).
		CallWithContext(ctx, propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

// --- Actions ---

// SetConnectionState activates or deactivates a profile by UUID.
// Fire-and-forget: failures are logged and the snapshot is refreshed from
// actual bus state afterwards.
func (s *Service) SetConnectionState(uuid string, active bool) {
	conn := s.conn
	if conn == nil {
		s.log.Warn("cannot change connection state, no bus connection")
		return
	}

	go func() {
		s.opMu.Lock()
		defer s.opMu.Unlock()

		if active {
			s.activate(conn, uuid)
		} else {
			s.deactivate(conn, uuid)
		}

		s.loop.Post(s.queueRefresh)
	}()
}

// activate resolves the profile path and calls ActivateConnection with
// auto-selected device. The long timeout leaves room for auth dialogs.
func (s *Service) activate(conn *dbus.Conn, uuid string) {
	ctx, cancel := context.WithTimeout(context.Background(), enumTimeout)
	var connPath dbus.ObjectPath
	err := conn.Object(nmService, settingsPath).
		CallWithContext(ctx, settingsIface+".GetConnectionByUuid", 0, uuid).Store(&connPath)
	cancel()
	if err != nil {
		s.loop.Post(func() {
			s.log.Warn("connection lookup failed", "uuid", uuid, "error", err)
		})
		return
	}

	s.loop.Post(func() {
		s.log.Debug("activating connection", "uuid", uuid, "path", connPath)
	})

	ctx, cancel = context.WithTimeout(context.Background(), activateTimeout)
	defer cancel()
	var activePath dbus.ObjectPath
	err = conn.Object(nmService, nmPath).
		CallWithContext(ctx, nmIface+".ActivateConnection", 0,
			connPath, dbus.ObjectPath("/"), dbus.ObjectPath("/")).Store(&activePath)
	if err != nil {
		s.loop.Post(func() {
			s.log.Warn("activation failed", "uuid", uuid, "error", err)
		})
	}
}

func (s *Service) deactivate(conn *dbus.Conn, uuid string) {
	activePath := findActivePath(conn, uuid)
	if activePath == "" {
		s.loop.Post(func() {
			s.log.Warn("no active connection to deactivate", "uuid", uuid)
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deactivateTimeout)
	defer cancel()
	err := conn.Object(nmService, nmPath).
		CallWithContext(ctx, nmIface+".DeactivateConnection", 0, activePath).Err
	if err != nil {
		s.loop.Post(func() {
			s.log.Warn("deactivation failed", "uuid", uuid, "error", err)
		})
	}
}

func findActivePath(conn *dbus.Conn, uuid string) dbus.ObjectPath {
	paths, err := activeConnectionPaths(conn)
	if err != nil {
		return ""
	}
	for _, path := range paths {
		if u, _ := activeProp(conn, path, "Uuid"); u == uuid {
			return path
		}
	}
	return ""
}

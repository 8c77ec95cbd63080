package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
	"github.com/vibepanel/vibepanel/pkg/services"
)

const (
	bluezService = "org.bluez"
	bluezPath    = dbus.ObjectPath("/org/bluez")

	adapterPath       = dbus.ObjectPath("/org/bluez/hci0")
	adapterIface      = "org.bluez.Adapter1"
	deviceIface       = "org.bluez.Device1"
	agentManagerIface = "org.bluez.AgentManager1"
	objectMgrIface    = "org.freedesktop.DBus.ObjectManager"
	propsIface        = "org.freedesktop.DBus.Properties"

	propTimeout = 5 * time.Second
	// Connect and Pair may wait on the remote device and auth dialogs.
	connectTimeout = 30 * time.Second

	// BlueZ reference-counts discovery, so a scan we start must be
	// stopped by us.
	scanDuration = 10 * time.Second

	authTimeout = 30 * time.Second
)

// pendingAuth is the single in-flight pairing interaction. reply is
// nil for display-only kinds, where nothing is owed to the peer.
type pendingAuth struct {
	req    AuthRequest
	reply  chan authReply
	cancel eventloop.CancelFunc
}

// Service mirrors BlueZ adapter and device state and exposes the
// pairing agent. Snapshot mutation happens on the event loop.
type Service struct {
	log  *slog.Logger
	loop *eventloop.Loop
	conn *dbus.Conn

	adapter dbus.ObjectPath

	snapshot  Snapshot
	callbacks services.Callbacks[Snapshot]
	debouncer *services.Debouncer

	pending         *pendingAuth
	agentRegistered bool

	subs []*services.Subscription
}

func New(log *slog.Logger, loop *eventloop.Loop) *Service {
	return &Service{
		log:  log.With("service", "bluetooth"),
		loop: loop,
	}
}

// Start connects to the system bus, exports the agent, and begins
// mirroring BlueZ state.
func (s *Service) Start() error {
	conn, err := services.SystemBus()
	if err != nil {
		return fmt.Errorf("system bus: %w", err)
	}
	s.conn = conn
	s.debouncer = services.NewDebouncer(s.loop)

	if err := exportAgent(conn, &agent{svc: s}); err != nil {
		return fmt.Errorf("export agent: %w", err)
	}

	ownerSub, err := services.WatchNameOwner(conn, s.loop, bluezService, func(owner string) {
		if owner == "" {
			s.setUnavailable()
			return
		}
		s.registerAgent()
		s.debouncer.Trigger(s.updateState)
	})
	if err != nil {
		return fmt.Errorf("watch name owner: %w", err)
	}
	s.subs = append(s.subs, ownerSub)

	// BlueZ emits bursts of property changes during scans and
	// connects; the debouncer batches them into one rebuild.
	propsSub, err := services.Subscribe(conn, s.loop, func(*dbus.Signal) {
		s.debouncer.Trigger(s.updateState)
	},
		dbus.WithMatchSender(bluezService),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return fmt.Errorf("subscribe properties: %w", err)
	}
	s.subs = append(s.subs, propsSub)

	for _, member := range []string{"InterfacesAdded", "InterfacesRemoved"} {
		sub, err := services.Subscribe(conn, s.loop, func(*dbus.Signal) {
			s.debouncer.Trigger(s.updateState)
		},
			dbus.WithMatchSender(bluezService),
			dbus.WithMatchInterface(objectMgrIface),
			dbus.WithMatchMember(member),
		)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", member, err)
		}
		s.subs = append(s.subs, sub)
	}

	if services.NameHasOwner(conn, bluezService) {
		s.registerAgent()
		s.updateState()
	} else {
		s.log.Warn("BlueZ not available")
	}
	return nil
}

// Stop drops subscriptions and cancels any pending auth.
func (s *Service) Stop() {
	s.cancelPending(errCanceled)
	if s.debouncer != nil {
		s.debouncer.Stop()
	}
	for _, sub := range s.subs {
		sub.Close()
	}
	s.subs = nil
}

// OnChange registers a snapshot callback, replaying the current state.
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

// --- Agent registration ---

// registerAgent registers the exported object with BlueZ. The agent
// never requests default status; it only mediates pairings this
// process starts.
func (s *Service) registerAgent() {
	if s.agentRegistered {
		return
	}
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		err := conn.Object(bluezService, bluezPath).
			CallWithContext(ctx, agentManagerIface+".RegisterAgent", 0,
				agentPath, agentCapability).Err
		s.loop.Post(func() {
			switch {
			case err == nil:
				s.agentRegistered = true
				s.log.Debug("pairing agent registered")
			case dbusErrName(err) == "org.bluez.Error.AlreadyExists":
				s.agentRegistered = true
			default:
				s.log.Warn("agent registration failed", "error", err)
			}
		})
	}()
}

// --- State ---

func (s *Service) setUnavailable() {
	s.cancelPending(errCanceled)
	s.snapshot = Snapshot{}
	s.adapter = ""
	// Registration died with the daemon; re-register on reappearance.
	s.agentRegistered = false
	s.notify()
}

// updateState re-reads the whole BlueZ object tree off-loop and
// applies it.
func (s *Service) updateState() {
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		var objects managedObjects
		err := conn.Object(bluezService, "/").
			CallWithContext(ctx, objectMgrIface+".GetManagedObjects", 0).Store(&objects)
		if err != nil {
			s.loop.Post(func() {
				s.log.Debug("object enumeration failed", "error", err)
			})
			return
		}
		s.loop.Post(func() {
			s.applyObjects(objects)
		})
	}()
}

func (s *Service) applyObjects(objects managedObjects) {
	adapter, hasAdapter := findAdapter(objects)
	s.adapter = adapter

	devices := parseDevices(objects)
	connected := 0
	for _, d := range devices {
		if d.Connected {
			connected++
		}
	}

	powered, discovering := adapterFlags(objects, adapter)

	s.snapshot.HasAdapter = hasAdapter
	s.snapshot.Powered = powered
	s.snapshot.Scanning = discovering
	s.snapshot.ConnectedDevices = connected
	s.snapshot.Devices = devices
	s.snapshot.Ready = true

	s.reconcileAuth(devices)
	s.notify()
}

// reconcileAuth drops a retained display-only auth once its device is
// paired or gone, and clears the pairing marker when pairing lands.
func (s *Service) reconcileAuth(devices []Device) {
	target := func(path string) (Device, bool) {
		for _, d := range devices {
			if d.Path == path {
				return d, true
			}
		}
		return Device{}, false
	}

	if s.pending != nil && s.pending.req.Kind.IsDisplayOnly() {
		dev, found := target(s.pending.req.DevicePath)
		if !found || dev.Paired {
			s.pending = nil
			s.snapshot.Auth = nil
		}
	}

	if s.snapshot.PairingDevice != "" {
		dev, found := target(s.snapshot.PairingDevice)
		if !found || dev.Paired {
			s.snapshot.PairingDevice = ""
		}
	}
}

// --- Auth bridging ---

// beginAuth installs a new pending auth, canceling any previous one.
// Runs on the event loop; called from agent methods.
func (s *Service) beginAuth(kind AuthKind, device dbus.ObjectPath, code string, ch chan authReply) {
	s.cancelPending(errCanceled)

	pending := &pendingAuth{
		req: AuthRequest{
			DevicePath: string(device),
			DeviceName: s.deviceName(string(device)),
			Kind:       kind,
			Code:       code,
		},
		reply: ch,
	}
	s.pending = pending

	if ch != nil {
		pending.cancel = s.loop.After(authTimeout, func() {
			if s.pending != pending {
				return
			}
			pending.reply <- authReply{err: errTimedOut}
			s.pending = nil
			s.publishAuth()
		})
	}

	s.publishAuth()
}

// cancelPending answers the blocked peer call (if any) and drops the
// pending auth. Callers publish afterwards.
func (s *Service) cancelPending(err *dbus.Error) {
	if s.pending == nil {
		return
	}
	if s.pending.cancel != nil {
		s.pending.cancel()
	}
	if s.pending.reply != nil {
		s.pending.reply <- authReply{err: err}
	}
	s.pending = nil
}

func (s *Service) clearAuth() {
	s.cancelPending(errCanceled)
	s.publishAuth()
}

func (s *Service) publishAuth() {
	if s.pending == nil {
		s.snapshot.Auth = nil
	} else {
		req := s.pending.req
		s.snapshot.Auth = &req
	}
	s.notify()
}

// SubmitPin answers a pending pin-code request.
func (s *Service) SubmitPin(pin string) {
	s.respond(AuthPinCode, authReply{pin: pin})
}

// SubmitPasskey answers a pending numeric passkey request.
func (s *Service) SubmitPasskey(passkey uint32) {
	s.respond(AuthPasskey, authReply{passkey: passkey})
}

// ConfirmPasskey accepts a pending confirmation request.
func (s *Service) ConfirmPasskey() {
	s.respond(AuthConfirmation, authReply{})
}

func (s *Service) respond(kind AuthKind, reply authReply) {
	if s.pending == nil || s.pending.req.Kind != kind || s.pending.reply == nil {
		return
	}
	if s.pending.cancel != nil {
		s.pending.cancel()
	}
	s.pending.reply <- reply
	s.pending = nil
	s.publishAuth()
}

// CancelAuth rejects the pending auth and calls CancelPairing on the
// device. The device call is what aborts display-only flows, where no
// peer invocation is outstanding.
func (s *Service) CancelAuth() {
	if s.pending == nil {
		return
	}
	devicePath := s.pending.req.DevicePath
	s.cancelPending(errCanceled)
	s.publishAuth()

	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		err := conn.Object(bluezService, dbus.ObjectPath(devicePath)).
			CallWithContext(ctx, deviceIface+".CancelPairing", 0).Err
		if err != nil {
			s.loop.Post(func() {
				s.log.Debug("CancelPairing failed", "device", devicePath, "error", err)
			})
		}
	}()
}

func (s *Service) deviceName(path string) string {
	for _, d := range s.snapshot.Devices {
		if d.Path == path {
			return d.Name
		}
	}
	return addressFromPath(path)
}

// addressFromPath recovers "AA:BB:CC:DD:EE:FF" from a BlueZ device
// path like "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func addressFromPath(path string) string {
	i := strings.LastIndex(path, "/dev_")
	if i < 0 {
		return path
	}
	return strings.ReplaceAll(path[i+len("/dev_"):], "_", ":")
}

// --- Control API ---

// SetPowered switches the adapter on or off.
func (s *Service) SetPowered(enabled bool) {
	if s.adapter == "" {
		return
	}
	adapter := s.adapter
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		err := conn.Object(bluezService, adapter).
			CallWithContext(ctx, propsIface+".Set", 0,
				adapterIface, "Powered", dbus.MakeVariant(enabled)).Err
		if err != nil {
			s.loop.Post(func() {
				s.log.Warn("power toggle failed", "error", err)
			})
		}
	}()
}

// Scan starts discovery and schedules the matching stop. The UI scan
// state follows the Discovering property, not this timer.
func (s *Service) Scan() {
	if s.adapter == "" || s.snapshot.Scanning {
		return
	}
	adapter := s.adapter
	conn := s.conn

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		err := conn.Object(bluezService, adapter).
			CallWithContext(ctx, adapterIface+".StartDiscovery", 0).Err
		if err != nil {
			s.loop.Post(func() {
				s.log.Warn("StartDiscovery failed", "error", err)
			})
		}
	}()

	s.loop.After(scanDuration, func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
			defer cancel()
			err := conn.Object(bluezService, adapter).
				CallWithContext(ctx, adapterIface+".StopDiscovery", 0).Err
			if err != nil {
				// Fails if discovery already stopped elsewhere.
				s.loop.Post(func() {
					s.log.Debug("StopDiscovery", "error", err)
				})
			}
		}()
	})
}

// ConnectDevice connects a device by object path or address.
func (s *Service) ConnectDevice(pathOrAddress string) {
	s.deviceCall(pathOrAddress, "Connect", connectTimeout)
}

// DisconnectDevice disconnects a device by object path or address.
func (s *Service) DisconnectDevice(pathOrAddress string) {
	s.deviceCall(pathOrAddress, "Disconnect", propTimeout)
}

// PairDevice pairs, trusts, and connects a device. Auth interactions
// arrive through the agent while Pair blocks.
func (s *Service) PairDevice(pathOrAddress string) {
	path, ok := s.resolveDevice(pathOrAddress)
	if !ok {
		s.log.Warn("unknown device", "device", pathOrAddress)
		return
	}

	s.snapshot.PairingDevice = path
	s.notify()

	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		err := conn.Object(bluezService, dbus.ObjectPath(path)).
			CallWithContext(ctx, deviceIface+".Pair", 0).Err
		cancel()

		if err != nil && dbusErrName(err) != "org.bluez.Error.AlreadyExists" {
			s.loop.Post(func() {
				if isAuthError(err) {
					s.log.Debug("pairing aborted", "device", path, "error", err)
				} else {
					s.log.Warn("pairing failed", "device", path, "error", err)
				}
				s.finishPairing(path)
			})
			return
		}

		// Trust the device so future reconnects are seamless.
		ctx, cancel = context.WithTimeout(context.Background(), propTimeout)
		trustErr := conn.Object(bluezService, dbus.ObjectPath(path)).
			CallWithContext(ctx, propsIface+".Set", 0,
				deviceIface, "Trusted", dbus.MakeVariant(true)).Err
		cancel()
		if trustErr != nil {
			s.loop.Post(func() {
				s.log.Warn("trust failed", "device", path, "error", trustErr)
			})
		}

		ctx, cancel = context.WithTimeout(context.Background(), connectTimeout)
		connectErr := conn.Object(bluezService, dbus.ObjectPath(path)).
			CallWithContext(ctx, deviceIface+".Connect", 0).Err
		cancel()

		s.loop.Post(func() {
			if connectErr != nil {
				s.log.Warn("connect after pair failed", "device", path, "error", connectErr)
			}
			s.finishPairing(path)
		})
	}()
}

// finishPairing clears the pairing marker and any retained
// display-only auth for that device.
func (s *Service) finishPairing(path string) {
	if s.snapshot.PairingDevice == path {
		s.snapshot.PairingDevice = ""
	}
	if s.pending != nil && s.pending.req.Kind.IsDisplayOnly() &&
		s.pending.req.DevicePath == path {
		s.pending = nil
		s.snapshot.Auth = nil
	}
	s.notify()
}

// ForgetDevice removes a device from the adapter.
func (s *Service) ForgetDevice(pathOrAddress string) {
	path, ok := s.resolveDevice(pathOrAddress)
	if !ok || s.adapter == "" {
		return
	}
	adapter := s.adapter
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		err := conn.Object(bluezService, adapter).
			CallWithContext(ctx, adapterIface+".RemoveDevice", 0,
				dbus.ObjectPath(path)).Err
		if err != nil {
			s.loop.Post(func() {
				s.log.Warn("forget failed", "device", path, "error", err)
			})
		}
	}()
}

func (s *Service) deviceCall(pathOrAddress, method string, timeout time.Duration) {
	path, ok := s.resolveDevice(pathOrAddress)
	if !ok {
		s.log.Warn("unknown device", "device", pathOrAddress)
		return
	}
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := conn.Object(bluezService, dbus.ObjectPath(path)).
			CallWithContext(ctx, deviceIface+"."+method, 0).Err
		if err != nil {
			s.loop.Post(func() {
				s.log.Warn("device call failed", "method", method, "device", path, "error", err)
			})
		}
	}()
}

func (s *Service) resolveDevice(pathOrAddress string) (string, bool) {
	for _, d := range s.snapshot.Devices {
		if d.Path == pathOrAddress || d.Address == pathOrAddress {
			return d.Path, true
		}
	}
	return "", false
}

func dbusErrName(err error) string {
	var dbErr dbus.Error
	if errors.As(err, &dbErr) {
		return dbErr.Name
	}
	return ""
}

func isAuthError(err error) bool {
	switch dbusErrName(err) {
	case "org.bluez.Error.AuthenticationCanceled",
		"org.bluez.Error.AuthenticationFailed",
		"org.bluez.Error.AuthenticationRejected",
		"org.bluez.Error.Canceled":
		return true
	}
	return false
}

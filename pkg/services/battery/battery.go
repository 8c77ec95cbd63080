// Package battery reads battery state from the UPower DisplayDevice.
// Hosts without a battery under /sys/class/power_supply leave the
// service disabled.
package battery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
	"github.com/vibepanel/vibepanel/pkg/services"
)

const (
	powerSupplyPath = "/sys/class/power_supply"

	upowerService = "org.freedesktop.UPower"
	displayPath   = dbus.ObjectPath("/org/freedesktop/UPower/devices/DisplayDevice")
	deviceIface   = "org.freedesktop.UPower.Device"
	propsIface    = "org.freedesktop.DBus.Properties"

	propTimeout = 5 * time.Second
)

// UPower state codes.
// https://upower.freedesktop.org/docs/Device.html#Device:state
const (
	StateCharging     uint32 = 1
	StateFullyCharged uint32 = 4
)

// Snapshot is the battery state. Nil pointers mean the field is
// unknown.
type Snapshot struct {
	Available   bool
	Percent     *float64
	State       *uint32
	EnergyRate  *float64 // watts
	TimeToEmpty *int64   // seconds
	TimeToFull  *int64   // seconds
}

// Charging reports whether the battery is charging or full on AC.
func (s Snapshot) Charging() bool {
	return s.State != nil && (*s.State == StateCharging || *s.State == StateFullyCharged)
}

func (s Snapshot) equal(o Snapshot) bool {
	return s.Available == o.Available &&
		eqFloat(s.Percent, o.Percent) &&
		eqUint32(s.State, o.State) &&
		eqFloat(s.EnergyRate, o.EnergyRate) &&
		eqInt64(s.TimeToEmpty, o.TimeToEmpty) &&
		eqInt64(s.TimeToFull, o.TimeToFull)
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqUint32(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// hasBatteryDevice probes the kernel power supply directory for an
// entry whose type file reads "battery".
func hasBatteryDevice(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(root, entry.Name(), "type"))
		if err != nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(string(data)), "battery") {
			return true
		}
	}
	return false
}

// Service mirrors the UPower DisplayDevice.
type Service struct {
	log  *slog.Logger
	loop *eventloop.Loop
	conn *dbus.Conn

	enabled bool

	snapshot  Snapshot
	callbacks services.Callbacks[Snapshot]

	subs []*services.Subscription
}

func New(log *slog.Logger, loop *eventloop.Loop) *Service {
	s := &Service{
		log:     log.With("service", "battery"),
		loop:    loop,
		enabled: hasBatteryDevice(powerSupplyPath),
	}
	// Mark available right away so early snapshot reads see the
	// hardware before the first bus round-trip lands.
	s.snapshot.Available = s.enabled
	return s
}

// Enabled reports whether a battery device was found at startup.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Start connects to the system bus and begins tracking. A host
// without a battery makes this a no-op.
func (s *Service) Start() error {
	if !s.enabled {
		s.log.Warn("no battery device found, service disabled")
		return nil
	}

	conn, err := services.SystemBus()
	if err != nil {
		return fmt.Errorf("system bus: %w", err)
	}
	s.conn = conn

	ownerSub, err := services.WatchNameOwner(conn, s.loop, upowerService, func(owner string) {
		if owner == "" {
			s.setUnavailable()
			return
		}
		s.refresh()
	})
	if err != nil {
		return fmt.Errorf("watch name owner: %w", err)
	}
	s.subs = append(s.subs, ownerSub)

	propsSub, err := services.Subscribe(conn, s.loop, func(*dbus.Signal) {
		s.refresh()
	},
		dbus.WithMatchSender(upowerService),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(displayPath),
	)
	if err != nil {
		return fmt.Errorf("subscribe properties: %w", err)
	}
	s.subs = append(s.subs, propsSub)

	if services.NameHasOwner(conn, upowerService) {
		s.refresh()
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

// OnChange registers a snapshot callback, replaying the current state.
func (s *Service) OnChange(fn func(Snapshot)) int {
	return s.callbacks.Register(fn, s.snapshot)
}

// Unregister removes a callback by its registration id.
func (s *Service) Unregister(id int) {
	s.callbacks.Unregister(id)
}

// Snapshot returns the current state.
func (s *Service) Snapshot() Snapshot {
	return s.snapshot
}

func (s *Service) setUnavailable() {
	if !s.snapshot.Available {
		return
	}
	s.snapshot = Snapshot{}
	s.callbacks.Notify(s.snapshot)
}

func (s *Service) refresh() {
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propTimeout)
		defer cancel()
		var props map[string]dbus.Variant
		err := conn.Object(upowerService, displayPath).
			CallWithContext(ctx, propsIface+".GetAll", 0, deviceIface).Store(&props)
		if err != nil {
			s.loop.Post(func() {
				s.log.Debug("property read failed", "error", err)
			})
			return
		}
		s.loop.Post(func() {
			s.applyProps(props)
		})
	}()
}

func (s *Service) applyProps(props map[string]dbus.Variant) {
	next := Snapshot{Available: true}

	energy := floatProp(props, "Energy")
	full := floatProp(props, "EnergyFull")
	switch {
	case energy != nil && full != nil && *full > 0:
		// The Percentage property rounds; Energy/EnergyFull keeps the
		// fraction.
		p := clamp(*energy / *full * 100, 0, 100)
		next.Percent = &p
	default:
		next.Percent = floatProp(props, "Percentage")
	}

	if v, ok := props["State"]; ok {
		if state, ok := v.Value().(uint32); ok {
			next.State = &state
		}
	}
	next.EnergyRate = floatProp(props, "EnergyRate")
	next.TimeToEmpty = int64Prop(props, "TimeToEmpty")
	next.TimeToFull = int64Prop(props, "TimeToFull")

	if s.snapshot.equal(next) {
		return
	}
	s.snapshot = next
	s.callbacks.Notify(next)
}

func floatProp(props map[string]dbus.Variant, name string) *float64 {
	v, ok := props[name]
	if !ok {
		return nil
	}
	f, ok := v.Value().(float64)
	if !ok {
		return nil
	}
	return &f
}

func int64Prop(props map[string]dbus.Variant, name string) *int64 {
	v, ok := props[name]
	if !ok {
		return nil
	}
	n, ok := v.Value().(int64)
	if !ok {
		return nil
	}
	return &n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

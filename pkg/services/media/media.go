package media

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
	"github.com/vibepanel/vibepanel/pkg/services"
)

const (
	dbusName = "org.freedesktop.DBus"
	dbusPath = dbus.ObjectPath("/org/freedesktop/DBus")

	mprisPrefix = "org.mpris.MediaPlayer2."
	mprisPath   = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerIface = "org.mpris.MediaPlayer2.Player"
	propsIface  = "org.freedesktop.DBus.Properties"

	callTimeout = 5 * time.Second
	pollTimeout = time.Second

	positionPollPeriod = time.Second
	// Players such as YouTube Music report stale position data right
	// after a track or status change. Re-poll after a short settle.
	settleDelay = 100 * time.Millisecond
)

// Service monitors all MPRIS players and controls the active one. All
// state lives on the event loop; bus calls run on helper goroutines.
type Service struct {
	log  *slog.Logger
	loop *eventloop.Loop
	conn *dbus.Conn

	players map[string]*player
	subs    map[string]*services.Subscription

	active      string
	manual      string
	lastPlaying string

	callbacks services.Callbacks[Snapshot]

	nameSub    *services.Subscription
	pollCancel eventloop.CancelFunc
}

func New(log *slog.Logger, loop *eventloop.Loop) *Service {
	return &Service{
		log:     log.With("service", "media"),
		loop:    loop,
		players: make(map[string]*player),
		subs:    make(map[string]*services.Subscription),
	}
}

// Start connects to the session bus, watches for players appearing and
// disappearing, and discovers the ones already running.
func (s *Service) Start() error {
	conn, err := services.SessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}
	s.conn = conn

	sub, err := services.Subscribe(conn, s.loop, func(sig *dbus.Signal) {
		if len(sig.Body) < 3 {
			return
		}
		name, _ := sig.Body[0].(string)
		if !strings.HasPrefix(name, mprisPrefix) {
			return
		}
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)
		switch {
		case oldOwner == "" && newOwner != "":
			s.log.Debug("player appeared", "name", name)
			s.addPlayer(name)
		case oldOwner != "" && newOwner == "":
			s.log.Debug("player disappeared", "name", name)
			s.removePlayer(name)
		}
	},
		dbus.WithMatchSender(dbusName),
		dbus.WithMatchInterface(dbusName),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchObjectPath(dbusPath),
	)
	if err != nil {
		return fmt.Errorf("watch NameOwnerChanged: %w", err)
	}
	s.nameSub = sub

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		var names []string
		err := conn.Object(dbusName, dbusPath).
			CallWithContext(ctx, dbusName+".ListNames", 0).Store(&names)
		if err != nil {
			s.loop.Post(func() {
				s.log.Warn("name listing failed", "error", err)
			})
			return
		}
		s.loop.Post(func() {
			for _, name := range names {
				if strings.HasPrefix(name, mprisPrefix) {
					s.addPlayer(name)
				}
			}
		})
	}()

	return nil
}

// Stop drops all subscriptions and stops position polling.
func (s *Service) Stop() {
	s.stopPolling()
	if s.nameSub != nil {
		s.nameSub.Close()
		s.nameSub = nil
	}
	for _, sub := range s.subs {
		sub.Close()
	}
	s.subs = make(map[string]*services.Subscription)
	s.players = make(map[string]*player)
}

// OnChange registers a callback invoked with each new snapshot. The
// current snapshot is replayed immediately.
func (s *Service) OnChange(fn func(Snapshot)) int {
	return s.callbacks.Register(fn, s.buildSnapshot())
}

// Unregister removes a callback by its registration id.
func (s *Service) Unregister(id int) {
	s.callbacks.Unregister(id)
}

// Snapshot returns the state of the active player.
func (s *Service) Snapshot() Snapshot {
	return s.buildSnapshot()
}

// AvailablePlayers lists every connected player for the selector,
// sorted by bus name.
func (s *Service) AvailablePlayers() []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(s.players))
	for _, p := range s.players {
		infos = append(infos, PlayerInfo{
			BusName:    p.busName,
			PlayerName: p.playerName,
			Status:     p.status,
			Active:     p.busName == s.active,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].BusName < infos[j].BusName })
	return infos
}

// SelectPlayer pins the active player to a specific bus name.
func (s *Service) SelectPlayer(busName string) {
	if _, ok := s.players[busName]; !ok {
		s.log.Warn("cannot select unknown player", "name", busName)
		return
	}
	s.log.Debug("manual player selection", "name", busName)
	s.manual = busName
	s.updateActive()
	s.notify()
}

// SetAutoSelection returns to automatic player selection.
func (s *Service) SetAutoSelection() {
	s.manual = ""
	s.updateActive()
	s.notify()
}

// IsAutoSelection reports whether no manual selection is pinned.
func (s *Service) IsAutoSelection() bool {
	return s.manual == ""
}

// --- Player lifecycle ---

func (s *Service) addPlayer(busName string) {
	if _, ok := s.players[busName]; ok {
		return
	}

	id := playerIDFromBusName(busName)
	s.players[busName] = &player{
		busName:    busName,
		playerID:   id,
		playerName: capitalizeFirst(id),
	}

	sub, err := services.Subscribe(s.conn, s.loop, func(*dbus.Signal) {
		s.refreshPlayer(busName)
	},
		dbus.WithMatchSender(busName),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(mprisPath),
	)
	if err != nil {
		s.log.Warn("player signal subscription failed", "name", busName, "error", err)
	} else {
		s.subs[busName] = sub
	}

	s.refreshPlayer(busName)
}

func (s *Service) removePlayer(busName string) {
	if _, ok := s.players[busName]; !ok {
		return
	}
	delete(s.players, busName)
	if sub, ok := s.subs[busName]; ok {
		sub.Close()
		delete(s.subs, busName)
	}
	if s.manual == busName {
		s.manual = ""
	}
	s.updateActive()
	s.notify()
}

// refreshPlayer re-reads all player properties off-loop and applies
// them. GetAll keeps partial PropertiesChanged payloads consistent.
func (s *Service) refreshPlayer(busName string) {
	conn := s.conn
	if conn == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		var props map[string]dbus.Variant
		err := conn.Object(busName, mprisPath).
			CallWithContext(ctx, propsIface+".GetAll", 0, playerIface).Store(&props)
		if err != nil {
			return
		}
		s.loop.Post(func() {
			s.applyProperties(busName, props)
		})
	}()
}

func (s *Service) applyProperties(busName string, props map[string]dbus.Variant) {
	p, ok := s.players[busName]
	if !ok {
		return
	}

	oldStatus := p.status
	oldTrackID := p.metadata.TrackID
	oldTitle := p.metadata.Title

	if v, ok := props["PlaybackStatus"]; ok {
		str, _ := v.Value().(string)
		p.status = statusFromString(str)
	}
	if v, ok := props["Metadata"]; ok {
		if dict, ok := v.Value().(map[string]dbus.Variant); ok {
			p.metadata = parseMetadata(dict)
		}
	}
	p.canPlay = boolProp(props, "CanPlay", p.canPlay)
	p.canPause = boolProp(props, "CanPause", p.canPause)
	p.canGoNext = boolProp(props, "CanGoNext", p.canGoNext)
	p.canGoPrevious = boolProp(props, "CanGoPrevious", p.canGoPrevious)
	p.canSeek = boolProp(props, "CanSeek", p.canSeek)

	trackChanged := oldTrackID != p.metadata.TrackID ||
		(oldTitle != "" && p.metadata.Title != "" && oldTitle != p.metadata.Title)
	if trackChanged {
		p.position = 0
		p.trackGeneration++
	}

	statusChanged := p.status != oldStatus
	if p.status == StatusPlaying && oldStatus != StatusPlaying {
		s.lastPlaying = busName
	}

	if statusChanged || s.active == "" {
		s.updateActive()
	} else if busName == s.active && trackChanged {
		s.restartPolling()
	}

	s.notify()

	if trackChanged || statusChanged {
		s.loop.After(settleDelay, s.pollPosition)
	}
}

func boolProp(props map[string]dbus.Variant, name string, fallback bool) bool {
	v, ok := props[name]
	if !ok {
		return fallback
	}
	b, ok := v.Value().(bool)
	if !ok {
		return fallback
	}
	return b
}

// --- Active player selection ---

func (s *Service) updateActive() {
	next := ""
	if s.manual != "" {
		if _, ok := s.players[s.manual]; ok {
			next = s.manual
		} else {
			s.manual = ""
		}
	}
	if next == "" {
		next = selectBest(s.players, s.active, s.lastPlaying)
	}

	if next != s.active {
		if next != "" {
			s.log.Debug("active player changed", "name", next)
		}
		s.active = next
		s.restartPolling()
		return
	}

	// Same player, status may have flipped.
	if p, ok := s.players[s.active]; ok {
		if p.status == StatusPlaying {
			s.restartPolling()
		} else {
			s.stopPolling()
		}
	}
}

// --- Position polling ---

func (s *Service) restartPolling() {
	s.stopPolling()
	p, ok := s.players[s.active]
	if !ok {
		return
	}
	s.pollPosition()
	if p.status != StatusPlaying {
		return
	}
	s.pollCancel = s.loop.Every(positionPollPeriod, func() {
		p, ok := s.players[s.active]
		if !ok || p.status != StatusPlaying {
			s.stopPolling()
			return
		}
		s.pollPosition()
	})
}

func (s *Service) stopPolling() {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}

// pollPosition fetches Position off-loop. The reply is dropped if the
// active player or track changed while the call was in flight.
func (s *Service) pollPosition() {
	p, ok := s.players[s.active]
	if !ok || s.conn == nil {
		return
	}
	busName := s.active
	generation := p.trackGeneration
	conn := s.conn

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
		defer cancel()
		var v dbus.Variant
		err := conn.Object(busName, mprisPath).
			CallWithContext(ctx, propsIface+".Get", 0, playerIface, "Position").Store(&v)
		if err != nil {
			return
		}
		position, ok := v.Value().(int64)
		if !ok {
			return
		}
		s.loop.Post(func() {
			s.applyPosition(busName, generation, position)
		})
	}()
}

func (s *Service) applyPosition(busName string, generation uint64, position int64) {
	if busName != s.active {
		return
	}
	p, ok := s.players[busName]
	if !ok || p.trackGeneration != generation {
		return
	}
	if p.position != position {
		p.position = position
		s.notify()
	}
}

// --- Snapshot ---

func (s *Service) buildSnapshot() Snapshot {
	p, ok := s.players[s.active]
	if !ok {
		return Snapshot{Available: len(s.players) > 0}
	}
	return Snapshot{
		Available:     true,
		PlayerName:    p.playerName,
		PlayerID:      p.playerID,
		Status:        p.status,
		Metadata:      p.metadata,
		Position:      p.position,
		CanPlay:       p.canPlay,
		CanPause:      p.canPause,
		CanGoNext:     p.canGoNext,
		CanGoPrevious: p.canGoPrevious,
		CanSeek:       p.canSeek,
	}
}

func (s *Service) notify() {
	s.callbacks.Notify(s.buildSnapshot())
}

// --- Playback control ---

// PlayPause toggles playback on the active player.
func (s *Service) PlayPause() { s.callPlayerMethod("PlayPause") }

// Next skips to the next track.
func (s *Service) Next() { s.callPlayerMethod("Next") }

// Previous goes back a track.
func (s *Service) Previous() { s.callPlayerMethod("Previous") }

// SetPosition seeks to an absolute position in microseconds. The
// snapshot is updated optimistically so the UI does not jump back
// while the player catches up.
func (s *Service) SetPosition(positionUs int64) {
	p, ok := s.players[s.active]
	if !ok || p.metadata.TrackID == "" {
		return
	}
	trackID := p.metadata.TrackID
	if !dbus.ObjectPath(trackID).IsValid() {
		s.log.Warn("invalid track id for seek", "trackid", trackID)
		return
	}

	p.position = positionUs
	s.notify()

	busName := s.active
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		err := conn.Object(busName, mprisPath).
			CallWithContext(ctx, playerIface+".SetPosition", 0,
				dbus.ObjectPath(trackID), positionUs).Err
		if err != nil {
			s.loop.Post(func() {
				s.log.Warn("seek failed", "error", err)
			})
		}
	}()
}

func (s *Service) callPlayerMethod(method string) {
	if s.conn == nil || s.active == "" {
		return
	}
	busName := s.active
	conn := s.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		err := conn.Object(busName, mprisPath).
			CallWithContext(ctx, playerIface+"."+method, 0).Err
		if err != nil {
			s.loop.Post(func() {
				s.log.Warn("player call failed", "method", method, "error", err)
			})
		}
	}()
}

package media

import (
	"io"
	"log/slog"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService() *Service {
	return New(discardLogger(), eventloop.New(discardLogger()))
}

// --- Parsing helpers ---

func TestStatusFromString(t *testing.T) {
	tests := []struct {
		in   string
		want PlaybackStatus
	}{
		{"Playing", StatusPlaying},
		{"Paused", StatusPaused},
		{"Stopped", StatusStopped},
		{"Unknown", StatusStopped},
		{"", StatusStopped},
	}
	for _, tt := range tests {
		if got := statusFromString(tt.in); got != tt.want {
			t.Errorf("statusFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPlayerIDFromBusName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"org.mpris.MediaPlayer2.spotify", "spotify"},
		{"org.mpris.MediaPlayer2.firefox.instance123", "firefox"},
		{"org.mpris.MediaPlayer2.chromium.instance_1_22", "chromium"},
		{"com.example.NotMpris", "com.example.NotMpris"},
	}
	for _, tt := range tests {
		if got := playerIDFromBusName(tt.in); got != tt.want {
			t.Errorf("playerIDFromBusName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCapitalizeFirst(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"spotify", "Spotify"},
		{"Firefox", "Firefox"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := capitalizeFirst(tt.in); got != tt.want {
			t.Errorf("capitalizeFirst(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0:00"},
		{30_000_000, "0:30"},
		{90_000_000, "1:30"},
		{3_661_000_000, "1:01:01"},
		{-1000, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMetadataArtistVariants(t *testing.T) {
	meta := parseMetadata(map[string]dbus.Variant{
		"xesam:artist": dbus.MakeVariant([]string{"First", "Second"}),
	})
	if meta.Artist != "First, Second" {
		t.Errorf("Artist = %q, want %q", meta.Artist, "First, Second")
	}

	meta = parseMetadata(map[string]dbus.Variant{
		"xesam:artist": dbus.MakeVariant("Solo"),
	})
	if meta.Artist != "Solo" {
		t.Errorf("Artist = %q, want %q", meta.Artist, "Solo")
	}
}

func TestParseMetadataLengthVariants(t *testing.T) {
	meta := parseMetadata(map[string]dbus.Variant{
		"mpris:length": dbus.MakeVariant(int64(240_000_000)),
	})
	if meta.Length != 240_000_000 {
		t.Errorf("Length = %d, want 240000000", meta.Length)
	}

	meta = parseMetadata(map[string]dbus.Variant{
		"mpris:length": dbus.MakeVariant(uint64(180_000_000)),
	})
	if meta.Length != 180_000_000 {
		t.Errorf("Length = %d, want 180000000", meta.Length)
	}
}

func TestParseMetadataTrackIDVariants(t *testing.T) {
	meta := parseMetadata(map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/org/mpris/Track/1")),
	})
	if meta.TrackID != "/org/mpris/Track/1" {
		t.Errorf("TrackID = %q, want %q", meta.TrackID, "/org/mpris/Track/1")
	}

	meta = parseMetadata(map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant("/track/2"),
	})
	if meta.TrackID != "/track/2" {
		t.Errorf("TrackID = %q, want %q", meta.TrackID, "/track/2")
	}
}

func TestParseMetadataFullTrack(t *testing.T) {
	meta := parseMetadata(map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Song"),
		"xesam:album":  dbus.MakeVariant("Album"),
		"mpris:artUrl": dbus.MakeVariant("file:///art.png"),
		"xesam:url":    dbus.MakeVariant("https://example.com/track"),
	})
	if meta.Title != "Song" || meta.Album != "Album" {
		t.Errorf("Title/Album = %q/%q, want Song/Album", meta.Title, meta.Album)
	}
	if meta.ArtURL != "file:///art.png" {
		t.Errorf("ArtURL = %q", meta.ArtURL)
	}
	if meta.URL != "https://example.com/track" {
		t.Errorf("URL = %q", meta.URL)
	}
}

// --- Selection ---

func playerSet(players ...*player) map[string]*player {
	m := make(map[string]*player)
	for _, p := range players {
		m[p.busName] = p
	}
	return m
}

func TestSelectBestPrefersLastPlaying(t *testing.T) {
	players := playerSet(
		&player{busName: "a", status: StatusPlaying},
		&player{busName: "b", status: StatusPlaying},
	)
	if got := selectBest(players, "", "b"); got != "b" {
		t.Errorf("selectBest = %q, want last playing b", got)
	}
}

func TestSelectBestAnyPlaying(t *testing.T) {
	players := playerSet(
		&player{busName: "a", status: StatusPaused},
		&player{busName: "b", status: StatusPlaying},
	)
	if got := selectBest(players, "a", ""); got != "b" {
		t.Errorf("selectBest = %q, want playing b", got)
	}
}

func TestSelectBestLastPlayingPaused(t *testing.T) {
	players := playerSet(
		&player{busName: "a", status: StatusPaused, metadata: Metadata{Title: "x"}},
		&player{busName: "b", status: StatusPaused, metadata: Metadata{Title: "y"}},
	)
	if got := selectBest(players, "a", "b"); got != "b" {
		t.Errorf("selectBest = %q, want last playing paused b", got)
	}
}

func TestSelectBestKeepsCurrentPaused(t *testing.T) {
	players := playerSet(
		&player{busName: "a", status: StatusPaused, metadata: Metadata{Title: "x"}},
		&player{busName: "b", status: StatusPaused, metadata: Metadata{Title: "y"}},
	)
	if got := selectBest(players, "b", ""); got != "b" {
		t.Errorf("selectBest = %q, want current b kept", got)
	}
}

func TestSelectBestPausedWithTrackOverStopped(t *testing.T) {
	players := playerSet(
		&player{busName: "a", status: StatusStopped},
		&player{busName: "b", status: StatusPaused, metadata: Metadata{Title: "y"}},
	)
	if got := selectBest(players, "a", ""); got != "b" {
		t.Errorf("selectBest = %q, want paused-with-track b", got)
	}
}

func TestSelectBestKeepsCurrentFallback(t *testing.T) {
	players := playerSet(
		&player{busName: "a", status: StatusStopped},
		&player{busName: "b", status: StatusStopped},
	)
	if got := selectBest(players, "b", ""); got != "b" {
		t.Errorf("selectBest = %q, want current b kept", got)
	}
}

func TestSelectBestEmpty(t *testing.T) {
	if got := selectBest(nil, "a", "b"); got != "" {
		t.Errorf("selectBest on empty = %q, want empty", got)
	}
}

// --- Property application ---

func props(status, title, trackID string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(status),
		"Metadata": dbus.MakeVariant(map[string]dbus.Variant{
			"xesam:title":   dbus.MakeVariant(title),
			"mpris:trackid": dbus.MakeVariant(trackID),
		}),
		"CanPlay":  dbus.MakeVariant(true),
		"CanPause": dbus.MakeVariant(true),
	}
}

func seedPlayer(s *Service, busName string) *player {
	id := playerIDFromBusName(busName)
	p := &player{busName: busName, playerID: id, playerName: capitalizeFirst(id)}
	s.players[busName] = p
	return p
}

func TestApplyPropertiesTrackChangeResetsPosition(t *testing.T) {
	s := testService()
	bus := "org.mpris.MediaPlayer2.spotify"
	p := seedPlayer(s, bus)

	s.applyProperties(bus, props("Playing", "First", "/track/1"))
	p.position = 42_000_000
	gen := p.trackGeneration

	s.applyProperties(bus, props("Playing", "Second", "/track/2"))

	if p.position != 0 {
		t.Errorf("position = %d, want 0 after track change", p.position)
	}
	if p.trackGeneration != gen+1 {
		t.Errorf("trackGeneration = %d, want %d", p.trackGeneration, gen+1)
	}
}

func TestApplyPropertiesSameTrackKeepsPosition(t *testing.T) {
	s := testService()
	bus := "org.mpris.MediaPlayer2.spotify"
	p := seedPlayer(s, bus)

	s.applyProperties(bus, props("Playing", "First", "/track/1"))
	p.position = 42_000_000
	gen := p.trackGeneration

	s.applyProperties(bus, props("Paused", "First", "/track/1"))

	if p.position != 42_000_000 {
		t.Errorf("position = %d, want preserved", p.position)
	}
	if p.trackGeneration != gen {
		t.Errorf("trackGeneration = %d, want unchanged %d", p.trackGeneration, gen)
	}
}

func TestApplyPropertiesTracksLastPlaying(t *testing.T) {
	s := testService()
	busA := "org.mpris.MediaPlayer2.spotify"
	busB := "org.mpris.MediaPlayer2.firefox"
	seedPlayer(s, busA)
	seedPlayer(s, busB)

	s.applyProperties(busA, props("Playing", "One", "/track/1"))
	s.applyProperties(busB, props("Playing", "Two", "/track/2"))

	if s.lastPlaying != busB {
		t.Errorf("lastPlaying = %q, want %q", s.lastPlaying, busB)
	}
	if s.active != busB {
		t.Errorf("active = %q, want newly playing %q", s.active, busB)
	}
}

func TestApplyPropertiesSwitchesToPlayingPlayer(t *testing.T) {
	s := testService()
	busA := "org.mpris.MediaPlayer2.spotify"
	busB := "org.mpris.MediaPlayer2.firefox"
	seedPlayer(s, busA)
	seedPlayer(s, busB)

	s.applyProperties(busA, props("Paused", "One", "/track/1"))
	if s.active != busA {
		t.Fatalf("active = %q, want %q", s.active, busA)
	}

	s.applyProperties(busB, props("Playing", "Two", "/track/2"))
	if s.active != busB {
		t.Errorf("active = %q, want playing player %q", s.active, busB)
	}
}

func TestManualSelectionSticks(t *testing.T) {
	s := testService()
	busA := "org.mpris.MediaPlayer2.spotify"
	busB := "org.mpris.MediaPlayer2.firefox"
	seedPlayer(s, busA)
	seedPlayer(s, busB)
	s.applyProperties(busA, props("Paused", "One", "/track/1"))

	s.SelectPlayer(busA)
	s.applyProperties(busB, props("Playing", "Two", "/track/2"))

	if s.active != busA {
		t.Errorf("active = %q, want manual selection %q", s.active, busA)
	}
	if s.IsAutoSelection() {
		t.Error("IsAutoSelection() = true with manual selection set")
	}
}

func TestRemovePlayerClearsManualSelection(t *testing.T) {
	s := testService()
	bus := "org.mpris.MediaPlayer2.spotify"
	seedPlayer(s, bus)
	s.SelectPlayer(bus)

	s.removePlayer(bus)

	if !s.IsAutoSelection() {
		t.Error("manual selection not cleared after player removal")
	}
	if s.active != "" {
		t.Errorf("active = %q, want empty", s.active)
	}
	if s.Snapshot().Available {
		t.Error("snapshot still available with no players")
	}
}

// --- Position replies ---

func TestApplyPositionStaleGenerationDropped(t *testing.T) {
	s := testService()
	bus := "org.mpris.MediaPlayer2.spotify"
	p := seedPlayer(s, bus)
	s.active = bus
	p.trackGeneration = 3

	s.applyPosition(bus, 2, 99_000_000)

	if p.position != 0 {
		t.Errorf("position = %d, want stale reply dropped", p.position)
	}
}

func TestApplyPositionWrongPlayerDropped(t *testing.T) {
	s := testService()
	busA := "org.mpris.MediaPlayer2.spotify"
	busB := "org.mpris.MediaPlayer2.firefox"
	pA := seedPlayer(s, busA)
	seedPlayer(s, busB)
	s.active = busB

	s.applyPosition(busA, 0, 99_000_000)

	if pA.position != 0 {
		t.Errorf("position = %d, want reply for inactive player dropped", pA.position)
	}
}

func TestApplyPositionUpdates(t *testing.T) {
	s := testService()
	bus := "org.mpris.MediaPlayer2.spotify"
	p := seedPlayer(s, bus)
	s.active = bus

	s.applyPosition(bus, 0, 17_000_000)

	if p.position != 17_000_000 {
		t.Errorf("position = %d, want 17000000", p.position)
	}
	if s.Snapshot().Position != 17_000_000 {
		t.Errorf("snapshot position = %d, want 17000000", s.Snapshot().Position)
	}
}

// --- Snapshot ---

func TestSnapshotNoActivePlayer(t *testing.T) {
	s := testService()
	snap := s.Snapshot()
	if snap.Available {
		t.Error("Available = true with no players")
	}

	seedPlayer(s, "org.mpris.MediaPlayer2.spotify")
	snap = s.Snapshot()
	if !snap.Available {
		t.Error("Available = false with a discovered player")
	}
	if snap.PlayerName != "" {
		t.Errorf("PlayerName = %q, want empty with no active player", snap.PlayerName)
	}
}

func TestAvailablePlayersSorted(t *testing.T) {
	s := testService()
	seedPlayer(s, "org.mpris.MediaPlayer2.spotify")
	seedPlayer(s, "org.mpris.MediaPlayer2.firefox")
	s.active = "org.mpris.MediaPlayer2.spotify"

	infos := s.AvailablePlayers()
	if len(infos) != 2 {
		t.Fatalf("len = %d, want 2", len(infos))
	}
	if infos[0].BusName != "org.mpris.MediaPlayer2.firefox" {
		t.Errorf("first = %q, want firefox entry", infos[0].BusName)
	}
	if !infos[1].Active || infos[0].Active {
		t.Error("active flag not set on spotify entry only")
	}
}

package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vibepanel/vibepanel/pkg/services/battery"
	"github.com/vibepanel/vibepanel/pkg/services/media"
	"github.com/vibepanel/vibepanel/pkg/services/network"
	"github.com/vibepanel/vibepanel/pkg/services/niri"
	"github.com/vibepanel/vibepanel/pkg/services/sysinfo"
	"github.com/vibepanel/vibepanel/pkg/services/vpn"
)

// helper to send a message through Update and return the updated Model.
func monitorUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func durationHours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func readyModel() Model {
	m, _ := monitorUpdate(New(), tea.WindowSizeMsg{Width: 80, Height: 40})
	return m
}

// --- Model state ---

func TestNotReadyUntilWindowSize(t *testing.T) {
	m := New()
	if m.ready {
		t.Error("expected not ready before WindowSizeMsg")
	}
	view := m.View()
	if !strings.Contains(view, "starting") {
		t.Errorf("expected starting placeholder, got %q", view)
	}

	m, _ = monitorUpdate(m, tea.WindowSizeMsg{Width: 80, Height: 40})
	if !m.ready {
		t.Error("expected ready after WindowSizeMsg")
	}
	if m.width != 80 || m.height != 40 {
		t.Errorf("expected 80x40, got %dx%d", m.width, m.height)
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		m := readyModel()
		var msg tea.KeyMsg
		switch key {
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		_, cmd := monitorUpdate(m, msg)
		if cmd == nil {
			t.Errorf("expected quit command for key %q", key)
			continue
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("expected QuitMsg for key %q", key)
		}
	}
}

func TestOtherKeysIgnored(t *testing.T) {
	m := readyModel()
	_, cmd := monitorUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if cmd != nil {
		t.Error("expected no command for unbound key")
	}
}

func TestSnapshotMessagesStored(t *testing.T) {
	m := readyModel()

	m, _ = monitorUpdate(m, SysinfoMsg{Snapshot: sysinfo.Snapshot{CPUPercent: 42.5, Ready: true}})
	if m.sysinfo.CPUPercent != 42.5 {
		t.Errorf("sysinfo not stored: %+v", m.sysinfo)
	}

	m, _ = monitorUpdate(m, NetworkMsg{Snapshot: network.Snapshot{Connected: true, SSID: "Home"}})
	if m.network.SSID != "Home" {
		t.Errorf("network not stored: %+v", m.network)
	}

	m, _ = monitorUpdate(m, MediaMsg{Snapshot: media.Snapshot{Available: true, PlayerName: "Spotify"}})
	if m.media.PlayerName != "Spotify" {
		t.Errorf("media not stored: %+v", m.media)
	}
}

// --- Rendering ---

func TestViewSystemSection(t *testing.T) {
	m := readyModel()
	m, _ = monitorUpdate(m, SysinfoMsg{Snapshot: sysinfo.Snapshot{
		CPUPercent: 12.3,
		CPUCount:   8,
		MemTotal:   16 * 1024 * 1024 * 1024,
		MemUsed:    4 * 1024 * 1024 * 1024,
		MemPercent: 25.0,
		Load1:      0.5,
		Ready:      true,
	}})
	view := m.View()
	if !strings.Contains(view, "12%") {
		t.Errorf("expected cpu percent in view:\n%s", view)
	}
	if !strings.Contains(view, "8 cores") {
		t.Errorf("expected core count in view:\n%s", view)
	}
	if !strings.Contains(view, "4.0G / 16.0G") {
		t.Errorf("expected memory usage in view:\n%s", view)
	}
}

func TestViewNetworkConnected(t *testing.T) {
	enabled := true
	m := readyModel()
	m, _ = monitorUpdate(m, NetworkMsg{Snapshot: network.Snapshot{
		Available:   true,
		WifiEnabled: &enabled,
		Connected:   true,
		SSID:        "CoffeeShop",
		Strength:    87,
	}})
	view := m.View()
	if !strings.Contains(view, "CoffeeShop (87%)") {
		t.Errorf("expected ssid with strength:\n%s", view)
	}
}

func TestViewNetworkUnavailable(t *testing.T) {
	m := readyModel()
	view := m.View()
	if !strings.Contains(view, "NetworkManager unavailable") {
		t.Errorf("expected unavailable notice:\n%s", view)
	}
}

func TestViewVPNConnections(t *testing.T) {
	m := readyModel()
	m, _ = monitorUpdate(m, VPNMsg{Snapshot: vpn.Snapshot{
		Available: true,
		Connections: []vpn.Connection{
			{Name: "wg-home", Active: true, State: vpn.StateActivated},
			{Name: "office", Active: false},
		},
	}})
	view := m.View()
	if !strings.Contains(view, "wg-home") || !strings.Contains(view, "activated") {
		t.Errorf("expected active vpn row:\n%s", view)
	}
	if !strings.Contains(view, "office") || !strings.Contains(view, "inactive") {
		t.Errorf("expected inactive vpn row:\n%s", view)
	}
}

func TestViewMediaTrack(t *testing.T) {
	m := readyModel()
	m, _ = monitorUpdate(m, MediaMsg{Snapshot: media.Snapshot{
		Available:  true,
		PlayerName: "Spotify",
		Status:     media.StatusPlaying,
		Metadata: media.Metadata{
			Title:  "Song",
			Artist: "Artist",
			Length: 185_000_000,
		},
		Position: 65_000_000,
	}})
	view := m.View()
	if !strings.Contains(view, "Artist - Song") {
		t.Errorf("expected track line:\n%s", view)
	}
	if !strings.Contains(view, "1:05 / 3:05") {
		t.Errorf("expected position line:\n%s", view)
	}
}

func TestViewBatteryHiddenWhenAbsent(t *testing.T) {
	m := readyModel()
	if strings.Contains(m.View(), "Battery") {
		t.Error("battery section should be hidden without a battery")
	}
}

func TestViewBatteryCharging(t *testing.T) {
	pct := 73.0
	st := uint32(battery.StateCharging)
	ttf := int64(45 * 60)
	m := readyModel()
	m, _ = monitorUpdate(m, BatteryMsg{Snapshot: battery.Snapshot{
		Available:  true,
		Percent:    &pct,
		State:      &st,
		TimeToFull: &ttf,
	}})
	view := m.View()
	if !strings.Contains(view, "73% (charging)") {
		t.Errorf("expected charge row:\n%s", view)
	}
	if !strings.Contains(view, "45m") {
		t.Errorf("expected time to full:\n%s", view)
	}
}

func TestViewWorkspaces(t *testing.T) {
	snap := niri.NewWorkspaceSnapshot()
	snap.ActiveWorkspace[2] = true
	snap.OccupiedWorkspaces[1] = true
	snap.OccupiedWorkspaces[2] = true
	snap.WindowCounts[1] = 3
	snap.WindowCounts[2] = 1
	m := readyModel()
	m, _ = monitorUpdate(m, WorkspaceMsg{Snapshot: snap})
	m, _ = monitorUpdate(m, WindowMsg{Window: niri.WindowInfo{Title: "editor", AppID: "dev.zed.Zed"}})
	view := m.View()
	if !strings.Contains(view, "1(3)") {
		t.Errorf("expected occupied workspace with count:\n%s", view)
	}
	if !strings.Contains(view, "[2(1)]") {
		t.Errorf("expected active workspace brackets:\n%s", view)
	}
	if !strings.Contains(view, "editor") {
		t.Errorf("expected focused window title:\n%s", view)
	}
}

// --- Formatting helpers ---

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512 * 1024 * 1024, "512M"},
		{2 * 1024 * 1024 * 1024, "2.0G"},
		{1536 * 1024 * 1024, "1.5G"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0.5, "30m"},
		{5.25, "5h 15m"},
		{49.0, "2d 1h 0m"},
	}
	for _, tt := range tests {
		d := durationHours(tt.hours)
		if got := formatUptime(d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", d, got, tt.want)
		}
	}
}

func TestMeterClampsAndLabels(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{0, "  0%"},
		{50, " 50%"},
		{100, "100%"},
		{150, "100%"},
		{-5, "  0%"},
	}
	for _, tt := range tests {
		got := meter(tt.percent)
		if !strings.HasSuffix(got, tt.want) {
			t.Errorf("meter(%v) = %q, want suffix %q", tt.percent, got, tt.want)
		}
	}
}

func TestMeterFillProportional(t *testing.T) {
	full := meter(100)
	if !strings.Contains(full, strings.Repeat("█", meterWidth)) {
		t.Errorf("expected full bar at 100%%: %q", full)
	}
	empty := meter(0)
	if strings.Contains(empty, "█") {
		t.Errorf("expected no fill at 0%%: %q", empty)
	}
	half := meter(50)
	if !strings.Contains(half, strings.Repeat("█", meterWidth/2)) {
		t.Errorf("expected half bar at 50%%: %q", half)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a very long window title", 10); got != "a very ..." {
		t.Errorf("got %q", got)
	}
}

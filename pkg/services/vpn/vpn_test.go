package vpn

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
	"github.com/vibepanel/vibepanel/pkg/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(t *testing.T) *Service {
	t.Helper()
	statePath := filepath.Join(t.TempDir(), "state.json")
	return New(discardLogger(), eventloop.New(discardLogger()), statePath)
}

// --- State mapping ---

func TestStateFromNM(t *testing.T) {
	tests := []struct {
		in   uint32
		want State
	}{
		{0, StateUnknown},
		{1, StateActivating},
		{2, StateActivated},
		{3, StateDeactivating},
		{4, StateDeactivated},
		{99, StateUnknown},
	}
	for _, tt := range tests {
		if got := stateFromNM(tt.in); got != tt.want {
			t.Errorf("stateFromNM(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsVPNType(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"wireguard", true},
		{"vpn", true},
		{"802-11-wireless", false},
		{"802-3-ethernet", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isVPNType(tt.in); got != tt.want {
			t.Errorf("isVPNType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// --- Sorting ---

func TestSortConnectionsActiveFirst(t *testing.T) {
	conns := []Connection{
		{UUID: "c", Name: "Office"},
		{UUID: "b", Name: "Home", Active: true},
		{UUID: "a", Name: "Backup"},
	}
	sortConnections(conns, "")

	if conns[0].UUID != "b" {
		t.Errorf("first = %q, want active connection b", conns[0].UUID)
	}
}

func TestSortConnectionsPreferredSecond(t *testing.T) {
	conns := []Connection{
		{UUID: "c", Name: "Office"},
		{UUID: "b", Name: "Home", Active: true},
		{UUID: "a", Name: "Travel"},
	}
	sortConnections(conns, "a")

	want := []string{"b", "a", "c"}
	for i, uuid := range want {
		if conns[i].UUID != uuid {
			t.Errorf("conns[%d].UUID = %q, want %q", i, conns[i].UUID, uuid)
		}
	}
}

func TestSortConnectionsByNameCaseInsensitive(t *testing.T) {
	conns := []Connection{
		{UUID: "1", Name: "zebra"},
		{UUID: "2", Name: "Alpha"},
		{UUID: "3", Name: "mango"},
	}
	sortConnections(conns, "")

	want := []string{"Alpha", "mango", "zebra"}
	for i, name := range want {
		if conns[i].Name != name {
			t.Errorf("conns[%d].Name = %q, want %q", i, conns[i].Name, name)
		}
	}
}

// --- Primary selection ---

func TestPrimaryPrefersActive(t *testing.T) {
	snap := Snapshot{
		Connections: []Connection{
			{UUID: "a", Name: "First"},
			{UUID: "b", Name: "Second", Active: true},
		},
		PreferredUUID: "a",
	}
	got, ok := snap.Primary()
	if !ok || got.UUID != "b" {
		t.Errorf("Primary() = %+v, %v, want active connection b", got, ok)
	}
}

func TestPrimaryFallsBackToPreferred(t *testing.T) {
	snap := Snapshot{
		Connections: []Connection{
			{UUID: "a", Name: "First"},
			{UUID: "b", Name: "Second"},
		},
		PreferredUUID: "b",
	}
	got, ok := snap.Primary()
	if !ok || got.UUID != "b" {
		t.Errorf("Primary() = %+v, %v, want preferred connection b", got, ok)
	}
}

func TestPrimaryFallsBackToFirst(t *testing.T) {
	snap := Snapshot{
		Connections: []Connection{
			{UUID: "a", Name: "First"},
			{UUID: "b", Name: "Second"},
		},
	}
	got, ok := snap.Primary()
	if !ok || got.UUID != "a" {
		t.Errorf("Primary() = %+v, %v, want first connection a", got, ok)
	}
}

func TestPrimaryEmpty(t *testing.T) {
	var snap Snapshot
	if _, ok := snap.Primary(); ok {
		t.Error("Primary() on empty snapshot returned ok")
	}
}

// --- Refresh application ---

func TestApplyConnectionsUpdatesSnapshot(t *testing.T) {
	s := testService(t)
	s.refreshPending = true

	s.applyConnections([]Connection{
		{UUID: "a", Name: "Office", Active: true, State: StateActivated},
		{UUID: "b", Name: "Home"},
	})

	if s.refreshPending {
		t.Error("refreshPending not cleared after apply")
	}
	snap := s.Snapshot()
	if !snap.Available || !snap.Ready {
		t.Errorf("Available = %v, Ready = %v, want both true", snap.Available, snap.Ready)
	}
	if !snap.AnyActive || snap.ActiveCount != 1 {
		t.Errorf("AnyActive = %v, ActiveCount = %d, want true, 1", snap.AnyActive, snap.ActiveCount)
	}
	if snap.Connections[0].UUID != "a" {
		t.Errorf("first connection = %q, want active a", snap.Connections[0].UUID)
	}
}

func TestApplyConnectionsPersistsLastUsed(t *testing.T) {
	s := testService(t)

	s.applyConnections([]Connection{
		{UUID: "office-uuid", Name: "Office", Active: true, State: StateActivated},
	})

	if s.lastUsedUUID != "office-uuid" {
		t.Errorf("lastUsedUUID = %q, want %q", s.lastUsedUUID, "office-uuid")
	}
	if s.Snapshot().PreferredUUID != "office-uuid" {
		t.Errorf("PreferredUUID = %q, want %q", s.Snapshot().PreferredUUID, "office-uuid")
	}

	persisted, err := state.Load(s.statePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.VPN.LastUsedUUID != "office-uuid" {
		t.Errorf("persisted UUID = %q, want %q", persisted.VPN.LastUsedUUID, "office-uuid")
	}
}

func TestNewLoadsPersistedPreference(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	err := state.Save(statePath, &state.Persisted{
		VPN: state.VPNState{LastUsedUUID: "saved-uuid"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	s := New(discardLogger(), eventloop.New(discardLogger()), statePath)
	if s.Snapshot().PreferredUUID != "saved-uuid" {
		t.Errorf("PreferredUUID = %q, want %q", s.Snapshot().PreferredUUID, "saved-uuid")
	}
}

func TestUnavailablePreservesPreference(t *testing.T) {
	s := testService(t)
	s.applyConnections([]Connection{
		{UUID: "office-uuid", Name: "Office", Active: true, State: StateActivated},
	})

	s.setUnavailable()

	snap := s.Snapshot()
	if snap.Available || snap.Ready {
		t.Errorf("Available = %v, Ready = %v, want both false", snap.Available, snap.Ready)
	}
	if len(snap.Connections) != 0 {
		t.Errorf("Connections length = %d, want 0", len(snap.Connections))
	}
	if snap.PreferredUUID != "office-uuid" {
		t.Errorf("PreferredUUID = %q, want %q", snap.PreferredUUID, "office-uuid")
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	s := testService(t)
	s.applyConnections([]Connection{{UUID: "a", Name: "Office"}})

	snap := s.Snapshot()
	snap.Connections[0].Name = "mutated"

	if s.Snapshot().Connections[0].Name != "Office" {
		t.Error("snapshot clone shares backing array with service state")
	}
}

package network

import (
	"io"
	"log/slog"
	"testing"

	"github.com/vibepanel/vibepanel/pkg/eventloop"
)

func testService() *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, eventloop.New(log))
}

// --- Network list shaping ---

func TestDedupeNetworksMergesStrongest(t *testing.T) {
	nets := []WifiNetwork{
		{SSID: "home", Security: SecuritySecured, Strength: 40},
		{SSID: "home", Security: SecuritySecured, Strength: 70, Active: true},
		{SSID: "home", Security: SecuritySecured, Strength: 55, Known: true},
	}

	got := dedupeNetworks(nets)
	if len(got) != 1 {
		t.Fatalf("deduped length = %d, want 1", len(got))
	}
	n := got[0]
	if n.Strength != 70 {
		t.Errorf("strength = %d, want max 70", n.Strength)
	}
	if !n.Active || !n.Known {
		t.Errorf("flags = active:%v known:%v, want both true", n.Active, n.Known)
	}
}

func TestDedupeNetworksKeepsDistinctSecurity(t *testing.T) {
	nets := []WifiNetwork{
		{SSID: "cafe", Security: SecurityOpen, Strength: 50},
		{SSID: "cafe", Security: SecuritySecured, Strength: 60},
	}
	if got := dedupeNetworks(nets); len(got) != 2 {
		t.Errorf("deduped length = %d, want 2 (different security)", len(got))
	}
}

func TestSortNetworksGrouping(t *testing.T) {
	nets := []WifiNetwork{
		{SSID: "weak-other", Strength: 30},
		{SSID: "strong-other", Strength: 90},
		{SSID: "saved", Strength: 50, Known: true},
		{SSID: "current", Strength: 10, Active: true},
	}

	got := sortNetworks(nets)
	want := []string{"current", "saved", "strong-other", "weak-other"}
	for i, ssid := range want {
		if got[i].SSID != ssid {
			t.Errorf("sorted[%d] = %q, want %q", i, got[i].SSID, ssid)
		}
	}
}

func TestSortNetworksTiesBySSID(t *testing.T) {
	nets := []WifiNetwork{
		{SSID: "beta", Strength: 50},
		{SSID: "alpha", Strength: 50},
	}
	got := sortNetworks(nets)
	if got[0].SSID != "alpha" || got[1].SSID != "beta" {
		t.Errorf("tie order = %q, %q, want alpha first", got[0].SSID, got[1].SSID)
	}
}

func TestParseKnownConnections(t *testing.T) {
	output := "home:802-11-wireless\nwork:802-11-wireless\nlan:802-3-ethernet\nwg0:wireguard\n"
	got := parseKnownConnections(output)
	if !got["home"] || !got["work"] {
		t.Errorf("known = %v, want home and work", got)
	}
	if got["lan"] || got["wg0"] {
		t.Errorf("known = %v, non-wifi types should be excluded", got)
	}
}

// --- Scan state ---

func TestScanClearsOnNewerTimestamp(t *testing.T) {
	s := testService()
	s.scanInProgress = true
	old := int64(100)
	s.lastScan = &old

	// Same timestamp: scan still running.
	same := int64(100)
	s.applyNetworksRefreshed(nil, &same)
	if !s.snapshot.Scanning {
		t.Error("scan should remain in progress on stale timestamp")
	}

	// Newer timestamp: scan finished.
	newer := int64(200)
	s.applyNetworksRefreshed(nil, &newer)
	if s.snapshot.Scanning {
		t.Error("scan should clear on newer timestamp")
	}
}

func TestScanClearsOnMissingTimestamp(t *testing.T) {
	s := testService()
	s.scanInProgress = true

	s.applyNetworksRefreshed(nil, nil)
	if s.snapshot.Scanning {
		t.Error("scan should clear when no timestamp is reported")
	}
}

func TestRefreshMarksReady(t *testing.T) {
	s := testService()
	if s.snapshot.Ready {
		t.Fatal("snapshot should not start ready")
	}
	s.applyNetworksRefreshed([]WifiNetwork{{SSID: "home"}}, nil)
	if !s.snapshot.Ready {
		t.Error("first refresh should mark the snapshot ready")
	}
	if len(s.snapshot.Networks) != 1 {
		t.Errorf("network count = %d, want 1", len(s.snapshot.Networks))
	}
}

// --- Connection attempts ---

func TestRefreshPreservesConnectingSSID(t *testing.T) {
	s := testService()
	s.connectingSSID = "home"

	// A refresh showing the network active must not clear connecting
	// state; authentication may still be running.
	s.applyNetworksRefreshed([]WifiNetwork{{SSID: "home", Active: true}}, nil)
	if s.snapshot.ConnectingSSID != "home" {
		t.Errorf("connecting ssid = %q, want home", s.snapshot.ConnectingSSID)
	}
}

func TestFinishConnectionAttemptSuccess(t *testing.T) {
	s := testService()
	s.connectingSSID = "home"
	s.failedSSID = "old-failure"

	s.finishConnectionAttempt("home", true)
	if s.snapshot.ConnectingSSID != "" {
		t.Errorf("connecting ssid = %q, want cleared", s.snapshot.ConnectingSSID)
	}
	if s.snapshot.FailedSSID != "" {
		t.Errorf("failed ssid = %q, want cleared on success", s.snapshot.FailedSSID)
	}
}

func TestFinishConnectionAttemptFailure(t *testing.T) {
	s := testService()
	s.connectingSSID = "home"
	s.knownRefreshed = s.knownRefreshed.Add(1) // non-zero cache time

	s.finishConnectionAttempt("home", false)
	if s.snapshot.FailedSSID != "home" {
		t.Errorf("failed ssid = %q, want home", s.snapshot.FailedSSID)
	}
	if !s.knownRefreshed.IsZero() {
		t.Error("failed attempt should invalidate the known connections cache")
	}
}

func TestClearFailedState(t *testing.T) {
	s := testService()
	s.failedSSID = "home"
	s.snapshot.FailedSSID = "home"

	s.ClearFailedState()
	if s.snapshot.FailedSSID != "" {
		t.Errorf("failed ssid = %q, want cleared", s.snapshot.FailedSSID)
	}
}

// --- Radio state ---

func TestWifiDisabledClearsConnection(t *testing.T) {
	s := testService()
	enabled := true
	s.snapshot.WifiEnabled = &enabled
	s.snapshot.Connected = true
	s.snapshot.SSID = "home"
	s.snapshot.Strength = 80
	s.snapshot.Networks = []WifiNetwork{{SSID: "home", Active: true}}

	s.applyWifiEnabled(false)

	if s.snapshot.Connected || s.snapshot.SSID != "" {
		t.Error("disabling wifi should clear connection state")
	}
	if s.snapshot.Networks[0].Active {
		t.Error("disabling wifi should mark networks inactive")
	}
}

// --- Active access point ---

func TestApplyActiveAccessPoint(t *testing.T) {
	s := testService()

	notified := 0
	s.OnChange(func(Snapshot) { notified++ })
	notified = 0 // drop the replay

	s.applyActiveAP("home", 72)
	if !s.snapshot.Connected || s.snapshot.SSID != "home" || s.snapshot.Strength != 72 {
		t.Errorf("snapshot = connected:%v ssid:%q strength:%d, want home@72 connected",
			s.snapshot.Connected, s.snapshot.SSID, s.snapshot.Strength)
	}
	if notified != 1 {
		t.Errorf("notified %d times, want 1", notified)
	}
}

// Property reads off the bus happen on helper goroutines; the loop-side
// entry points must return immediately without touching the snapshot.
func TestPropertyRefreshEntryPointsDoNotMutateSynchronously(t *testing.T) {
	s := testService()
	before := s.Snapshot()

	s.updateNMFlags() // nil conn, no goroutine spawned
	s.updateState()   // no device, no-op

	after := s.Snapshot()
	if before.Connected != after.Connected || before.SSID != after.SSID {
		t.Error("refresh entry points mutated the snapshot synchronously")
	}
	if after.WifiEnabled != nil {
		t.Error("updateNMFlags without a bus must not set WifiEnabled")
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	s := testService()
	enabled := true
	s.snapshot.WifiEnabled = &enabled
	s.snapshot.Networks = []WifiNetwork{{SSID: "home"}}

	c := s.Snapshot()
	c.Networks[0].SSID = "mutated"
	*c.WifiEnabled = false

	if s.snapshot.Networks[0].SSID != "home" {
		t.Error("clone should not share the networks slice")
	}
	if !*s.snapshot.WifiEnabled {
		t.Error("clone should not share the WifiEnabled pointer")
	}
}

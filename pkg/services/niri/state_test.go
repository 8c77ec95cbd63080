package niri

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func decodeEvent(t *testing.T, raw string) *wireEvent {
	t.Helper()
	var ev wireEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return &ev
}

func testWorkspaces() string {
	return `{"WorkspacesChanged":{"workspaces":[
		{"id":1,"idx":1,"name":null,"output":"eDP-1","is_active":true,"is_focused":true,"is_urgent":false},
		{"id":2,"idx":2,"name":"web","output":"eDP-1","is_active":false,"is_focused":false,"is_urgent":false},
		{"id":3,"idx":1,"name":null,"output":"DP-1","is_active":true,"is_focused":false,"is_urgent":false}
	]}}`
}

func testWindows() string {
	return `{"WindowsChanged":{"windows":[
		{"id":10,"title":"editor","app_id":"dev.zed.Zed","workspace_id":1,"is_focused":true},
		{"id":11,"title":"terminal","app_id":"foot","workspace_id":1,"is_focused":false},
		{"id":12,"title":"browser","app_id":"firefox","workspace_id":2,"is_focused":false}
	]}}`
}

// --- Workspace projection ---

func TestProcessWorkspacesSnapshot(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))

	snap := p.snapshot
	if !snap.ActiveWorkspace[1] {
		t.Error("workspace 1 should be globally focused")
	}
	if len(snap.ActiveWorkspace) != 1 {
		t.Errorf("active workspace count = %d, want 1", len(snap.ActiveWorkspace))
	}
	if !snap.OccupiedWorkspaces[1] || !snap.OccupiedWorkspaces[2] {
		t.Error("all listed workspaces should be occupied")
	}

	edp := snap.PerOutput["eDP-1"]
	if edp == nil {
		t.Fatal("missing per-output state for eDP-1")
	}
	if !edp.ActiveWorkspace[1] || edp.ActiveWorkspace[2] {
		t.Errorf("eDP-1 active = %v, want only workspace 1", edp.ActiveWorkspace)
	}

	dp := snap.PerOutput["DP-1"]
	if dp == nil {
		t.Fatal("missing per-output state for DP-1")
	}
	if !dp.ActiveWorkspace[1] {
		t.Error("DP-1 workspace 1 should be active even though not focused")
	}
}

func TestWorkspaceListSortedByOutputThenID(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))

	if len(p.workspaces) != 3 {
		t.Fatalf("workspace count = %d, want 3", len(p.workspaces))
	}
	want := []struct {
		output string
		id     int32
		name   string
	}{
		{"DP-1", 1, "1"},
		{"eDP-1", 1, "1"},
		{"eDP-1", 2, "web"},
	}
	for i, w := range want {
		got := p.workspaces[i]
		if got.Output != w.output || got.ID != w.id || got.Name != w.name {
			t.Errorf("workspaces[%d] = %+v, want %+v", i, got, w)
		}
	}
}

func TestWindowCountsPerOutput(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))
	p.handleEvent(decodeEvent(t, testWindows()))

	if got := p.snapshot.WindowCounts[1]; got != 2 {
		t.Errorf("global count for workspace 1 = %d, want 2", got)
	}
	if got := p.snapshot.WindowCounts[2]; got != 1 {
		t.Errorf("global count for workspace 2 = %d, want 1", got)
	}
	edp := p.snapshot.PerOutput["eDP-1"]
	if got := edp.WindowCounts[1]; got != 2 {
		t.Errorf("eDP-1 count for workspace 1 = %d, want 2", got)
	}
}

func TestWorkspaceActivatedSwitchesActive(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))

	wsChanged, _ := p.handleEvent(decodeEvent(t, `{"WorkspaceActivated":{"id":2,"focused":true}}`))
	if !wsChanged {
		t.Error("activation of a new workspace should report change")
	}
	if !p.snapshot.ActiveWorkspace[2] || p.snapshot.ActiveWorkspace[1] {
		t.Errorf("active = %v, want only workspace 2", p.snapshot.ActiveWorkspace)
	}
	edp := p.snapshot.PerOutput["eDP-1"]
	if !edp.ActiveWorkspace[2] || edp.ActiveWorkspace[1] {
		t.Errorf("eDP-1 active = %v, want only workspace 2", edp.ActiveWorkspace)
	}

	// Re-activating the same workspace is not a change.
	wsChanged, _ = p.handleEvent(decodeEvent(t, `{"WorkspaceActivated":{"id":2,"focused":true}}`))
	if wsChanged {
		t.Error("re-activating the current workspace should not report change")
	}
}

func TestWorkspaceUrgency(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))

	wsChanged, _ := p.handleEvent(decodeEvent(t, `{"WorkspaceUrgencyChanged":{"id":2,"urgent":true}}`))
	if !wsChanged || !p.snapshot.UrgentWorkspaces[2] {
		t.Error("workspace 2 should become urgent")
	}

	wsChanged, _ = p.handleEvent(decodeEvent(t, `{"WorkspaceUrgencyChanged":{"id":2,"urgent":false}}`))
	if !wsChanged || p.snapshot.UrgentWorkspaces[2] {
		t.Error("workspace 2 urgency should clear")
	}

	// Clearing again is a no-op.
	wsChanged, _ = p.handleEvent(decodeEvent(t, `{"WorkspaceUrgencyChanged":{"id":2,"urgent":false}}`))
	if wsChanged {
		t.Error("clearing non-urgent workspace should not report change")
	}
}

// --- Window projection ---

func TestFocusedWindow(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))
	p.handleEvent(decodeEvent(t, testWindows()))

	if p.focused == nil {
		t.Fatal("expected a focused window")
	}
	if p.focused.Title != "editor" || p.focused.AppID != "dev.zed.Zed" {
		t.Errorf("focused = %+v, want editor window", p.focused)
	}
	if p.focused.WorkspaceID != 1 || p.focused.Output != "eDP-1" {
		t.Errorf("focused placement = ws %d on %q, want 1 on eDP-1", p.focused.WorkspaceID, p.focused.Output)
	}
}

func TestPerOutputWindowPrefersFocused(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))
	p.handleEvent(decodeEvent(t, testWindows()))

	info := p.perOutputWindow["eDP-1"]
	if info.Title != "editor" {
		t.Errorf("eDP-1 window = %q, want focused editor", info.Title)
	}

	// DP-1's active workspace has no windows: empty info, output set.
	info = p.perOutputWindow["DP-1"]
	if !info.IsEmpty() {
		t.Errorf("DP-1 window = %+v, want empty", info)
	}
	if info.Output != "DP-1" {
		t.Errorf("empty info output = %q, want DP-1", info.Output)
	}
}

func TestWindowFocusChanged(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))
	p.handleEvent(decodeEvent(t, testWindows()))

	_, winChanged := p.handleEvent(decodeEvent(t, `{"WindowFocusChanged":{"id":11}}`))
	if !winChanged {
		t.Error("focus change should report window change")
	}
	if p.focused == nil || p.focused.Title != "terminal" {
		t.Errorf("focused = %+v, want terminal", p.focused)
	}

	// Focus cleared entirely.
	p.handleEvent(decodeEvent(t, `{"WindowFocusChanged":{"id":null}}`))
	if p.focused != nil {
		t.Errorf("focused = %+v, want none", p.focused)
	}
}

func TestWindowClosedUpdatesCounts(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))
	p.handleEvent(decodeEvent(t, testWindows()))

	wsChanged, winChanged := p.handleEvent(decodeEvent(t, `{"WindowClosed":{"id":10}}`))
	if !wsChanged || !winChanged {
		t.Error("window close should report both changes")
	}
	if got := p.snapshot.WindowCounts[1]; got != 1 {
		t.Errorf("count for workspace 1 after close = %d, want 1", got)
	}
	if p.focused != nil {
		t.Errorf("focused = %+v, want none after closing focused window", p.focused)
	}
	// The remaining unfocused window takes over the output's display slot.
	if got := p.perOutputWindow["eDP-1"].Title; got != "terminal" {
		t.Errorf("eDP-1 window after close = %q, want terminal", got)
	}
}

func TestWindowOpenedMarksOccupied(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, `{"WorkspacesChanged":{"workspaces":[
		{"id":1,"idx":1,"name":null,"output":"eDP-1","is_active":true,"is_focused":true,"is_urgent":false}
	]}}`))

	// Seed a workspace mapping for a second workspace with no windows.
	p.idToIdx[5] = 3
	wsChanged, winChanged := p.handleEvent(decodeEvent(t, `{"WindowOpenedOrChanged":{"window":
		{"id":20,"title":"mail","app_id":"thunderbird","workspace_id":5,"is_focused":false}}}`))
	if !wsChanged {
		t.Error("opening on an unoccupied workspace should report workspace change")
	}
	if !winChanged {
		t.Error("window open should report window change")
	}
	if !p.snapshot.OccupiedWorkspaces[3] {
		t.Error("workspace 3 should become occupied")
	}
}

func TestWorkspaceActiveWindowChanged(t *testing.T) {
	p := newProjection()
	p.handleEvent(decodeEvent(t, testWorkspaces()))
	p.handleEvent(decodeEvent(t, testWindows()))

	_, winChanged := p.handleEvent(decodeEvent(t, `{"WorkspaceActiveWindowChanged":{"workspace_id":1,"active_window_id":11}}`))
	if !winChanged {
		t.Error("active window change should report window change")
	}
	if got := p.perOutputWindow["eDP-1"].Title; got != "terminal" {
		t.Errorf("eDP-1 window = %q, want terminal", got)
	}

	// Null active window empties the slot.
	p.handleEvent(decodeEvent(t, `{"WorkspaceActiveWindowChanged":{"workspace_id":1,"active_window_id":null}}`))
	if info := p.perOutputWindow["eDP-1"]; !info.IsEmpty() {
		t.Errorf("eDP-1 window = %+v, want empty", info)
	}
}

// --- Backend helpers ---

func TestListWorkspacesDefault(t *testing.T) {
	b := NewBackend(slog.New(slog.NewTextHandler(io.Discard, nil)))
	metas := b.ListWorkspaces()
	if len(metas) != 10 {
		t.Fatalf("default workspace count = %d, want 10", len(metas))
	}
	if metas[0].ID != 1 || metas[0].Name != "1" || metas[9].ID != 10 {
		t.Errorf("default workspaces = %+v", metas)
	}
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		in   int64
		want int64
	}{
		{1000, 1500},
		{1500, 2250},
		{20000, 30000},
		{30000, 30000},
	}
	for _, tt := range tests {
		got := nextBackoff(time.Duration(tt.in) * time.Millisecond)
		if want := time.Duration(tt.want) * time.Millisecond; got != want {
			t.Errorf("nextBackoff(%dms) = %v, want %v", tt.in, got, want)
		}
	}
}

// Package niri implements a compositor backend speaking Niri's socket IPC.
//
// Niri exposes a Unix socket at $NIRI_SOCKET with a newline-delimited JSON
// protocol: one-shot requests get a single reply, and an "EventStream"
// request turns the connection into a stream of state change events. This
// package maintains a projected view of workspaces and windows from that
// stream and notifies callbacks when the projection changes.
//
// Reference: https://github.com/YaLTeR/niri/wiki/IPC
package niri

// Output name contract: per-output keys and WindowInfo.Output use the
// compositor's connector names (e.g. "eDP-1", "DP-1") so that consumers can
// filter state per monitor.

// WorkspaceMeta is static metadata for a workspace, independent of whether
// it is active or has windows. Niri workspaces are per-monitor so Output is
// normally set; it is empty for placeholder workspaces.
type WorkspaceMeta struct {
	// ID is the 1-based per-output index.
	ID int32
	// Name is the display name, falling back to the index as a string.
	Name string
	// Output is the connector name this workspace belongs to.
	Output string
}

// PerOutputState holds workspace state specific to a single output.
type PerOutputState struct {
	// ActiveWorkspace holds the workspace IDs visible on this output.
	// Niri has exactly one, but the set form keeps parity with
	// compositors that show several tags at once.
	ActiveWorkspace map[int32]bool
	// OccupiedWorkspaces holds the workspace IDs that exist on this output.
	OccupiedWorkspaces map[int32]bool
	// WindowCounts maps workspace ID to window count on this output.
	WindowCounts map[int32]uint32
}

func newPerOutputState() *PerOutputState {
	return &PerOutputState{
		ActiveWorkspace:    make(map[int32]bool),
		OccupiedWorkspaces: make(map[int32]bool),
		WindowCounts:       make(map[int32]uint32),
	}
}

func (s *PerOutputState) clone() *PerOutputState {
	c := newPerOutputState()
	for id := range s.ActiveWorkspace {
		c.ActiveWorkspace[id] = true
	}
	for id := range s.OccupiedWorkspaces {
		c.OccupiedWorkspaces[id] = true
	}
	for id, n := range s.WindowCounts {
		c.WindowCounts[id] = n
	}
	return c
}

// WorkspaceSnapshot is a point-in-time view of workspace state across all
// outputs, replaced atomically when the compositor signals changes.
type WorkspaceSnapshot struct {
	// ActiveWorkspace holds the globally focused workspace IDs.
	ActiveWorkspace map[int32]bool
	// OccupiedWorkspaces holds the workspace IDs that have windows.
	OccupiedWorkspaces map[int32]bool
	// UrgentWorkspaces holds the workspace IDs marked urgent.
	UrgentWorkspaces map[int32]bool
	// WindowCounts maps workspace ID to global window count.
	WindowCounts map[int32]uint32
	// PerOutput maps connector name to that output's workspace state.
	PerOutput map[string]*PerOutputState
}

// NewWorkspaceSnapshot returns an empty snapshot with all maps allocated.
func NewWorkspaceSnapshot() WorkspaceSnapshot {
	return WorkspaceSnapshot{
		ActiveWorkspace:    make(map[int32]bool),
		OccupiedWorkspaces: make(map[int32]bool),
		UrgentWorkspaces:   make(map[int32]bool),
		WindowCounts:       make(map[int32]uint32),
		PerOutput:          make(map[string]*PerOutputState),
	}
}

// Clone deep-copies the snapshot so callbacks can hold it without racing
// against later updates.
func (s WorkspaceSnapshot) Clone() WorkspaceSnapshot {
	c := NewWorkspaceSnapshot()
	for id := range s.ActiveWorkspace {
		c.ActiveWorkspace[id] = true
	}
	for id := range s.OccupiedWorkspaces {
		c.OccupiedWorkspaces[id] = true
	}
	for id := range s.UrgentWorkspaces {
		c.UrgentWorkspaces[id] = true
	}
	for id, n := range s.WindowCounts {
		c.WindowCounts[id] = n
	}
	for name, state := range s.PerOutput {
		c.PerOutput[name] = state.clone()
	}
	return c
}

// WindowInfo describes the window shown for an output's active workspace.
// A zero WindowInfo with only Output set means the workspace is empty.
type WindowInfo struct {
	// Title is the window title, possibly empty.
	Title string
	// AppID is the application identifier (e.g. "firefox").
	AppID string
	// WorkspaceID is the workspace the window is on, 0 if unknown.
	WorkspaceID int32
	// Output is the connector name the window is on.
	Output string
}

// IsEmpty reports whether the info carries no meaningful window content.
func (w WindowInfo) IsEmpty() bool {
	return w.Title == "" && w.AppID == ""
}

// WorkspaceCallback receives a fresh snapshot whenever workspace state
// changes. Invoked on the event loop.
type WorkspaceCallback func(WorkspaceSnapshot)

// WindowCallback receives per-output active window updates. A WindowInfo
// with IsEmpty() true means no window is shown on that output.
type WindowCallback func(WindowInfo)

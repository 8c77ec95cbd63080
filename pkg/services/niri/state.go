package niri

import (
	"sort"
	"strconv"
)

type windowData struct {
	id          uint64
	title       string
	appID       string
	workspaceID *uint64
	isFocused   bool
}

// projection is the mutable view of compositor state built from Niri
// events. It is not goroutine safe; the backend serializes access.
type projection struct {
	snapshot   WorkspaceSnapshot
	focused    *WindowInfo
	workspaces []WorkspaceMeta
	// idToIdx maps Niri's u64 workspace ID to the 1-based per-output index.
	idToIdx map[uint64]int32
	// idToOutput maps Niri's u64 workspace ID to its output name.
	idToOutput map[uint64]string
	windows    map[uint64]*windowData
	// perOutputWindow tracks the window shown for each output's active
	// workspace, keyed by connector name.
	perOutputWindow map[string]WindowInfo
}

func newProjection() *projection {
	return &projection{
		snapshot:        NewWorkspaceSnapshot(),
		idToIdx:         make(map[uint64]int32),
		idToOutput:      make(map[uint64]string),
		windows:         make(map[uint64]*windowData),
		perOutputWindow: make(map[string]WindowInfo),
	}
}

// processWorkspaces rebuilds the workspace projection from a full list.
func (p *projection) processWorkspaces(workspaces []wireWorkspace) {
	p.workspaces = p.workspaces[:0]
	p.idToIdx = make(map[uint64]int32)
	p.idToOutput = make(map[uint64]string)
	p.snapshot = NewWorkspaceSnapshot()

	for _, ws := range workspaces {
		idx := ws.Idx
		if idx == 0 {
			idx = 1
		}
		name := itoa(idx)
		if ws.Name != nil {
			name = *ws.Name
		}
		output := ""
		if ws.Output != nil {
			output = *ws.Output
		}

		p.idToIdx[ws.ID] = idx
		if output != "" {
			p.idToOutput[ws.ID] = output
		}
		p.workspaces = append(p.workspaces, WorkspaceMeta{ID: idx, Name: name, Output: output})

		// Niri workspaces are dynamic, so every listed one counts as
		// occupied. Window counts are filled from the window cache.
		p.snapshot.OccupiedWorkspaces[idx] = true
		p.snapshot.WindowCounts[idx] = 0

		if ws.IsFocused {
			p.snapshot.ActiveWorkspace[idx] = true
		}
		if ws.IsUrgent {
			p.snapshot.UrgentWorkspaces[idx] = true
		}

		if output != "" {
			perOut := p.snapshot.PerOutput[output]
			if perOut == nil {
				perOut = newPerOutputState()
				p.snapshot.PerOutput[output] = perOut
			}
			perOut.OccupiedWorkspaces[idx] = true
			perOut.WindowCounts[idx] = 0
			// is_active means visible on this output; is_focused is global.
			if ws.IsActive {
				perOut.ActiveWorkspace[idx] = true
			}
		}
	}

	sort.Slice(p.workspaces, func(i, j int) bool {
		a, b := p.workspaces[i], p.workspaces[j]
		switch {
		case a.Output != "" && b.Output != "":
			if a.Output != b.Output {
				return a.Output < b.Output
			}
			return a.ID < b.ID
		case a.Output != "":
			return true
		case b.Output != "":
			return false
		default:
			return a.ID < b.ID
		}
	})

	p.updateWindowCounts()
}

// updateWindowCounts recomputes global and per-output window counts from
// the window cache.
func (p *projection) updateWindowCounts() {
	for idx := range p.snapshot.WindowCounts {
		p.snapshot.WindowCounts[idx] = 0
	}
	for _, perOut := range p.snapshot.PerOutput {
		for idx := range perOut.WindowCounts {
			perOut.WindowCounts[idx] = 0
		}
	}

	for _, win := range p.windows {
		if win.workspaceID == nil {
			continue
		}
		idx, ok := p.idToIdx[*win.workspaceID]
		if !ok {
			continue
		}
		p.snapshot.WindowCounts[idx]++

		// Indexes repeat across outputs, so route through the output map.
		if outName, ok := p.idToOutput[*win.workspaceID]; ok {
			if perOut := p.snapshot.PerOutput[outName]; perOut != nil {
				perOut.WindowCounts[idx]++
			}
		}
	}
}

// processWindows rebuilds the window cache from a full list.
func (p *projection) processWindows(windows []wireWindow) {
	p.windows = make(map[uint64]*windowData)
	for _, win := range windows {
		w := win
		p.windows[win.ID] = &windowData{
			id:          w.ID,
			title:       w.Title,
			appID:       w.AppID,
			workspaceID: w.WorkspaceID,
			isFocused:   w.IsFocused,
		}
	}
	p.updateWindowCounts()
	p.updateFocusedWindow()
	p.updatePerOutputWindows()
}

// updatePerOutputWindows recomputes the display window for each output's
// active workspace: the focused window on that workspace wins, otherwise
// any window there, otherwise an empty WindowInfo.
func (p *projection) updatePerOutputWindows() {
	for outName, perOut := range p.snapshot.PerOutput {
		var activeWsID *uint64
		for wsID, out := range p.idToOutput {
			if out != outName {
				continue
			}
			idx, ok := p.idToIdx[wsID]
			if ok && perOut.ActiveWorkspace[idx] {
				id := wsID
				activeWsID = &id
				break
			}
		}

		var best *windowData
		if activeWsID != nil {
			for _, win := range p.windows {
				if win.workspaceID == nil || *win.workspaceID != *activeWsID {
					continue
				}
				if win.isFocused {
					best = win
					break
				}
				if best == nil {
					best = win
				}
			}
		}

		info := WindowInfo{Output: outName}
		if best != nil {
			info.Title = best.title
			info.AppID = best.appID
			if idx, ok := p.idToIdx[*activeWsID]; ok {
				info.WorkspaceID = idx
			}
		}
		p.perOutputWindow[outName] = info
	}
}

// updateFocusedWindow recomputes the globally focused window. Returns true
// when it changed.
func (p *projection) updateFocusedWindow() bool {
	var next *WindowInfo
	for _, win := range p.windows {
		if !win.isFocused {
			continue
		}
		info := WindowInfo{Title: win.title, AppID: win.appID}
		if win.workspaceID != nil {
			if idx, ok := p.idToIdx[*win.workspaceID]; ok {
				info.WorkspaceID = idx
			}
			if out, ok := p.idToOutput[*win.workspaceID]; ok {
				info.Output = out
			}
		}
		next = &info
		break
	}

	changed := !windowInfoEqual(p.focused, next)
	p.focused = next
	return changed
}

func windowInfoEqual(a, b *WindowInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func itoa(n int32) string {
	return strconv.Itoa(int(n))
}

// updateSingleWindow merges one window into the cache. Returns true when
// the focused window changed as a result.
func (p *projection) updateSingleWindow(win wireWindow) bool {
	w := win
	p.windows[win.ID] = &windowData{
		id:          w.ID,
		title:       w.Title,
		appID:       w.AppID,
		workspaceID: w.WorkspaceID,
		isFocused:   w.IsFocused,
	}
	p.updateWindowCounts()
	if win.IsFocused {
		return p.updateFocusedWindow()
	}
	return false
}

// handleEvent applies one stream event to the projection. Returns whether
// workspace state and window state changed, driving callback notification.
func (p *projection) handleEvent(ev *wireEvent) (wsChanged, winChanged bool) {
	switch {
	case ev.WorkspacesChanged != nil:
		p.processWorkspaces(ev.WorkspacesChanged.Workspaces)
		wsChanged = true

	case ev.WorkspaceActivated != nil:
		idx, ok := p.idToIdx[ev.WorkspaceActivated.ID]
		if !ok {
			return
		}
		output := p.idToOutput[ev.WorkspaceActivated.ID]

		if ev.WorkspaceActivated.Focused && !p.snapshot.ActiveWorkspace[idx] {
			p.snapshot.ActiveWorkspace = map[int32]bool{idx: true}
			wsChanged = true
		}
		if output != "" {
			if perOut := p.snapshot.PerOutput[output]; perOut != nil && !perOut.ActiveWorkspace[idx] {
				perOut.ActiveWorkspace = map[int32]bool{idx: true}
				wsChanged = true
			}
		}

		p.updatePerOutputWindows()
		winChanged = true

	case ev.WorkspaceUrgencyChanged != nil:
		idx, ok := p.idToIdx[ev.WorkspaceUrgencyChanged.ID]
		if !ok {
			return
		}
		if ev.WorkspaceUrgencyChanged.Urgent {
			if !p.snapshot.UrgentWorkspaces[idx] {
				p.snapshot.UrgentWorkspaces[idx] = true
				wsChanged = true
			}
		} else if p.snapshot.UrgentWorkspaces[idx] {
			delete(p.snapshot.UrgentWorkspaces, idx)
			wsChanged = true
		}

	case ev.WindowsChanged != nil:
		p.processWindows(ev.WindowsChanged.Windows)
		winChanged = true

	case ev.WindowOpenedOrChanged != nil:
		win := ev.WindowOpenedOrChanged.Window
		p.updateSingleWindow(win)
		if win.WorkspaceID != nil {
			if idx, ok := p.idToIdx[*win.WorkspaceID]; ok && !p.snapshot.OccupiedWorkspaces[idx] {
				p.snapshot.OccupiedWorkspaces[idx] = true
				wsChanged = true
			}
		}
		p.updatePerOutputWindows()
		winChanged = true

	case ev.WindowClosed != nil:
		delete(p.windows, ev.WindowClosed.ID)
		p.updateWindowCounts()
		p.updateFocusedWindow()
		p.updatePerOutputWindows()
		wsChanged = true
		winChanged = true

	case ev.WindowFocusChanged != nil:
		id := ev.WindowFocusChanged.ID
		for _, win := range p.windows {
			win.isFocused = id != nil && win.id == *id
		}
		p.updateFocusedWindow()
		p.updatePerOutputWindows()
		winChanged = true

	case ev.WorkspaceActiveWindowChanged != nil:
		wsID := ev.WorkspaceActiveWindowChanged.WorkspaceID
		output, ok := p.idToOutput[wsID]
		if !ok {
			return
		}
		info := WindowInfo{Output: output}
		if winID := ev.WorkspaceActiveWindowChanged.ActiveWindowID; winID != nil {
			if win, ok := p.windows[*winID]; ok {
				info.Title = win.title
				info.AppID = win.appID
				if idx, ok := p.idToIdx[wsID]; ok {
					info.WorkspaceID = idx
				}
			}
		}
		p.perOutputWindow[output] = info
		winChanged = true
	}

	return wsChanged, winChanged
}

package niri

import "encoding/json"

// Wire types for Niri's JSON IPC. Enum-style messages are externally
// tagged: exactly one of the pointer fields is set per decoded event.

type wireWorkspace struct {
	ID        uint64  `json:"id"`
	Idx       int32   `json:"idx"`
	Name      *string `json:"name"`
	Output    *string `json:"output"`
	IsActive  bool    `json:"is_active"`
	IsFocused bool    `json:"is_focused"`
	IsUrgent  bool    `json:"is_urgent"`
}

type wireWindow struct {
	ID          uint64  `json:"id"`
	Title       string  `json:"title"`
	AppID       string  `json:"app_id"`
	WorkspaceID *uint64 `json:"workspace_id"`
	IsFocused   bool    `json:"is_focused"`
}

type wireEvent struct {
	Ok json.RawMessage `json:"Ok"`

	WorkspacesChanged *struct {
		Workspaces []wireWorkspace `json:"workspaces"`
	} `json:"WorkspacesChanged"`

	WorkspaceActivated *struct {
		ID      uint64 `json:"id"`
		Focused bool   `json:"focused"`
	} `json:"WorkspaceActivated"`

	WorkspaceUrgencyChanged *struct {
		ID     uint64 `json:"id"`
		Urgent bool   `json:"urgent"`
	} `json:"WorkspaceUrgencyChanged"`

	WindowsChanged *struct {
		Windows []wireWindow `json:"windows"`
	} `json:"WindowsChanged"`

	WindowOpenedOrChanged *struct {
		Window wireWindow `json:"window"`
	} `json:"WindowOpenedOrChanged"`

	WindowClosed *struct {
		ID uint64 `json:"id"`
	} `json:"WindowClosed"`

	WindowFocusChanged *struct {
		ID *uint64 `json:"id"`
	} `json:"WindowFocusChanged"`

	WorkspaceActiveWindowChanged *struct {
		WorkspaceID    uint64  `json:"workspace_id"`
		ActiveWindowID *uint64 `json:"active_window_id"`
	} `json:"WorkspaceActiveWindowChanged"`
}

type wireReply struct {
	Ok  json.RawMessage `json:"Ok"`
	Err json.RawMessage `json:"Err"`
}

type wireOkPayload struct {
	Workspaces []wireWorkspace `json:"Workspaces"`
	Windows    []wireWindow    `json:"Windows"`
}

// Action requests sent to Niri.

type focusWorkspaceAction struct {
	Action struct {
		FocusWorkspace struct {
			Reference struct {
				Index int32 `json:"Index"`
			} `json:"reference"`
		} `json:"FocusWorkspace"`
	} `json:"Action"`
}

func newFocusWorkspaceAction(idx int32) focusWorkspaceAction {
	var a focusWorkspaceAction
	a.Action.FocusWorkspace.Reference.Index = idx
	return a
}

type quitAction struct {
	Action struct {
		Quit struct {
			SkipConfirmation bool `json:"skip_confirmation"`
		} `json:"Quit"`
	} `json:"Action"`
}

func newQuitAction() quitAction {
	var a quitAction
	a.Action.Quit.SkipConfirmation = true
	return a
}

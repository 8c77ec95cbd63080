// Package tui is the -monitor mode: a Bubbletea view of live service
// snapshots. Services publish onto the event loop; callbacks forward
// snapshot copies into the program via Send, so the model never
// touches loop-owned state.
package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vibepanel/vibepanel/pkg/services/battery"
	"github.com/vibepanel/vibepanel/pkg/services/bluetooth"
	"github.com/vibepanel/vibepanel/pkg/services/media"
	"github.com/vibepanel/vibepanel/pkg/services/network"
	"github.com/vibepanel/vibepanel/pkg/services/niri"
	"github.com/vibepanel/vibepanel/pkg/services/sysinfo"
	"github.com/vibepanel/vibepanel/pkg/services/vpn"
)

// Snapshot messages delivered via Program.Send from service callbacks.
type (
	MediaMsg     struct{ Snapshot media.Snapshot }
	BluetoothMsg struct{ Snapshot bluetooth.Snapshot }
	NetworkMsg   struct{ Snapshot network.Snapshot }
	VPNMsg       struct{ Snapshot vpn.Snapshot }
	BatteryMsg   struct{ Snapshot battery.Snapshot }
	SysinfoMsg   struct{ Snapshot sysinfo.Snapshot }
	WorkspaceMsg struct{ Snapshot niri.WorkspaceSnapshot }
	WindowMsg    struct{ Window niri.WindowInfo }
)

// Model renders the latest snapshot of every service.
type Model struct {
	media     media.Snapshot
	bluetooth bluetooth.Snapshot
	network   network.Snapshot
	vpn       vpn.Snapshot
	battery   battery.Snapshot
	sysinfo   sysinfo.Snapshot
	workspace niri.WorkspaceSnapshot
	window    niri.WindowInfo

	spinner spinner.Model
	width   int
	height  int
	ready   bool
}

func New() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{spinner: sp}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case MediaMsg:
		m.media = msg.Snapshot
		return m, nil
	case BluetoothMsg:
		m.bluetooth = msg.Snapshot
		return m, nil
	case NetworkMsg:
		m.network = msg.Snapshot
		return m, nil
	case VPNMsg:
		m.vpn = msg.Snapshot
		return m, nil
	case BatteryMsg:
		m.battery = msg.Snapshot
		return m, nil
	case SysinfoMsg:
		m.sysinfo = msg.Snapshot
		return m, nil
	case WorkspaceMsg:
		m.workspace = msg.Snapshot
		return m, nil
	case WindowMsg:
		m.window = msg.Window
		return m, nil
	}

	return m, nil
}

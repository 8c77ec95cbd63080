package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vibepanel/vibepanel/pkg/services/media"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A78BFA"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4B5563"))
)

func (m Model) View() string {
	if !m.ready {
		return m.spinner.View() + " starting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("vibepanel monitor"))
	b.WriteString("\n\n")

	b.WriteString(m.viewSystem())
	b.WriteString(m.viewWorkspaces())
	b.WriteString(m.viewNetwork())
	b.WriteString(m.viewVPN())
	b.WriteString(m.viewBluetooth())
	b.WriteString(m.viewMedia())
	b.WriteString(m.viewBattery())

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}

func row(label, value string) string {
	return "  " + labelStyle.Render(fmt.Sprintf("%-12s", label)) + valueStyle.Render(value) + "\n"
}

func (m Model) viewSystem() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("System"))
	b.WriteString("\n")
	if !m.sysinfo.Ready {
		b.WriteString("  " + m.spinner.View() + " sampling...\n\n")
		return b.String()
	}
	s := m.sysinfo
	b.WriteString(row("cpu", meter(s.CPUPercent)+fmt.Sprintf(" (%d cores)", s.CPUCount)))
	b.WriteString(row("memory", meter(s.MemPercent)+fmt.Sprintf(" %s / %s",
		formatBytes(s.MemUsed), formatBytes(s.MemTotal))))
	if s.SwapTotal > 0 {
		b.WriteString(row("swap", meter(s.SwapPercent)+fmt.Sprintf(" %s / %s",
			formatBytes(s.SwapUsed), formatBytes(s.SwapTotal))))
	}
	b.WriteString(row("load", fmt.Sprintf("%.2f %.2f %.2f", s.Load1, s.Load5, s.Load15)))
	b.WriteString(row("uptime", formatUptime(s.Uptime)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewWorkspaces() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Workspaces"))
	b.WriteString("\n")
	if len(m.workspace.ActiveWorkspace) == 0 && len(m.workspace.OccupiedWorkspaces) == 0 {
		b.WriteString(row("compositor", "not connected"))
		b.WriteString("\n")
		return b.String()
	}

	ids := make([]int32, 0, len(m.workspace.WindowCounts))
	seen := make(map[int32]bool)
	for id := range m.workspace.WindowCounts {
		ids = append(ids, id)
		seen[id] = true
	}
	for id := range m.workspace.ActiveWorkspace {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		label := fmt.Sprintf("%d", id)
		if n := m.workspace.WindowCounts[id]; n > 0 {
			label = fmt.Sprintf("%d(%d)", id, n)
		}
		switch {
		case m.workspace.ActiveWorkspace[id]:
			parts = append(parts, activeStyle.Render("["+label+"]"))
		case m.workspace.UrgentWorkspaces[id]:
			parts = append(parts, warnStyle.Render(label+"!"))
		default:
			parts = append(parts, valueStyle.Render(label))
		}
	}
	b.WriteString("  " + strings.Join(parts, " ") + "\n")

	if !m.window.IsEmpty() {
		title := m.window.Title
		if title == "" {
			title = m.window.AppID
		}
		b.WriteString(row("focused", truncate(title, 60)))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewNetwork() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Network"))
	b.WriteString("\n")
	n := m.network
	switch {
	case !n.Available:
		b.WriteString(row("status", "NetworkManager unavailable"))
	case n.WifiEnabled != nil && !*n.WifiEnabled:
		b.WriteString(row("wifi", "disabled"))
	case n.Connected:
		b.WriteString(row("wifi", fmt.Sprintf("%s (%d%%)", n.SSID, n.Strength)))
	case n.ConnectingSSID != "":
		b.WriteString("  " + m.spinner.View() + " connecting to " + n.ConnectingSSID + "\n")
	default:
		b.WriteString(row("wifi", "disconnected"))
	}
	if n.Scanning {
		b.WriteString("  " + m.spinner.View() + " scanning\n")
	}
	if len(n.Networks) > 0 {
		b.WriteString(row("visible", fmt.Sprintf("%d networks", len(n.Networks))))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewVPN() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("VPN"))
	b.WriteString("\n")
	v := m.vpn
	switch {
	case !v.Available:
		b.WriteString(row("status", "unavailable"))
	case len(v.Connections) == 0:
		b.WriteString(row("status", "no profiles"))
	default:
		for _, c := range v.Connections {
			state := "inactive"
			style := labelStyle
			if c.Active {
				state = c.State.String()
				style = activeStyle
			}
			b.WriteString("  " + valueStyle.Render(fmt.Sprintf("%-20s", truncate(c.Name, 20))) +
				style.Render(state) + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewBluetooth() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Bluetooth"))
	b.WriteString("\n")
	bt := m.bluetooth
	switch {
	case !bt.HasAdapter:
		b.WriteString(row("status", "no adapter"))
	case !bt.Powered:
		b.WriteString(row("status", "off"))
	default:
		b.WriteString(row("status", fmt.Sprintf("on, %d connected", bt.ConnectedDevices)))
		for _, d := range bt.Devices {
			if !d.Connected {
				continue
			}
			b.WriteString("  " + activeStyle.Render("• ") + valueStyle.Render(d.Name) + "\n")
		}
	}
	if bt.Scanning {
		b.WriteString("  " + m.spinner.View() + " scanning\n")
	}
	if bt.Auth != nil {
		b.WriteString("  " + warnStyle.Render(fmt.Sprintf("pairing %s: %s %s",
			bt.Auth.DeviceName, bt.Auth.Kind, bt.Auth.Code)) + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewMedia() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Media"))
	b.WriteString("\n")
	md := m.media
	if !md.Available {
		b.WriteString(row("status", "no players"))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(row("player", md.PlayerName))
	track := md.Metadata.Title
	if md.Metadata.Artist != "" {
		track = md.Metadata.Artist + " - " + track
	}
	if track != "" {
		b.WriteString(row("track", truncate(track, 60)))
	}
	position := formatPosition(md.Position, md.Metadata.Length)
	b.WriteString(row(strings.ToLower(md.Status.String()), position))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewBattery() string {
	bt := m.battery
	if !bt.Available {
		return ""
	}
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Battery"))
	b.WriteString("\n")
	if bt.Percent != nil {
		state := "discharging"
		if bt.Charging() {
			state = "charging"
		}
		b.WriteString(row("charge", meter(*bt.Percent)+" ("+state+")"))
	}
	if bt.Charging() && bt.TimeToFull != nil && *bt.TimeToFull > 0 {
		b.WriteString(row("full in", formatSeconds(*bt.TimeToFull)))
	} else if !bt.Charging() && bt.TimeToEmpty != nil && *bt.TimeToEmpty > 0 {
		b.WriteString(row("empty in", formatSeconds(*bt.TimeToEmpty)))
	}
	if bt.EnergyRate != nil && *bt.EnergyRate > 0 {
		b.WriteString(row("draw", fmt.Sprintf("%.1f W", *bt.EnergyRate)))
	}
	b.WriteString("\n")
	return b.String()
}

// --- formatting helpers ---

func formatBytes(n uint64) string {
	const gib = 1024 * 1024 * 1024
	const mib = 1024 * 1024
	if n >= gib {
		return fmt.Sprintf("%.1fG", float64(n)/gib)
	}
	return fmt.Sprintf("%.0fM", float64(n)/mib)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func formatSeconds(s int64) string {
	h := s / 3600
	m := (s % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func formatPosition(position, length int64) string {
	if length > 0 {
		return media.FormatDuration(position) + " / " + media.FormatDuration(length)
	}
	return media.FormatDuration(position)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

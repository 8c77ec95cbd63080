package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Eighth-block runes give the bar sub-cell resolution.
var meterBlocks = [9]rune{' ', '▏', '▎', '▍', '▌', '▋', '▊', '▉', '█'}

const (
	meterWidth             = 20
	meterWarnThreshold     = 0.7
	meterCriticalThreshold = 0.9
)

var (
	meterOKStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	meterWarnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24"))
	meterCriticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	meterEmptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#374151"))
)

// meter renders a horizontal percent bar with a trailing numeric label.
// percent is clamped to [0, 100]; the fill color escalates as it
// crosses the warning and critical thresholds.
func meter(percent float64) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	ratio := percent / 100

	units := int(math.Round(ratio * meterWidth * 8))
	full := units / 8
	partial := units % 8
	empty := meterWidth - full
	if partial > 0 {
		empty--
	}

	style := meterOKStyle
	switch {
	case ratio >= meterCriticalThreshold:
		style = meterCriticalStyle
	case ratio >= meterWarnThreshold:
		style = meterWarnStyle
	}

	var b strings.Builder
	if full > 0 {
		b.WriteString(style.Render(strings.Repeat(string(meterBlocks[8]), full)))
	}
	if partial > 0 {
		b.WriteString(style.Render(string(meterBlocks[partial])))
	}
	if empty > 0 {
		b.WriteString(meterEmptyStyle.Render(strings.Repeat("·", empty)))
	}
	b.WriteString(fmt.Sprintf(" %3.0f%%", percent))
	return b.String()
}

package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid values. All problems
// are collected and reported together rather than one at a time.
func (c *Config) Validate() error {
	var problems []string

	if !contains(validBackends, c.Workspace.Backend) {
		problems = append(problems, fmt.Sprintf(
			"workspace.backend: invalid value '%s', expected one of: %s",
			c.Workspace.Backend, strings.Join(validBackends, ", ")))
	}

	if !contains(validThemeModes, c.Theme.Mode) {
		problems = append(problems, fmt.Sprintf(
			"theme.mode: invalid value '%s', expected one of: %s",
			c.Theme.Mode, strings.Join(validThemeModes, ", ")))
	}

	// theme.accent must be "gtk", "none", or a hex color.
	accent := c.Theme.Accent
	if accent != "gtk" && accent != "none" && !isValidHexColor(accent) {
		problems = append(problems, fmt.Sprintf(
			"theme.accent: invalid value '%s', expected 'gtk', 'none', or a hex color like '#3584e4'",
			accent))
	}

	if !contains(validOSDPositions, c.OSD.Position) {
		problems = append(problems, fmt.Sprintf(
			"osd.position: invalid value '%s', expected one of: %s",
			c.OSD.Position, strings.Join(validOSDPositions, ", ")))
	}

	if c.Bar.Size == 0 {
		problems = append(problems, "bar.size: must be greater than 0")
	}
	if c.OSD.TimeoutMS == 0 {
		problems = append(problems, "osd.timeout_ms: must be greater than 0")
	}

	if c.Theme.BarOpacity < 0.0 || c.Theme.BarOpacity > 1.0 {
		problems = append(problems, fmt.Sprintf(
			"theme.bar_opacity: invalid value '%v', must be between 0.0 and 1.0",
			c.Theme.BarOpacity))
	}
	if c.Theme.WidgetOpacity < 0.0 || c.Theme.WidgetOpacity > 1.0 {
		problems = append(problems, fmt.Sprintf(
			"theme.widget_opacity: invalid value '%v', must be between 0.0 and 1.0",
			c.Theme.WidgetOpacity))
	}

	// In notch mode the center section is reserved for the notch spacer.
	if c.Bar.NotchEnabled && len(c.Widgets.Center) > 0 {
		problems = append(problems,
			"widgets.center: cannot be used when notch_enabled=true; "+
				"use spacer widget in left/right sections to place widgets near the notch")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Warnings returns non-fatal issues that might indicate typos or
// unused configuration.
func (c *Config) Warnings() []string {
	var warnings []string

	for _, name := range c.Widgets.UnreferencedConfigs() {
		warnings = append(warnings, fmt.Sprintf(
			"widgets.%s: config defined but widget not used in any section (possible typo?)",
			name))
	}

	for _, placement := range c.Widgets.Center {
		for _, name := range placement.WidgetNames() {
			base, _ := parseInlineArg(name)
			if base == "spacer" {
				warnings = append(warnings,
					"widgets.center: spacer widget has no effect in center section; "+
						"use spacer in left/right sections to push widgets toward the center")
				break
			}
		}
	}

	return warnings
}

// Summary returns a human-readable description of the configuration.
func (c *Config) Summary() string {
	var lines []string

	lines = append(lines, "Bar Configuration:")
	lines = append(lines, fmt.Sprintf("  size: %dpx", c.Bar.Size))
	lines = append(lines, fmt.Sprintf("  widget_spacing: %dpx", c.Bar.WidgetSpacing))
	lines = append(lines, fmt.Sprintf("  outer_margin: %dpx", c.Bar.OuterMargin))
	notch := "disabled"
	if c.Bar.NotchEnabled {
		notch = "enabled"
	}
	lines = append(lines, fmt.Sprintf("  notch: %s (width: %dpx)", notch, c.Bar.NotchWidth))
	if len(c.Bar.Outputs) > 0 {
		lines = append(lines, fmt.Sprintf("  outputs: %v", c.Bar.Outputs))
	}

	lines = append(lines, "", "Widgets:")
	lines = append(lines, fmt.Sprintf("  left: %d widget(s)", countWidgets(c.Widgets.Left)))
	for _, p := range c.Widgets.Left {
		lines = append(lines, "    - "+p.DisplayName())
	}
	if c.Bar.NotchEnabled {
		lines = append(lines, fmt.Sprintf("  center: notch spacer (%dpx)", c.Bar.EffectiveNotchWidth()))
	} else {
		lines = append(lines, fmt.Sprintf("  center: %d widget(s)", countWidgets(c.Widgets.Center)))
		for _, p := range c.Widgets.Center {
			lines = append(lines, "    - "+p.DisplayName())
		}
	}
	lines = append(lines, fmt.Sprintf("  right: %d widget(s)", countWidgets(c.Widgets.Right)))
	for _, p := range c.Widgets.Right {
		lines = append(lines, "    - "+p.DisplayName())
	}

	lines = append(lines, "", "Theme:")
	lines = append(lines, "  mode: "+c.Theme.Mode)
	lines = append(lines, "  accent: "+c.Theme.Accent)
	lines = append(lines, fmt.Sprintf("  bar_opacity: %v", c.Theme.BarOpacity))
	lines = append(lines, fmt.Sprintf("  widget_opacity: %v", c.Theme.WidgetOpacity))
	if c.Theme.BarBackgroundColor != "" {
		lines = append(lines, "  bar_background_color: "+c.Theme.BarBackgroundColor)
	}
	if c.Theme.WidgetBackgroundColor != "" {
		lines = append(lines, "  widget_background_color: "+c.Theme.WidgetBackgroundColor)
	}
	lines = append(lines, "  font_family: "+c.Theme.Typography.FontFamily)

	lines = append(lines, "", "Workspace:")
	lines = append(lines, "  backend: "+c.Workspace.Backend)

	lines = append(lines, "", "OSD:")
	lines = append(lines, fmt.Sprintf("  enabled: %t, position: %s, timeout: %dms",
		c.OSD.Enabled, c.OSD.Position, c.OSD.TimeoutMS))

	return strings.Join(lines, "\n")
}

func countWidgets(placements []WidgetPlacement) int {
	total := 0
	for _, p := range placements {
		total += p.WidgetCount()
	}
	return total
}

func contains(list []string, val string) bool {
	for _, v := range list {
		if v == val {
			return true
		}
	}
	return false
}

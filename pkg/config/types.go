// Package config defines the bar configuration schema and loader.
//
// The Config type is intended to be a stable, serialization-friendly
// schema. Derived values (computed theme palettes, resolved widget
// entries) live in separate types.
package config

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

// DefaultConfigTOML is the embedded default configuration document,
// compiled into the binary.
//
//go:embed default.toml
var DefaultConfigTOML string

// validBackends are the known values for workspace.backend.
var validBackends = []string{"auto", "mango", "hyprland", "niri"}

// validThemeModes are the known values for theme.mode.
var validThemeModes = []string{"auto", "dark", "light", "gtk"}

// validOSDPositions are the known values for osd.position.
var validOSDPositions = []string{"bottom", "left", "right", "top"}

// defaultNotchWidth is used when notch auto-detection is not available.
const defaultNotchWidth = 200

// Config is the root configuration structure.
type Config struct {
	// Bar-level configuration.
	Bar BarConfig

	// Widget configuration (left, center, right sections).
	Widgets WidgetsConfig

	// Icon theme configuration.
	Icons IconsConfig

	// Workspace/compositor configuration.
	Workspace WorkspaceConfig

	// Theme configuration (colors, typography).
	Theme ThemeConfig

	// On-screen display configuration.
	OSD OSDConfig

	// Advanced configuration options.
	Advanced AdvancedConfig
}

// BarConfig holds bar-level geometry and behavior.
type BarConfig struct {
	// Base height of the bar in pixels.
	Size int

	// Spacing between widgets in pixels.
	WidgetSpacing int

	// Distance from screen edge to bar window in pixels.
	OuterMargin int

	// Distance from bar edge to first/last section in pixels.
	SectionEdgeMargin int

	// Whether notch mode is enabled.
	NotchEnabled bool

	// Width of the notch spacer in pixels. 0 means auto-detect,
	// falling back to a default when detection is unavailable.
	NotchWidth int

	// Border radius as a percentage of the rendered bar height.
	BorderRadius int

	// Vertical offset between widgets and their popovers in pixels.
	PopoverOffset int

	// Output allow-list for bar windows. Empty means all monitors.
	Outputs []string
}

// EffectiveNotchWidth returns the notch width to use, resolving the
// auto-detect value 0 to the built-in default.
func (b *BarConfig) EffectiveNotchWidth() int {
	if b.NotchWidth > 0 {
		return b.NotchWidth
	}
	return defaultNotchWidth
}

// WidgetsConfig holds widget placement and per-widget options.
//
// Widget placement is defined using simple name strings or groups of
// names. Widget-specific options live in separate [widgets.<name>]
// tables keyed by widget name.
type WidgetsConfig struct {
	// Widgets in the left section.
	Left []WidgetPlacement

	// Widgets in the center section. Cannot be used when
	// bar.notch_enabled is true.
	Center []WidgetPlacement

	// Widgets in the right section.
	Right []WidgetPlacement

	// Border radius as a percentage of widget height.
	BorderRadius int

	// Per-widget configuration tables, keyed by widget name.
	WidgetConfigs map[string]WidgetOptions
}

// WidgetPlacement is a single widget name or a group of names sharing
// one island. Exactly one of Name or Group is set.
type WidgetPlacement struct {
	Name  string
	Group []string
}

// IsGroup reports whether this placement is a widget group.
func (p *WidgetPlacement) IsGroup() bool { return p.Group != nil }

// WidgetCount returns the number of widgets in this placement.
func (p *WidgetPlacement) WidgetCount() int {
	if p.IsGroup() {
		return len(p.Group)
	}
	return 1
}

// WidgetNames returns the widget names for iteration.
func (p *WidgetPlacement) WidgetNames() []string {
	if p.IsGroup() {
		return p.Group
	}
	return []string{p.Name}
}

// DisplayName returns a display representation for the summary.
func (p *WidgetPlacement) DisplayName() string {
	if p.IsGroup() {
		return fmt.Sprintf("[group: %s]", strings.Join(p.Group, ", "))
	}
	return p.Name
}

// WidgetOptions holds per-widget configuration from a
// [widgets.<name>] table. Disabled and Color are common to all
// widgets; everything else is widget-specific.
type WidgetOptions struct {
	// If true, this widget is hidden from all sections.
	Disabled bool

	// Background color override (hex like "#f5c2e7"). Empty means
	// use the theme's default widget background.
	Color string

	// Widget-specific options (format, show_icon, ...).
	Options map[string]interface{}
}

// WidgetEntry is a resolved widget with its merged options, ready for
// the widget factory.
type WidgetEntry struct {
	// Widget type name, e.g. "clock" or "workspace".
	Name string

	// Merged widget-specific options.
	Options map[string]interface{}

	// Background color override. Empty means theme default.
	Color string
}

// WidgetOrGroup mirrors WidgetPlacement with resolved entries instead
// of names.
type WidgetOrGroup struct {
	Single *WidgetEntry
	Group  []WidgetEntry
}

// WidgetCount returns the number of widgets in this resolved placement.
func (w *WidgetOrGroup) WidgetCount() int {
	if w.Single != nil {
		return 1
	}
	return len(w.Group)
}

// IconsConfig selects the icon backend.
type IconsConfig struct {
	// Icon backend: "material" for bundled Material Symbols, or
	// "gtk" for the system icon theme.
	Theme string

	// Icon stroke weight for Material Symbols (100-700).
	Weight int
}

// WorkspaceConfig selects the compositor backend.
type WorkspaceConfig struct {
	// Compositor backend: "auto", "mango", "hyprland", "niri".
	Backend string
}

// ThemeConfig holds colors and typography.
type ThemeConfig struct {
	// Theme mode: "auto", "dark", "light", "gtk".
	Mode string

	// Accent color: "gtk", "none", or a hex color like "#3584e4".
	Accent string

	// Bar background color override. Empty means derive from mode.
	BarBackgroundColor string

	// Bar opacity, 0.0 (transparent) to 1.0 (opaque).
	BarOpacity float64

	// Widget background color override. Empty means derive from mode.
	WidgetBackgroundColor string

	// Widget opacity, 0.0 to 1.0.
	WidgetOpacity float64

	// State colors.
	States ThemeStates

	// Typography settings.
	Typography ThemeTypography
}

// ThemeStates holds the semantic state colors.
type ThemeStates struct {
	Success string
	Warning string
	Urgent  string
}

// ThemeTypography holds font settings.
type ThemeTypography struct {
	// Base font family.
	FontFamily string
}

// OSDConfig controls the on-screen display.
type OSDConfig struct {
	Enabled   bool
	Position  string
	TimeoutMS int
}

// AdvancedConfig holds workarounds for specific environments.
type AdvancedConfig struct {
	// Apply Pango font attributes directly to labels instead of
	// relying on CSS font handling. Fixes clipped fonts on some
	// layer-shell surfaces.
	PangoFontRendering bool
}

// DefaultConfig returns the struct-level defaults. These match the
// embedded default document except that widget placement lists start
// empty.
func DefaultConfig() *Config {
	return &Config{
		Bar: BarConfig{
			Size:              32,
			WidgetSpacing:     8,
			OuterMargin:       4,
			SectionEdgeMargin: 8,
			NotchEnabled:      false,
			NotchWidth:        0,
			BorderRadius:      30,
			PopoverOffset:     1,
		},
		Widgets: WidgetsConfig{
			BorderRadius:  40,
			WidgetConfigs: map[string]WidgetOptions{},
		},
		Icons: IconsConfig{
			Theme:  "material",
			Weight: 400,
		},
		Workspace: WorkspaceConfig{
			Backend: "auto",
		},
		Theme: ThemeConfig{
			Mode:          "auto",
			Accent:        "#adabe0",
			BarOpacity:    0.0,
			WidgetOpacity: 1.0,
			States: ThemeStates{
				Success: "#4a7a4a",
				Warning: "#e5c07b",
				Urgent:  "#ff6b6b",
			},
			Typography: ThemeTypography{
				FontFamily: "monospace",
			},
		},
		OSD: OSDConfig{
			Enabled:   true,
			Position:  "bottom",
			TimeoutMS: 1500,
		},
	}
}

// isValidHexColor reports whether s is a #RGB or #RRGGBB hex color.
func isValidHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 3 && len(hex) != 6 {
		return false
	}
	_, err := strconv.ParseUint(hex, 16, 32)
	return err == nil
}

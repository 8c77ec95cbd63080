package theme

import (
	"fmt"
	"strings"
)

// CSSVarsBlock renders the :root variable block consumed by the bar
// stylesheet. GTK accent mode references the host accent variable
// instead of the computed values.
func (p *Palette) CSSVarsBlock() string {
	accentPrimary := p.AccentPrimary
	accentSubtle := p.AccentSubtle
	if p.Accent.Kind == AccentGtk {
		accentPrimary = "@accent_color"
		accentSubtle = "color-mix(in srgb, @accent_color 20%, transparent)"
	}

	var b strings.Builder
	b.WriteString(":root {\n")

	section := func(name string) {
		fmt.Fprintf(&b, "    /* ===== %s ===== */\n", name)
	}
	v := func(name, value string) {
		fmt.Fprintf(&b, "    %s: %s;\n", name, value)
	}
	px := func(name string, value int) {
		fmt.Fprintf(&b, "    %s: %dpx;\n", name, value)
	}

	section("Background Colors")
	v("--color-background-bar", p.BarBackgroundWithOpacity())
	v("--color-background-widget", p.WidgetBackgroundWithOpacity())

	section("Foreground Colors")
	v("--color-foreground-primary", p.ForegroundPrimary)
	v("--color-foreground-muted", p.ForegroundMuted)
	v("--color-foreground-subtle", p.ForegroundSubtle)
	v("--color-foreground-disabled", p.ForegroundDisabled)

	section("Accent Colors")
	v("--color-accent-primary", accentPrimary)
	v("--color-accent-subtle", accentSubtle)
	v("--color-accent-slider", "var(--color-accent-primary)")
	v("--color-accent-text", p.AccentText)

	section("State Colors")
	v("--color-state-success", p.StateSuccess)
	v("--color-state-warning", p.StateWarning)
	v("--color-state-urgent", p.StateUrgent)

	section("Card Overlays")
	v("--color-card-overlay", p.CardOverlay)
	v("--color-card-overlay-hover", p.CardOverlayHover)
	v("--color-card-overlay-subtle", p.CardOverlaySubtle)
	v("--color-card-overlay-strong", p.CardOverlayStrong)
	v("--color-click-catcher-overlay", p.ClickCatcherOverlay)

	section("Borders & Shadows")
	v("--color-border-subtle", p.BorderSubtle)
	v("--shadow-soft", p.ShadowSoft)
	v("--shadow-strong", p.ShadowStrong)

	section("Slider Tracks")
	v("--color-slider-track", p.SliderTrack)
	v("--color-slider-track-disabled", p.SliderTrackDisabled)

	section("Contextual Backgrounds")
	v("--color-row-background", "var(--color-card-overlay-subtle)")
	v("--color-row-background-hover", "var(--color-card-overlay-hover)")
	v("--color-row-critical-background", p.RowCriticalBackground)
	v("--color-toast-critical-background", p.ToastCriticalBackground)

	section("Radii")
	px("--radius-bar", p.BarBorderRadius)
	px("--radius-surface", p.SurfaceBorderRadius)
	px("--radius-widget", p.WidgetBorderRadius)
	px("--radius-pill", p.RadiusPill)

	section("Sizes & Spacing")
	px("--bar-height", p.Sizes.BarHeight)
	px("--bar-padding", p.Sizes.BarPadding)
	px("--widget-height", p.Sizes.WidgetHeight)
	px("--widget-padding-x", p.Sizes.WidgetPaddingX)
	px("--widget-padding-y", p.Sizes.WidgetPaddingY)
	px("--spacing-internal", p.Sizes.InternalSpacing)
	px("--spacing-widget-edge", p.Sizes.WidgetContentEdge)
	px("--spacing-widget-gap", p.Sizes.WidgetContentGap)
	v("--widget-opacity", fmt.Sprintf("%v", p.WidgetOpacity))

	section("Typography")
	v("--font-family", p.FontFamily)
	v("--font-scale", fmt.Sprintf("%v", FontScale))
	v("--font-size", "calc(var(--widget-height) * var(--font-scale))")
	px("--font-size-text-icon", p.Sizes.TextIconSize)

	section("Icon Sizes")
	px("--pixmap-icon-size", p.Sizes.PixmapIconSize)
	px("--icon-size", p.Sizes.TextIconSize)

	b.WriteString("}\n")
	return b.String()
}

// BarBackgroundWithOpacity renders the bar background with its opacity
// applied: "transparent" at 0, the raw color at 1, and a color-mix in
// between so GTK variables work as well as hex colors.
func (p *Palette) BarBackgroundWithOpacity() string {
	return backgroundWithOpacity(p.BarBackground, p.BarOpacity)
}

// WidgetBackgroundWithOpacity renders the widget background with its
// opacity applied.
func (p *Palette) WidgetBackgroundWithOpacity() string {
	return backgroundWithOpacity(p.WidgetBackground, p.WidgetOpacity)
}

func backgroundWithOpacity(color string, opacity float64) string {
	switch {
	case opacity <= 0.0:
		return "transparent"
	case opacity >= 1.0:
		return color
	default:
		percent := int(opacity*100 + 0.5)
		return fmt.Sprintf("color-mix(in srgb, %s %d%%, transparent)", color, percent)
	}
}

package theme

import (
	"fmt"

	"github.com/vibepanel/vibepanel/pkg/config"
)

// Overlay and foreground alphas per mode.
const (
	overlayOpacityDark  = 0.06
	overlayOpacityLight = 0.14

	hoverMultiplier  = 2.2
	activeMultiplier = 2.0
	subtleMultiplier = 0.5

	clickCatcherOpacity = 0.005

	borderOpacityDark  = 0.10
	borderOpacityLight = 0.12

	shadowOpacityDark  = 0.40
	shadowOpacityLight = 0.25

	shadowTightOffsetY      = 1
	shadowTightBlur         = 2
	shadowTightOpacityScale = 0.5

	shadowDiffuseOffsetY      = 1
	shadowDiffuseBlurSoft     = 3
	shadowDiffuseBlurStrong   = 5
	shadowDiffuseOpacityScale = 0.6

	trackOpacityDark  = 0.15
	trackOpacityLight = 0.12

	foregroundMutedOpacity    = 0.7
	foregroundSubtleOpacity   = 0.4
	foregroundDisabledOpacity = 0.4

	rowCriticalUrgentWeight   = 0.18
	toastCriticalUrgentWeight = 0.35
)

// Default backgrounds per mode.
const (
	defaultBarBgDark     = "#1a1a1f"
	defaultBarBgLight    = "#e8e8e8"
	defaultWidgetBgDark  = "#111217"
	defaultWidgetBgLight = "#ffffff"
)

// Size derivation scales relative to bar.size.
const (
	// FontScale relates font size to widget height; exported for the
	// CSS font-size calc.
	FontScale = 0.6

	textIconScale   = 0.50
	pixmapIconScale = 0.50
	paddingScale    = 0.14
	spacingScale    = 0.25
)

// AccentKind enumerates where the accent color comes from.
type AccentKind int

const (
	// AccentCustom uses a user-provided hex color.
	AccentCustom AccentKind = iota
	// AccentGtk references the host theme's accent variable.
	AccentGtk
	// AccentNone renders a monochrome overlay instead of a color.
	AccentNone
)

// AccentSource describes the accent configuration. Color is set only
// when Kind is AccentCustom.
type AccentSource struct {
	Kind  AccentKind
	Color string
}

// Sizes holds every derived pixel dimension.
type Sizes struct {
	BarHeight         int
	BarPadding        int
	WidgetHeight      int
	WidgetPaddingX    int
	WidgetPaddingY    int
	FontSize          int
	TextIconSize      int
	PixmapIconSize    int
	InternalSpacing   int
	WidgetContentEdge int
	WidgetContentGap  int
}

// SurfaceStyles is the styling bundle for popovers and menus.
type SurfaceStyles struct {
	BackgroundColor string
	TextColor       string
	FontFamily      string
	FontSize        int
	BorderRadius    int
	BorderColor     string
	Opacity         float64
	Shadow          string
	IsDarkMode      bool
}

// Palette is the fully derived theme: every color, opacity, radius and
// size the bar needs, computed once from a Config.
type Palette struct {
	// Mode
	IsDarkMode bool
	IsGtkMode  bool

	// Backgrounds
	BarBackground    string
	WidgetBackground string

	// Foreground tiers
	ForegroundPrimary  string
	ForegroundMuted    string
	ForegroundSubtle   string
	ForegroundDisabled string

	// Accent
	Accent        AccentSource
	AccentPrimary string
	AccentSubtle  string
	AccentText    string

	// State colors
	StateSuccess string
	StateWarning string
	StateUrgent  string

	// Overlays
	CardOverlay         string
	CardOverlayHover    string
	CardOverlaySubtle   string
	CardOverlayStrong   string
	ClickCatcherOverlay string

	// Borders and shadows
	BorderSubtle string
	ShadowSoft   string
	ShadowStrong string

	// Slider tracks
	SliderTrack         string
	SliderTrackDisabled string

	// Critical backgrounds
	RowCriticalBackground   string
	ToastCriticalBackground string

	// Typography
	FontFamily string

	// Opacities
	BarOpacity    float64
	WidgetOpacity float64

	// Radii in pixels
	BarBorderRadius     int
	WidgetBorderRadius  int
	SurfaceBorderRadius int
	RadiusPill          int

	Sizes Sizes

	// Config values carried through for size computation.
	barRadiusPercent    int
	widgetRadiusPercent int
	barSize             int
}

// FromConfig derives the full palette from a configuration.
func FromConfig(cfg *config.Config) *Palette {
	p := &Palette{}
	p.parseConfig(cfg)
	p.computeDerived()
	return p
}

func (p *Palette) parseConfig(cfg *config.Config) {
	p.IsGtkMode = cfg.Theme.Mode == "gtk"

	// Default backgrounds follow the explicit mode. GTK mode defers
	// to host variables resolved at render time.
	var defaultBarBg, defaultWidgetBg string
	switch {
	case p.IsGtkMode:
		defaultBarBg, defaultWidgetBg = "@window_bg_color", "@view_bg_color"
	case cfg.Theme.Mode == "light":
		defaultBarBg, defaultWidgetBg = defaultBarBgLight, defaultWidgetBgLight
	default:
		defaultBarBg, defaultWidgetBg = defaultBarBgDark, defaultWidgetBgDark
	}

	p.BarBackground = cfg.Theme.BarBackgroundColor
	if p.BarBackground == "" {
		p.BarBackground = defaultBarBg
	}
	p.WidgetBackground = cfg.Theme.WidgetBackgroundColor
	if p.WidgetBackground == "" {
		p.WidgetBackground = defaultWidgetBg
	}

	p.BarOpacity = cfg.Theme.BarOpacity
	p.WidgetOpacity = cfg.Theme.WidgetOpacity

	// GTK mode assumes dark for overlay math since the host colors
	// are unknown until render time.
	switch cfg.Theme.Mode {
	case "dark", "gtk":
		p.IsDarkMode = true
	case "light":
		p.IsDarkMode = false
	default: // "auto"
		p.IsDarkMode = IsDarkColor(p.WidgetBackground)
	}

	switch cfg.Theme.Accent {
	case "gtk":
		p.Accent = AccentSource{Kind: AccentGtk}
		p.AccentPrimary = "@accent_color"
	case "none":
		p.Accent = AccentSource{Kind: AccentNone}
		if p.IsDarkMode {
			p.AccentPrimary = "rgba(255, 255, 255, 0.25)"
		} else {
			p.AccentPrimary = "rgba(0, 0, 0, 0.20)"
		}
	default:
		p.Accent = AccentSource{Kind: AccentCustom, Color: cfg.Theme.Accent}
		p.AccentPrimary = cfg.Theme.Accent
	}

	p.StateSuccess = cfg.Theme.States.Success
	p.StateWarning = cfg.Theme.States.Warning
	p.StateUrgent = cfg.Theme.States.Urgent

	p.FontFamily = cfg.Theme.Typography.FontFamily
	if p.FontFamily == "" {
		p.FontFamily = "inherit"
	}

	p.barRadiusPercent = cfg.Bar.BorderRadius
	p.widgetRadiusPercent = cfg.Widgets.BorderRadius
	p.barSize = cfg.Bar.Size
}

func (p *Palette) computeDerived() {
	p.computeForegrounds()
	p.computeAccentDerived()
	p.computeOverlays()
	p.computeBordersAndShadows()
	p.computeSliderTracks()
	p.computeCriticalBackgrounds()
	p.computeSizes()
}

func (p *Palette) computeForegrounds() {
	if p.IsDarkMode {
		p.ForegroundPrimary = "#ffffff"
		p.ForegroundMuted = fmt.Sprintf("rgba(255, 255, 255, %.2f)", foregroundMutedOpacity)
		p.ForegroundSubtle = fmt.Sprintf("rgba(255, 255, 255, %.2f)", foregroundSubtleOpacity)
		p.ForegroundDisabled = fmt.Sprintf("rgba(255, 255, 255, %.2f)", foregroundDisabledOpacity)
	} else {
		p.ForegroundPrimary = "#1a1a1a"
		p.ForegroundMuted = fmt.Sprintf("rgba(0, 0, 0, %.2f)", foregroundMutedOpacity)
		p.ForegroundSubtle = fmt.Sprintf("rgba(0, 0, 0, %.2f)", foregroundSubtleOpacity)
		p.ForegroundDisabled = fmt.Sprintf("rgba(0, 0, 0, %.2f)", foregroundDisabledOpacity)
	}
}

func (p *Palette) computeAccentDerived() {
	// Accent text matches the system text direction: dark mode means
	// light text, so light accent text too.
	accentText := "#000000"
	if p.IsDarkMode {
		accentText = "#ffffff"
	}

	switch p.Accent.Kind {
	case AccentCustom:
		p.AccentSubtle = fmt.Sprintf("color-mix(in srgb, %s 20%%, transparent)", p.Accent.Color)
		p.AccentText = accentText
	case AccentGtk:
		p.AccentSubtle = "color-mix(in srgb, @accent_color 20%, transparent)"
		p.AccentText = accentText
	case AccentNone:
		if p.IsDarkMode {
			p.AccentSubtle = "rgba(255, 255, 255, 0.08)"
		} else {
			p.AccentSubtle = "rgba(0, 0, 0, 0.06)"
		}
		p.AccentText = p.ForegroundPrimary
	}
}

func (p *Palette) computeOverlays() {
	var r, g, b uint8
	var base float64
	if p.IsDarkMode {
		r, g, b, base = 255, 255, 255, overlayOpacityDark
	} else {
		r, g, b, base = 50, 50, 50, overlayOpacityLight
	}

	p.CardOverlay = RGBAStr(r, g, b, base)
	p.CardOverlayHover = RGBAStr(r, g, b, base*hoverMultiplier)
	p.CardOverlaySubtle = RGBAStr(r, g, b, base*subtleMultiplier)
	p.CardOverlayStrong = RGBAStr(r, g, b, base*activeMultiplier)
	p.ClickCatcherOverlay = RGBAStr(128, 128, 128, clickCatcherOpacity)
}

func (p *Palette) computeBordersAndShadows() {
	var shadowOpacity float64
	if p.IsDarkMode {
		p.BorderSubtle = fmt.Sprintf("rgba(255, 255, 255, %.2f)", borderOpacityDark)
		shadowOpacity = shadowOpacityDark
	} else {
		p.BorderSubtle = fmt.Sprintf("rgba(0, 0, 0, %.2f)", borderOpacityLight)
		shadowOpacity = shadowOpacityLight
	}

	tight := shadowOpacity * shadowTightOpacityScale
	diffuse := shadowOpacity * shadowDiffuseOpacityScale

	p.ShadowSoft = fmt.Sprintf(
		"0 %dpx %dpx rgba(0, 0, 0, %.2f), 0 %dpx %dpx rgba(0, 0, 0, %.2f)",
		shadowTightOffsetY, shadowTightBlur, tight,
		shadowDiffuseOffsetY, shadowDiffuseBlurSoft, diffuse)
	p.ShadowStrong = fmt.Sprintf(
		"0 %dpx %dpx rgba(0, 0, 0, %.2f), 0 %dpx %dpx rgba(0, 0, 0, %.2f)",
		shadowTightOffsetY, shadowTightBlur, tight,
		shadowDiffuseOffsetY, shadowDiffuseBlurStrong, diffuse)
}

func (p *Palette) computeSliderTracks() {
	if p.IsDarkMode {
		p.SliderTrack = fmt.Sprintf("rgba(255, 255, 255, %.2f)", trackOpacityDark)
		p.SliderTrackDisabled = fmt.Sprintf("rgba(255, 255, 255, %.2f)", trackOpacityDark*0.6)
	} else {
		p.SliderTrack = fmt.Sprintf("rgba(0, 0, 0, %.2f)", trackOpacityLight)
		p.SliderTrackDisabled = fmt.Sprintf("rgba(0, 0, 0, %.2f)", trackOpacityLight*0.6)
	}
}

func (p *Palette) computeCriticalBackgrounds() {
	// Row critical: a light urgent wash over the widget background.
	if c, ok := BlendColors(p.StateUrgent, p.WidgetBackground, rowCriticalUrgentWeight); ok {
		p.RowCriticalBackground = RGBAStr(c.R, c.G, c.B, 0.95)
	} else {
		p.RowCriticalBackground = "rgba(255, 100, 100, 0.15)"
	}

	base := "#f5f5f5"
	if p.IsDarkMode {
		base = "#1a1a1a"
	}
	if c, ok := BlendColors(p.StateUrgent, base, toastCriticalUrgentWeight); ok {
		p.ToastCriticalBackground = RGBAStr(c.R, c.G, c.B, 0.95)
	} else {
		p.ToastCriticalBackground = "rgba(40, 20, 20, 0.95)"
	}
}

func (p *Palette) computeSizes() {
	barSize := p.barSize

	// Even sizes keep vertically centered content on whole pixels.
	barPadding := roundToEven(float64(barSize) * paddingScale)
	widgetHeight := roundToEven(float64(barSize - 2*barPadding))

	// Bar radius uses the rendered height: bar plus padding on both
	// sides. Capped at half so percent=100 yields a pill.
	barRendered := barSize + 2*barPadding
	p.BarBorderRadius = min(barRendered*p.barRadiusPercent/100, barRendered/2)

	p.WidgetBorderRadius = min(barSize*p.widgetRadiusPercent/100, barSize/2)
	p.RadiusPill = max(p.WidgetBorderRadius/2, 1)
	p.SurfaceBorderRadius = p.WidgetBorderRadius

	internalSpacing := int(float64(barSize) * spacingScale)

	p.Sizes = Sizes{
		BarHeight:      barSize,
		BarPadding:     barPadding,
		WidgetHeight:   widgetHeight,
		WidgetPaddingX: int(float64(barSize) * paddingScale),
		// Fixed vertical padding for visual breathing room.
		WidgetPaddingY:    2,
		FontSize:          roundToEven(float64(widgetHeight) * FontScale),
		TextIconSize:      roundToEven(float64(barSize) * textIconScale),
		PixmapIconSize:    roundToEven(float64(barSize) * pixmapIconScale),
		InternalSpacing:   internalSpacing,
		WidgetContentEdge: 6,
		WidgetContentGap:  max(internalSpacing/2, 4) + 5,
	}
}

// SurfaceStyles returns the styling bundle for popovers and menus.
func (p *Palette) SurfaceStyles() SurfaceStyles {
	return SurfaceStyles{
		BackgroundColor: p.WidgetBackground,
		TextColor:       p.ForegroundPrimary,
		FontFamily:      p.FontFamily,
		FontSize:        p.Sizes.FontSize,
		BorderRadius:    p.SurfaceBorderRadius,
		BorderColor:     p.BorderSubtle,
		Opacity:         p.WidgetOpacity,
		Shadow:          p.ShadowSoft,
		IsDarkMode:      p.IsDarkMode,
	}
}

// Package theme derives a complete color palette and pixel-size table
// from the theme configuration. Derivation is a deterministic single
// pass: mode, accent, foreground tiers, overlays, borders and shadows,
// critical backgrounds, then sizes and radii.
package theme

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// darkLuminanceThreshold splits dark from light backgrounds using
// WCAG relative luminance.
const darkLuminanceThreshold = 0.179

// RGB is a parsed 8-bit color.
type RGB struct {
	R, G, B uint8
}

// ParseHexColor parses "#rgb" or "#rrggbb" (leading '#' optional,
// surrounding whitespace ignored). Returns false for anything else.
func ParseHexColor(s string) (RGB, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{
			hex[0], hex[0],
			hex[1], hex[1],
			hex[2], hex[2],
		})
	}
	if len(hex) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, true
}

// RelativeLuminance computes WCAG relative luminance of a color.
func RelativeLuminance(c RGB) float64 {
	lin := func(channel uint8) float64 {
		v := float64(channel) / 255.0
		if v <= 0.03928 {
			return v / 12.92
		}
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// IsDarkColor reports whether a hex color reads as dark. Unparseable
// colors are treated as dark so the palette stays legible.
func IsDarkColor(s string) bool {
	c, ok := ParseHexColor(s)
	if !ok {
		return true
	}
	return RelativeLuminance(c) < darkLuminanceThreshold
}

// BlendColors blends two hex colors with weight w1 for the first and
// 1-w1 for the second. Returns false if either color fails to parse.
func BlendColors(c1, c2 string, w1 float64) (RGB, bool) {
	a, ok := ParseHexColor(c1)
	if !ok {
		return RGB{}, false
	}
	b, ok := ParseHexColor(c2)
	if !ok {
		return RGB{}, false
	}
	w2 := 1.0 - w1
	return RGB{
		R: uint8(float64(a.R)*w1 + float64(b.R)*w2),
		G: uint8(float64(a.G)*w1 + float64(b.G)*w2),
		B: uint8(float64(a.B)*w1 + float64(b.B)*w2),
	}, true
}

// RGBToHex formats a color as lowercase "#rrggbb".
func RGBToHex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// RGBAStr formats a CSS rgba() value with two decimal places of alpha.
func RGBAStr(r, g, b uint8, alpha float64) string {
	return fmt.Sprintf("rgba(%d, %d, %d, %.2f)", r, g, b, alpha)
}

// roundToEven rounds to the nearest integer, then bumps odd results up
// so vertically centered elements land on whole pixels.
func roundToEven(v float64) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n++
	}
	return n
}

// Package icons maps logical icon names to concrete icon identifiers.
//
// The bar refers to icons by logical names like "battery-full" or
// "network-vpn-connected-symbolic". Depending on the configured icon theme
// those names resolve to either a Material Symbols glyph ligature or a
// freedesktop themed-icon name. The mapping tables are closed: a logical
// name used at a call site without an entry still resolves (it passes
// through unchanged) but logs a warning so the gap is visible.
package icons

import (
	"log/slog"
	"strings"
)

// materialSymbols maps logical icon names to Material Symbols glyph names.
// Material Symbols uses ligatures, so the glyph name doubles as the label
// text that renders it.
var materialSymbols = map[string]string{
	// Battery (discharging), 8 levels
	"battery-full":        "battery_full",
	"battery-high":        "battery_6_bar",
	"battery-medium-high": "battery_5_bar",
	"battery-medium":      "battery_4_bar",
	"battery-medium-low":  "battery_3_bar",
	"battery-low":         "battery_2_bar",
	"battery-critical":    "battery_1_bar",
	"battery-missing":     "battery_unknown",

	// Battery (charging), matching levels
	"battery-full-charging":        "battery_charging_full",
	"battery-high-charging":        "battery_charging_90",
	"battery-medium-high-charging": "battery_charging_80",
	"battery-medium-charging":      "battery_charging_60",
	"battery-medium-low-charging":  "battery_charging_50",
	"battery-low-charging":         "battery_charging_30",
	"battery-critical-charging":    "battery_charging_20",

	// Notifications
	"notifications":          "notifications",
	"notifications-disabled": "notifications_off",
	"notifications-active":   "notifications_active",

	// Brightness (OSD)
	"display-brightness-off-symbolic":    "brightness_empty",
	"display-brightness-low-symbolic":    "brightness_empty",
	"display-brightness-medium-symbolic": "brightness_medium",
	"display-brightness-high-symbolic":   "brightness_high",
	"display-brightness-symbolic":        "brightness_medium",

	// Audio volume
	"audio-volume-muted-symbolic":  "volume_off",
	"audio-volume-low-symbolic":    "volume_down",
	"audio-volume-medium-symbolic": "volume_down",
	"audio-volume-high-symbolic":   "volume_up",
	"audio-volume-muted":           "volume_off",
	"audio-volume-low":             "volume_down",
	"audio-volume-medium":          "volume_down",
	"audio-volume-high":            "volume_up",

	// Microphone
	"microphone-sensitivity-muted-symbolic":  "mic_off",
	"microphone-sensitivity-low-symbolic":    "mic",
	"microphone-sensitivity-medium-symbolic": "mic",
	"microphone-sensitivity-high-symbolic":   "mic",
	"audio-input-microphone-symbolic":        "mic",
	"audio-input-microphone-muted-symbolic":  "mic_off",

	// Selection indicators
	"object-select-symbolic":  "check",
	"radio-symbolic":          "radio_button_unchecked",
	"radio-checked-symbolic":  "radio_button_checked",

	// Wi-Fi signal strength
	"network-wireless-signal-excellent-symbolic": "wifi",
	"network-wireless-signal-good-symbolic":      "wifi",
	"network-wireless-signal-ok-symbolic":        "wifi_2_bar",
	"network-wireless-signal-weak-symbolic":      "wifi_1_bar",
	"network-wireless-signal-none-symbolic":      "wifi_1_bar",
	"network-wireless-offline-symbolic":          "wifi_off",

	// Wired networking
	"network-wired":            "lan",
	"network-wired-symbolic":   "lan",
	"network-offline-symbolic": "settings_ethernet",

	// Simplified Wi-Fi names
	"wifi-off": "wifi_off",
	"wifi":     "wifi",

	// Bluetooth
	"bluetooth-symbolic":          "bluetooth",
	"bluetooth-active-symbolic":   "bluetooth_connected",
	"bluetooth-disabled-symbolic": "bluetooth_disabled",

	// Bluetooth device types (from BlueZ)
	"audio-headphones":          "headphones",
	"audio-headphones-symbolic": "headphones",
	"audio-headset":             "headset_mic",
	"audio-headset-symbolic":    "headset_mic",
	"audio-card":                "speaker",
	"audio-card-symbolic":       "speaker",
	"audio-speakers":            "speaker",
	"audio-speakers-symbolic":   "speaker",
	"input-keyboard":            "keyboard",
	"input-keyboard-symbolic":   "keyboard",
	"input-mouse":               "mouse",
	"input-mouse-symbolic":      "mouse",
	"input-gaming":              "sports_esports",
	"input-gaming-symbolic":     "sports_esports",
	"phone":                     "smartphone",
	"phone-symbolic":            "smartphone",
	"computer":                  "computer",
	"computer-symbolic":         "computer",

	// VPN
	"network-vpn":                       "vpn_key",
	"network-vpn-symbolic":              "vpn_key",
	"network-vpn-acquiring-symbolic":    "vpn_key",
	"network-vpn-connected-symbolic":    "vpn_lock",
	"network-vpn-disconnected-symbolic": "vpn_key_off",

	// Idle inhibitor / night light
	"night-light-symbolic":             "coffee",
	"preferences-system-time-symbolic": "coffee",

	// UI actions
	"pan-down-symbolic":    "keyboard_arrow_down",
	"pan-up-symbolic":      "keyboard_arrow_up",
	"pan-left-symbolic":    "keyboard_arrow_left",
	"pan-right-symbolic":   "keyboard_arrow_right",
	"open-menu-symbolic":   "more_vert",
	"view-more-symbolic":   "more_horiz",
	"window-close-symbolic": "close",
	"user-trash-symbolic":  "delete",

	// Software updates
	"software-update-available": "download",
	"software-update-urgent":    "download",

	// Power menu
	"system-shutdown-symbolic":    "power_settings_new",
	"system-reboot-symbolic":      "restart_alt",
	"system-suspend-symbolic":     "bedtime",
	"system-lock-screen-symbolic": "lock",
	"system-log-out-symbolic":     "logout",

	// Media playback controls
	"media-playback-start":            "play_arrow",
	"media-playback-pause":            "pause",
	"media-playback-stop":             "stop",
	"media-skip-backward":             "skip_previous",
	"media-skip-forward":              "skip_next",
	"media-seek-backward":             "fast_rewind",
	"media-seek-forward":              "fast_forward",
	"media-playlist-repeat":           "repeat",
	"media-playlist-shuffle":          "shuffle",
	"media-playback-start-symbolic":   "play_arrow",
	"media-playback-pause-symbolic":   "pause",
	"media-playback-stop-symbolic":    "stop",
	"media-skip-backward-symbolic":    "skip_previous",
	"media-skip-forward-symbolic":     "skip_next",
	"media-seek-backward-symbolic":    "fast_rewind",
	"media-seek-forward-symbolic":     "fast_forward",
	"media-playlist-repeat-symbolic":  "repeat",
	"media-playlist-shuffle-symbolic": "shuffle",

	// Pop-out / open external window
	"window-new-symbolic":      "open_in_new",
	"view-fullscreen-symbolic": "fullscreen",

	// Loading / progress spinner
	"process-working-symbolic": "progress_activity",
}

// freedesktopCandidates maps logical icon names to freedesktop themed-icon
// name candidates in priority order. Themes vary in coverage, so each entry
// lists alternatives that ResolveFreedesktop tries in turn.
var freedesktopCandidates = map[string][]string{
	// Battery (discharging)
	"battery-full":        {"battery-level-100-symbolic", "battery-full-symbolic", "battery-good-symbolic", "battery-symbolic"},
	"battery-high":        {"battery-level-80-symbolic", "battery-good-symbolic", "battery-full-symbolic", "battery-symbolic"},
	"battery-medium-high": {"battery-level-60-symbolic", "battery-good-symbolic", "battery-symbolic"},
	"battery-medium":      {"battery-level-50-symbolic", "battery-good-symbolic", "battery-symbolic"},
	"battery-medium-low":  {"battery-level-30-symbolic", "battery-caution-symbolic", "battery-low-symbolic", "battery-symbolic"},
	"battery-low":         {"battery-level-20-symbolic", "battery-low-symbolic", "battery-caution-symbolic", "battery-symbolic"},
	"battery-critical":    {"battery-level-10-symbolic", "battery-caution-symbolic", "battery-empty-symbolic", "battery-low-symbolic", "battery-symbolic"},
	"battery-missing":     {"battery-missing-symbolic", "battery-empty-symbolic", "battery-caution-symbolic", "battery-symbolic"},

	// Battery (charging)
	"battery-full-charging":        {"battery-level-100-charged-symbolic", "battery-full-charging-symbolic", "battery-good-charging-symbolic", "battery-full-symbolic", "battery-symbolic"},
	"battery-high-charging":        {"battery-level-80-charging-symbolic", "battery-good-charging-symbolic", "battery-full-charging-symbolic", "battery-good-symbolic", "battery-symbolic"},
	"battery-medium-high-charging": {"battery-level-60-charging-symbolic", "battery-good-charging-symbolic", "battery-good-symbolic", "battery-symbolic"},
	"battery-medium-charging":      {"battery-level-50-charging-symbolic", "battery-good-charging-symbolic", "battery-good-symbolic", "battery-symbolic"},
	"battery-medium-low-charging":  {"battery-level-30-charging-symbolic", "battery-low-charging-symbolic", "battery-caution-symbolic", "battery-symbolic"},
	"battery-low-charging":         {"battery-level-20-charging-symbolic", "battery-low-charging-symbolic", "battery-caution-charging-symbolic", "battery-low-symbolic", "battery-symbolic"},
	"battery-critical-charging":    {"battery-level-10-charging-symbolic", "battery-caution-charging-symbolic", "battery-empty-charging-symbolic", "battery-caution-symbolic", "battery-symbolic"},

	// Notifications
	"notifications":          {"preferences-system-notifications-symbolic", "notification-symbolic", "bell-symbolic"},
	"notifications-disabled": {"notifications-disabled-symbolic", "notification-disabled-symbolic", "preferences-system-notifications-symbolic"},
	"notifications-active":   {"preferences-system-notifications-symbolic", "notification-symbolic", "bell-symbolic"},

	// Brightness
	"display-brightness-off-symbolic":    {"display-brightness-off-symbolic", "display-brightness-symbolic", "brightness-display-symbolic"},
	"display-brightness-low-symbolic":    {"display-brightness-low-symbolic", "display-brightness-symbolic", "brightness-display-symbolic"},
	"display-brightness-medium-symbolic": {"display-brightness-medium-symbolic", "display-brightness-symbolic", "brightness-display-symbolic"},
	"display-brightness-high-symbolic":   {"display-brightness-high-symbolic", "display-brightness-symbolic", "brightness-display-symbolic"},
	"display-brightness-symbolic":        {"display-brightness-symbolic", "display-brightness-medium-symbolic", "brightness-display-symbolic"},

	// Audio volume
	"audio-volume-muted-symbolic":  {"audio-volume-muted-symbolic", "audio-volume-muted", "audio-volume-low-symbolic"},
	"audio-volume-low-symbolic":    {"audio-volume-low-symbolic", "audio-volume-low", "audio-volume-medium-symbolic"},
	"audio-volume-medium-symbolic": {"audio-volume-medium-symbolic", "audio-volume-medium", "audio-volume-high-symbolic"},
	"audio-volume-high-symbolic":   {"audio-volume-high-symbolic", "audio-volume-high", "audio-volume-medium-symbolic"},
	"audio-volume-muted":           {"audio-volume-muted", "audio-volume-muted-symbolic"},
	"audio-volume-low":             {"audio-volume-low", "audio-volume-low-symbolic"},
	"audio-volume-medium":          {"audio-volume-medium", "audio-volume-medium-symbolic"},
	"audio-volume-high":            {"audio-volume-high", "audio-volume-high-symbolic"},

	// Microphone
	"microphone-sensitivity-muted-symbolic":  {"microphone-sensitivity-muted-symbolic", "audio-input-microphone-muted-symbolic", "microphone-disabled-symbolic"},
	"microphone-sensitivity-low-symbolic":    {"microphone-sensitivity-low-symbolic", "audio-input-microphone-symbolic", "microphone-symbolic"},
	"microphone-sensitivity-medium-symbolic": {"microphone-sensitivity-medium-symbolic", "audio-input-microphone-symbolic", "microphone-symbolic"},
	"microphone-sensitivity-high-symbolic":   {"microphone-sensitivity-high-symbolic", "audio-input-microphone-symbolic", "microphone-symbolic"},
	"audio-input-microphone-symbolic":        {"audio-input-microphone-symbolic", "microphone-sensitivity-high-symbolic", "microphone-symbolic"},
	"audio-input-microphone-muted-symbolic":  {"audio-input-microphone-muted-symbolic", "microphone-sensitivity-muted-symbolic", "microphone-disabled-symbolic"},

	// Selection indicators
	"object-select-symbolic": {"object-select-symbolic", "emblem-ok-symbolic", "emblem-default-symbolic"},
	"radio-symbolic":         {"radio-symbolic", "radio-mixed-symbolic"},
	"radio-checked-symbolic": {"radio-checked-symbolic", "radio-symbolic"},

	// Wi-Fi signal strength
	"network-wireless-signal-excellent-symbolic": {"network-wireless-signal-excellent-symbolic", "network-wireless-connected-symbolic", "network-wireless-symbolic"},
	"network-wireless-signal-good-symbolic":      {"network-wireless-signal-good-symbolic", "network-wireless-signal-excellent-symbolic", "network-wireless-symbolic"},
	"network-wireless-signal-ok-symbolic":        {"network-wireless-signal-ok-symbolic", "network-wireless-signal-good-symbolic", "network-wireless-symbolic"},
	"network-wireless-signal-weak-symbolic":      {"network-wireless-signal-weak-symbolic", "network-wireless-signal-ok-symbolic", "network-wireless-symbolic"},
	"network-wireless-signal-none-symbolic":      {"network-wireless-signal-none-symbolic", "network-wireless-signal-weak-symbolic", "network-wireless-symbolic"},
	"network-wireless-offline-symbolic":          {"network-wireless-offline-symbolic", "network-wireless-disabled-symbolic", "network-wireless-signal-none-symbolic", "network-wireless-symbolic"},
	"network-offline-symbolic":                   {"network-offline-symbolic", "network-error-symbolic", "network-wired-offline-symbolic", "network-wired-symbolic"},

	// Simplified Wi-Fi names
	"wifi-off": {"network-wireless-offline-symbolic", "network-wireless-signal-none-symbolic", "network-wireless-symbolic"},

	// Bluetooth
	"bluetooth-symbolic":          {"bluetooth-symbolic", "bluetooth-active-symbolic", "bluetooth"},
	"bluetooth-active-symbolic":   {"bluetooth-active-symbolic", "bluetooth-symbolic", "bluetooth"},
	"bluetooth-disabled-symbolic": {"bluetooth-disabled-symbolic", "bluetooth-symbolic", "bluetooth"},

	// Bluetooth device types
	"audio-headphones":          {"audio-headphones-symbolic", "audio-headphones", "audio-headset-symbolic"},
	"audio-headphones-symbolic": {"audio-headphones-symbolic", "audio-headphones", "audio-headset-symbolic"},
	"audio-headset":             {"audio-headset-symbolic", "audio-headset", "audio-headphones-symbolic"},
	"audio-headset-symbolic":    {"audio-headset-symbolic", "audio-headset", "audio-headphones-symbolic"},
	"audio-card":                {"audio-card-symbolic", "audio-card", "audio-speakers-symbolic"},
	"audio-card-symbolic":       {"audio-card-symbolic", "audio-card", "audio-speakers-symbolic"},
	"audio-speakers":            {"audio-speakers-symbolic", "audio-speakers", "audio-card-symbolic"},
	"audio-speakers-symbolic":   {"audio-speakers-symbolic", "audio-speakers", "audio-card-symbolic"},
	"input-keyboard":            {"input-keyboard-symbolic", "input-keyboard"},
	"input-keyboard-symbolic":   {"input-keyboard-symbolic", "input-keyboard"},
	"input-mouse":               {"input-mouse-symbolic", "input-mouse"},
	"input-mouse-symbolic":      {"input-mouse-symbolic", "input-mouse"},
	"input-gaming":              {"input-gaming-symbolic", "input-gaming"},
	"input-gaming-symbolic":     {"input-gaming-symbolic", "input-gaming"},
	"phone":                     {"phone-symbolic", "phone", "smartphone-symbolic"},
	"phone-symbolic":            {"phone-symbolic", "phone", "smartphone-symbolic"},
	"computer":                  {"computer-symbolic", "computer"},
	"computer-symbolic":         {"computer-symbolic", "computer"},

	// VPN
	"network-vpn":                       {"network-vpn-symbolic", "network-vpn"},
	"network-vpn-symbolic":              {"network-vpn-symbolic", "network-vpn"},
	"network-vpn-acquiring-symbolic":    {"network-vpn-acquiring-symbolic", "network-vpn-symbolic", "network-vpn"},
	"network-vpn-connected-symbolic":    {"network-vpn-symbolic", "network-vpn"},
	"network-vpn-disconnected-symbolic": {"network-vpn-disconnected-symbolic", "network-vpn-no-route-symbolic", "network-vpn-symbolic", "network-vpn"},

	// Idle inhibitor / night light
	"night-light-symbolic":             {"night-light-symbolic", "preferences-system-time-symbolic", "alarm-symbolic"},
	"preferences-system-time-symbolic": {"preferences-system-time-symbolic", "night-light-symbolic", "alarm-symbolic"},

	// Software updates
	"software-update-available": {"software-update-available-symbolic", "software-update-available", "system-software-update-symbolic", "software-update-urgent-symbolic"},
	"software-update-urgent":    {"software-update-urgent-symbolic", "software-update-urgent", "software-update-available-symbolic", "system-software-update-symbolic"},

	// Power menu
	"system-shutdown-symbolic":    {"system-shutdown-symbolic", "system-shutdown", "gnome-shutdown"},
	"system-reboot-symbolic":      {"system-reboot-symbolic", "system-reboot", "view-refresh-symbolic"},
	"system-suspend-symbolic":     {"system-suspend-symbolic", "system-suspend", "weather-clear-night-symbolic"},
	"system-lock-screen-symbolic": {"system-lock-screen-symbolic", "system-lock-screen", "changes-prevent-symbolic"},
	"system-log-out-symbolic":     {"system-log-out-symbolic", "system-log-out", "application-exit-symbolic"},

	// Media playback controls
	"media-playback-start":            {"media-playback-start-symbolic", "media-playback-start"},
	"media-playback-pause":            {"media-playback-pause-symbolic", "media-playback-pause"},
	"media-playback-stop":             {"media-playback-stop-symbolic", "media-playback-stop"},
	"media-skip-backward":             {"media-skip-backward-symbolic", "media-skip-backward"},
	"media-skip-forward":              {"media-skip-forward-symbolic", "media-skip-forward"},
	"media-seek-backward":             {"media-seek-backward-symbolic", "media-seek-backward"},
	"media-seek-forward":              {"media-seek-forward-symbolic", "media-seek-forward"},
	"media-playlist-repeat":           {"media-playlist-repeat-symbolic", "media-playlist-repeat"},
	"media-playlist-shuffle":          {"media-playlist-shuffle-symbolic", "media-playlist-shuffle"},
	"media-playback-start-symbolic":   {"media-playback-start-symbolic", "media-playback-start"},
	"media-playback-pause-symbolic":   {"media-playback-pause-symbolic", "media-playback-pause"},
	"media-playback-stop-symbolic":    {"media-playback-stop-symbolic", "media-playback-stop"},
	"media-skip-backward-symbolic":    {"media-skip-backward-symbolic", "media-skip-backward"},
	"media-skip-forward-symbolic":     {"media-skip-forward-symbolic", "media-skip-forward"},
	"media-seek-backward-symbolic":    {"media-seek-backward-symbolic", "media-seek-backward"},
	"media-seek-forward-symbolic":     {"media-seek-forward-symbolic", "media-seek-forward"},
	"media-playlist-repeat-symbolic":  {"media-playlist-repeat-symbolic", "media-playlist-repeat"},
	"media-playlist-shuffle-symbolic": {"media-playlist-shuffle-symbolic", "media-playlist-shuffle"},

	// Pop-out / open external window
	"window-new-symbolic":      {"window-new-symbolic", "window-new", "view-fullscreen-symbolic"},
	"view-fullscreen-symbolic": {"view-fullscreen-symbolic", "view-fullscreen"},

	// Loading / progress spinner
	"process-working-symbolic": {"process-working-symbolic", "view-refresh-symbolic", "emblem-synchronizing-symbolic"},
}

// fallbackIcon is the themed-icon name used when no candidate resolves.
const fallbackIcon = "image-missing"

// MaterialSymbol returns the Material Symbols glyph name for a logical icon
// name. Unmapped names pass through unchanged so raw Material ligature names
// can be used directly, but a warning is logged since an unmapped logical
// name usually means a missing table entry.
func MaterialSymbol(log *slog.Logger, name string) string {
	if glyph, ok := materialSymbols[name]; ok {
		return glyph
	}
	log.Warn("no material symbol mapping for icon", "name", name)
	return name
}

// FreedesktopCandidates returns the freedesktop themed-icon candidates for a
// logical icon name in priority order. Unmapped names get no candidates; the
// resolver then treats the name itself as a themed-icon name.
func FreedesktopCandidates(name string) []string {
	return freedesktopCandidates[name]
}

// Lookup reports whether a themed icon exists. Implementations wrap
// whatever icon theme index the renderer uses.
type Lookup interface {
	HasIcon(name string) bool
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(name string) bool

func (f LookupFunc) HasIcon(name string) bool { return f(name) }

// ResolveFreedesktop resolves a logical icon name against a theme lookup.
// Mapped names try each candidate in order; unmapped names try the name
// as-is and then with a "-symbolic" suffix. If nothing resolves the
// "image-missing" fallback is returned and a warning logged.
func ResolveFreedesktop(log *slog.Logger, theme Lookup, name string) string {
	candidates := freedesktopCandidates[name]
	if len(candidates) == 0 {
		// Treat the logical name as a themed-icon name directly.
		if theme.HasIcon(name) {
			return name
		}
		if !strings.HasSuffix(name, "-symbolic") {
			symbolic := name + "-symbolic"
			if theme.HasIcon(symbolic) {
				return symbolic
			}
		}
		log.Warn("no themed icon for name", "name", name)
		return fallbackIcon
	}

	for _, candidate := range candidates {
		if theme.HasIcon(candidate) {
			return candidate
		}
	}

	log.Warn("no candidate resolved for icon", "name", name, "tried", len(candidates))
	return fallbackIcon
}

// NormalizeAppID trims whitespace and strips leading '@' and ':' characters
// from a compositor app id so it can be matched against desktop entries.
func NormalizeAppID(appID string) string {
	return strings.TrimLeft(strings.TrimSpace(appID), "@: ")
}

// AppIconName resolves a compositor app id to a themed icon name. It tries
// the app id directly, then lowercased, then falls back to the provided
// fallback icon name.
func AppIconName(theme Lookup, appID, fallback string) string {
	base := NormalizeAppID(appID)
	if base == "" {
		return fallback
	}
	if theme.HasIcon(base) {
		return base
	}
	if lower := strings.ToLower(base); lower != base && theme.HasIcon(lower) {
		return lower
	}
	return fallback
}

package icons

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Material symbol mapping ---

func TestMaterialSymbolMapped(t *testing.T) {
	log := discardLogger()

	tests := []struct {
		name string
		want string
	}{
		{"battery-full", "battery_full"},
		{"battery-critical-charging", "battery_charging_20"},
		{"battery-missing", "battery_unknown"},
		{"network-vpn-connected-symbolic", "vpn_lock"},
		{"network-vpn-disconnected-symbolic", "vpn_key_off"},
		{"bluetooth-active-symbolic", "bluetooth_connected"},
		{"media-playback-pause-symbolic", "pause"},
		{"audio-volume-muted-symbolic", "volume_off"},
		{"wifi-off", "wifi_off"},
		{"process-working-symbolic", "progress_activity"},
	}

	for _, tt := range tests {
		if got := MaterialSymbol(log, tt.name); got != tt.want {
			t.Errorf("MaterialSymbol(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMaterialSymbolUnmappedPassesThrough(t *testing.T) {
	got := MaterialSymbol(discardLogger(), "totally-unknown-icon")
	if got != "totally-unknown-icon" {
		t.Errorf("unmapped name = %q, want pass-through", got)
	}
}

// --- Freedesktop resolution ---

func TestResolveFreedesktopFirstCandidateWins(t *testing.T) {
	theme := LookupFunc(func(name string) bool {
		return name == "battery-level-100-symbolic" || name == "battery-symbolic"
	})

	got := ResolveFreedesktop(discardLogger(), theme, "battery-full")
	if got != "battery-level-100-symbolic" {
		t.Errorf("resolved %q, want first matching candidate", got)
	}
}

func TestResolveFreedesktopFallsThroughCandidates(t *testing.T) {
	// Only the generic battery icon exists in this theme.
	theme := LookupFunc(func(name string) bool {
		return name == "battery-symbolic"
	})

	got := ResolveFreedesktop(discardLogger(), theme, "battery-critical")
	if got != "battery-symbolic" {
		t.Errorf("resolved %q, want %q", got, "battery-symbolic")
	}
}

func TestResolveFreedesktopImageMissing(t *testing.T) {
	theme := LookupFunc(func(string) bool { return false })

	got := ResolveFreedesktop(discardLogger(), theme, "battery-full")
	if got != "image-missing" {
		t.Errorf("resolved %q, want image-missing", got)
	}
}

func TestResolveFreedesktopUnmappedDirect(t *testing.T) {
	theme := LookupFunc(func(name string) bool {
		return name == "firefox"
	})

	got := ResolveFreedesktop(discardLogger(), theme, "firefox")
	if got != "firefox" {
		t.Errorf("resolved %q, want direct name", got)
	}
}

func TestResolveFreedesktopUnmappedSymbolicSuffix(t *testing.T) {
	theme := LookupFunc(func(name string) bool {
		return name == "weather-clear-symbolic"
	})

	got := ResolveFreedesktop(discardLogger(), theme, "weather-clear")
	if got != "weather-clear-symbolic" {
		t.Errorf("resolved %q, want symbolic variant", got)
	}
}

func TestResolveFreedesktopUnmappedNotFound(t *testing.T) {
	theme := LookupFunc(func(string) bool { return false })

	got := ResolveFreedesktop(discardLogger(), theme, "no-such-icon")
	if got != "image-missing" {
		t.Errorf("resolved %q, want image-missing", got)
	}
}

// --- App id helpers ---

func TestNormalizeAppID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"firefox", "firefox"},
		{"  firefox  ", "firefox"},
		{"@joplin", "joplin"},
		{":@ zen", "zen"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeAppID(tt.in); got != tt.want {
			t.Errorf("NormalizeAppID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAppIconName(t *testing.T) {
	theme := LookupFunc(func(name string) bool {
		return name == "firefox" || name == "spotify"
	})

	if got := AppIconName(theme, "firefox", "audio-x-generic"); got != "firefox" {
		t.Errorf("direct match = %q, want firefox", got)
	}
	if got := AppIconName(theme, "Spotify", "audio-x-generic"); got != "spotify" {
		t.Errorf("lowercase match = %q, want spotify", got)
	}
	if got := AppIconName(theme, "unknown-app", "audio-x-generic"); got != "audio-x-generic" {
		t.Errorf("fallback = %q, want audio-x-generic", got)
	}
	if got := AppIconName(theme, "", "audio-x-generic"); got != "audio-x-generic" {
		t.Errorf("empty app id = %q, want fallback", got)
	}
}

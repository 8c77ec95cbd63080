// Package media tracks MPRIS players on the session bus and exposes the
// state of the best one. Every discovered player stays connected so
// switching between them is instant and the selector can show live
// status for all of them.
package media

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// PlaybackStatus is the MPRIS playback state.
type PlaybackStatus int

const (
	StatusStopped PlaybackStatus = iota
	StatusPaused
	StatusPlaying
)

func statusFromString(s string) PlaybackStatus {
	switch s {
	case "Playing":
		return StatusPlaying
	case "Paused":
		return StatusPaused
	default:
		return StatusStopped
	}
}

func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// Metadata describes the current track. Empty strings and a zero length
// mean the player did not report the field.
type Metadata struct {
	Title   string
	Artist  string
	Album   string
	ArtURL  string
	URL     string
	Length  int64 // microseconds
	TrackID string
}

// PlayerInfo is a row for the player selector.
type PlayerInfo struct {
	BusName    string
	PlayerName string
	Status     PlaybackStatus
	Active     bool
}

// Snapshot is the state of the active player.
type Snapshot struct {
	Available     bool
	PlayerName    string
	PlayerID      string
	Status        PlaybackStatus
	Metadata      Metadata
	Position      int64 // microseconds
	CanPlay       bool
	CanPause      bool
	CanGoNext     bool
	CanGoPrevious bool
	CanSeek       bool
}

// playerIDFromBusName extracts the short player id, e.g.
// "org.mpris.MediaPlayer2.spotify" yields "spotify".
func playerIDFromBusName(busName string) string {
	rest, ok := strings.CutPrefix(busName, mprisPrefix)
	if !ok {
		return busName
	}
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		return rest[:i]
	}
	return rest
}

func capitalizeFirst(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// parseMetadata decodes an MPRIS metadata dict. Players disagree on
// field types, so each is read tolerantly.
func parseMetadata(dict map[string]dbus.Variant) Metadata {
	var meta Metadata

	if v, ok := dict["xesam:title"]; ok {
		meta.Title, _ = v.Value().(string)
	}

	if v, ok := dict["xesam:artist"]; ok {
		switch artist := v.Value().(type) {
		case []string:
			meta.Artist = strings.Join(artist, ", ")
		case string:
			meta.Artist = artist
		}
	}

	if v, ok := dict["xesam:album"]; ok {
		meta.Album, _ = v.Value().(string)
	}
	if v, ok := dict["mpris:artUrl"]; ok {
		meta.ArtURL, _ = v.Value().(string)
	}
	if v, ok := dict["xesam:url"]; ok {
		meta.URL, _ = v.Value().(string)
	}

	if v, ok := dict["mpris:length"]; ok {
		switch length := v.Value().(type) {
		case int64:
			meta.Length = length
		case uint64:
			meta.Length = int64(length)
		}
	}

	if v, ok := dict["mpris:trackid"]; ok {
		switch id := v.Value().(type) {
		case string:
			meta.TrackID = id
		case dbus.ObjectPath:
			meta.TrackID = string(id)
		}
	}

	return meta
}

// FormatDuration renders microseconds as M:SS, or H:MM:SS past an hour.
func FormatDuration(microseconds int64) string {
	if microseconds < 0 {
		return "0:00"
	}
	totalSeconds := microseconds / 1_000_000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

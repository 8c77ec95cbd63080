package media

import "sort"

// player holds the live state of one connected MPRIS player.
type player struct {
	busName    string
	playerID   string
	playerName string

	status   PlaybackStatus
	metadata Metadata
	position int64

	canPlay       bool
	canPause      bool
	canGoNext     bool
	canGoPrevious bool
	canSeek       bool

	// Bumped on every track change so in-flight position replies for
	// the previous track are discarded.
	trackGeneration uint64
}

func (p *player) pausedWithTrack() bool {
	return p.status == StatusPaused && p.metadata.Title != ""
}

// selectBest picks which player should be active. Preference order:
// the last player that started playing if still playing, any playing
// player, the last playing player paused mid-track, the current player
// paused mid-track, any paused player with a track, the current player
// if still present, then any player at all.
func selectBest(players map[string]*player, current, lastPlaying string) string {
	if len(players) == 0 {
		return ""
	}

	if p, ok := players[lastPlaying]; ok && p.status == StatusPlaying {
		return lastPlaying
	}

	names := make([]string, 0, len(players))
	for name := range players {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if players[name].status == StatusPlaying {
			return name
		}
	}

	if p, ok := players[lastPlaying]; ok && p.pausedWithTrack() {
		return lastPlaying
	}

	if p, ok := players[current]; ok && p.pausedWithTrack() {
		return current
	}

	for _, name := range names {
		if players[name].pausedWithTrack() {
			return name
		}
	}

	if _, ok := players[current]; ok {
		return current
	}

	return names[0]
}

// Package state persists the small cross-restart document: the last
// used VPN connection and whether the media window was open. Services
// read it once at start and write back on change.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persisted is the on-disk document. Unknown fields from newer
// versions are dropped on rewrite.
type Persisted struct {
	VPN   VPNState   `json:"vpn"`
	Media MediaState `json:"media"`
}

// VPNState remembers the user's VPN preference.
type VPNState struct {
	// LastUsedUUID is the connection most recently activated by the
	// user, preferred by the toggle when nothing is active.
	LastUsedUUID string `json:"last_used_uuid,omitempty"`
}

// MediaState remembers media UI state.
type MediaState struct {
	WindowOpen bool `json:"window_open"`
}

// DefaultPath returns $XDG_STATE_HOME/vibepanel/state.json, falling
// back to ~/.local/state/vibepanel/state.json.
func DefaultPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "vibepanel", "state.json")
}

// Load reads the document at path. A missing file is not an error and
// yields the zero document.
func Load(path string) (*Persisted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Persisted{}, nil
		}
		return nil, fmt.Errorf("reading state %s: %w", path, err)
	}

	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing state %s: %w", path, err)
	}
	return &p, nil
}

// Save writes the document atomically, creating parent directories as
// needed.
func Save(path string, p *Persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Package auth handles Twitch authentication and session persistence for
// the miner. Login uses the OAuth Device Authorization Grant with the
// Android app client id, which is exempt from the web integrity check.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Session is the persisted authentication state, written to auth.json.
type Session struct {
	AccessToken string `json:"access_token"`
	UserID      int    `json:"user_id"`
	DeviceID    string `json:"device_id"`
	Login       string `json:"login"`
}

// LoadSession reads a session blob from the given path.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session file %s: %w", path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session file %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the session blob to the given path. Parent directories are
// created as needed; the write is atomic (temp file then rename).
func (s *Session) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing temp session file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp session file %s to %s: %w", tmpPath, path, err)
	}

	return nil
}

// Valid reports whether the session carries enough state to attempt reuse.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && s.UserID != 0
}

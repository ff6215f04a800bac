package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const settingsFileName = ".graphtalk"

// Settings is the .graphtalk file.
type Settings struct {
	Server      string `json:"server,omitempty"`
	Room        string `json:"room,omitempty"`
	Identity    string `json:"identity,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// merge overlays the non-empty fields of o.
func (s Settings) merge(o Settings) Settings {
	if o.Server != "" {
		s.Server = o.Server
	}
	if o.Room != "" {
		s.Room = o.Room
	}
	if o.Identity != "" {
		s.Identity = o.Identity
	}
	if o.DisplayName != "" {
		s.DisplayName = o.DisplayName
	}
	return s
}

// loadSettings reads a .graphtalk file from the current directory
// or any parent directory.
func loadSettings() *Settings {
	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	return findSettings(dir)
}

func findSettings(dir string) *Settings {
	for {
		data, err := os.ReadFile(filepath.Join(dir, settingsFileName))
		if err == nil {
			var s Settings
			if json.Unmarshal(data, &s) == nil {
				return &s
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

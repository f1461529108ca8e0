package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const maxRecent = 10

// RecentEntry is a database the user opened or wrote to.
type RecentEntry struct {
	Path     string    `json:"path"`
	Keyword  string    `json:"keyword,omitempty"`
	OpenedAt time.Time `json:"opened_at"`
}

// recentFile is a variable so tests can redirect it.
var recentFile = func() (string, error) {
	return xdg.ConfigFile(filepath.Join("sectorscan", "recent.json"))
}

// LoadRecent returns the recent list, newest first. A missing or unreadable
// file yields an empty list.
func LoadRecent() []RecentEntry {
	path, err := recentFile()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entries []RecentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		zap.L().Warn("recent list unreadable", zap.String("path", path), zap.Error(err))
		return nil
	}
	return entries
}

// SaveRecent moves dbPath to the top of the recent list.
func SaveRecent(dbPath, keyword string) error {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		abs = dbPath
	}

	entries := removeRecent(LoadRecent(), abs)
	entries = append([]RecentEntry{{Path: abs, Keyword: keyword, OpenedAt: time.Now()}}, entries...)
	if len(entries) > maxRecent {
		entries = entries[:maxRecent]
	}
	return writeRecent(entries)
}

// ForgetRecent drops dbPath from the recent list.
func ForgetRecent(dbPath string) error {
	return writeRecent(removeRecent(LoadRecent(), dbPath))
}

func removeRecent(entries []RecentEntry, path string) []RecentEntry {
	out := make([]RecentEntry, 0, len(entries))
	for _, e := range entries {
		if e.Path != path {
			out = append(out, e)
		}
	}
	return out
}

func writeRecent(entries []RecentEntry) error {
	path, err := recentFile()
	if err != nil {
		return eris.Wrap(err, "recent: locate file")
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "recent: encode")
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "recent: write")
}

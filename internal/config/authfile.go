package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

// authEntry is one provider block of an auth.json file.
type authEntry struct {
	Key     string `json:"key"`
	Type    string `json:"type"`
	BaseURL string `json:"base_url"`
}

// renamedIDs maps legacy auth.json ids to current source ids.
var renamedIDs = map[string]string{
	"kimi-for-coding": "kimi",
}

// AuthFilePaths lists the auth.json files read by default, highest priority first.
func AuthFilePaths() []string {
	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".ai-consumption-tracker", "auth.json"),
		filepath.Join(home, ".local", "share", "opencode", "auth.json"),
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			paths = append(paths, filepath.Join(appData, "opencode", "auth.json"))
		}
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			paths = append(paths, filepath.Join(localAppData, "opencode", "auth.json"))
		}
	} else if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		paths = append(paths, filepath.Join(dataHome, "opencode", "auth.json"))
	}
	paths = append(paths, filepath.Join(home, ".opencode", "auth.json"))
	return lo.Uniq(paths)
}

// LoadAuthFiles reads source configs from auth.json files. For each source id
// the first file that mentions it wins. Missing files are skipped; an
// unparsable file is logged and skipped.
func LoadAuthFiles(paths ...string) []core.SourceConfig {
	var out []core.SourceConfig
	seen := make(map[string]bool)
	for _, path := range paths {
		entries, err := readAuthFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("[config] skipping %s: %v", path, err)
			}
			continue
		}
		ids := lo.Keys(entries)
		slices.Sort(ids)
		for _, rawID := range ids {
			id := strings.ToLower(strings.TrimSpace(rawID))
			if id == "" || id == "app_settings" {
				continue
			}
			if renamed, ok := renamedIDs[id]; ok {
				id = renamed
			}
			if seen[id] {
				continue
			}
			seen[id] = true

			entry := entries[rawID]
			src := core.SourceConfig{
				SourceID:   id,
				Type:       entry.Type,
				APIKey:     strings.TrimSpace(entry.Key),
				BaseURL:    strings.TrimSpace(entry.BaseURL),
				AuthSource: "Config: " + filepath.Base(path),
			}
			if src.Type == "" {
				src.Type = "api"
			}
			out = append(out, src)
		}
	}
	return out
}

func readAuthFile(path string) (map[string]authEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	entries := make(map[string]authEntry, len(raw))
	for id, msg := range raw {
		var entry authEntry
		// Non-object values (app_settings flags and the like) are ignored.
		if err := json.Unmarshal(msg, &entry); err != nil {
			continue
		}
		entries[id] = entry
	}
	return entries, nil
}

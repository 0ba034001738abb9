package credentials

import (
	"path/filepath"
	"strings"
)

// ProvidersFilePaths are the opencode providers.json locations, in lookup order.
func ProvidersFilePaths() []string {
	home := HomeDir()
	return []string{
		filepath.Join(home, ".local", "share", "opencode", "providers.json"),
		filepath.Join(home, ".config", "opencode", "providers.json"),
	}
}

// LookupProviderURL returns the first non-empty URL recorded for id in the
// given providers.json files. Unreadable files are skipped.
func LookupProviderURL(id string, paths ...string) string {
	for _, path := range paths {
		if !fileExists(path) {
			continue
		}
		var urls map[string]string
		if err := ReadJSON(path, &urls); err != nil {
			continue
		}
		if url := strings.TrimSpace(urls[id]); url != "" {
			return url
		}
	}
	return ""
}

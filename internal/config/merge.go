package config

import (
	"maps"
	"strings"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

// MergeSources combines source lists in priority order. The first list that
// names a source id owns its entry; later lists only fill a key or base URL
// the owner left empty. Ids compare case-insensitively.
func MergeSources(layers ...[]core.SourceConfig) []core.SourceConfig {
	var out []core.SourceConfig
	index := make(map[string]int)
	for _, layer := range layers {
		for _, src := range layer {
			id := strings.ToLower(strings.TrimSpace(src.SourceID))
			if id == "" {
				continue
			}
			i, seen := index[id]
			if !seen {
				index[id] = len(out)
				src.ModelAliases = maps.Clone(src.ModelAliases)
				src.Extra = maps.Clone(src.Extra)
				out = append(out, src)
				continue
			}
			existing := &out[i]
			if existing.APIKey == "" && existing.APIKeyEnv == "" && (src.APIKey != "" || src.APIKeyEnv != "") {
				existing.APIKey = src.APIKey
				existing.APIKeyEnv = src.APIKeyEnv
				existing.AuthSource = src.AuthSource
			}
			if existing.BaseURL == "" {
				existing.BaseURL = src.BaseURL
			}
		}
	}
	return out
}

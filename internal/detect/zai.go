package detect

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
)

// detectZAICodingHelper reads the key stored by the Z.AI coding helper in
// ~/.chelper/config.yaml.
func detectZAICodingHelper(result *Result) {
	configFile := filepath.Join(credentials.HomeDir(), ".chelper", "config.yaml")
	if !fileExists(configFile) {
		return
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		log.Printf("[detect] Failed reading Z.AI coding-helper config: %v", err)
		return
	}
	apiKey := sanitizeYAMLValue(parseZAIHelperConfig(string(content))["api_key"])
	if apiKey == "" {
		return
	}

	result.Tools = append(result.Tools, DetectedTool{
		Name:       "Z.AI Coding Helper",
		BinaryPath: findBinary("chelper"),
		ConfigPath: configFile,
		Type:       "cli",
	})
	log.Printf("[detect] Found Z.AI coding-helper config at %s", configFile)

	addSource(result, core.SourceConfig{
		SourceID:   "zai",
		Type:       "quota",
		APIKey:     apiKey,
		AuthSource: "Z.AI coding helper",
	})
}

// parseZAIHelperConfig reads the flat key: value lines of the helper config.
func parseZAIHelperConfig(content string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		out[key] = value
	}
	return out
}

func sanitizeYAMLValue(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "\"")
	trimmed = strings.TrimSuffix(trimmed, "\"")
	trimmed = strings.TrimPrefix(trimmed, "'")
	trimmed = strings.TrimSuffix(trimmed, "'")
	return strings.TrimSpace(trimmed)
}

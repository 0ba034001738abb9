package detect

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
)

const kiloSecretsKey = "kilo code.kilo-code"

// rooKeyFields maps API key properties of a Roo Cline profile to source ids.
var rooKeyFields = []struct {
	Field    string
	SourceID string
}{
	{"anthropicApiKey", "anthropic"},
	{"openAiApiKey", "openai"},
	{"geminiApiKey", "gemini-api"},
	{"openrouterApiKey", "openrouter"},
	{"mistralApiKey", "mistral"},
	{"kilocodeToken", "kilocode"},
}

func kiloSecretsPath() string {
	return filepath.Join(credentials.HomeDir(), ".kilocode", "secrets.json")
}

func providersFilePath() string {
	return credentials.ProvidersFilePaths()[0]
}

// detectKiloCode reads the Kilo Code token and the API keys of every Roo
// Cline profile embedded in the extension's secrets file.
func detectKiloCode(result *Result, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var secrets map[string]json.RawMessage
	if err := json.Unmarshal(data, &secrets); err != nil {
		log.Printf("[detect] Failed parsing %s: %v", path, err)
		return
	}
	var entry struct {
		KilocodeToken string `json:"kilocodeToken"`
		RooConfig     string `json:"roo_cline_config_api_config"`
	}
	raw, ok := secrets[kiloSecretsKey]
	if !ok || json.Unmarshal(raw, &entry) != nil {
		return
	}

	result.Tools = append(result.Tools, DetectedTool{Name: "Kilo Code", ConfigPath: path, Type: "ide"})

	if token := strings.TrimSpace(entry.KilocodeToken); token != "" {
		addSource(result, core.SourceConfig{
			SourceID:   "kilocode",
			Type:       "pay-as-you-go",
			APIKey:     token,
			AuthSource: "Kilo Code Secrets",
		})
	}
	if entry.RooConfig == "" {
		return
	}

	var roo struct {
		APIConfigs map[string]map[string]any `json:"apiConfigs"`
	}
	if err := json.Unmarshal([]byte(entry.RooConfig), &roo); err != nil {
		log.Printf("[detect] Failed parsing Roo config in %s: %v", path, err)
		return
	}
	profiles := lo.Keys(roo.APIConfigs)
	slices.Sort(profiles)
	for _, name := range profiles {
		profile := roo.APIConfigs[name]
		for _, f := range rooKeyFields {
			key, _ := profile[f.Field].(string)
			if key = strings.TrimSpace(key); key == "" {
				continue
			}
			addSource(result, core.SourceConfig{
				SourceID:   f.SourceID,
				Type:       "pay-as-you-go",
				APIKey:     key,
				AuthSource: "Kilo Code Roo Config",
			})
		}
	}
}

// detectProvidersFile adds a keyless entry for every provider listed in the
// opencode providers.json, carrying its URL when one is recorded. Keys are
// expected from another layer.
func detectProvidersFile(result *Result, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		log.Printf("[detect] Failed parsing %s: %v", path, err)
		return
	}
	ids := lo.Keys(known)
	slices.Sort(ids)
	for _, id := range ids {
		src := core.SourceConfig{
			SourceID:   id,
			Type:       "pay-as-you-go",
			AuthSource: "Config: providers.json",
		}
		var url string
		if json.Unmarshal(known[id], &url) == nil {
			src.BaseURL = strings.TrimSpace(url)
		}
		addSource(result, src)
	}
}

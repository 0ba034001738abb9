package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

func clearEnvKeys(t *testing.T) {
	t.Helper()
	for _, m := range envKeyMapping {
		t.Setenv(m.EnvVar, "")
	}
	t.Setenv("GITHUB_TOKEN", "")
}

func findSource(result Result, id string) (core.SourceConfig, bool) {
	for _, s := range result.Sources {
		if s.SourceID == id {
			return s, true
		}
	}
	return core.SourceConfig{}, false
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDetectEnvKeys_FirstVariableWins(t *testing.T) {
	clearEnvKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-1234567890")
	t.Setenv("CLAUDE_API_KEY", "sk-claude-1234567890")
	t.Setenv("MOONSHOT_API_KEY", "moonshot-1234567890")

	var result Result
	detectEnvKeys(&result)

	if len(result.Sources) != 2 {
		t.Fatalf("sources = %+v, want anthropic and kimi", result.Sources)
	}
	anthropic, ok := findSource(result, "anthropic")
	if !ok || anthropic.APIKeyEnv != "ANTHROPIC_API_KEY" || anthropic.AuthSource != "Env: ANTHROPIC_API_KEY" {
		t.Errorf("anthropic = %+v", anthropic)
	}
	if anthropic.APIKey != "" {
		t.Error("detected sources must reference the variable, not copy the key")
	}
	kimi, ok := findSource(result, "kimi")
	if !ok || kimi.APIKeyEnv != "MOONSHOT_API_KEY" || kimi.Type != "pay-as-you-go" {
		t.Errorf("kimi = %+v", kimi)
	}
}

func TestDetectEnvKeys_SkipsEmpty(t *testing.T) {
	clearEnvKeys(t)
	t.Setenv("OPENAI_API_KEY", "   ")

	var result Result
	detectEnvKeys(&result)

	if len(result.Sources) != 0 {
		t.Errorf("sources = %+v, want none", result.Sources)
	}
}

func TestAddSource_KeylessEntryTakesLaterKey(t *testing.T) {
	var result Result
	addSource(&result, core.SourceConfig{SourceID: "openrouter", BaseURL: "https://or.test", AuthSource: "Config: providers.json"})
	addSource(&result, core.SourceConfig{SourceID: "OpenRouter", APIKey: "k1", AuthSource: "Kilo Code Roo Config"})
	addSource(&result, core.SourceConfig{SourceID: "openrouter", APIKey: "k2"})
	addSource(&result, core.SourceConfig{SourceID: "mistral"})

	if len(result.Sources) != 2 {
		t.Fatalf("sources = %+v", result.Sources)
	}
	got := result.Sources[0]
	if got.APIKey != "k1" || got.BaseURL != "https://or.test" || got.AuthSource != "Kilo Code Roo Config" {
		t.Errorf("openrouter = %+v", got)
	}
}

func TestDetectKiloCode(t *testing.T) {
	roo, err := json.Marshal(map[string]any{
		"apiConfigs": map[string]any{
			"default": map[string]any{"anthropicApiKey": "sk-ant-roo", "openAiApiKey": ""},
			"work":    map[string]any{"openrouterApiKey": "sk-or-roo", "geminiApiKey": "g-roo"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	secrets, err := json.Marshal(map[string]any{
		kiloSecretsKey: map[string]any{
			"kilocodeToken":               "kilo-token",
			"roo_cline_config_api_config": string(roo),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "secrets.json")
	writeFile(t, path, string(secrets))

	var result Result
	detectKiloCode(&result, path)

	want := map[string]string{
		"kilocode":   "kilo-token",
		"anthropic":  "sk-ant-roo",
		"openrouter": "sk-or-roo",
		"gemini-api": "g-roo",
	}
	if len(result.Sources) != len(want) {
		t.Fatalf("sources = %+v", result.Sources)
	}
	for id, key := range want {
		src, ok := findSource(result, id)
		if !ok || src.APIKey != key {
			t.Errorf("%s = %+v, want key %q", id, src, key)
		}
	}
	if _, ok := findSource(result, "openai"); ok {
		t.Error("empty openAiApiKey should be skipped")
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "Kilo Code" {
		t.Errorf("tools = %+v", result.Tools)
	}
}

func TestDetectKiloCode_MissingFile(t *testing.T) {
	var result Result
	detectKiloCode(&result, filepath.Join(t.TempDir(), "secrets.json"))
	if len(result.Sources) != 0 || len(result.Tools) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestDetectProvidersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.json")
	writeFile(t, path, `{"synthetic": "https://synthetic.test/v2/quotas", "minimax": {"enabled": true}}`)

	var result Result
	detectProvidersFile(&result, path)

	if len(result.Sources) != 2 {
		t.Fatalf("sources = %+v", result.Sources)
	}
	if result.Sources[0].SourceID != "minimax" || result.Sources[0].BaseURL != "" {
		t.Errorf("minimax = %+v", result.Sources[0])
	}
	if result.Sources[1].BaseURL != "https://synthetic.test/v2/quotas" || result.Sources[1].AuthSource != "Config: providers.json" {
		t.Errorf("synthetic = %+v", result.Sources[1])
	}
}

func TestSystemSources_FromCredentialFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CODEX_HOME", "")
	t.Setenv("PATH", "")
	clearEnvKeys(t)

	writeFile(t, filepath.Join(home, ".claude", ".credentials.json"), `{"claudeAiOauth":{"accessToken":"a"}}`)
	writeFile(t, filepath.Join(home, ".codex", "auth.json"), `{"tokens":{"access_token":"a"}}`)
	writeFile(t, filepath.Join(home, ".config", "opencode", "antigravity-accounts.json"),
		`{"accounts":[{"email":"a@example.com","refreshToken":"r"}]}`)
	writeFile(t, filepath.Join(home, ".chelper", "config.yaml"), "lang: en_US\napi_key: \"zai-helper-key\"\n")

	result := AutoDetect()

	claude, ok := findSource(result, "claude-code")
	if !ok || claude.Extra["credentials_file"] != filepath.Join(home, ".claude", ".credentials.json") {
		t.Errorf("claude-code = %+v", claude)
	}
	codex, ok := findSource(result, "codex")
	if !ok || codex.Extra["auth_file"] != filepath.Join(home, ".codex", "auth.json") {
		t.Errorf("codex = %+v", codex)
	}
	if _, ok := findSource(result, "gemini-cli"); !ok {
		t.Error("gemini-cli not detected")
	}
	zai, ok := findSource(result, "zai")
	if !ok || zai.APIKey != "zai-helper-key" {
		t.Errorf("zai = %+v", zai)
	}
	if _, ok := findSource(result, "github-copilot"); ok {
		t.Error("github-copilot needs gh or GITHUB_TOKEN")
	}
}

func TestDetectGHCopilot_FromToken(t *testing.T) {
	t.Setenv("PATH", "")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	var result Result
	detectGHCopilot(&result)

	src, ok := findSource(result, "github-copilot")
	if !ok || src.APIKeyEnv != "GITHUB_TOKEN" || src.AuthSource != "Env: GITHUB_TOKEN" {
		t.Errorf("github-copilot = %+v", src)
	}
}

func TestResultSummary(t *testing.T) {
	result := Result{
		Tools:   []DetectedTool{{Name: "Codex", Type: "cli", BinaryPath: "/usr/bin/codex"}},
		Sources: []core.SourceConfig{{SourceID: "codex", AuthSource: "Codex auth.json"}},
	}
	summary := result.Summary()
	if !strings.Contains(summary, "Codex (cli) at /usr/bin/codex") || !strings.Contains(summary, "codex (Codex auth.json)") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(Result{}.Summary(), "No AI tools") {
		t.Error("empty summary should say nothing was detected")
	}
}

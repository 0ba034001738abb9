// Package detect finds API keys and AI tool credentials present on the
// workstation and turns them into source configs.
package detect

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

// DetectedTool represents a tool found on the workstation.
type DetectedTool struct {
	Name       string // e.g. "Claude Code CLI", "Kilo Code"
	BinaryPath string // resolved path to binary, if applicable
	ConfigPath string // credential or config file that triggered detection
	Type       string // "cli", "ide", "api"
}

// Result holds the full auto-detection result.
type Result struct {
	Tools   []DetectedTool
	Sources []core.SourceConfig
}

// AutoDetect scans the workstation for credentials of known sources.
// Local tool credentials come first so their entries win over env keys.
func AutoDetect() Result {
	var result Result

	detectClaudeCode(&result)
	detectCodex(&result)
	detectGeminiCLI(&result)
	detectAntigravity(&result)
	detectGHCopilot(&result)
	detectZAICodingHelper(&result)

	detectEnvKeys(&result)

	detectKiloCode(&result, kiloSecretsPath())
	detectProvidersFile(&result, providersFilePath())

	return result
}

func findBinary(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// addSource adds src unless a source with the same ID is already present.
// A keyless entry picks up the key of a later duplicate.
func addSource(result *Result, src core.SourceConfig) {
	for i := range result.Sources {
		existing := &result.Sources[i]
		if !strings.EqualFold(existing.SourceID, src.SourceID) {
			continue
		}
		if existing.APIKey == "" && existing.APIKeyEnv == "" && (src.APIKey != "" || src.APIKeyEnv != "") {
			existing.APIKey = src.APIKey
			existing.APIKeyEnv = src.APIKeyEnv
			existing.AuthSource = src.AuthSource
		}
		return
	}
	result.Sources = append(result.Sources, src)
}

// envKeyMapping maps environment variables to source ids. The first set
// variable of a source wins.
var envKeyMapping = []struct {
	EnvVar   string
	SourceID string
}{
	{"OPENAI_API_KEY", "openai"},
	{"ANTHROPIC_API_KEY", "anthropic"},
	{"CLAUDE_API_KEY", "anthropic"},
	{"GEMINI_API_KEY", "gemini-api"},
	{"GOOGLE_API_KEY", "gemini-api"},
	{"DEEPSEEK_API_KEY", "deepseek"},
	{"OPENROUTER_API_KEY", "openrouter"},
	{"MISTRAL_API_KEY", "mistral"},
	{"GROQ_API_KEY", "groq"},
	{"XAI_API_KEY", "xai"},
	{"KIMI_API_KEY", "kimi"},
	{"MOONSHOT_API_KEY", "kimi"},
	{"ZAI_API_KEY", "zai"},
	{"Z_AI_API_KEY", "zai"},
	{"SYNTHETIC_API_KEY", "synthetic"},
	{"OPENCODE_API_KEY", "opencode"},
	{"ZEN_API_KEY", "opencode-zen"},
	{"MINIMAX_API_KEY", "minimax"},
	{"XIAOMI_API_KEY", "xiaomi"},
	{"MIMO_API_KEY", "xiaomi"},
	{"KILOCODE_API_KEY", "kilocode"},
}

// detectEnvKeys records the variable name, not the key, so detected sources
// can be persisted without secrets.
func detectEnvKeys(result *Result) {
	for _, mapping := range envKeyMapping {
		val := strings.TrimSpace(os.Getenv(mapping.EnvVar))
		if val == "" {
			continue
		}

		log.Printf("[detect] Found %s=%s", mapping.EnvVar, maskKey(val))

		addSource(result, core.SourceConfig{
			SourceID:   mapping.SourceID,
			Type:       "pay-as-you-go",
			APIKeyEnv:  mapping.EnvVar,
			AuthSource: "Env: " + mapping.EnvVar,
		})
	}
}

func maskKey(val string) string {
	if len(val) < 10 {
		return "****"
	}
	return val[:4] + "..." + val[len(val)-4:]
}

// Summary returns a human-readable summary of what was detected.
func (r Result) Summary() string {
	var sb strings.Builder
	if len(r.Tools) > 0 {
		sb.WriteString(fmt.Sprintf("Detected %d tool(s):\n", len(r.Tools)))
		for _, t := range r.Tools {
			sb.WriteString(fmt.Sprintf("  • %s (%s)", t.Name, t.Type))
			if t.BinaryPath != "" {
				sb.WriteString(fmt.Sprintf(" at %s", t.BinaryPath))
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Sources) > 0 {
		sb.WriteString(fmt.Sprintf("Auto-configured %d source(s):\n", len(r.Sources)))
		for _, s := range r.Sources {
			sb.WriteString(fmt.Sprintf("  • %s (%s)\n", s.SourceID, s.AuthSource))
		}
	}
	if len(r.Tools) == 0 && len(r.Sources) == 0 {
		sb.WriteString("No AI tools or API keys detected on this workstation.\n")
	}
	return sb.String()
}

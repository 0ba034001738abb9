package detect

import (
	"log"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
)

// detectClaudeCode adds the claude-code source when the CLI has left OAuth
// credentials on disk. The binary itself is optional.
func detectClaudeCode(result *Result) {
	credsFile := credentials.ClaudeCredentialsPath()
	if !fileExists(credsFile) {
		return
	}

	bin := findBinary("claude")
	result.Tools = append(result.Tools, DetectedTool{
		Name:       "Claude Code CLI",
		BinaryPath: bin,
		ConfigPath: credsFile,
		Type:       "cli",
	})
	log.Printf("[detect] Claude Code credentials found at %s", credsFile)

	addSource(result, core.SourceConfig{
		SourceID:   "claude-code",
		Type:       "oauth",
		AuthSource: "Claude Code credentials",
		Extra:      map[string]string{"credentials_file": credsFile},
	})
}

package detect

import (
	"log"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
)

// detectCodex adds the codex source when ~/.codex/auth.json (or
// $CODEX_HOME/auth.json) exists.
func detectCodex(result *Result) {
	authFile := credentials.CodexAuthPath()
	if !fileExists(authFile) {
		return
	}

	result.Tools = append(result.Tools, DetectedTool{
		Name:       "OpenAI Codex CLI",
		BinaryPath: findBinary("codex"),
		ConfigPath: authFile,
		Type:       "cli",
	})
	log.Printf("[detect] Codex auth found at %s", authFile)

	addSource(result, core.SourceConfig{
		SourceID:   "codex",
		Type:       "oauth",
		AuthSource: "Codex auth.json",
		Extra:      map[string]string{"auth_file": authFile},
	})
}

package detect

import (
	"log"
	"os"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/credentials"
)

// detectGeminiCLI adds gemini-cli when an accounts file with refresh tokens
// is present.
func detectGeminiCLI(result *Result) {
	accountsFile := credentials.GoogleAccountsPath()
	if !fileExists(accountsFile) {
		return
	}
	accounts, err := credentials.LoadGoogleAccounts(accountsFile)
	if err != nil || len(accounts) == 0 {
		log.Printf("[detect] %s has no usable accounts, skipping", accountsFile)
		return
	}

	result.Tools = append(result.Tools, DetectedTool{
		Name:       "Gemini CLI",
		BinaryPath: findBinary("gemini"),
		ConfigPath: accountsFile,
		Type:       "cli",
	})
	log.Printf("[detect] Found %d Google account(s) in %s", len(accounts), accountsFile)

	addSource(result, core.SourceConfig{
		SourceID:   "gemini-cli",
		Type:       "oauth",
		AuthSource: "Google accounts file",
		Extra:      map[string]string{"accounts_file": accountsFile},
	})
}

// detectAntigravity adds antigravity when the IDE's state database exists.
// Whether the language server is running is decided at fetch time.
func detectAntigravity(result *Result) {
	stateDB := credentials.AntigravityStatePath()
	if !fileExists(stateDB) {
		return
	}

	result.Tools = append(result.Tools, DetectedTool{
		Name:       "Antigravity",
		ConfigPath: stateDB,
		Type:       "ide",
	})
	log.Printf("[detect] Found Antigravity state at %s", stateDB)

	addSource(result, core.SourceConfig{
		SourceID:   "antigravity",
		Type:       "local",
		AuthSource: "Local language server",
		Extra:      map[string]string{"state_db": stateDB},
	})
}

// detectGHCopilot adds github-copilot when a GitHub token is available from
// the environment or the gh CLI is installed.
func detectGHCopilot(result *Result) {
	bin := findBinary("gh")
	hasToken := os.Getenv("GITHUB_TOKEN") != ""
	if bin == "" && !hasToken {
		return
	}

	if bin != "" {
		result.Tools = append(result.Tools, DetectedTool{
			Name:       "GitHub CLI",
			BinaryPath: bin,
			Type:       "cli",
		})
		log.Printf("[detect] Found gh CLI at %s", bin)
	}

	src := core.SourceConfig{
		SourceID:   "github-copilot",
		Type:       "oauth",
		AuthSource: "gh CLI",
	}
	if hasToken {
		src.APIKeyEnv = "GITHUB_TOKEN"
		src.AuthSource = "Env: GITHUB_TOKEN"
	}
	addSource(result, src)
}

package credentials

import (
	"os"
	"path/filepath"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

// CodexAuth is what ~/.codex/auth.json yields once the id_token is decoded.
type CodexAuth struct {
	AccessToken string
	AccountID   string
	Email       string
	PlanType    string
}

type codexAuthFile struct {
	Tokens    codexTokens `json:"tokens"`
	AccountID string      `json:"account_id"`
}

type codexTokens struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccountID    string `json:"account_id"`
}

// CodexAuthPath honours CODEX_HOME like the Codex CLI does.
func CodexAuthPath() string {
	if dir := os.Getenv("CODEX_HOME"); dir != "" {
		return filepath.Join(dir, "auth.json")
	}
	return filepath.Join(HomeDir(), ".codex", "auth.json")
}

func LoadCodex(path string) (CodexAuth, error) {
	var file codexAuthFile
	if err := ReadJSON(path, &file); err != nil {
		return CodexAuth{}, err
	}
	if file.Tokens.AccessToken == "" {
		return CodexAuth{}, core.Errorf(core.KindConfigMissing, "no ChatGPT login in %s", path)
	}

	auth := CodexAuth{AccessToken: file.Tokens.AccessToken, AccountID: file.Tokens.AccountID}
	if auth.AccountID == "" {
		auth.AccountID = file.AccountID
	}
	if claims := decodeJWTPayload(file.Tokens.IDToken); claims != nil {
		auth.Email, _ = claims["email"].(string)
		// Plan type is nested under the OpenAI auth claim.
		if authData, ok := claims["https://api.openai.com/auth"].(map[string]any); ok {
			auth.PlanType, _ = authData["chatgpt_plan_type"].(string)
			if auth.AccountID == "" {
				auth.AccountID, _ = authData["chatgpt_account_id"].(string)
			}
		}
	}
	return auth, nil
}

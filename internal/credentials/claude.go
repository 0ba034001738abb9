package credentials

import (
	"path/filepath"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

// ClaudeOAuth is the claudeAiOauth block of ~/.claude/.credentials.json.
type ClaudeOAuth struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresAt        int64    `json:"expiresAt"`
	Scopes           []string `json:"scopes"`
	SubscriptionType string   `json:"subscriptionType"`
}

// Expired reports whether the token expired before now. Files without an
// expiry never expire.
func (c ClaudeOAuth) Expired(now time.Time) bool {
	return c.ExpiresAt > 0 && !time.UnixMilli(c.ExpiresAt).After(now)
}

func ClaudeCredentialsPath() string {
	return filepath.Join(HomeDir(), ".claude", ".credentials.json")
}

func LoadClaude(path string) (ClaudeOAuth, error) {
	var file struct {
		ClaudeAiOauth *ClaudeOAuth `json:"claudeAiOauth"`
	}
	if err := ReadJSON(path, &file); err != nil {
		return ClaudeOAuth{}, err
	}
	if file.ClaudeAiOauth == nil || file.ClaudeAiOauth.AccessToken == "" {
		return ClaudeOAuth{}, core.Errorf(core.KindConfigMissing, "no Claude OAuth token in %s", path)
	}
	return *file.ClaudeAiOauth, nil
}

package credentials

import (
	"path/filepath"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

// GoogleAccount is one entry of the opencode antigravity-accounts.json file.
type GoogleAccount struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ProjectID    string `json:"projectId"`
}

func GoogleAccountsPath() string {
	return filepath.Join(HomeDir(), ".config", "opencode", "antigravity-accounts.json")
}

// LoadGoogleAccounts returns the accounts that carry a refresh token.
func LoadGoogleAccounts(path string) ([]GoogleAccount, error) {
	var file struct {
		Accounts []GoogleAccount `json:"accounts"`
	}
	if err := ReadJSON(path, &file); err != nil {
		return nil, err
	}
	var out []GoogleAccount
	for _, a := range file.Accounts {
		if a.RefreshToken != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, core.Errorf(core.KindConfigMissing, "no Google accounts in %s", path)
	}
	return out, nil
}

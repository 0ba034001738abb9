package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/mattn/go-sqlite3"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

const antigravityAuthKey = "antigravityAuthStatus"

// ReadStateValue reads one key from the ItemTable of a VS Code style
// state.vscdb. The database is opened read-only.
func ReadStateValue(ctx context.Context, path, key string) (string, error) {
	if !fileExists(path) {
		return "", core.Errorf(core.KindConfigMissing, "%s not found", path)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", path))
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM ItemTable WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.Errorf(core.KindConfigMissing, "key %q not in %s", key, filepath.Base(path))
	}
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", key, err)
	}
	return value, nil
}

// AntigravityStatePath is the global state database of the Antigravity IDE.
func AntigravityStatePath() string {
	home := HomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Antigravity", "User", "globalStorage", "state.vscdb")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Antigravity", "User", "globalStorage", "state.vscdb")
	}
	return filepath.Join(home, ".config", "Antigravity", "User", "globalStorage", "state.vscdb")
}

// AntigravityEmail returns the signed-in account recorded by the IDE.
func AntigravityEmail(ctx context.Context, path string) (string, error) {
	raw, err := ReadStateValue(ctx, path, antigravityAuthKey)
	if err != nil {
		return "", err
	}
	var status struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return "", core.WrapError(core.KindUpstreamMalformed, "parsing "+antigravityAuthKey, err)
	}
	return status.Email, nil
}

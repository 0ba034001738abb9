// Package credentials reads the credential files other AI tools leave on
// disk. Nothing here writes to those files.
package credentials

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

// HomeDir returns the user's home directory, or "." when it cannot be found.
func HomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// ReadJSON decodes the file at path into v. A missing file is reported as
// config_missing, an unparsable one as upstream_malformed.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Errorf(core.KindConfigMissing, "%s not found", path)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.WrapError(core.KindUpstreamMalformed, "parsing "+filepath.Base(path), err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// decodeJWTPayload decodes a JWT's claims without verifying the signature.
func decodeJWTPayload(token string) map[string]any {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) < 2 {
		return nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil
	}
	var claims map[string]any
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil
	}
	return claims
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

type Credentials struct {
	Keys map[string]string `json:"keys"` // source ID → API key
}

// credMu guards read-modify-write cycles on the credentials file.
var credMu sync.Mutex

func CredentialsPath() string {
	return filepath.Join(ConfigDir(), "credentials.json")
}

func LoadCredentials() (Credentials, error) {
	return LoadCredentialsFrom(CredentialsPath())
}

func LoadCredentialsFrom(path string) (Credentials, error) {
	creds := Credentials{Keys: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, nil
		}
		return creds, fmt.Errorf("reading credentials: %w", err)
	}

	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{Keys: make(map[string]string)}, fmt.Errorf("parsing credentials %s: %w", path, err)
	}

	if creds.Keys == nil {
		creds.Keys = make(map[string]string)
	}

	return creds, nil
}

// Sources returns one api-type source per stored key, sorted by id, for use
// as a MergeSources layer.
func (c Credentials) Sources() []core.SourceConfig {
	ids := lo.Keys(c.Keys)
	slices.Sort(ids)
	var out []core.SourceConfig
	for _, id := range ids {
		if c.Keys[id] == "" {
			continue
		}
		out = append(out, core.SourceConfig{
			SourceID:   id,
			Type:       "api",
			APIKey:     c.Keys[id],
			AuthSource: "Config: credentials.json",
		})
	}
	return out
}

func SaveCredential(sourceID, apiKey string) error {
	return SaveCredentialTo(CredentialsPath(), sourceID, apiKey)
}

func SaveCredentialTo(path, sourceID, apiKey string) error {
	credMu.Lock()
	defer credMu.Unlock()

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		creds = Credentials{Keys: make(map[string]string)}
	}

	creds.Keys[sourceID] = apiKey

	return writeCredentials(path, creds)
}

func DeleteCredential(sourceID string) error {
	return DeleteCredentialFrom(CredentialsPath(), sourceID)
}

func DeleteCredentialFrom(path, sourceID string) error {
	credMu.Lock()
	defer credMu.Unlock()

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		return err
	}

	delete(creds.Keys, sourceID)

	return writeCredentials(path, creds)
}

func writeCredentials(path string, creds Credentials) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

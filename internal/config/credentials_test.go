package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

func TestSaveAndLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	if err := SaveCredentialTo(path, "openai", "sk-test-key-123"); err != nil {
		t.Fatalf("SaveCredentialTo error: %v", err)
	}
	if err := SaveCredentialTo(path, "anthropic", "sk-ant-456"); err != nil {
		t.Fatalf("SaveCredentialTo error: %v", err)
	}

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		t.Fatalf("LoadCredentialsFrom error: %v", err)
	}

	if len(creds.Keys) != 2 {
		t.Fatalf("keys count = %d, want 2", len(creds.Keys))
	}
	if creds.Keys["openai"] != "sk-test-key-123" {
		t.Errorf("openai key = %q, want sk-test-key-123", creds.Keys["openai"])
	}
	if creds.Keys["anthropic"] != "sk-ant-456" {
		t.Errorf("anthropic key = %q, want sk-ant-456", creds.Keys["anthropic"])
	}
}

func TestDeleteCredential(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	if err := SaveCredentialTo(path, "openai", "sk-test-key-123"); err != nil {
		t.Fatal(err)
	}
	if err := SaveCredentialTo(path, "anthropic", "sk-ant-456"); err != nil {
		t.Fatal(err)
	}

	if err := DeleteCredentialFrom(path, "openai"); err != nil {
		t.Fatalf("DeleteCredentialFrom error: %v", err)
	}

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(creds.Keys) != 1 {
		t.Fatalf("keys count = %d, want 1", len(creds.Keys))
	}
	if _, ok := creds.Keys["openai"]; ok {
		t.Error("openai should have been deleted")
	}
	if creds.Keys["anthropic"] != "sk-ant-456" {
		t.Errorf("anthropic key = %q, want sk-ant-456", creds.Keys["anthropic"])
	}
}

func TestLoadCredentials_FileNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent", "credentials.json")

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if creds.Keys == nil {
		t.Fatal("expected non-nil Keys map")
	}
	if len(creds.Keys) != 0 {
		t.Errorf("expected empty keys, got %d", len(creds.Keys))
	}
}

func TestSaveCredential_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deep", "dir")
	path := filepath.Join(dir, "credentials.json")

	if err := SaveCredentialTo(path, "deepseek", "sk-key-789"); err != nil {
		t.Fatalf("SaveCredentialTo error: %v", err)
	}

	// Verify the file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("credentials file was not created")
	}

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if creds.Keys["deepseek"] != "sk-key-789" {
		t.Errorf("key = %q, want sk-key-789", creds.Keys["deepseek"])
	}
}

func TestCredentialFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission test not applicable on Windows")
	}

	path := filepath.Join(t.TempDir(), "credentials.json")

	if err := SaveCredentialTo(path, "deepseek", "sk-secret"); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	perm := info.Mode().Perm()
	if perm != 0o600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestSaveCredential_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	if err := SaveCredentialTo(path, "openai", "sk-old-key"); err != nil {
		t.Fatal(err)
	}
	if err := SaveCredentialTo(path, "openai", "sk-new-key"); err != nil {
		t.Fatal(err)
	}

	creds, err := LoadCredentialsFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if creds.Keys["openai"] != "sk-new-key" {
		t.Errorf("key = %q, want sk-new-key", creds.Keys["openai"])
	}
}

func TestCredentialsSources_LayerUnderSettings(t *testing.T) {
	creds := Credentials{Keys: map[string]string{
		"openai":   "sk-stored",
		"deepseek": "ds-stored",
		"zai":      "",
	}}

	layer := creds.Sources()
	if len(layer) != 2 || layer[0].SourceID != "deepseek" || layer[1].SourceID != "openai" {
		t.Fatalf("Sources() = %+v", layer)
	}
	if layer[1].Type != "api" || layer[1].AuthSource != "Config: credentials.json" {
		t.Errorf("openai = %+v", layer[1])
	}

	settings := []core.SourceConfig{
		{SourceID: "openai", BaseURL: "https://proxy.test/v1"},
		{SourceID: "deepseek", APIKey: "ds-explicit"},
	}
	got := MergeSources(settings, layer)
	if got[0].APIKey != "sk-stored" || got[0].BaseURL != "https://proxy.test/v1" {
		t.Errorf("openai = %+v", got[0])
	}
	if got[1].APIKey != "ds-explicit" {
		t.Errorf("deepseek key = %q, explicit key must win", got[1].APIKey)
	}
}

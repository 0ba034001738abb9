package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/config"
	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/detect"
)

func testPaths(t *testing.T) paths {
	t.Helper()
	dir := t.TempDir()
	return paths{
		settings:    filepath.Join(dir, "settings.json"),
		credentials: filepath.Join(dir, "credentials.json"),
		authFiles:   []string{filepath.Join(dir, "auth.json")},
		envFiles:    []string{filepath.Join(dir, ".env")},
	}
}

func writeSettings(t *testing.T, p paths, cfg config.Config) {
	t.Helper()
	if err := config.SaveTo(p.settings, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
}

func noDetection() detect.Result { return detect.Result{} }

func runRoot(t *testing.T, p paths, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand(p, noDetection)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_JSONOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-from-auth-file" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	p := testPaths(t)
	cfg := config.DefaultConfig()
	cfg.AutoDetect = false
	cfg.Sources = []core.SourceConfig{{SourceID: "openai", BaseURL: server.URL}}
	writeSettings(t, p, cfg)
	if err := os.WriteFile(p.authFiles[0], []byte(`{"openai":{"key":"sk-from-auth-file"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runRoot(t, p, "--json")
	if err != nil {
		t.Fatalf("root command error: %v", err)
	}
	var records []core.UsageRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(records) != 1 {
		t.Fatalf("records = %+v", records)
	}
	r := records[0]
	if r.SourceID != "openai" || !r.Available || r.AuthSource != "Config: auth.json" {
		t.Errorf("record = %+v", r)
	}
}

func TestRoot_AllSourcesUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := testPaths(t)
	cfg := config.DefaultConfig()
	cfg.AutoDetect = false
	cfg.Sources = []core.SourceConfig{{SourceID: "mistral", APIKeyEnv: "AIUSAGE_TEST_MISTRAL", BaseURL: url}}
	writeSettings(t, p, cfg)
	t.Setenv("AIUSAGE_TEST_MISTRAL", "m-key")

	out, err := runRoot(t, p)
	if !errors.Is(err, core.ErrAllSourcesUnreachable) {
		t.Fatalf("err = %v, want ErrAllSourcesUnreachable", err)
	}
	if !strings.Contains(out, "unavailable") {
		t.Errorf("output should still list the failed source:\n%s", out)
	}
}

func TestRoot_InvalidSettings(t *testing.T) {
	p := testPaths(t)
	if err := os.WriteFile(p.settings, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runRoot(t, p); err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("err = %v", err)
	}
}

func TestKeysAndSourcesCommands(t *testing.T) {
	p := testPaths(t)

	if _, err := runRoot(t, p, "keys", "set", "deepseek", "ds-key"); err != nil {
		t.Fatalf("keys set: %v", err)
	}
	out, err := runRoot(t, p, "sources")
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	for _, want := range []string{"antigravity", "github-copilot", "local credentials", "deepseek", "Config: credentials.json", "key set"} {
		if !strings.Contains(out, want) {
			t.Errorf("sources output missing %q:\n%s", want, out)
		}
	}

	if _, err := runRoot(t, p, "keys", "delete", "deepseek"); err != nil {
		t.Fatalf("keys delete: %v", err)
	}
	creds, err := config.LoadCredentialsFrom(p.credentials)
	if err != nil {
		t.Fatal(err)
	}
	if len(creds.Keys) != 0 {
		t.Errorf("keys = %v, want none", creds.Keys)
	}
}

func TestSourcesSave(t *testing.T) {
	p := testPaths(t)
	detected := func() detect.Result {
		return detect.Result{Sources: []core.SourceConfig{
			{SourceID: "zai", APIKey: "secret", AuthSource: "Z.AI coding helper"},
		}}
	}
	cmd := newRootCommand(p, detected)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"sources", "--save"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("sources --save: %v", err)
	}

	data, err := os.ReadFile(p.settings)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("settings leaked the key:\n%s", data)
	}
	cfg, err := config.LoadFrom(p.settings)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.DetectedSources) != 1 || cfg.DetectedSources[0].SourceID != "zai" {
		t.Errorf("detected = %+v", cfg.DetectedSources)
	}
}

func TestResolveSources_Priority(t *testing.T) {
	p := testPaths(t)
	cfg := config.DefaultConfig()
	cfg.Sources = []core.SourceConfig{{SourceID: "kimi"}}
	cfg.DetectedSources = []core.SourceConfig{{SourceID: "xai", APIKeyEnv: "XAI_API_KEY"}}
	writeSettings(t, p, cfg)
	if err := os.WriteFile(p.envFiles[0], []byte("AIUSAGE_TEST_FROM_DOTENV=1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AIUSAGE_TEST_FROM_DOTENV", "")
	os.Unsetenv("AIUSAGE_TEST_FROM_DOTENV")
	if err := os.WriteFile(p.authFiles[0], []byte(`{"kimi-for-coding":{"key":"kimi-key"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := resolveSources(p, func() detect.Result {
		return detect.Result{Sources: []core.SourceConfig{{SourceID: "xai", APIKeyEnv: "OTHER"}, {SourceID: "groq"}}}
	})
	if err != nil {
		t.Fatalf("resolveSources: %v", err)
	}
	if os.Getenv("AIUSAGE_TEST_FROM_DOTENV") != "1" {
		t.Error(".env file was not loaded")
	}

	ids := make([]string, len(r.sources))
	for i, s := range r.sources {
		ids[i] = s.SourceID
	}
	if strings.Join(ids, ",") != "kimi,xai,groq" {
		t.Fatalf("ids = %v", ids)
	}
	if r.sources[0].APIKey != "kimi-key" {
		t.Errorf("kimi = %+v", r.sources[0])
	}
	if r.sources[1].APIKeyEnv != "OTHER" {
		t.Errorf("xai = %+v, fresh detection wins over saved detection", r.sources[1])
	}
}

func TestRenderRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(90 * time.Minute)

	ok := renderRecord(core.UsageRecord{
		DisplayName:         "Codex",
		AccountIdentity:     "me@example.com",
		Available:           true,
		PercentageRemaining: 42,
		Description:         "58.0% Used",
		NextResetTime:       &reset,
	}, now)
	for _, want := range []string{"Codex · me@example.com", "42.0%", "58.0% Used", "resets in 1h 30m"} {
		if !strings.Contains(ok, want) {
			t.Errorf("rendered %q missing %q", ok, want)
		}
	}

	missing := renderRecord(core.UsageRecord{DisplayName: "OpenAI", FailureKind: core.KindConfigMissing, Description: "API key not configured"}, now)
	if !strings.Contains(missing, "not configured") {
		t.Errorf("rendered %q", missing)
	}

	model := renderRecord(core.UsageRecord{DisplayName: "Antigravity", Model: "Gemini 3 Pro", Kind: core.RecordExpansion, Available: true, State: core.StateUnknown}, now)
	if !strings.Contains(model, "Gemini 3 Pro") || !strings.Contains(model, "N/A") {
		t.Errorf("rendered %q", model)
	}
}

func TestFormatUntil(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Minute, "5m"},
		{2*time.Hour + 10*time.Minute, "2h 10m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		if got := formatUntil(tt.d); got != tt.want {
			t.Errorf("formatUntil(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

package synthetic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

func TestFetch_Subscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/quotas" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"subscription":{"limit":135000,"requests":35000,"renewsAt":"2026-03-05T00:00:00Z"}}`))
	}))
	defer server.Close()

	p := New()
	p.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	records, err := p.Fetch(context.Background(), core.SourceConfig{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	r := records[0]
	if r.AmountUsed != 35000 || r.AmountAvailable != 135000 {
		t.Errorf("amounts = %v / %v", r.AmountUsed, r.AmountAvailable)
	}
	if !strings.HasPrefix(r.Description, "35000 / 135000 credits (Resets: ") {
		t.Errorf("Description = %q", r.Description)
	}
	if r.NextResetTime == nil {
		t.Error("NextResetTime is nil")
	}
}

func TestFetch_MissingSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plan":"standard"}`))
	}))
	defer server.Close()

	records, _ := New().Fetch(context.Background(), core.SourceConfig{APIKey: "k", BaseURL: server.URL})
	if r := records[0]; r.Available || r.FailureKind != core.KindUpstreamMalformed {
		t.Errorf("record = %+v", r)
	}
}

func TestFetch_InvalidBaseURL(t *testing.T) {
	records, err := New().Fetch(context.Background(), core.SourceConfig{SourceID: "synthetic", APIKey: "k", BaseURL: "http://bad host:x"})
	if err != nil {
		t.Fatalf("Fetch() error = %v, want an unavailable record", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %+v", records)
	}
	if r := records[0]; r.Available || r.FailureKind != core.KindConfigMissing {
		t.Errorf("record = %+v, want config_missing", r)
	}
}

func TestEngine_InvalidBaseURLIsNotAnOutage(t *testing.T) {
	e := core.NewEngine(time.Minute)
	e.RegisterSource(New())
	records, err := e.Refresh(context.Background(), []core.SourceConfig{{SourceID: "synthetic", APIKey: "k", BaseURL: "http://bad host:x"}})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(records) != 1 || records[0].FailureKind != core.KindConfigMissing {
		t.Errorf("records = %+v", records)
	}
}

func TestQuotasURL(t *testing.T) {
	dir := t.TempDir()
	providers := filepath.Join(dir, "providers.json")
	if err := os.WriteFile(providers, []byte(`{"synthetic":"https://proxy.example.com/v2/quotas"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	p := New()
	p.providerFiles = []string{providers}
	if got := p.quotasURL(core.SourceConfig{}); got != "https://proxy.example.com/v2/quotas" {
		t.Errorf("providers.json url = %q", got)
	}
	if got := p.quotasURL(core.SourceConfig{BaseURL: "https://api.synthetic.new/"}); got != defaultQuotasURL {
		t.Errorf("base url = %q", got)
	}

	p.providerFiles = nil
	if got := p.quotasURL(core.SourceConfig{}); got != defaultQuotasURL {
		t.Errorf("default url = %q", got)
	}
}

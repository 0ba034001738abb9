package groq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

func TestFetch_DailyAndMinuteWindows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ratelimit-limit-requests", "30")
		w.Header().Set("x-ratelimit-remaining-requests", "28")
		w.Header().Set("x-ratelimit-limit-requests-day", "14400")
		w.Header().Set("x-ratelimit-remaining-requests-day", "1440")
		w.Header().Set("x-ratelimit-reset-requests-day", "2h0m0s")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	records, err := p.Fetch(context.Background(), core.SourceConfig{APIKey: "gsk-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	r := records[0]
	if r.Description != "Remaining: 28/30 RPM, 1440/14400 RPD" {
		t.Errorf("Description = %q", r.Description)
	}
	if r.PercentageRemaining != 10 {
		t.Errorf("PercentageRemaining = %v, want daily window 10", r.PercentageRemaining)
	}
	if len(r.Details) != 2 {
		t.Errorf("details = %+v", r.Details)
	}
}

func TestFetch_NoKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	records, _ := New().Fetch(context.Background(), core.SourceConfig{})
	if records[0].Available || records[0].FailureKind != core.KindConfigMissing {
		t.Errorf("record = %+v", records[0])
	}
}

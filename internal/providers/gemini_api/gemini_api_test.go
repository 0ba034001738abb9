package gemini_api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

func TestFetch_ListsModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "AIza-test" {
			t.Errorf("x-goog-api-key = %q", r.Header.Get("x-goog-api-key"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header")
		}
		w.Write([]byte(`{"models":[{"name":"models/gemini-2.5-pro"},{"name":"models/gemini-2.5-flash"},{"name":"models/embedding-001"}]}`))
	}))
	defer server.Close()

	records, err := New().Fetch(context.Background(), core.SourceConfig{APIKey: "AIza-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	r := records[0]
	if !r.Available || r.Description != "Connected (3 models)" {
		t.Errorf("record = %+v", r)
	}
	if len(r.Details) != 1 || r.Details[0].Used != "2" {
		t.Errorf("details = %+v", r.Details)
	}
}

func TestFetch_BadKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer server.Close()

	records, _ := New().Fetch(context.Background(), core.SourceConfig{APIKey: "bad", BaseURL: server.URL})
	if records[0].Available || records[0].FailureKind != core.KindUpstreamRejected {
		t.Errorf("record = %+v", records[0])
	}
}

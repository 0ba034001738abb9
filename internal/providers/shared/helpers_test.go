package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

func TestGetJSON_DecodesAndSendsAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		w.Write([]byte(`{"value": 3}`))
	}))
	defer server.Close()

	var out struct{ Value int }
	resp, err := GetJSON(context.Background(), NewHTTPClient(), server.URL, "test-key", nil, &out)
	if err != nil {
		t.Fatalf("GetJSON() error: %v", err)
	}
	if out.Value != 3 || resp.Status != http.StatusOK {
		t.Errorf("decoded %+v, status %d", out, resp.Status)
	}
}

func TestGetJSON_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   core.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, core.KindUpstreamRejected},
		{"server error", http.StatusBadGateway, `oops`, core.KindUpstreamRejected},
		{"malformed", http.StatusOK, `{not json`, core.KindUpstreamMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var out map[string]any
			resp, err := GetJSON(context.Background(), NewHTTPClient(), server.URL, "", nil, &out)
			if got := core.KindOf(err); got != tt.want {
				t.Errorf("KindOf = %q, want %q (err %v)", got, tt.want, err)
			}
			if string(resp.Body) != tt.body {
				t.Errorf("body = %q, want %q", resp.Body, tt.body)
			}
		})
	}
}

func TestDo_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	var out map[string]any
	_, err := GetJSON(context.Background(), NewHTTPClient(), url, "", nil, &out)
	if got := core.KindOf(err); got != core.KindUnreachable {
		t.Errorf("KindOf = %q, want unreachable (err %v)", got, err)
	}
}

func TestPostJSON_SendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method=%s content-type=%s", r.Method, r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var out struct{ OK bool }
	if _, err := PostJSON(context.Background(), NewHTTPClient(), server.URL, "", nil, map[string]string{"a": "b"}, &out); err != nil || !out.OK {
		t.Errorf("PostJSON = %+v, %v", out, err)
	}
}

func TestResolveBaseURL(t *testing.T) {
	if got := ResolveBaseURL(core.SourceConfig{BaseURL: "http://x/"}, "https://d"); got != "http://x" {
		t.Errorf("ResolveBaseURL = %q", got)
	}
	if got := ResolveBaseURL(core.SourceConfig{}, "https://d"); got != "https://d" {
		t.Errorf("ResolveBaseURL default = %q", got)
	}
}

func TestCreateStandardRequest_InvalidURL(t *testing.T) {
	_, err := CreateStandardRequest(context.Background(), http.MethodGet, "http://bad host:x/v1", "k", nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if kind := core.KindOf(err); kind != core.KindConfigMissing {
		t.Errorf("KindOf = %q, want %q", kind, core.KindConfigMissing)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		body string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"héllo", 3, "hé..."},
		{"héllo", 2, "h..."},
		{"日本語", 4, "日..."},
	}
	for _, tt := range tests {
		got := Truncate([]byte(tt.body), tt.n)
		if got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.body, tt.n, got, tt.want)
		}
		if !utf8.ValidString(strings.TrimSuffix(got, "...")) {
			t.Errorf("Truncate(%q, %d) split a rune", tt.body, tt.n)
		}
	}
}
